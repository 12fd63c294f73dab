package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VPNCONSOLE_API_URL",
		"VPNCONSOLE_SESSION_BACKEND",
		"VPNCONSOLE_SESSION_PATH",
		"VPNCONSOLE_TIMEOUT",
		"VPNCONSOLE_LOG_LEVEL",
		"VPNCONSOLE_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != DefaultAPIURL || cfg.Timeout != DefaultTimeout || cfg.Session.Backend != SessionFile {
		t.Errorf("Load() = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true); err == nil {
		t.Fatal("Load() error = nil for explicit missing file")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "api_url: http://file:9000/\ntimeout: 5s\nsession:\n  backend: sqlite\nlogging:\n  level: debug\n  format: json\n  output: stdout\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VPNCONSOLE_API_URL", "http://env:8000/")
	t.Setenv("VPNCONSOLE_LOG_LEVEL", "ERROR")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.ApplyDefaults()

	if cfg.APIURL != "http://env:8000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Session.Backend != SessionSQLite || !strings.HasSuffix(cfg.Session.Path, "session.db") {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stdout" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("VPNCONSOLE_TIMEOUT", "soon")
	if _, err := Load("", false); err == nil {
		t.Fatal("Load() error = nil for invalid VPNCONSOLE_TIMEOUT")
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.APIURL = "not a url"
	cfg.Timeout = 0
	cfg.Session.Backend = "redis"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	msg := err.Error()
	for _, want := range []string{"Config.APIURL", "Config.Timeout", "Config.Session.Backend"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate() = %q, missing %s", msg, want)
		}
	}
	if strings.Count(msg, "; ") != 2 {
		t.Errorf("Validate() = %q, want three messages joined by '; '", msg)
	}
}

func TestMemoryBackendHasNoPath(t *testing.T) {
	cfg := Default()
	cfg.Session.Backend = SessionMemory
	cfg.ApplyDefaults()
	if cfg.Session.Path != "" {
		t.Errorf("Session.Path = %q, want empty", cfg.Session.Path)
	}
}
