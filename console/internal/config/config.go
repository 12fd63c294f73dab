package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL  = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second
	appDir         = "vpnconsole"

	SessionFile   = "file"
	SessionSQLite = "sqlite"
	SessionMemory = "memory"
)

var validate = validator.New()

type Config struct {
	APIURL  string        `yaml:"api_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

type SessionConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file sqlite memory"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	Output string `yaml:"output" validate:"oneof=stdout stderr"`
}

func Default() Config {
	return Config{
		APIURL:  DefaultAPIURL,
		Timeout: DefaultTimeout,
		Session: SessionConfig{Backend: SessionFile},
		Logging: LoggingConfig{Level: "warn", Format: "text", Output: "stderr"},
	}
}

// DefaultPath is the config file read when --config is not given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir, "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path and
// VPNCONSOLE_* environment variables, in that order. A missing file is only
// an error when explicit is true.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills settings that depend on others. Call it after every
// override has been applied.
func (c *Config) ApplyDefaults() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.Session.Path == "" && c.Session.Backend != SessionMemory {
		c.Session.Path = defaultSessionPath(c.Session.Backend)
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("VPNCONSOLE_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("VPNCONSOLE_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("VPNCONSOLE_SESSION_PATH"); v != "" {
		cfg.Session.Path = v
	}
	if v := os.Getenv("VPNCONSOLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VPNCONSOLE_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("VPNCONSOLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("VPNCONSOLE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	return nil
}

func defaultSessionPath(backend string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	name := "session.json"
	if backend == SessionSQLite {
		name = "session.db"
	}
	return filepath.Join(dir, appDir, name)
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(errs, "; "))
}
