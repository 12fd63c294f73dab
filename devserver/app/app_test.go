package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := New(context.Background(), Config{
		DBPath:    filepath.Join(t.TempDir(), "dev.db"),
		JWTSecret: "test-secret",
		AdminUser: "root",
		AdminPass: "rootpass1",
		Subnet:    "10.8.0.0/24",
		Endpoint:  "vpn.test:51820",
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// call sends body as JSON and decodes the JSON response into a map.
func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func login(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	status, body := call(t, ts, http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d, body %v", username, status, body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("login %s: no access_token in %v", username, body)
	}
	return token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, body := call(t, ts, http.MethodGet, "/health/", "", nil)
	if status != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health = %d %v", status, body)
	}
}

func TestUnauthenticated(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		token  string
		detail string
	}{
		{name: "no token", detail: "not authenticated"},
		{name: "garbage token", token: "garbage", detail: "could not validate credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, ts, http.MethodGet, "/devices/", tt.token, nil)
			if status != http.StatusUnauthorized || body["detail"] != tt.detail {
				t.Errorf("GET /devices/ = %d %v, want 401 %q", status, body, tt.detail)
			}
		})
	}

	status, body := call(t, ts, http.MethodPost, "/auth/login", "", map[string]string{"username": "root", "password": "nope"})
	if status != http.StatusUnauthorized || body["detail"] != "invalid credentials" {
		t.Errorf("bad login = %d %v", status, body)
	}
}

func TestLoginSession(t *testing.T) {
	ts := newTestServer(t)

	status, body := call(t, ts, http.MethodPost, "/auth/login", "", map[string]string{"username": "root", "password": "rootpass1"})
	if status != http.StatusOK {
		t.Fatalf("login = %d %v", status, body)
	}
	if body["token_type"] != "bearer" || body["role"] != "admin" || body["username"] != "root" {
		t.Errorf("login body = %v", body)
	}

	status, me := call(t, ts, http.MethodGet, "/auth/me", body["access_token"].(string), nil)
	if status != http.StatusOK || me["username"] != "root" || me["role"] != "admin" {
		t.Errorf("me = %d %v", status, me)
	}

	refresh := map[string]string{"refresh_token": body["refresh_token"].(string)}
	if status, next := call(t, ts, http.MethodPost, "/auth/refresh", "", refresh); status != http.StatusOK || next["access_token"] == "" {
		t.Errorf("refresh = %d %v", status, next)
	}
	if status, _ := call(t, ts, http.MethodPost, "/auth/refresh", "", refresh); status != http.StatusUnauthorized {
		t.Errorf("second refresh status = %d, want 401", status)
	}
}

func TestDeviceFlow(t *testing.T) {
	ts := newTestServer(t)
	admin := login(t, ts, "root", "rootpass1")

	status, body := call(t, ts, http.MethodPost, "/admin/add-user", admin, map[string]string{"username": "alice", "password": "alicepass1"})
	if status != http.StatusCreated {
		t.Fatalf("add-user = %d %v", status, body)
	}
	alice := login(t, ts, "alice", "alicepass1")

	for _, name := range []string{"laptop", "phone", "tablet"} {
		status, body := call(t, ts, http.MethodPost, "/devices/add", alice, map[string]string{"device_name": name})
		if status != http.StatusCreated {
			t.Fatalf("add %s = %d %v", name, status, body)
		}
		if cfg, _ := body["config"].(string); !strings.Contains(cfg, "Endpoint = vpn.test:51820") {
			t.Errorf("add %s config = %q", name, cfg)
		}
		if qr, _ := body["qr_code"].(string); qr == "" {
			t.Errorf("add %s: no qr_code", name)
		}
	}

	status, body = call(t, ts, http.MethodPost, "/devices/add", alice, map[string]string{"device_name": "desktop"})
	if status != http.StatusBadRequest || body["detail"] != "device limit reached (3 of 3)" {
		t.Errorf("fourth add = %d %v", status, body)
	}

	status, body = call(t, ts, http.MethodGet, "/devices/", alice, nil)
	if status != http.StatusOK || body["count"] != float64(3) || body["total"] != float64(3) {
		t.Fatalf("list = %d %v", status, body)
	}
	first := body["devices"].([]any)[0].(map[string]any)
	id := int64(first["id"].(float64))

	if status, body := call(t, ts, http.MethodGet, "/admin/users", alice, nil); status != http.StatusForbidden || body["detail"] != "admin privileges required" {
		t.Errorf("admin as user = %d %v", status, body)
	}

	status, body = call(t, ts, http.MethodDelete, "/devices/"+jsonID(id), alice, nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("revoke = %d %v", status, body)
	}
	if status, _ := call(t, ts, http.MethodGet, "/devices/"+jsonID(id)+"/config", alice, nil); status != http.StatusBadRequest {
		t.Errorf("config of revoked device status = %d, want 400", status)
	}
	if status, _ := call(t, ts, http.MethodGet, "/devices/999/config", alice, nil); status != http.StatusNotFound {
		t.Errorf("config of missing device status = %d, want 404", status)
	}
	if status, _ := call(t, ts, http.MethodGet, "/devices/0", alice, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("device id 0 status = %d, want 422", status)
	}

	status, body = call(t, ts, http.MethodGet, "/admin/devices?status=revoked", admin, nil)
	if status != http.StatusOK || body["total"] != float64(1) {
		t.Errorf("admin revoked devices = %d %v", status, body)
	}
}

func TestTrafficReport(t *testing.T) {
	ts := newTestServer(t)
	admin := login(t, ts, "root", "rootpass1")

	_, added := call(t, ts, http.MethodPost, "/devices/add", admin, map[string]string{"device_name": "laptop"})
	id := int64(added["id"].(float64))

	report := map[string]int64{"device_id": id, "rx_bytes": 1000, "tx_bytes": 500}
	if status, body := call(t, ts, http.MethodPost, "/dev/traffic", admin, report); status != http.StatusOK {
		t.Fatalf("report = %d %v", status, body)
	}

	status, body := call(t, ts, http.MethodGet, "/analytics/summary", admin, nil)
	if status != http.StatusOK || body["total_traffic"] != float64(1500) {
		t.Errorf("summary = %d %v", status, body)
	}
	status, body = call(t, ts, http.MethodGet, "/analytics/traffic?hours=1", admin, nil)
	if status != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Errorf("traffic = %d %v", status, body)
	}

	status, body = call(t, ts, http.MethodGet, "/admin/monitoring/stats", admin, nil)
	stats, _ := body["statistics"].(map[string]any)
	if status != http.StatusOK || stats == nil {
		t.Fatalf("stats = %d %v", status, body)
	}
	if traffic := stats["traffic"].(map[string]any); traffic["total_rx"] != float64(1000) {
		t.Errorf("stats traffic = %v", traffic)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DEVSERVER_ADMIN_USER", "root")
	t.Setenv("DEVSERVER_ADMIN_PASS", "rootpass1")
	t.Setenv("DEVSERVER_ACCESS_TTL", "")
	t.Setenv("DEVSERVER_WG_SETUP", "")
	t.Setenv("DEVSERVER_VPN_SUBNET", " ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Addr != defaultAddr || cfg.Subnet != defaultSubnet || cfg.AccessTTL != defaultAccessTTL || cfg.WGSetup {
		t.Errorf("LoadConfig() = %+v", cfg)
	}

	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEVSERVER_ACCESS_TTL", "-1s")
	t.Setenv("DEVSERVER_WG_SETUP", "maybe")
	_, err = LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() succeeded")
	}
	for _, want := range []string{"DEVSERVER_WG_SETUP", "DEVSERVER_ACCESS_TTL", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
