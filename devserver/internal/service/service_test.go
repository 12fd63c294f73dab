package service

import (
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"vpn-console/devserver/internal/infra"
	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
)

var sortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })

func newRepo(t *testing.T) *repository.GormRepository {
	t.Helper()
	db, err := infra.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewGormRepository(db)
}

func newNetwork(t *testing.T, subnet string) Network {
	t.Helper()
	n, err := ParseNetwork(subnet, "vpn.test:51820", "")
	if err != nil {
		t.Fatalf("ParseNetwork() error = %v", err)
	}
	return n
}

func mustCreateUser(t *testing.T, repo repository.Repository, username string) {
	t.Helper()
	if _, err := CreateUser(context.Background(), repo, "root", username, username+"-password", model.RoleUser); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", username, err)
	}
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("10.8.0.7/24", "", "")
	if err != nil {
		t.Fatalf("ParseNetwork() error = %v", err)
	}
	if n.Subnet.String() != "10.8.0.0/24" {
		t.Errorf("Subnet = %s, want masked prefix", n.Subnet)
	}

	if got := n.ServerAddress().String(); got != "10.8.0.1/24" {
		t.Errorf("ServerAddress() = %s, want 10.8.0.1/24", got)
	}
	if n.ServerPrivateKey.PublicKey() != n.ServerPublicKey {
		t.Error("server key pair mismatch")
	}

	for _, subnet := range []string{"", "10.8.0.0", "fd00::/64"} {
		if _, err := ParseNetwork(subnet, "", ""); err == nil {
			t.Errorf("ParseNetwork(%q) succeeded", subnet)
		}
	}
	if _, err := ParseNetwork("10.8.0.0/24", "", "not-a-key"); err == nil {
		t.Error("ParseNetwork with bad server key succeeded")
	}
}

func TestListenPort(t *testing.T) {
	tests := []struct {
		endpoint string
		want     int
	}{
		{"vpn.test:51999", 51999},
		{"[fd00::1]:4500", 4500},
		{"vpn.test", 51820},
		{"", 51820},
		{"vpn.test:http", 51820},
		{"vpn.test:70000", 51820},
	}
	for _, tt := range tests {
		if got := (Network{Endpoint: tt.endpoint}).ListenPort(); got != tt.want {
			t.Errorf("ListenPort(%q) = %d, want %d", tt.endpoint, got, tt.want)
		}
	}
}

func TestAllocateAddress(t *testing.T) {
	n := Network{Subnet: netip.MustParsePrefix("10.8.0.0/29")}

	tests := []struct {
		name    string
		used    []string
		want    string
		wantErr bool
	}{
		{name: "first host after server", want: "10.8.0.2/32"},
		{name: "skips taken", used: []string{"10.8.0.2/32", "10.8.0.3"}, want: "10.8.0.4/32"},
		{name: "reuses gap", used: []string{"10.8.0.3/32"}, want: "10.8.0.2/32"},
		{name: "ignores garbage", used: []string{"nonsense"}, want: "10.8.0.2/32"},
		{
			name:    "full",
			used:    []string{"10.8.0.2/32", "10.8.0.3/32", "10.8.0.4/32", "10.8.0.5/32", "10.8.0.6/32"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.allocateAddress(tt.used)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Fatalf("allocateAddress() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("allocateAddress() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("allocateAddress() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClientConfig(t *testing.T) {
	n := newNetwork(t, "10.8.0.0/24")
	n.DNS = []string{"1.1.1.1", "8.8.8.8"}

	got := n.clientConfig("PRIVATE", "10.8.0.2/32")
	want := "[Interface]\n" +
		"PrivateKey = PRIVATE\n" +
		"Address = 10.8.0.2/32\n" +
		"DNS = 1.1.1.1, 8.8.8.8\n" +
		"\n[Peer]\n" +
		"PublicKey = " + n.ServerPublicKey.String() + "\n" +
		"AllowedIPs = 10.8.0.0/24\n" +
		"Endpoint = vpn.test:51820\n" +
		"PersistentKeepalive = 25\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("clientConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestAddDeviceQuota(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	n := newNetwork(t, "10.8.0.0/24")
	mustCreateUser(t, repo, "alice")

	var ids []int64
	for i, name := range []string{"laptop", "phone", "tablet"} {
		p, err := AddDevice(ctx, repo, n, "alice", " "+name+" ")
		if err != nil {
			t.Fatalf("AddDevice(%s) error = %v", name, err)
		}
		if p.Device.Name != name {
			t.Errorf("Name = %q, want trimmed %q", p.Device.Name, name)
		}
		if want := netip.AddrFrom4([4]byte{10, 8, 0, byte(i + 2)}).String() + "/32"; p.Device.Address != want {
			t.Errorf("Address = %s, want %s", p.Device.Address, want)
		}
		if p.Config == "" || p.QRCode == "" {
			t.Error("provisioned device has no config or QR code")
		}
		ids = append(ids, p.Device.ID)
	}

	_, err := AddDevice(ctx, repo, n, "alice", "desktop")
	if !IsValidation(err) || err.Error() != "device limit reached (3 of 3)" {
		t.Fatalf("fourth AddDevice() error = %v", err)
	}

	alice := Principal{Username: "alice", Role: model.RoleUser}
	if err := RevokeDevice(ctx, repo, alice, ids[0]); err != nil {
		t.Fatalf("RevokeDevice() error = %v", err)
	}
	if err := RevokeDevice(ctx, repo, alice, ids[0]); !IsValidation(err) {
		t.Errorf("second RevokeDevice() error = %v, want validation error", err)
	}

	p, err := AddDevice(ctx, repo, n, "alice", "desktop")
	if err != nil {
		t.Fatalf("AddDevice after revoke error = %v", err)
	}
	if p.Device.Address != "10.8.0.2/32" {
		t.Errorf("Address = %s, want the revoked device's address", p.Device.Address)
	}
}

func TestAddDeviceValidation(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	n := newNetwork(t, "10.8.0.0/24")
	mustCreateUser(t, repo, "alice")

	if _, err := AddDevice(ctx, repo, n, "alice", "   "); !IsValidation(err) {
		t.Errorf("blank name error = %v", err)
	}
	if _, err := AddDevice(ctx, repo, n, "alice", strings.Repeat("x", 65)); !IsValidation(err) {
		t.Errorf("long name error = %v", err)
	}
	if _, err := AddDevice(ctx, repo, n, "nobody", "laptop"); !IsNotFound(err) {
		t.Errorf("unknown owner error = %v", err)
	}

	if err := SetVPNAccess(ctx, repo, "root", "alice", false); err != nil {
		t.Fatalf("SetVPNAccess() error = %v", err)
	}
	if _, err := AddDevice(ctx, repo, n, "alice", "laptop"); !IsForbidden(err) {
		t.Errorf("disabled user error = %v, want forbidden", err)
	}
}

func TestDeviceOwnership(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	n := newNetwork(t, "10.8.0.0/24")
	mustCreateUser(t, repo, "alice")
	mustCreateUser(t, repo, "bob")

	p, err := AddDevice(ctx, repo, n, "alice", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	id := p.Device.ID
	bob := Principal{Username: "bob", Role: model.RoleUser}
	admin := Principal{Username: "root", Role: model.RoleAdmin}

	if _, err := GetDevice(ctx, repo, bob, id); !IsNotFound(err) {
		t.Errorf("GetDevice as other user error = %v, want not found", err)
	}
	if err := RevokeDevice(ctx, repo, bob, id); !IsNotFound(err) {
		t.Errorf("RevokeDevice as other user error = %v, want not found", err)
	}
	if _, err := GetDevice(ctx, repo, admin, id); err != nil {
		t.Errorf("GetDevice as admin error = %v", err)
	}
}

func TestRotateDeviceKeys(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	n := newNetwork(t, "10.8.0.0/24")
	mustCreateUser(t, repo, "alice")
	alice := Principal{Username: "alice", Role: model.RoleUser}

	p, err := AddDevice(ctx, repo, n, "alice", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	rotated, err := RotateDeviceKeys(ctx, repo, n, alice, p.Device.ID)
	if err != nil {
		t.Fatalf("RotateDeviceKeys() error = %v", err)
	}
	if rotated.Device.PublicKey == p.Device.PublicKey || rotated.Config == p.Config {
		t.Error("keys were not rotated")
	}
	if rotated.Device.Address != p.Device.Address {
		t.Errorf("Address changed from %s to %s", p.Device.Address, rotated.Device.Address)
	}

	current, err := DeviceConfig(ctx, repo, n, alice, p.Device.ID)
	if err != nil {
		t.Fatalf("DeviceConfig() error = %v", err)
	}
	if current.Config != rotated.Config {
		t.Error("DeviceConfig() does not return the rotated config")
	}

	if err := RevokeDevice(ctx, repo, alice, p.Device.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := DeviceConfig(ctx, repo, n, alice, p.Device.ID); !IsValidation(err) {
		t.Errorf("DeviceConfig of revoked device error = %v", err)
	}
	if _, err := RotateDeviceKeys(ctx, repo, n, alice, p.Device.ID); !IsValidation(err) {
		t.Errorf("RotateDeviceKeys of revoked device error = %v", err)
	}
}

func TestUsageAlerts(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	n := newNetwork(t, "10.8.0.0/24")
	mustCreateUser(t, repo, "alice")
	p, err := AddDevice(ctx, repo, n, "alice", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	if err := SetBandwidthLimit(ctx, repo, "root", "alice", 1); err != nil {
		t.Fatalf("SetBandwidthLimit() error = %v", err)
	}

	const mb = 1 << 20
	steps := []struct {
		bytes int64
		want  []string
	}{
		{bytes: mb / 2},
		{bytes: mb / 2},
		{bytes: mb / 4, want: []string{model.SeverityHigh}},
		{bytes: mb / 4, want: []string{model.SeverityHigh}},
		{bytes: mb / 2, want: []string{model.SeverityHigh, model.SeverityCritical}},
		{bytes: mb, want: []string{model.SeverityHigh, model.SeverityCritical}},
	}
	for i, s := range steps {
		if err := RecordTraffic(ctx, repo, p.Device.ID, s.bytes, 0, time.Time{}); err != nil {
			t.Fatalf("step %d: RecordTraffic() error = %v", i, err)
		}
		alerts, err := ListAlerts(ctx, repo, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, a := range alerts {
			got = append(got, a.Severity)
		}
		if diff := cmp.Diff(s.want, got, sortStrings, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("step %d: alerts mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestUsageAlertsOnJumpPastTwiceTheLimit(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	n := newNetwork(t, "10.8.0.0/24")
	mustCreateUser(t, repo, "alice")
	p, err := AddDevice(ctx, repo, n, "alice", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	if err := SetBandwidthLimit(ctx, repo, "root", "alice", 1); err != nil {
		t.Fatal(err)
	}

	if err := RecordTraffic(ctx, repo, p.Device.ID, 3<<20, 0, time.Time{}); err != nil {
		t.Fatalf("RecordTraffic() error = %v", err)
	}
	alerts, err := ListAlerts(ctx, repo, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, a := range alerts {
		got = append(got, a.Severity)
	}
	want := []string{model.SeverityHigh, model.SeverityCritical}
	if diff := cmp.Diff(want, got, sortStrings); diff != "" {
		t.Errorf("alerts mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordTraffic(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	n := newNetwork(t, "10.8.0.0/24")
	mustCreateUser(t, repo, "alice")
	laptop, err := AddDevice(ctx, repo, n, "alice", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	phone, err := AddDevice(ctx, repo, n, "alice", "phone")
	if err != nil {
		t.Fatal(err)
	}

	if err := RecordTraffic(ctx, repo, laptop.Device.ID, -1, 0, time.Time{}); !IsValidation(err) {
		t.Errorf("negative counters error = %v", err)
	}
	if err := RecordTraffic(ctx, repo, 9999, 1, 1, time.Time{}); !IsNotFound(err) {
		t.Errorf("unknown device error = %v", err)
	}

	now := time.Now().UTC()
	hour := now.Truncate(time.Hour)
	reports := []struct {
		id     int64
		rx, tx int64
		at     time.Time
	}{
		{laptop.Device.ID, 100, 10, hour.Add(-2 * time.Hour)},
		{laptop.Device.ID, 200, 20, hour.Add(-2*time.Hour + time.Minute)},
		{phone.Device.ID, 300, 30, hour},
		{laptop.Device.ID, 1, 1, now.Add(-48 * time.Hour)},
	}
	for _, r := range reports {
		if err := RecordTraffic(ctx, repo, r.id, r.rx, r.tx, r.at); err != nil {
			t.Fatalf("RecordTraffic() error = %v", err)
		}
	}

	points, summary, err := Traffic(ctx, repo, "alice", 0, 24)
	if err != nil {
		t.Fatalf("Traffic() error = %v", err)
	}
	wantPoints := []TrafficPoint{
		{Time: hour.Add(-2 * time.Hour), Bytes: 330},
		{Time: hour, Bytes: 330},
	}
	if diff := cmp.Diff(wantPoints, points); diff != "" {
		t.Errorf("Traffic() points mismatch (-want +got):\n%s", diff)
	}
	if want := (TrafficSummary{RxBytes: 600, TxBytes: 60}); summary != want {
		t.Errorf("Traffic() summary = %+v, want %+v", summary, want)
	}

	_, summary, err = Traffic(ctx, repo, "alice", phone.Device.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := (TrafficSummary{RxBytes: 300, TxBytes: 30}); summary != want {
		t.Errorf("Traffic(phone) summary = %+v, want %+v", summary, want)
	}

	if _, _, err := Traffic(ctx, repo, "alice", 0, 24*31); !IsValidation(err) {
		t.Errorf("Traffic() over the window cap error = %v", err)
	}

	alice := Principal{Username: "alice", Role: model.RoleUser}
	total, err := Summary(ctx, repo, alice, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := (TrafficSummary{RxBytes: 601, TxBytes: 61}); total != want {
		t.Errorf("Summary() = %+v, want %+v", total, want)
	}
}

func TestUserManagement(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	created, err := SeedAdmin(ctx, repo, "root", "rootpass1")
	if err != nil || !created {
		t.Fatalf("SeedAdmin() = %v, %v", created, err)
	}
	if created, err := SeedAdmin(ctx, repo, "root", "other-pass"); err != nil || created {
		t.Errorf("second SeedAdmin() = %v, %v", created, err)
	}

	tests := []struct {
		name     string
		username string
		password string
		role     string
	}{
		{name: "blank username", username: " ", password: "password1", role: model.RoleUser},
		{name: "short password", username: "carol", password: "short", role: model.RoleUser},
		{name: "bad role", username: "carol", password: "password1", role: "owner"},
		{name: "duplicate", username: "root", password: "password1", role: model.RoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateUser(ctx, repo, "root", tt.username, tt.password, tt.role); !IsValidation(err) {
				t.Errorf("CreateUser() error = %v, want validation error", err)
			}
		})
	}

	u, err := CreateUser(ctx, repo, "root", "carol", "password1", "")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.Role != model.RoleUser || !u.WireGuardEnabled || u.MaxDevices != model.DefaultMaxDevices {
		t.Errorf("CreateUser() = %+v", u)
	}

	if err := UpdateUserRole(ctx, repo, "root", "root", model.RoleUser); !IsValidation(err) {
		t.Errorf("demoting yourself error = %v", err)
	}
	if err := UpdateUserRole(ctx, repo, "root", "carol", model.RoleAdmin); err != nil {
		t.Errorf("UpdateUserRole() error = %v", err)
	}
	if err := UpdateUserRole(ctx, repo, "root", "nobody", model.RoleAdmin); !IsNotFound(err) {
		t.Errorf("UpdateUserRole(nobody) error = %v", err)
	}
	if err := DeleteUser(ctx, repo, "root", "root"); !IsValidation(err) {
		t.Errorf("deleting yourself error = %v", err)
	}
	if err := DeleteUser(ctx, repo, "root", "carol"); err != nil {
		t.Errorf("DeleteUser() error = %v", err)
	}
	if err := DeleteUser(ctx, repo, "root", "carol"); !IsNotFound(err) {
		t.Errorf("second DeleteUser() error = %v", err)
	}

	logs, err := ListAuditLogs(ctx, repo, repository.AuditFilter{Username: "carol"})
	if err != nil {
		t.Fatal(err)
	}
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	want := []string{ActionUserCreated, ActionRoleChanged, ActionUserDeleted}
	if diff := cmp.Diff(want, actions, sortStrings); diff != "" {
		t.Errorf("audit actions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoginAndRefresh(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	tokens, err := NewTokens("secret", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	mustCreateUser(t, repo, "alice")

	for _, pass := range []string{"", "wrong-password"} {
		if _, err := Login(ctx, repo, tokens, "alice", pass); !IsAuth(err) {
			t.Errorf("Login(%q) error = %v, want auth error", pass, err)
		}
	}
	if _, err := Login(ctx, repo, tokens, "nobody", "alice-password"); !IsAuth(err) {
		t.Errorf("Login(nobody) error = %v, want auth error", err)
	}

	s, err := Login(ctx, repo, tokens, "alice", "alice-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	p, err := Authenticate(ctx, repo, tokens, s.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if p != (Principal{Username: "alice", Role: model.RoleUser}) {
		t.Errorf("Authenticate() = %+v", p)
	}

	other, err := NewTokens("other-secret", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Authenticate(ctx, repo, other, s.AccessToken); !IsAuth(err) {
		t.Errorf("Authenticate() with foreign signature error = %v", err)
	}

	next, err := Refresh(ctx, repo, tokens, s.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if next.RefreshToken == s.RefreshToken {
		t.Error("Refresh() reused the refresh token")
	}
	if _, err := Refresh(ctx, repo, tokens, s.RefreshToken); !IsAuth(err) {
		t.Errorf("reusing a refresh token error = %v, want auth error", err)
	}
}

func TestErrorClassifiers(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ValidationError{Msg: "bad"})
	if !IsValidation(wrapped) {
		t.Error("IsValidation(joined) = false")
	}
	if IsAuth(wrapped) || IsForbidden(wrapped) || IsNotFound(wrapped) {
		t.Error("joined validation error matched another class")
	}
	if !IsNotFound(repository.ErrNotFound) || !IsConflict(repository.ErrConflict) {
		t.Error("repository sentinels not classified")
	}
}

func TestRecordPeerTraffic(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	n := newNetwork(t, "10.8.0.0/24")
	mustCreateUser(t, repo, "alice")
	p, err := AddDevice(ctx, repo, n, "alice", "laptop")
	if err != nil {
		t.Fatal(err)
	}

	if err := RecordPeerTraffic(ctx, repo, p.Device.PublicKey, 10, 20, time.Time{}); err != nil {
		t.Fatalf("RecordPeerTraffic() error = %v", err)
	}
	d, err := repo.GetDevice(ctx, p.Device.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.RxBytes != 10 || d.TxBytes != 20 || d.LastSeen == nil {
		t.Errorf("device after report = %+v", d)
	}
	if err := RecordPeerTraffic(ctx, repo, "unknown-key", 1, 1, time.Time{}); !IsNotFound(err) {
		t.Errorf("unknown key error = %v, want not found", err)
	}
}
