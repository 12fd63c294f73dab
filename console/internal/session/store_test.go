package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"vpn-console/console/internal/backend"
	"vpn-console/console/internal/storage"
)

type fakeGateway struct {
	mu       sync.Mutex
	tokens   *backend.TokenHolder
	valid    map[string]backend.Identity
	loginErr error
	loginRes backend.LoginResult
	meCalls  int
	meTokens []string
}

func (f *fakeGateway) Login(ctx context.Context, username, password string) (backend.LoginResult, error) {
	if f.loginErr != nil {
		return backend.LoginResult{}, f.loginErr
	}
	return f.loginRes, nil
}

func (f *fakeGateway) Me(ctx context.Context) (backend.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	tok := f.tokens.Token()
	f.meTokens = append(f.meTokens, tok)
	id, ok := f.valid[tok]
	if !ok {
		return backend.Identity{}, &backend.APIError{StatusCode: 401, Message: "could not validate credentials"}
	}
	return id, nil
}

func newStore(t *testing.T, gw *fakeGateway, slot storage.Slot) *Store {
	t.Helper()
	gw.tokens = backend.NewTokenHolder("")
	return New(gw, gw.tokens, slot, nil)
}

func TestInitializeEmptySlot(t *testing.T) {
	gw := &fakeGateway{}
	s := newStore(t, gw, storage.NewMemorySlot())

	if s.Status() != StatusLoading {
		t.Fatalf("initial Status() = %v, want loading", s.Status())
	}
	if err := s.RequireAuthenticated(); !errors.Is(err, ErrUnresolved) {
		t.Errorf("RequireAuthenticated() while loading = %v, want ErrUnresolved", err)
	}
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if s.Status() != StatusAnonymous {
		t.Errorf("Status() = %v, want anonymous", s.Status())
	}
	if gw.meCalls != 0 {
		t.Errorf("Me calls = %d, want 0", gw.meCalls)
	}
	if err := s.RequireAuthenticated(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("RequireAuthenticated() = %v, want ErrNotAuthenticated", err)
	}
}

func TestInitializeValidToken(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	_ = slot.Save(ctx, storage.Record{Token: "t1", Role: "user", Username: "stale-name"})

	gw := &fakeGateway{valid: map[string]backend.Identity{
		"t1": {Username: "root", Role: backend.RoleAdmin},
	}}
	s := newStore(t, gw, slot)

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if gw.meTokens[0] != "t1" {
		t.Errorf("Me called with token %q, want t1", gw.meTokens[0])
	}
	id, ok := s.Identity()
	if !ok || id.Username != "root" {
		t.Fatalf("Identity() = %+v, %v", id, ok)
	}
	if !s.IsAdmin() {
		t.Error("IsAdmin() = false for admin identity")
	}
	if err := s.RequireAdmin(); err != nil {
		t.Errorf("RequireAdmin() = %v", err)
	}
	rec, err := slot.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.Role != "admin" || rec.Username != "root" || rec.Token != "t1" {
		t.Errorf("cached record = %+v, want refreshed role and username", rec)
	}
}

func TestInitializeRejectedToken(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	_ = slot.Save(ctx, storage.Record{Token: "expired", Role: "admin", Username: "root"})

	gw := &fakeGateway{valid: map[string]backend.Identity{}}
	s := newStore(t, gw, slot)

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}
	if s.Status() != StatusAnonymous {
		t.Errorf("Status() = %v, want anonymous", s.Status())
	}
	if s.IsAdmin() {
		t.Error("IsAdmin() = true after rejected token")
	}
	if gw.tokens.Token() != "" {
		t.Errorf("token = %q, want cleared", gw.tokens.Token())
	}
	if _, err := slot.Load(ctx); !errors.Is(err, storage.ErrEmpty) {
		t.Errorf("slot Load() = %v, want ErrEmpty", err)
	}

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if gw.meCalls != 1 {
		t.Errorf("Me calls = %d, want 1", gw.meCalls)
	}
}

func TestCachedRoleNeverGrantsAdmin(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	_ = slot.Save(ctx, storage.Record{Token: "t1", Role: "admin", Username: "mallory"})

	gw := &fakeGateway{valid: map[string]backend.Identity{
		"t1": {Username: "mallory", Role: backend.RoleUser},
	}}
	s := newStore(t, gw, slot)

	if rec, ok := s.Provisional(ctx); !ok || rec.Role != "admin" || rec.Token != "" {
		t.Errorf("Provisional() = %+v, %v", rec, ok)
	}
	if s.IsAdmin() {
		t.Error("IsAdmin() = true before resolution")
	}
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if s.IsAdmin() {
		t.Error("IsAdmin() = true for a user identity")
	}
	if err := s.RequireAdmin(); !errors.Is(err, ErrForbidden) {
		t.Errorf("RequireAdmin() = %v, want ErrForbidden", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	gw := &fakeGateway{loginRes: backend.LoginResult{
		Identity:     backend.Identity{Username: "alice", Role: backend.RoleUser},
		AccessToken:  "acc",
		RefreshToken: "ref",
	}}
	s := newStore(t, gw, slot)

	id, err := s.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if id.Username != "alice" || Home(id) != "dashboard" {
		t.Errorf("Login() = %+v, home %q", id, Home(id))
	}
	if !s.IsAuthenticated() || s.IsAdmin() {
		t.Errorf("IsAuthenticated() = %v, IsAdmin() = %v", s.IsAuthenticated(), s.IsAdmin())
	}
	if gw.tokens.Token() != "acc" {
		t.Errorf("token = %q, want acc", gw.tokens.Token())
	}
	rec, err := slot.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.Token != "acc" || rec.RefreshToken != "ref" || rec.Role != "user" || rec.Username != "alice" {
		t.Errorf("persisted record = %+v", rec)
	}
}

func TestLoginFailureLeavesState(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	_ = slot.Save(ctx, storage.Record{Token: "keep", Username: "bob"})

	gw := &fakeGateway{loginErr: &backend.APIError{StatusCode: 401, Message: "invalid credentials"}}
	s := newStore(t, gw, slot)
	gw.tokens.Set("keep")

	_, err := s.Login(ctx, "bob", "bad")
	if !IsAuth(err) {
		t.Fatalf("Login() error = %v, want AuthError", err)
	}
	if err.Error() != "invalid credentials" {
		t.Errorf("Login() error = %q, want backend message verbatim", err)
	}
	if !backend.IsUnauthorized(err) {
		t.Error("AuthError does not unwrap to the APIError")
	}
	if s.Status() != StatusLoading {
		t.Errorf("Status() = %v, want unchanged", s.Status())
	}
	if gw.tokens.Token() != "keep" {
		t.Errorf("token = %q, want unchanged", gw.tokens.Token())
	}
	if rec, _ := slot.Load(ctx); rec.Token != "keep" {
		t.Errorf("slot = %+v, want unchanged", rec)
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	gw := &fakeGateway{loginRes: backend.LoginResult{
		Identity:    backend.Identity{Username: "root", Role: backend.RoleAdmin},
		AccessToken: "acc",
	}}
	s := newStore(t, gw, slot)

	if _, err := s.Login(ctx, "root", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if Home(backend.Identity{Role: backend.RoleAdmin}) != "admin" {
		t.Error("Home(admin) != admin")
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if s.Status() != StatusAnonymous || s.IsAdmin() {
		t.Errorf("after Logout Status() = %v, IsAdmin() = %v", s.Status(), s.IsAdmin())
	}
	if _, ok := s.Identity(); ok {
		t.Error("Identity() ok after Logout")
	}
	if gw.tokens.Token() != "" {
		t.Errorf("token = %q after Logout", gw.tokens.Token())
	}
	if _, err := slot.Load(ctx); !errors.Is(err, storage.ErrEmpty) {
		t.Errorf("slot Load() = %v, want ErrEmpty", err)
	}
}

type failingSlot struct {
	storage.MemorySlot
	err error
}

func (f *failingSlot) Load(ctx context.Context) (storage.Record, error) {
	return storage.Record{}, f.err
}

func TestInitializeSlotError(t *testing.T) {
	boom := errors.New("disk on fire")
	s := newStore(t, &fakeGateway{}, &failingSlot{err: boom})
	if err := s.Initialize(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Initialize() error = %v, want %v", err, boom)
	}
	if s.Status() != StatusAnonymous {
		t.Errorf("Status() = %v, want anonymous", s.Status())
	}
}

func TestInitializeCorruptSlot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	slot := storage.NewFileSlot(path)
	gw := &fakeGateway{}
	s := newStore(t, gw, slot)

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}
	if s.Status() != StatusAnonymous {
		t.Errorf("Status() = %v, want anonymous", s.Status())
	}
	if gw.meCalls != 0 {
		t.Errorf("Me calls = %d, want 0", gw.meCalls)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("session file still present: %v", err)
	}
}
