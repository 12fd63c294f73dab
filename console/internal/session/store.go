// Package session holds the authentication state shared by every console
// command: the bearer token, the resolved identity and whether resolution
// has finished.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"vpn-console/console/internal/backend"
	"vpn-console/console/internal/storage"
)

type Status int

const (
	// StatusLoading is the state until Initialize or Login completes.
	StatusLoading Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Gateway is the subset of the backend client the store needs.
type Gateway interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
	Me(ctx context.Context) (backend.Identity, error)
}

// Store is the single holder of authentication state. It is the only writer
// of the token holder and of the persisted slot.
type Store struct {
	gw     Gateway
	slot   storage.Slot
	tokens *backend.TokenHolder
	log    *slog.Logger

	mu       sync.RWMutex
	status   Status
	identity backend.Identity
}

// New wires a store to gw. tokens must be the holder gw sends requests with.
func New(gw Gateway, tokens *backend.TokenHolder, slot storage.Slot, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{
		gw:     gw,
		slot:   slot,
		tokens: tokens,
		log:    log,
		status: StatusLoading,
	}
}

// Initialize restores a persisted session. A stored token is re-validated
// with the backend; rejection is not an error, it just leaves the store
// anonymous with the slot cleared. An undecodable record is treated the
// same way. Only slot I/O failures are returned.
func (s *Store) Initialize(ctx context.Context) error {
	rec, err := s.slot.Load(ctx)
	if errors.Is(err, storage.ErrEmpty) {
		s.setAnonymous()
		return nil
	}
	if errors.Is(err, storage.ErrCorrupt) {
		s.log.Warn("discarding unreadable session", "error", err)
		s.setAnonymous()
		if clearErr := s.slot.Clear(ctx); clearErr != nil {
			return fmt.Errorf("clear unreadable session: %w", clearErr)
		}
		return nil
	}
	if err != nil {
		s.setAnonymous()
		return err
	}

	s.tokens.Set(rec.Token)
	identity, err := s.gw.Me(ctx)
	if err != nil {
		s.log.Debug("stored session rejected", "error", err)
		s.tokens.Clear()
		s.setAnonymous()
		if clearErr := s.slot.Clear(ctx); clearErr != nil {
			return fmt.Errorf("clear rejected session: %w", clearErr)
		}
		return nil
	}

	rec.Role = string(identity.Role)
	rec.Username = identity.Username
	if err := s.slot.Save(ctx, rec); err != nil {
		s.log.Warn("refresh cached identity failed", "error", err)
	}
	s.setAuthenticated(identity)
	s.log.Debug("session restored", "username", identity.Username, "role", identity.Role)
	return nil
}

// Login authenticates and persists the new session. On failure the store
// and the slot are left as they were.
func (s *Store) Login(ctx context.Context, username, password string) (backend.Identity, error) {
	previous := s.tokens.Token()
	res, err := s.gw.Login(ctx, username, password)
	if err != nil {
		return backend.Identity{}, &AuthError{Msg: err.Error(), Err: err}
	}

	s.tokens.Set(res.AccessToken)
	rec := storage.Record{
		Token:        res.AccessToken,
		RefreshToken: res.RefreshToken,
		Role:         string(res.Identity.Role),
		Username:     res.Identity.Username,
	}
	if err := s.slot.Save(ctx, rec); err != nil {
		s.tokens.Set(previous)
		return backend.Identity{}, fmt.Errorf("persist session: %w", err)
	}
	s.setAuthenticated(res.Identity)
	s.log.Info("logged in", "username", res.Identity.Username, "role", res.Identity.Role)
	return res.Identity, nil
}

// Logout forgets the identity and the token, in memory and on disk.
func (s *Store) Logout(ctx context.Context) error {
	s.tokens.Clear()
	s.setAnonymous()
	if err := s.slot.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Identity returns the resolved identity; ok is false unless authenticated.
func (s *Store) Identity() (backend.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusAuthenticated {
		return backend.Identity{}, false
	}
	return s.identity, true
}

func (s *Store) IsAuthenticated() bool {
	return s.Status() == StatusAuthenticated
}

// IsAdmin never consults the cached role in the slot.
func (s *Store) IsAdmin() bool {
	id, ok := s.Identity()
	return ok && id.Role == backend.RoleAdmin
}

// Provisional returns the cached username and role saved with the token.
// They may be stale and must not gate anything.
func (s *Store) Provisional(ctx context.Context) (storage.Record, bool) {
	rec, err := s.slot.Load(ctx)
	if err != nil {
		return storage.Record{}, false
	}
	rec.Token = ""
	rec.RefreshToken = ""
	return rec, true
}

// RequireAuthenticated is the guard for signed-in views.
func (s *Store) RequireAuthenticated() error {
	switch s.Status() {
	case StatusLoading:
		return ErrUnresolved
	case StatusAnonymous:
		return ErrNotAuthenticated
	}
	return nil
}

// RequireAdmin is the guard for admin views.
func (s *Store) RequireAdmin() error {
	if err := s.RequireAuthenticated(); err != nil {
		return err
	}
	if !s.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// Home names the landing view for the identity's role.
func Home(id backend.Identity) string {
	if id.Role == backend.RoleAdmin {
		return "admin"
	}
	return "dashboard"
}

func (s *Store) setAuthenticated(id backend.Identity) {
	s.mu.Lock()
	s.status = StatusAuthenticated
	s.identity = id
	s.mu.Unlock()
}

func (s *Store) setAnonymous() {
	s.mu.Lock()
	s.status = StatusAnonymous
	s.identity = backend.Identity{}
	s.mu.Unlock()
}
