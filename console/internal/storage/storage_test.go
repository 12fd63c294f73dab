package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func slots(t *testing.T) map[string]Slot {
	t.Helper()
	dir := t.TempDir()

	db, err := OpenSQLite(filepath.Join(dir, "session.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	gs, err := NewGormSlot(db)
	if err != nil {
		t.Fatalf("NewGormSlot() error = %v", err)
	}
	t.Cleanup(func() { gs.Close() })

	return map[string]Slot{
		"file":   NewFileSlot(filepath.Join(dir, "nested", "session.json")),
		"sqlite": gs,
		"memory": NewMemorySlot(),
	}
}

func TestSlotRoundTrip(t *testing.T) {
	ctx := context.Background()
	saved := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for name, slot := range slots(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := slot.Load(ctx); !errors.Is(err, ErrEmpty) {
				t.Fatalf("Load() on new slot = %v, want ErrEmpty", err)
			}

			want := Record{Token: "tok", RefreshToken: "ref", Role: "admin", Username: "root", SavedAt: saved}
			if err := slot.Save(ctx, want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := slot.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}

			want.Token, want.Role = "tok2", "user"
			if err := slot.Save(ctx, want); err != nil {
				t.Fatalf("second Save() error = %v", err)
			}
			got, err = slot.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Token != "tok2" || got.Role != "user" {
				t.Errorf("Load() after overwrite = %+v", got)
			}

			if err := slot.Clear(ctx); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			if _, err := slot.Load(ctx); !errors.Is(err, ErrEmpty) {
				t.Errorf("Load() after Clear = %v, want ErrEmpty", err)
			}
			if err := slot.Clear(ctx); err != nil {
				t.Errorf("Clear() on empty slot = %v", err)
			}
		})
	}
}

func TestSlotEmptyTokenIsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, slot := range slots(t) {
		t.Run(name, func(t *testing.T) {
			if err := slot.Save(ctx, Record{Role: "admin"}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if _, err := slot.Load(ctx); !errors.Is(err, ErrEmpty) {
				t.Errorf("Load() = %v, want ErrEmpty", err)
			}
		})
	}
}

func TestFileSlotPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	slot := NewFileSlot(path)
	if err := slot.Save(context.Background(), Record{Token: "secret"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the session file", len(entries))
	}
}

func TestFileSlotCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileSlot(path).Load(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load() error = %v, want ErrCorrupt", err)
	}
}
