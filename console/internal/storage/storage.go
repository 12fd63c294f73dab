// Package storage persists the single session slot: the bearer token plus
// provisional copies of the role and username for fast display before the
// token is re-validated.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmpty is returned by Load when nothing has been saved.
	ErrEmpty = errors.New("session slot is empty")
	// ErrCorrupt is returned by Load when the stored record cannot be decoded.
	ErrCorrupt = errors.New("session slot is corrupt")
)

type Record struct {
	Token        string    `json:"token" gorm:"column:token"`
	RefreshToken string    `json:"refresh_token,omitempty" gorm:"column:refresh_token"`
	Role         string    `json:"user_role,omitempty" gorm:"column:user_role"`
	Username     string    `json:"username,omitempty" gorm:"column:username"`
	SavedAt      time.Time `json:"saved_at" gorm:"column:saved_at"`
}

// Slot is a durable key-value slot holding at most one Record.
type Slot interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}
