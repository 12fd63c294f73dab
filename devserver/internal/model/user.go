package model

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	DefaultMaxDevices = 3
)

type User struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Username         string    `gorm:"uniqueIndex;not null" json:"username"`
	CommonName       string    `gorm:"column:cn" json:"cn"`
	Mail             string    `json:"mail"`
	Role             string    `gorm:"not null;default:user" json:"role"`
	PasswordHash     string    `gorm:"column:password_hash;not null" json:"-"`
	WireGuardEnabled bool      `gorm:"column:wireguard_enabled;not null" json:"wireguard_enabled"`
	MaxDevices       int       `gorm:"column:max_devices;not null" json:"max_devices"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func NewUser(username, password, role string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return User{
		ID:               uuid.NewString(),
		Username:         username,
		CommonName:       username,
		Mail:             username + "@example.com",
		Role:             role,
		PasswordHash:     string(hash),
		WireGuardEnabled: true,
		MaxDevices:       DefaultMaxDevices,
	}, nil
}

func (u User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RefreshToken is an opaque token exchanged for a new access token.
type RefreshToken struct {
	Token     string    `gorm:"primaryKey"`
	Username  string    `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}

func NewRefreshToken(username string, ttl time.Duration) RefreshToken {
	return RefreshToken{
		Token:     uuid.NewString(),
		Username:  username,
		ExpiresAt: time.Now().Add(ttl),
	}
}
