package repository

import (
	"context"
	"errors"
	"time"

	"vpn-console/devserver/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// UserWithDevices is a user row plus device counts.
type UserWithDevices struct {
	model.User
	DeviceCount int `gorm:"column:device_count"`
	ActiveCount int `gorm:"column:active_count"`
}

type DeviceFilter struct {
	Owner  string
	Status string
	Limit  int
	Offset int
}

type AuditFilter struct {
	Action      string
	Username    string
	PerformedBy string
	Limit       int
	Offset      int
}

type DeviceStats struct {
	Total   int64
	Active  int64
	Revoked int64
	RxBytes int64
	TxBytes int64
}

type Repository interface {
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	ListUsersWithDevices(ctx context.Context) ([]UserWithDevices, error)
	GetUserWithDevices(ctx context.Context, username string) (UserWithDevices, error)
	UpdateUserRole(ctx context.Context, username, role string) error
	SetUserVPNAccess(ctx context.Context, username string, enabled bool) error
	DeleteUser(ctx context.Context, username string) (bool, error)
	CountUsers(ctx context.Context) (int64, error)

	CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error
	ConsumeRefreshToken(ctx context.Context, token string) (model.RefreshToken, error)

	CreateDevice(ctx context.Context, d *model.Device) error
	GetDevice(ctx context.Context, id int64) (model.Device, error)
	GetDeviceByPublicKey(ctx context.Context, publicKey string) (model.Device, error)
	ListDevices(ctx context.Context, f DeviceFilter) ([]model.Device, int64, error)
	CountActiveDevices(ctx context.Context, owner string) (int64, error)
	UsedAddresses(ctx context.Context) ([]string, error)
	RevokeDevice(ctx context.Context, id int64, at time.Time) (bool, error)
	UpdateDeviceKeys(ctx context.Context, id int64, privateKey, publicKey string) error
	AddDeviceTraffic(ctx context.Context, id int64, rx, tx int64, seen time.Time) error
	DeviceStats(ctx context.Context) (DeviceStats, error)

	CreateTrafficSample(ctx context.Context, s *model.TrafficSample) error
	ListTrafficSamples(ctx context.Context, owner string, deviceID int64, since time.Time) ([]model.TrafficSample, error)

	GetBandwidthLimit(ctx context.Context, username string) (model.BandwidthLimit, error)
	ListBandwidthLimits(ctx context.Context) ([]model.BandwidthLimit, error)
	SetBandwidthLimit(ctx context.Context, username string, limitMB *float64) error
	AddBandwidthUsage(ctx context.Context, username string, bytes int64) (model.BandwidthLimit, error)
	ResetBandwidthUsage(ctx context.Context, username string) (bool, error)

	CreateAuditLog(ctx context.Context, entry *model.AuditLog) error
	ListAuditLogs(ctx context.Context, f AuditFilter) ([]model.AuditLog, error)

	CreateAlert(ctx context.Context, a *model.Alert) error
	ListAlerts(ctx context.Context, severity string, limit int) ([]model.Alert, error)
	CountAlertsBySeverity(ctx context.Context) (map[string]int, error)
}
