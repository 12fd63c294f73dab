package model

import (
	"time"

	"github.com/google/uuid"
)

// BandwidthLimit caps a user's transfer. A nil LimitMB means unlimited.
type BandwidthLimit struct {
	Username  string   `gorm:"primaryKey" json:"username"`
	LimitMB   *float64 `gorm:"column:limit_mb" json:"limit_mb"`
	UsedBytes int64    `gorm:"column:used_bytes;not null" json:"used_bytes"`
	UpdatedAt time.Time
}

const bytesPerMB = 1 << 20

func (b BandwidthLimit) UsedMB() float64 {
	return float64(b.UsedBytes) / bytesPerMB
}

// Exceeded reports whether usage is over the cap, and by what factor.
func (b BandwidthLimit) Exceeded() (float64, bool) {
	if b.LimitMB == nil || *b.LimitMB <= 0 {
		return 0, false
	}
	ratio := b.UsedMB() / *b.LimitMB
	return ratio, ratio > 1
}

type AuditLog struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Action      string    `gorm:"index;not null" json:"action"`
	Username    string    `gorm:"index" json:"username"`
	PerformedBy string    `gorm:"column:performed_by;index" json:"performed_by"`
	Details     string    `json:"details"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func NewAuditLog(action, username, performedBy, details string) AuditLog {
	return AuditLog{
		ID:          uuid.NewString(),
		Action:      action,
		Username:    username,
		PerformedBy: performedBy,
		Details:     details,
		CreatedAt:   time.Now().UTC(),
	}
}

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

type Alert struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Severity  string    `gorm:"index;not null" json:"severity"`
	Username  string    `gorm:"index" json:"username"`
	Message   string    `gorm:"not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func NewAlert(severity, username, message string) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Username:  username,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
