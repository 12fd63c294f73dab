package model

import "time"

const (
	DeviceActive  = "active"
	DeviceRevoked = "revoked"
)

type Device struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Owner      string     `gorm:"index;not null" json:"owner"`
	Name       string     `gorm:"not null" json:"name"`
	PublicKey  string     `gorm:"column:public_key;uniqueIndex;not null" json:"public_key"`
	PrivateKey string     `gorm:"column:private_key;not null" json:"-"`
	Address    string     `gorm:"index;not null" json:"address"`
	Status     string     `gorm:"index;not null;default:active" json:"status"`
	RxBytes    int64      `gorm:"column:rx_bytes" json:"rx_bytes"`
	TxBytes    int64      `gorm:"column:tx_bytes" json:"tx_bytes"`
	LastSeen   *time.Time `gorm:"column:last_seen" json:"last_seen"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at" json:"revoked_at"`
}

func (d Device) Active() bool {
	return d.Status == DeviceActive
}

// TrafficSample is one transfer report for a device.
type TrafficSample struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	DeviceID  int64     `gorm:"column:device_id;index;not null"`
	Owner     string    `gorm:"index;not null"`
	RxBytes   int64     `gorm:"column:rx_bytes"`
	TxBytes   int64     `gorm:"column:tx_bytes"`
	Timestamp time.Time `gorm:"index;not null"`
}

func (TrafficSample) TableName() string {
	return "traffic_samples"
}
