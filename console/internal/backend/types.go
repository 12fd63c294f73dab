package backend

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Identity is who the backend says the bearer token belongs to.
type Identity struct {
	Username   string `json:"username" yaml:"username"`
	Role       Role   `json:"role" yaml:"role"`
	CommonName string `json:"cn,omitempty" yaml:"cn,omitempty"`
	Mail       string `json:"mail,omitempty" yaml:"mail,omitempty"`
}

type LoginResult struct {
	Identity         Identity
	AccessToken      string
	RefreshToken     string
	WireGuardEnabled bool
	MaxDevices       int
}

type DeviceStatus string

const (
	DeviceActive  DeviceStatus = "active"
	DeviceRevoked DeviceStatus = "revoked"
	DeviceExpired DeviceStatus = "expired"
)

type Device struct {
	ID         int64        `json:"id" yaml:"id"`
	Owner      string       `json:"owner,omitempty" yaml:"owner,omitempty"`
	Name       string       `json:"name" yaml:"name"`
	VPNAddress string       `json:"vpn_address" yaml:"vpn_address"`
	Status     DeviceStatus `json:"status" yaml:"status"`
	CreatedAt  time.Time    `json:"created_at" yaml:"created_at"`
	LastSeen   *time.Time   `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
	RxBytes    int64        `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes    int64        `json:"tx_bytes" yaml:"tx_bytes"`
	TotalBytes int64        `json:"total_bytes" yaml:"total_bytes"`
}

// DevicePage is one page of the admin device listing.
type DevicePage struct {
	Devices []Device `json:"devices" yaml:"devices"`
	Total   int      `json:"total" yaml:"total"`
}

type DeviceFilter struct {
	Status DeviceStatus
	Limit  int
	Offset int
}

// Artifact is a downloadable device configuration. Both payloads are passed
// through untouched apart from base64 decoding of the QR image.
type Artifact struct {
	Config string `json:"config,omitempty" yaml:"config,omitempty"`
	QRCode []byte `json:"-" yaml:"-"`
	Note   string `json:"note,omitempty" yaml:"note,omitempty"`
}

// AddedDevice is the result of registering a device.
type AddedDevice struct {
	Device   Device   `json:"device" yaml:"device"`
	Artifact Artifact `json:"artifact" yaml:"artifact"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
}

type Ack struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

type TrafficQuery struct {
	DeviceID int64
	Hours    int
}

type TrafficPoint struct {
	Time  time.Time `json:"time" yaml:"time"`
	Bytes int64     `json:"bytes" yaml:"bytes"`
}

type TrafficSummary struct {
	RxBytes    int64 `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes    int64 `json:"tx_bytes" yaml:"tx_bytes"`
	TotalBytes int64 `json:"total_bytes" yaml:"total_bytes"`
}

// TrafficReport carries a summary when the backend embeds one.
type TrafficReport struct {
	Points  []TrafficPoint  `json:"points" yaml:"points"`
	Summary *TrafficSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type AccessSummary struct {
	Username         string   `json:"username" yaml:"username"`
	WireGuardEnabled bool     `json:"wireguard_enabled" yaml:"wireguard_enabled"`
	MaxDevices       int      `json:"max_devices" yaml:"max_devices"`
	DeviceCount      int      `json:"device_count" yaml:"device_count"`
	Devices          []Device `json:"devices,omitempty" yaml:"devices,omitempty"`
}

// Remaining returns how many more devices may be registered.
func (a AccessSummary) Remaining() int {
	if n := a.MaxDevices - a.DeviceCount; n > 0 {
		return n
	}
	return 0
}

type User struct {
	Username         string `json:"username" yaml:"username"`
	CommonName       string `json:"cn,omitempty" yaml:"cn,omitempty"`
	Mail             string `json:"mail,omitempty" yaml:"mail,omitempty"`
	Role             Role   `json:"role,omitempty" yaml:"role,omitempty"`
	WireGuardEnabled bool   `json:"wireguard_enabled" yaml:"wireguard_enabled"`
	MaxDevices       int    `json:"max_devices" yaml:"max_devices"`
	DeviceCount      int    `json:"device_count" yaml:"device_count"`
	HasDevices       bool   `json:"has_devices" yaml:"has_devices"`
}

type UserDetail struct {
	User          User       `json:"user" yaml:"user"`
	ActiveDevices int        `json:"active_devices" yaml:"active_devices"`
	CreatedAt     *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type BandwidthLimit struct {
	Username string   `json:"username" yaml:"username"`
	LimitMB  *float64 `json:"limit_mb" yaml:"limit_mb"`
	UsedMB   float64  `json:"used_mb" yaml:"used_mb"`
}

// Unlimited reports whether no cap is set.
func (b BandwidthLimit) Unlimited() bool {
	return b.LimitMB == nil || *b.LimitMB <= 0
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type Alert struct {
	Severity  Severity  `json:"severity" yaml:"severity"`
	Message   string    `json:"message" yaml:"message"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

type AlertQuery struct {
	Limit    int
	Severity Severity
}

type AuditLogEntry struct {
	Action      string    `json:"action" yaml:"action"`
	SubjectUser string    `json:"subject_user" yaml:"subject_user"`
	PerformedBy string    `json:"performed_by" yaml:"performed_by"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

type AuditQuery struct {
	Action      string
	SubjectUser string
	PerformedBy string
	Limit       int
	Offset      int
}

type SystemStats struct {
	TotalDevices   int              `json:"total_devices" yaml:"total_devices"`
	ActiveDevices  int              `json:"active_devices" yaml:"active_devices"`
	RevokedDevices int              `json:"revoked_devices" yaml:"revoked_devices"`
	TotalUsers     int              `json:"total_users" yaml:"total_users"`
	RxBytes        int64            `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes        int64            `json:"tx_bytes" yaml:"tx_bytes"`
	Alerts         map[Severity]int `json:"alerts" yaml:"alerts"`
}

type Peer struct {
	PublicKey     string     `json:"public_key" yaml:"public_key"`
	AllowedIPs    []string   `json:"allowed_ips" yaml:"allowed_ips"`
	RxBytes       int64      `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes       int64      `json:"tx_bytes" yaml:"tx_bytes"`
	LastHandshake *time.Time `json:"last_handshake,omitempty" yaml:"last_handshake,omitempty"`
}
