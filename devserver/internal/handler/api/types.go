package api

import (
	"time"

	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
	"vpn-console/devserver/internal/service"
)

// Response bodies use the field names the console expects from the
// production backend (ldap_uid, device_name, vpn_ip, transfer_*).

type AckBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type AckOutput struct {
	Body AckBody
}

func ack(msg string) *AckOutput {
	return &AckOutput{Body: AckBody{Status: "ok", Message: msg}}
}

type IdentityBody struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	CN       string `json:"cn,omitempty"`
	Mail     string `json:"mail,omitempty"`
}

func identityBody(u model.User) IdentityBody {
	return IdentityBody{Username: u.Username, Role: u.Role, CN: u.CommonName, Mail: u.Mail}
}

type DeviceBody struct {
	ID            int64      `json:"id"`
	LDAPUID       string     `json:"ldap_uid"`
	DeviceName    string     `json:"device_name"`
	VPNIP         string     `json:"vpn_ip"`
	PublicKey     string     `json:"public_key"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	TransferRx    int64      `json:"transfer_rx"`
	TransferTx    int64      `json:"transfer_tx"`
	TransferTotal int64      `json:"transfer_total"`
}

func deviceBody(d model.Device) DeviceBody {
	return DeviceBody{
		ID:            d.ID,
		LDAPUID:       d.Owner,
		DeviceName:    d.Name,
		VPNIP:         d.Address,
		PublicKey:     d.PublicKey,
		Status:        d.Status,
		CreatedAt:     d.CreatedAt.UTC(),
		LastSeen:      d.LastSeen,
		TransferRx:    d.RxBytes,
		TransferTx:    d.TxBytes,
		TransferTotal: d.RxBytes + d.TxBytes,
	}
}

func deviceBodies(devices []model.Device) []DeviceBody {
	out := make([]DeviceBody, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceBody(d))
	}
	return out
}

type ArtifactBody struct {
	Config string `json:"config"`
	QRCode string `json:"qr_code"`
}

type ProvisionedBody struct {
	DeviceBody
	ArtifactBody
	Message string `json:"message,omitempty"`
}

type SummaryBody struct {
	TotalRx      int64 `json:"total_rx"`
	TotalTx      int64 `json:"total_tx"`
	TotalTraffic int64 `json:"total_traffic"`
}

func summaryBody(s service.TrafficSummary) SummaryBody {
	return SummaryBody{TotalRx: s.RxBytes, TotalTx: s.TxBytes, TotalTraffic: s.RxBytes + s.TxBytes}
}

type TrafficPointBody struct {
	Timestamp     time.Time `json:"timestamp"`
	TransferTotal int64     `json:"transfer_total"`
}

type UserBody struct {
	LDAPUID          string `json:"ldap_uid"`
	CN               string `json:"cn"`
	Mail             string `json:"mail"`
	Role             string `json:"role"`
	WireGuardEnabled bool   `json:"wireguard_enabled"`
	MaxDevices       int    `json:"max_devices"`
	DeviceCount      int    `json:"device_count"`
	HasDevices       bool   `json:"has_devices"`
}

func userBody(u repository.UserWithDevices) UserBody {
	return UserBody{
		LDAPUID:          u.Username,
		CN:               u.CommonName,
		Mail:             u.Mail,
		Role:             u.Role,
		WireGuardEnabled: u.WireGuardEnabled,
		MaxDevices:       u.MaxDevices,
		DeviceCount:      u.DeviceCount,
		HasDevices:       u.DeviceCount > 0,
	}
}

// UserDetailBody splits the account into its directory and database
// halves, as the production backend does.
type UserDetailBody struct {
	Username  string `json:"username"`
	Directory struct {
		CN               string `json:"cn"`
		Mail             string `json:"mail"`
		WireGuardEnabled bool   `json:"wireguard_enabled"`
		MaxDevices       int    `json:"max_devices"`
	} `json:"ldap"`
	Account struct {
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"mysql"`
	Devices struct {
		Count  int `json:"count"`
		Active int `json:"active"`
	} `json:"devices"`
}

func userDetailBody(u repository.UserWithDevices) UserDetailBody {
	var b UserDetailBody
	b.Username = u.Username
	b.Directory.CN = u.CommonName
	b.Directory.Mail = u.Mail
	b.Directory.WireGuardEnabled = u.WireGuardEnabled
	b.Directory.MaxDevices = u.MaxDevices
	b.Account.Role = u.Role
	b.Account.CreatedAt = u.CreatedAt.UTC()
	b.Account.UpdatedAt = u.UpdatedAt.UTC()
	b.Devices.Count = u.DeviceCount
	b.Devices.Active = u.ActiveCount
	return b
}

type LimitBody struct {
	LDAPUID string   `json:"ldap_uid"`
	LimitMB *float64 `json:"limit_mb"`
	UsedMB  float64  `json:"used_mb"`
}

type AlertBody struct {
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type AuditLogBody struct {
	Action      string    `json:"action"`
	LDAPUID     string    `json:"ldap_uid"`
	PerformedBy string    `json:"performed_by"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type StatsBody struct {
	Devices struct {
		Total   int64 `json:"total"`
		Active  int64 `json:"active"`
		Revoked int64 `json:"revoked"`
	} `json:"devices"`
	Users struct {
		Total int64 `json:"total"`
	} `json:"users"`
	Traffic struct {
		TotalRx int64 `json:"total_rx"`
		TotalTx int64 `json:"total_tx"`
	} `json:"traffic"`
	Alerts map[string]int `json:"alerts"`
}

// PeerBody mirrors a `wg show dump` line; a peer that never completed a
// handshake reports the epoch.
type PeerBody struct {
	PublicKey     string    `json:"public_key"`
	AllowedIPs    string    `json:"allowed_ips"`
	TransferRx    int64     `json:"transfer_rx"`
	TransferTx    int64     `json:"transfer_tx"`
	LastHandshake time.Time `json:"last_handshake"`
}

func peerBody(d model.Device) PeerBody {
	p := PeerBody{
		PublicKey:     d.PublicKey,
		AllowedIPs:    d.Address,
		TransferRx:    d.RxBytes,
		TransferTx:    d.TxBytes,
		LastHandshake: time.Unix(0, 0).UTC(),
	}
	if d.LastSeen != nil {
		p.LastHandshake = d.LastSeen.UTC()
	}
	return p
}
