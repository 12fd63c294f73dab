package backend

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// The backend is inconsistent about field names and list envelopes. Every
// endpoint response goes through exactly one normalizer below so callers
// only ever see the canonical shapes from types.go.

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and the zone-less forms, which are taken as UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseTimePtr(s string) *time.Time {
	t, ok := parseTime(s)
	if !ok {
		return nil
	}
	return &t
}

func firstTime(values ...string) time.Time {
	for _, v := range values {
		if t, ok := parseTime(v); ok {
			return t
		}
	}
	return time.Time{}
}

func firstString(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// decodeList accepts a bare array or an object holding the array under one
// of keys. The second result is the envelope's count/total when present,
// otherwise the number of items.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, 0, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, err
		}
		return items, len(items), nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, 0, err
	}
	var items []T
	for _, key := range keys {
		v, ok := env[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, &items); err != nil {
			return nil, 0, fmt.Errorf("decode %q: %w", key, err)
		}
		break
	}
	total := len(items)
	for _, key := range []string{"count", "total"} {
		if v, ok := env[key]; ok {
			var n int
			if err := json.Unmarshal(v, &n); err == nil && n > total {
				total = n
			}
		}
	}
	return items, total, nil
}

// unwrap returns the object under key when present, otherwise raw itself.
func unwrap(raw json.RawMessage, key string) json.RawMessage {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if v, ok := env[key]; ok && len(bytes.TrimSpace(v)) > 0 && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return v
	}
	return raw
}

// --- identity ---

type wireIdentity struct {
	Status           string `json:"status"`
	Username         string `json:"username"`
	Role             string `json:"role"`
	IsAdmin          bool   `json:"is_admin"`
	CN               string `json:"cn"`
	Mail             string `json:"mail"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	WireGuardEnabled bool   `json:"wireguard_enabled"`
	MaxDevices       int    `json:"max_devices"`
}

func normalizeRole(role string, isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	if r == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

func (w wireIdentity) identity() Identity {
	return Identity{
		Username:   w.Username,
		Role:       normalizeRole(w.Role, w.IsAdmin),
		CommonName: w.CN,
		Mail:       w.Mail,
	}
}

// --- devices ---

type wireDevice struct {
	ID            int64   `json:"id"`
	DeviceID      int64   `json:"device_id"`
	LDAPUID       string  `json:"ldap_uid"`
	Username      string  `json:"username"`
	DeviceName    string  `json:"device_name"`
	Name          string  `json:"name"`
	VPNIP         string  `json:"vpn_ip"`
	VPNAddress    string  `json:"vpn_address"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	LastSeen      string  `json:"last_seen"`
	TransferRx    float64 `json:"transfer_rx"`
	TransferTx    float64 `json:"transfer_tx"`
	TransferTotal float64 `json:"transfer_total"`
}

func (w wireDevice) device() Device {
	d := Device{
		ID:         w.ID,
		Owner:      firstString(w.LDAPUID, w.Username),
		Name:       firstString(w.DeviceName, w.Name),
		VPNAddress: firstString(w.VPNIP, w.VPNAddress),
		Status:     DeviceStatus(strings.ToLower(strings.TrimSpace(w.Status))),
		CreatedAt:  firstTime(w.CreatedAt),
		LastSeen:   parseTimePtr(w.LastSeen),
		RxBytes:    int64(w.TransferRx),
		TxBytes:    int64(w.TransferTx),
		TotalBytes: int64(w.TransferTotal),
	}
	if d.ID == 0 {
		d.ID = w.DeviceID
	}
	if d.TotalBytes == 0 {
		d.TotalBytes = d.RxBytes + d.TxBytes
	}
	return d
}

func normalizeDevices(raw json.RawMessage) ([]Device, int, error) {
	wire, total, err := decodeList[wireDevice](raw, "devices", "data")
	if err != nil {
		return nil, 0, err
	}
	out := make([]Device, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.device())
	}
	return out, total, nil
}

func normalizeDevice(raw json.RawMessage) (Device, error) {
	var w wireDevice
	if err := json.Unmarshal(unwrap(raw, "device"), &w); err != nil {
		return Device{}, err
	}
	return w.device(), nil
}

type wireArtifact struct {
	Config  string `json:"config"`
	QRCode  string `json:"qr_code"`
	Note    string `json:"note"`
	Message string `json:"message"`
}

func (w wireArtifact) artifact() (Artifact, error) {
	a := Artifact{Config: w.Config, Note: firstString(w.Note, w.Message)}
	if qr := strings.TrimSpace(w.QRCode); qr != "" {
		qr = strings.TrimPrefix(qr, "data:image/png;base64,")
		png, err := base64.StdEncoding.DecodeString(qr)
		if err != nil {
			return Artifact{}, fmt.Errorf("decode qr_code: %w", err)
		}
		a.QRCode = png
	}
	return a, nil
}

func normalizeArtifact(raw json.RawMessage) (Artifact, error) {
	var w wireArtifact
	if err := json.Unmarshal(raw, &w); err != nil {
		return Artifact{}, err
	}
	return w.artifact()
}

func normalizeAddedDevice(raw json.RawMessage) (AddedDevice, error) {
	dev, err := normalizeDevice(raw)
	if err != nil {
		return AddedDevice{}, err
	}
	var w wireArtifact
	if err := json.Unmarshal(raw, &w); err != nil {
		return AddedDevice{}, err
	}
	art, err := w.artifact()
	if err != nil {
		return AddedDevice{}, err
	}
	return AddedDevice{Device: dev, Artifact: art, Message: w.Message}, nil
}

// --- analytics ---

type wireTrafficPoint struct {
	Timestamp     string  `json:"timestamp"`
	Date          string  `json:"date"`
	TransferTotal float64 `json:"transfer_total"`
	Traffic       float64 `json:"traffic"`
	Bytes         float64 `json:"bytes"`
}

func (w wireTrafficPoint) point() TrafficPoint {
	bytes := w.TransferTotal
	if bytes == 0 {
		bytes = w.Traffic
	}
	if bytes == 0 {
		bytes = w.Bytes
	}
	return TrafficPoint{Time: firstTime(w.Timestamp, w.Date), Bytes: int64(bytes)}
}

type wireSummary struct {
	TotalRx      float64 `json:"total_rx"`
	TotalTx      float64 `json:"total_tx"`
	TotalTraffic float64 `json:"total_traffic"`
}

func (w wireSummary) summary() TrafficSummary {
	s := TrafficSummary{
		RxBytes:    int64(w.TotalRx),
		TxBytes:    int64(w.TotalTx),
		TotalBytes: int64(w.TotalTraffic),
	}
	if s.TotalBytes == 0 {
		s.TotalBytes = s.RxBytes + s.TxBytes
	}
	return s
}

func normalizeTraffic(raw json.RawMessage) (TrafficReport, error) {
	wire, _, err := decodeList[wireTrafficPoint](raw, "data", "traffic")
	if err != nil {
		return TrafficReport{}, err
	}
	report := TrafficReport{Points: make([]TrafficPoint, 0, len(wire))}
	for _, w := range wire {
		report.Points = append(report.Points, w.point())
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Summary *wireSummary `json:"summary"`
		}
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Summary != nil {
			s := env.Summary.summary()
			report.Summary = &s
		}
	}
	return report, nil
}

func normalizeSummary(raw json.RawMessage) (TrafficSummary, error) {
	var w wireSummary
	if err := json.Unmarshal(unwrap(raw, "summary"), &w); err != nil {
		return TrafficSummary{}, err
	}
	return w.summary(), nil
}

type wireAccess struct {
	Username         string       `json:"username"`
	WireGuardEnabled bool         `json:"wireguard_enabled"`
	MaxDevices       int          `json:"max_devices"`
	DeviceCount      int          `json:"device_count"`
	Devices          []wireDevice `json:"devices"`
}

func normalizeAccess(raw json.RawMessage) (AccessSummary, error) {
	var w wireAccess
	if err := json.Unmarshal(raw, &w); err != nil {
		return AccessSummary{}, err
	}
	a := AccessSummary{
		Username:         w.Username,
		WireGuardEnabled: w.WireGuardEnabled,
		MaxDevices:       w.MaxDevices,
		DeviceCount:      w.DeviceCount,
	}
	for _, d := range w.Devices {
		a.Devices = append(a.Devices, d.device())
	}
	if a.DeviceCount == 0 {
		a.DeviceCount = len(a.Devices)
	}
	return a, nil
}

// --- admin ---

type wireUser struct {
	Username         string `json:"username"`
	LDAPUID          string `json:"ldap_uid"`
	CN               string `json:"cn"`
	Mail             string `json:"mail"`
	Role             string `json:"role"`
	WireGuardEnabled bool   `json:"wireguard_enabled"`
	MaxDevices       int    `json:"max_devices"`
	DeviceCount      int    `json:"device_count"`
	HasDevices       bool   `json:"has_devices"`
}

func (w wireUser) user() User {
	u := User{
		Username:         firstString(w.Username, w.LDAPUID),
		CommonName:       w.CN,
		Mail:             w.Mail,
		WireGuardEnabled: w.WireGuardEnabled,
		MaxDevices:       w.MaxDevices,
		DeviceCount:      w.DeviceCount,
		HasDevices:       w.HasDevices || w.DeviceCount > 0,
	}
	if w.Role != "" {
		u.Role = normalizeRole(w.Role, false)
	}
	return u
}

func normalizeUsers(raw json.RawMessage) ([]User, error) {
	wire, _, err := decodeList[wireUser](raw, "users", "data")
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.user())
	}
	return out, nil
}

type wireUserDetail struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	LDAP     *struct {
		CN               string `json:"cn"`
		Mail             string `json:"mail"`
		WireGuardEnabled bool   `json:"wireguard_enabled"`
		MaxDevices       int    `json:"max_devices"`
	} `json:"ldap"`
	MySQL *struct {
		Role      string `json:"role"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	} `json:"mysql"`
	Devices struct {
		Count  int `json:"count"`
		Active int `json:"active"`
	} `json:"devices"`
}

func normalizeUserDetail(raw json.RawMessage) (UserDetail, error) {
	var w wireUserDetail
	if err := json.Unmarshal(raw, &w); err != nil {
		return UserDetail{}, err
	}
	role := w.Role
	d := UserDetail{ActiveDevices: w.Devices.Active}
	d.User.Username = w.Username
	d.User.DeviceCount = w.Devices.Count
	d.User.HasDevices = w.Devices.Count > 0
	if w.LDAP != nil {
		d.User.CommonName = w.LDAP.CN
		d.User.Mail = w.LDAP.Mail
		d.User.WireGuardEnabled = w.LDAP.WireGuardEnabled
		d.User.MaxDevices = w.LDAP.MaxDevices
	}
	if w.MySQL != nil {
		role = firstString(role, w.MySQL.Role)
		d.CreatedAt = parseTimePtr(w.MySQL.CreatedAt)
		d.UpdatedAt = parseTimePtr(w.MySQL.UpdatedAt)
	}
	d.User.Role = normalizeRole(role, false)
	return d, nil
}

type wireAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func normalizeAck(raw json.RawMessage) Ack {
	var w wireAck
	if err := json.Unmarshal(raw, &w); err != nil {
		return Ack{Status: "ok"}
	}
	return Ack{Status: firstString(w.Status, "ok"), Message: firstString(w.Message, w.Detail)}
}

// --- monitoring ---

type wireStats struct {
	TotalDevices  int `json:"totalDevices"`
	ActiveDevices int `json:"activeDevices"`
	TotalUsers    int `json:"totalUsers"`
	Devices       struct {
		Total   int `json:"total"`
		Active  int `json:"active"`
		Revoked int `json:"revoked"`
	} `json:"devices"`
	Users struct {
		Total int `json:"total"`
	} `json:"users"`
	Traffic struct {
		TotalRx float64 `json:"total_rx"`
		TotalTx float64 `json:"total_tx"`
	} `json:"traffic"`
	Alerts map[string]int `json:"alerts"`
}

func normalizeStats(raw json.RawMessage) (SystemStats, error) {
	var w wireStats
	if err := json.Unmarshal(unwrap(raw, "statistics"), &w); err != nil {
		return SystemStats{}, err
	}
	s := SystemStats{
		TotalDevices:   w.Devices.Total,
		ActiveDevices:  w.Devices.Active,
		RevokedDevices: w.Devices.Revoked,
		TotalUsers:     w.Users.Total,
		RxBytes:        int64(w.Traffic.TotalRx),
		TxBytes:        int64(w.Traffic.TotalTx),
		Alerts:         make(map[Severity]int, len(w.Alerts)),
	}
	if s.TotalDevices == 0 {
		s.TotalDevices = w.TotalDevices
	}
	if s.ActiveDevices == 0 {
		s.ActiveDevices = w.ActiveDevices
	}
	if s.TotalUsers == 0 {
		s.TotalUsers = w.TotalUsers
	}
	for k, v := range w.Alerts {
		s.Alerts[normalizeSeverity(k)] += v
	}
	return s, nil
}

func normalizeSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityCritical, SeverityHigh, SeverityMedium:
		return sev
	default:
		return SeverityLow
	}
}

type wireAlert struct {
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"created_at"`
}

func normalizeAlerts(raw json.RawMessage) ([]Alert, error) {
	wire, _, err := decodeList[wireAlert](raw, "alerts", "data")
	if err != nil {
		return nil, err
	}
	out := make([]Alert, 0, len(wire))
	for _, w := range wire {
		out = append(out, Alert{
			Severity:  normalizeSeverity(w.Severity),
			Message:   w.Message,
			Timestamp: firstTime(w.Timestamp, w.CreatedAt),
		})
	}
	return out, nil
}

type wireAuditLog struct {
	Action      string `json:"action"`
	LDAPUID     string `json:"ldap_uid"`
	Username    string `json:"username"`
	PerformedBy string `json:"performed_by"`
	Timestamp   string `json:"timestamp"`
	CreatedAt   string `json:"created_at"`
}

func normalizeAuditLogs(raw json.RawMessage) ([]AuditLogEntry, error) {
	wire, _, err := decodeList[wireAuditLog](raw, "logs", "audit_logs", "data")
	if err != nil {
		return nil, err
	}
	out := make([]AuditLogEntry, 0, len(wire))
	for _, w := range wire {
		out = append(out, AuditLogEntry{
			Action:      w.Action,
			SubjectUser: firstString(w.LDAPUID, w.Username),
			PerformedBy: w.PerformedBy,
			Timestamp:   firstTime(w.Timestamp, w.CreatedAt),
		})
	}
	return out, nil
}

// --- bandwidth ---

type wireLimit struct {
	LDAPUID  string   `json:"ldap_uid"`
	Username string   `json:"username"`
	LimitMB  *float64 `json:"limit_mb"`
	UsedMB   float64  `json:"used_mb"`
}

func normalizeLimits(raw json.RawMessage) ([]BandwidthLimit, error) {
	wire, _, err := decodeList[wireLimit](raw, "limits", "data")
	if err != nil {
		return nil, err
	}
	out := make([]BandwidthLimit, 0, len(wire))
	for _, w := range wire {
		out = append(out, BandwidthLimit{
			Username: firstString(w.LDAPUID, w.Username),
			LimitMB:  w.LimitMB,
			UsedMB:   w.UsedMB,
		})
	}
	return out, nil
}

// --- peers ---

type wirePeer struct {
	PublicKey     string          `json:"public_key"`
	AllowedIPs    json.RawMessage `json:"allowed_ips"`
	TransferRx    float64         `json:"transfer_rx"`
	TransferTx    float64         `json:"transfer_tx"`
	LastHandshake string          `json:"last_handshake"`
}

// allowedIPs accepts a JSON list or a comma separated string.
func allowedIPs(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}

func normalizePeers(raw json.RawMessage) ([]Peer, error) {
	wire, _, err := decodeList[wirePeer](raw, "peers", "data")
	if err != nil {
		return nil, err
	}
	out := make([]Peer, 0, len(wire))
	for _, w := range wire {
		p := Peer{
			PublicKey:     w.PublicKey,
			AllowedIPs:    allowedIPs(w.AllowedIPs),
			RxBytes:       int64(w.TransferRx),
			TxBytes:       int64(w.TransferTx),
			LastHandshake: parseTimePtr(w.LastHandshake),
		}
		// Zero handshakes are reported as the epoch by some wg dumps.
		if p.LastHandshake != nil && p.LastHandshake.Unix() <= 0 {
			p.LastHandshake = nil
		}
		out = append(out, p)
	}
	return out, nil
}
