package backend

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
)

const (
	pathStats     = "/admin/monitoring/stats"
	pathAlerts    = "/admin/monitoring/alerts"
	pathAuditLogs = "/admin/monitoring/audit-logs"

	DefaultAlertLimit = 50
	DefaultAuditLimit = 100
)

func (c *Client) SystemStats(ctx context.Context) (SystemStats, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).Get(pathStats)
	if err := decode(resp, err, &raw); err != nil {
		return SystemStats{}, err
	}
	stats, err := normalizeStats(raw)
	if err != nil {
		return SystemStats{}, malformed(resp, err, "stats")
	}
	return stats, nil
}

func (c *Client) Alerts(ctx context.Context, q AlertQuery) ([]Alert, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultAlertLimit
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if q.Severity != "" {
		params.Set("severity", string(q.Severity))
	}

	var raw json.RawMessage
	resp, err := c.request(ctx).SetQueryParamsFromValues(params).Get(pathAlerts)
	if err := decode(resp, err, &raw); err != nil {
		return nil, err
	}
	alerts, err := normalizeAlerts(raw)
	if err != nil {
		return nil, malformed(resp, err, "alerts")
	}
	return alerts, nil
}

func (c *Client) AuditLogs(ctx context.Context, q AuditQuery) ([]AuditLogEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	params := url.Values{}
	if q.Action != "" {
		params.Set("action", q.Action)
	}
	if q.SubjectUser != "" {
		params.Set("ldap_uid", q.SubjectUser)
	}
	if q.PerformedBy != "" {
		params.Set("performed_by", q.PerformedBy)
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(max(q.Offset, 0)))

	var raw json.RawMessage
	resp, err := c.request(ctx).SetQueryParamsFromValues(params).Get(pathAuditLogs)
	if err := decode(resp, err, &raw); err != nil {
		return nil, err
	}
	logs, err := normalizeAuditLogs(raw)
	if err != nil {
		return nil, malformed(resp, err, "audit logs")
	}
	return logs, nil
}

func (c *Client) ack(resp *resty.Response, err error) (Ack, error) {
	var raw json.RawMessage
	if err := decode(resp, err, &raw); err != nil {
		return Ack{}, err
	}
	return normalizeAck(raw), nil
}
