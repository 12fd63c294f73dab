package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"vpn-console/devserver/internal/repository"
	"vpn-console/devserver/internal/service"
)

type StatsOutput struct {
	Body struct {
		Statistics StatsBody `json:"statistics"`
	}
}

type AlertsInput struct {
	Limit    int    `query:"limit"`
	Severity string `query:"severity"`
}

type AlertsOutput struct {
	Body struct {
		Alerts []AlertBody `json:"alerts"`
	}
}

type AuditLogsInput struct {
	Action      string `query:"action"`
	Username    string `query:"ldap_uid"`
	PerformedBy string `query:"performed_by"`
	Limit       int    `query:"limit"`
	Offset      int    `query:"offset" minimum:"0"`
}

type AuditLogsOutput struct {
	Body struct {
		Logs []AuditLogBody `json:"logs"`
	}
}

type LimitsOutput struct {
	Body struct {
		Limits []LimitBody `json:"limits"`
	}
}

type SetLimitInput struct {
	Body struct {
		Username string  `json:"ldap_uid"`
		LimitMB  float64 `json:"limit_mb"`
	}
}

func (h *Handler) registerMonitoringRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-stats",
		Method:      http.MethodGet,
		Path:        "/admin/monitoring/stats",
		Summary:     "System statistics",
	}, h.stats)
	huma.Register(api, huma.Operation{
		OperationID: "admin-alerts",
		Method:      http.MethodGet,
		Path:        "/admin/monitoring/alerts",
		Summary:     "Recent alerts",
	}, h.alerts)
	huma.Register(api, huma.Operation{
		OperationID: "admin-audit-logs",
		Method:      http.MethodGet,
		Path:        "/admin/monitoring/audit-logs",
		Summary:     "Audit log",
	}, h.auditLogs)

	huma.Register(api, huma.Operation{
		OperationID: "admin-list-limits",
		Method:      http.MethodGet,
		Path:        "/admin/bandwidth/limits",
		Summary:     "Bandwidth limits and usage",
	}, h.listLimits)
	huma.Register(api, huma.Operation{
		OperationID: "admin-set-limit",
		Method:      http.MethodPost,
		Path:        "/admin/bandwidth/limits",
		Summary:     "Set a user's bandwidth limit",
	}, h.setLimit)
	huma.Register(api, huma.Operation{
		OperationID: "admin-reset-usage",
		Method:      http.MethodPost,
		Path:        "/admin/bandwidth/limits/{username}/reset",
		Summary:     "Reset a user's bandwidth usage",
	}, h.resetUsage)
}

func (h *Handler) stats(ctx context.Context, input *struct{}) (*StatsOutput, error) {
	s, err := service.SystemStats(ctx, h.repo)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &StatsOutput{}
	b := &resp.Body.Statistics
	b.Devices.Total = s.Devices.Total
	b.Devices.Active = s.Devices.Active
	b.Devices.Revoked = s.Devices.Revoked
	b.Users.Total = s.Users
	b.Traffic.TotalRx = s.Devices.RxBytes
	b.Traffic.TotalTx = s.Devices.TxBytes
	b.Alerts = s.Alerts
	return resp, nil
}

func (h *Handler) alerts(ctx context.Context, input *AlertsInput) (*AlertsOutput, error) {
	alerts, err := service.ListAlerts(ctx, h.repo, input.Severity, input.Limit)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &AlertsOutput{}
	resp.Body.Alerts = make([]AlertBody, 0, len(alerts))
	for _, a := range alerts {
		resp.Body.Alerts = append(resp.Body.Alerts, AlertBody{Severity: a.Severity, Message: a.Message, Timestamp: a.CreatedAt.UTC()})
	}
	return resp, nil
}

func (h *Handler) auditLogs(ctx context.Context, input *AuditLogsInput) (*AuditLogsOutput, error) {
	logs, err := service.ListAuditLogs(ctx, h.repo, repository.AuditFilter{
		Action:      input.Action,
		Username:    input.Username,
		PerformedBy: input.PerformedBy,
		Limit:       input.Limit,
		Offset:      input.Offset,
	})
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &AuditLogsOutput{}
	resp.Body.Logs = make([]AuditLogBody, 0, len(logs))
	for _, l := range logs {
		resp.Body.Logs = append(resp.Body.Logs, AuditLogBody{
			Action:      l.Action,
			LDAPUID:     l.Username,
			PerformedBy: l.PerformedBy,
			Details:     l.Details,
			Timestamp:   l.CreatedAt.UTC(),
		})
	}
	return resp, nil
}

func (h *Handler) listLimits(ctx context.Context, input *struct{}) (*LimitsOutput, error) {
	limits, err := service.ListBandwidthLimits(ctx, h.repo)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &LimitsOutput{}
	resp.Body.Limits = make([]LimitBody, 0, len(limits))
	for _, l := range limits {
		resp.Body.Limits = append(resp.Body.Limits, LimitBody{LDAPUID: l.Username, LimitMB: l.LimitMB, UsedMB: l.UsedMB()})
	}
	return resp, nil
}

func (h *Handler) setLimit(ctx context.Context, input *SetLimitInput) (*AckOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := service.SetBandwidthLimit(ctx, h.repo, p.Username, input.Body.Username, input.Body.LimitMB); err != nil {
		return nil, h.toHumaError(err)
	}
	if input.Body.LimitMB <= 0 {
		return ack(fmt.Sprintf("bandwidth limit removed for %s", input.Body.Username)), nil
	}
	return ack(fmt.Sprintf("bandwidth limit for %s set to %g MB", input.Body.Username, input.Body.LimitMB)), nil
}

func (h *Handler) resetUsage(ctx context.Context, input *UsernameInput) (*AckOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := service.ResetBandwidthUsage(ctx, h.repo, p.Username, input.Username); err != nil {
		return nil, h.toHumaError(err)
	}
	return ack(fmt.Sprintf("bandwidth usage reset for %s", input.Username)), nil
}
