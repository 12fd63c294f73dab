package service

import (
	"context"

	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
)

const (
	DefaultAlertLimit = 50
	DefaultAuditLimit = 100
	maxPageSize       = 1000
)

type Stats struct {
	Devices repository.DeviceStats
	Users   int64
	Alerts  map[string]int
}

func SystemStats(ctx context.Context, repo repository.Repository) (Stats, error) {
	devices, err := repo.DeviceStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	users, err := repo.CountUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	alerts, err := repo.CountAlertsBySeverity(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Devices: devices, Users: users, Alerts: alerts}, nil
}

func pageSize(limit, def int) (int, error) {
	if limit <= 0 {
		return def, nil
	}
	if limit > maxPageSize {
		return 0, ValidationError{Msg: "limit must be at most 1000"}
	}
	return limit, nil
}

func ListAlerts(ctx context.Context, repo repository.Repository, severity string, limit int) ([]model.Alert, error) {
	switch severity {
	case "", model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow:
	default:
		return nil, ValidationError{Msg: "severity must be critical, high, medium or low"}
	}
	limit, err := pageSize(limit, DefaultAlertLimit)
	if err != nil {
		return nil, err
	}
	return repo.ListAlerts(ctx, severity, limit)
}

func ListAuditLogs(ctx context.Context, repo repository.Repository, f repository.AuditFilter) ([]model.AuditLog, error) {
	limit, err := pageSize(f.Limit, DefaultAuditLimit)
	if err != nil {
		return nil, err
	}
	f.Limit = limit
	if f.Offset < 0 {
		f.Offset = 0
	}
	return repo.ListAuditLogs(ctx, f)
}
