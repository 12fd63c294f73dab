package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vpn-console/devserver/internal/model"
)

func (r *GormRepository) GetBandwidthLimit(ctx context.Context, username string) (model.BandwidthLimit, error) {
	var b model.BandwidthLimit
	if err := r.db.WithContext(ctx).First(&b, "username = ?", username).Error; err != nil {
		return model.BandwidthLimit{}, mapErr(err)
	}
	return b, nil
}

func (r *GormRepository) ListBandwidthLimits(ctx context.Context) ([]model.BandwidthLimit, error) {
	var out []model.BandwidthLimit
	if err := r.db.WithContext(ctx).Order("username").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SetBandwidthLimit creates the row if needed; usage is kept.
func (r *GormRepository) SetBandwidthLimit(ctx context.Context, username string, limitMB *float64) error {
	row := model.BandwidthLimit{Username: username, LimitMB: limitMB, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"limit_mb", "updated_at"}),
	}).Create(&row).Error
}

// AddBandwidthUsage adds bytes to username's usage and returns the new row.
func (r *GormRepository) AddBandwidthUsage(ctx context.Context, username string, bytes int64) (model.BandwidthLimit, error) {
	row := model.BandwidthLimit{Username: username, UsedBytes: bytes, UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.Assignments(map[string]any{
			"used_bytes": gorm.Expr("bandwidth_limits.used_bytes + ?", bytes),
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return model.BandwidthLimit{}, err
	}
	return r.GetBandwidthLimit(ctx, username)
}

func (r *GormRepository) ResetBandwidthUsage(ctx context.Context, username string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.BandwidthLimit{}).
		Where("username = ?", username).
		Updates(map[string]any{"used_bytes": 0, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) CreateAuditLog(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormRepository) ListAuditLogs(ctx context.Context, f AuditFilter) ([]model.AuditLog, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.Username != "" {
		query = query.Where("username = ?", f.Username)
	}
	if f.PerformedBy != "" {
		query = query.Where("performed_by = ?", f.PerformedBy)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}
	var out []model.AuditLog
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) CreateAlert(ctx context.Context, a *model.Alert) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *GormRepository) ListAlerts(ctx context.Context, severity string, limit int) ([]model.Alert, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if severity != "" {
		query = query.Where("severity = ?", severity)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []model.Alert
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) CountAlertsBySeverity(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Severity string
		N        int
	}
	err := r.db.WithContext(ctx).Model(&model.Alert{}).
		Select("severity, COUNT(*) AS n").
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Severity] = row.N
	}
	return out, nil
}
