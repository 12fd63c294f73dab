package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vpn-console/devserver/internal/model"
)

func (r *GormRepository) CreateDevice(ctx context.Context, d *model.Device) error {
	return mapErr(r.db.WithContext(ctx).Create(d).Error)
}

func (r *GormRepository) GetDevice(ctx context.Context, id int64) (model.Device, error) {
	var d model.Device
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return model.Device{}, mapErr(err)
	}
	return d, nil
}

func (r *GormRepository) GetDeviceByPublicKey(ctx context.Context, publicKey string) (model.Device, error) {
	var d model.Device
	if err := r.db.WithContext(ctx).First(&d, "public_key = ?", publicKey).Error; err != nil {
		return model.Device{}, mapErr(err)
	}
	return d, nil
}

// ListDevices returns one page matching f and the total number of matches.
func (r *GormRepository) ListDevices(ctx context.Context, f DeviceFilter) ([]model.Device, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Device{})
	if f.Owner != "" {
		query = query.Where("owner = ?", f.Owner)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query.Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	if f.Offset > 0 {
		page = page.Offset(f.Offset)
	}
	var out []model.Device
	if err := page.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *GormRepository) CountActiveDevices(ctx context.Context, owner string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Device{}).
		Where("owner = ? AND status = ?", owner, model.DeviceActive).
		Count(&n).Error
	return n, err
}

// UsedAddresses lists the VPN addresses held by active devices.
func (r *GormRepository) UsedAddresses(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&model.Device{}).
		Where("status = ?", model.DeviceActive).
		Pluck("address", &out).Error
	return out, err
}

func (r *GormRepository) RevokeDevice(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ? AND status = ?", id, model.DeviceActive).
		Updates(map[string]any{"status": model.DeviceRevoked, "revoked_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) UpdateDeviceKeys(ctx context.Context, id int64, privateKey, publicKey string) error {
	res := r.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ?", id).
		Updates(map[string]any{"private_key": privateKey, "public_key": publicKey})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) AddDeviceTraffic(ctx context.Context, id int64, rx, tx int64, seen time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"rx_bytes":  gorm.Expr("rx_bytes + ?", rx),
			"tx_bytes":  gorm.Expr("tx_bytes + ?", tx),
			"last_seen": seen,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) DeviceStats(ctx context.Context) (DeviceStats, error) {
	var row struct {
		Total   int64
		Active  int64
		Revoked int64
		RxBytes int64
		TxBytes int64
	}
	err := r.db.WithContext(ctx).Model(&model.Device{}).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS active, " +
			"COALESCE(SUM(CASE WHEN status = 'revoked' THEN 1 ELSE 0 END), 0) AS revoked, " +
			"COALESCE(SUM(rx_bytes), 0) AS rx_bytes, " +
			"COALESCE(SUM(tx_bytes), 0) AS tx_bytes").
		Scan(&row).Error
	if err != nil {
		return DeviceStats{}, err
	}
	return DeviceStats(row), nil
}

func (r *GormRepository) CreateTrafficSample(ctx context.Context, s *model.TrafficSample) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// ListTrafficSamples returns owner's samples since the given time, oldest
// first. deviceID zero means every device.
func (r *GormRepository) ListTrafficSamples(ctx context.Context, owner string, deviceID int64, since time.Time) ([]model.TrafficSample, error) {
	query := r.db.WithContext(ctx).Where("owner = ? AND timestamp >= ?", owner, since)
	if deviceID != 0 {
		query = query.Where("device_id = ?", deviceID)
	}
	var out []model.TrafficSample
	if err := query.Order("timestamp ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
