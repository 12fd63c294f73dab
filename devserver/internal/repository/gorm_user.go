package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vpn-console/devserver/internal/model"
)

func (r *GormRepository) CreateUser(ctx context.Context, u *model.User) error {
	return mapErr(r.db.WithContext(ctx).Create(u).Error)
}

func (r *GormRepository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

func (r *GormRepository) usersWithDevices(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("users").
		Select("users.*, COUNT(devices.id) AS device_count, " +
			"COALESCE(SUM(CASE WHEN devices.status = 'active' THEN 1 ELSE 0 END), 0) AS active_count").
		Joins("LEFT JOIN devices ON devices.owner = users.username").
		Group("users.id")
}

func (r *GormRepository) ListUsersWithDevices(ctx context.Context) ([]UserWithDevices, error) {
	var out []UserWithDevices
	if err := r.usersWithDevices(ctx).Order("users.username").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) GetUserWithDevices(ctx context.Context, username string) (UserWithDevices, error) {
	var out UserWithDevices
	if err := r.usersWithDevices(ctx).Where("users.username = ?", username).Take(&out).Error; err != nil {
		return UserWithDevices{}, mapErr(err)
	}
	return out, nil
}

func (r *GormRepository) UpdateUserRole(ctx context.Context, username, role string) error {
	return r.updateUser(ctx, username, map[string]any{"role": role})
}

func (r *GormRepository) SetUserVPNAccess(ctx context.Context, username string, enabled bool) error {
	return r.updateUser(ctx, username, map[string]any{"wireguard_enabled": enabled})
}

func (r *GormRepository) updateUser(ctx context.Context, username string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user together with their devices, samples, limit
// and refresh tokens.
func (r *GormRepository) DeleteUser(ctx context.Context, username string) (bool, error) {
	db := r.db.WithContext(ctx)
	for _, m := range []any{&model.TrafficSample{}, &model.Device{}} {
		if err := db.Where("owner = ?", username).Delete(m).Error; err != nil {
			return false, err
		}
	}
	for _, m := range []any{&model.BandwidthLimit{}, &model.RefreshToken{}} {
		if err := db.Where("username = ?", username).Delete(m).Error; err != nil {
			return false, err
		}
	}
	res := db.Delete(&model.User{}, "username = ?", username)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error
	return n, err
}

func (r *GormRepository) CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// ConsumeRefreshToken deletes and returns t. A token can be used once.
func (r *GormRepository) ConsumeRefreshToken(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	if err := r.db.WithContext(ctx).First(&t, "token = ?", token).Error; err != nil {
		return model.RefreshToken{}, mapErr(err)
	}
	res := r.db.WithContext(ctx).Delete(&model.RefreshToken{}, "token = ?", token)
	if res.Error != nil {
		return model.RefreshToken{}, res.Error
	}
	if res.RowsAffected == 0 {
		return model.RefreshToken{}, ErrNotFound
	}
	return t, nil
}
