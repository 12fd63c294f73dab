package service

import (
	"context"

	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
)

const (
	ActionLogin         = "login"
	ActionUserCreated   = "user_created"
	ActionUserDeleted   = "user_deleted"
	ActionRoleChanged   = "role_changed"
	ActionVPNEnabled    = "vpn_enabled"
	ActionVPNDisabled   = "vpn_disabled"
	ActionDeviceAdded   = "device_added"
	ActionDeviceRevoked = "device_revoked"
	ActionKeysRotated   = "device_keys_rotated"
	ActionLimitSet      = "bandwidth_limit_set"
	ActionUsageReset    = "bandwidth_usage_reset"
)

func audit(ctx context.Context, repo repository.Repository, action, username, performedBy, details string) error {
	entry := model.NewAuditLog(action, username, performedBy, details)
	return repo.CreateAuditLog(ctx, &entry)
}
