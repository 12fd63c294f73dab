package service

import (
	"context"
	"strings"

	"github.com/dustin/go-humanize"

	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
)

func ListBandwidthLimits(ctx context.Context, repo repository.Repository) ([]model.BandwidthLimit, error) {
	return repo.ListBandwidthLimits(ctx)
}

// SetBandwidthLimit caps username at limitMB. Zero removes the cap.
func SetBandwidthLimit(ctx context.Context, repo repository.Repository, actor, username string, limitMB float64) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ValidationError{Msg: "ldap_uid is required"}
	}
	if limitMB < 0 {
		return ValidationError{Msg: "limit_mb must not be negative"}
	}
	var limit *float64
	details := "unlimited"
	if limitMB > 0 {
		limit = &limitMB
		details = humanize.Ftoa(limitMB) + " MB"
	}
	return repo.WithTx(ctx, func(tx repository.Repository) error {
		if _, err := tx.GetUserByUsername(ctx, username); err != nil {
			return err
		}
		if err := tx.SetBandwidthLimit(ctx, username, limit); err != nil {
			return err
		}
		return audit(ctx, tx, ActionLimitSet, username, actor, "limit="+details)
	})
}

func ResetBandwidthUsage(ctx context.Context, repo repository.Repository, actor, username string) error {
	return repo.WithTx(ctx, func(tx repository.Repository) error {
		if _, err := tx.GetUserByUsername(ctx, username); err != nil {
			return err
		}
		if _, err := tx.ResetBandwidthUsage(ctx, username); err != nil {
			return err
		}
		return audit(ctx, tx, ActionUsageReset, username, actor, "")
	})
}
