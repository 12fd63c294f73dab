package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
)

const maxDeviceName = 64

// Provisioned is a device together with its downloadable config.
type Provisioned struct {
	Device model.Device
	Config string
	QRCode string
}

func (n Network) provision(d model.Device) (Provisioned, error) {
	cfg := n.clientConfig(d.PrivateKey, d.Address)
	qr, err := qrPNG(cfg)
	if err != nil {
		return Provisioned{}, err
	}
	return Provisioned{Device: d, Config: cfg, QRCode: qr}, nil
}

// AddDevice registers a device for owner, enforcing VPN access and the
// owner's device quota.
func AddDevice(ctx context.Context, repo repository.Repository, n Network, owner, name string) (Provisioned, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Provisioned{}, ValidationError{Msg: "device name is required"}
	}
	if len(name) > maxDeviceName {
		return Provisioned{}, ValidationError{Msg: fmt.Sprintf("device name must be at most %d characters", maxDeviceName)}
	}

	var d model.Device
	err := repo.WithTx(ctx, func(tx repository.Repository) error {
		u, err := tx.GetUserByUsername(ctx, owner)
		if err != nil {
			return err
		}
		if !u.WireGuardEnabled {
			return ForbiddenError{Msg: "VPN access is disabled for this account"}
		}
		active, err := tx.CountActiveDevices(ctx, owner)
		if err != nil {
			return err
		}
		if active >= int64(u.MaxDevices) {
			return ValidationError{Msg: fmt.Sprintf("device limit reached (%d of %d)", active, u.MaxDevices)}
		}

		used, err := tx.UsedAddresses(ctx)
		if err != nil {
			return err
		}
		addr, err := n.allocateAddress(used)
		if err != nil {
			return err
		}
		priv, pub, err := newKeyPair()
		if err != nil {
			return err
		}

		d = model.Device{
			Owner:      owner,
			Name:       name,
			PrivateKey: priv,
			PublicKey:  pub,
			Address:    addr,
			Status:     model.DeviceActive,
		}
		if err := tx.CreateDevice(ctx, &d); err != nil {
			return err
		}
		return audit(ctx, tx, ActionDeviceAdded, owner, owner, fmt.Sprintf("device=%d name=%s", d.ID, name))
	})
	if err != nil {
		return Provisioned{}, err
	}
	return n.provision(d)
}

func ListDevices(ctx context.Context, repo repository.Repository, owner string) ([]model.Device, error) {
	devices, _, err := repo.ListDevices(ctx, repository.DeviceFilter{Owner: owner})
	return devices, err
}

func ListAllDevices(ctx context.Context, repo repository.Repository, f repository.DeviceFilter) ([]model.Device, int64, error) {
	if f.Status != "" && f.Status != model.DeviceActive && f.Status != model.DeviceRevoked && f.Status != "expired" {
		return nil, 0, ValidationError{Msg: "status must be active, revoked or expired"}
	}
	return repo.ListDevices(ctx, f)
}

// GetDevice returns the device if p may see it. Other users' devices are
// reported as missing.
func GetDevice(ctx context.Context, repo repository.Repository, p Principal, id int64) (model.Device, error) {
	d, err := repo.GetDevice(ctx, id)
	if err != nil {
		return model.Device{}, err
	}
	if d.Owner != p.Username && !p.IsAdmin() {
		return model.Device{}, repository.ErrNotFound
	}
	return d, nil
}

func RevokeDevice(ctx context.Context, repo repository.Repository, p Principal, id int64) error {
	return repo.WithTx(ctx, func(tx repository.Repository) error {
		d, err := GetDevice(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if !d.Active() {
			return ValidationError{Msg: "device is already revoked"}
		}
		if _, err := tx.RevokeDevice(ctx, id, time.Now().UTC()); err != nil {
			return err
		}
		return audit(ctx, tx, ActionDeviceRevoked, d.Owner, p.Username, fmt.Sprintf("device=%d", id))
	})
}

// DeviceConfig returns the config and QR for an active device.
func DeviceConfig(ctx context.Context, repo repository.Repository, n Network, p Principal, id int64) (Provisioned, error) {
	d, err := GetDevice(ctx, repo, p, id)
	if err != nil {
		return Provisioned{}, err
	}
	if !d.Active() {
		return Provisioned{}, ValidationError{Msg: "device is revoked"}
	}
	return n.provision(d)
}

// RotateDeviceKeys issues a new key pair for the device, which invalidates
// every previously downloaded config.
func RotateDeviceKeys(ctx context.Context, repo repository.Repository, n Network, p Principal, id int64) (Provisioned, error) {
	var d model.Device
	err := repo.WithTx(ctx, func(tx repository.Repository) error {
		var err error
		d, err = GetDevice(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if !d.Active() {
			return ValidationError{Msg: "device is revoked"}
		}
		d.PrivateKey, d.PublicKey, err = newKeyPair()
		if err != nil {
			return err
		}
		if err := tx.UpdateDeviceKeys(ctx, id, d.PrivateKey, d.PublicKey); err != nil {
			return err
		}
		return audit(ctx, tx, ActionKeysRotated, d.Owner, p.Username, fmt.Sprintf("device=%d", id))
	})
	if err != nil {
		return Provisioned{}, err
	}
	return n.provision(d)
}

// Peers lists active devices as the WireGuard server sees them.
func Peers(ctx context.Context, repo repository.Repository) ([]model.Device, error) {
	devices, _, err := repo.ListDevices(ctx, repository.DeviceFilter{Status: model.DeviceActive})
	return devices, err
}
