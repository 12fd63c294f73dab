// Package wireguard mirrors active devices onto an existing WireGuard
// interface and reads live peer counters back from it.
package wireguard

import (
	"fmt"
	"net"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"vpn-console/devserver/internal/model"
)

// PeerStats is what the kernel reports for one peer.
type PeerStats struct {
	RxBytes       int64
	TxBytes       int64
	LastHandshake time.Time
}

type Interface struct {
	name string
}

// Open checks that the interface exists and is a WireGuard device. The
// interface itself is created by the operator, e.g. with wg-quick.
func Open(name string) (*Interface, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("wgctrl init: %w", err)
	}
	defer client.Close()

	if _, err := client.Device(name); err != nil {
		return nil, fmt.Errorf("wireguard device %s: %w", name, err)
	}
	return &Interface{name: name}, nil
}

func (i *Interface) Name() string {
	return i.name
}

// ApplyPeers replaces the interface's peers with the given devices.
func (i *Interface) ApplyPeers(devices []model.Device) error {
	peers, err := peerConfigs(devices)
	if err != nil {
		return err
	}

	client, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("wgctrl init: %w", err)
	}
	defer client.Close()

	cfg := wgtypes.Config{
		ReplacePeers: true,
		Peers:        peers,
	}
	if err := client.ConfigureDevice(i.name, cfg); err != nil {
		return fmt.Errorf("configure device: %w", err)
	}
	return nil
}

func peerConfigs(devices []model.Device) ([]wgtypes.PeerConfig, error) {
	out := make([]wgtypes.PeerConfig, 0, len(devices))
	for _, d := range devices {
		if !d.Active() || d.PublicKey == "" {
			continue
		}
		key, err := wgtypes.ParseKey(d.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("parse public key of device %d: %w", d.ID, err)
		}
		_, ipNet, err := net.ParseCIDR(d.Address)
		if err != nil {
			return nil, fmt.Errorf("parse address of device %d: %w", d.ID, err)
		}
		out = append(out, wgtypes.PeerConfig{
			PublicKey:         key,
			ReplaceAllowedIPs: true,
			AllowedIPs:        []net.IPNet{*ipNet},
		})
	}
	return out, nil
}

// Stats returns the current counters keyed by base64 public key.
func (i *Interface) Stats() (map[string]PeerStats, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("wgctrl init: %w", err)
	}
	defer client.Close()

	dev, err := client.Device(i.name)
	if err != nil {
		return nil, fmt.Errorf("read device: %w", err)
	}
	out := make(map[string]PeerStats, len(dev.Peers))
	for _, p := range dev.Peers {
		out[p.PublicKey.String()] = PeerStats{
			RxBytes:       p.ReceiveBytes,
			TxBytes:       p.TransmitBytes,
			LastHandshake: p.LastHandshakeTime,
		}
	}
	return out, nil
}
