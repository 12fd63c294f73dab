package wireguard

import (
	"testing"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"vpn-console/devserver/internal/model"
)

func TestPeerConfigs(t *testing.T) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	pub := key.PublicKey().String()

	devices := []model.Device{
		{ID: 1, PublicKey: pub, Address: "10.8.0.2/32", Status: model.DeviceActive},
		{ID: 2, PublicKey: pub, Address: "10.8.0.3/32", Status: model.DeviceRevoked},
		{ID: 3, Address: "10.8.0.4/32", Status: model.DeviceActive},
	}
	peers, err := peerConfigs(devices)
	if err != nil {
		t.Fatalf("peerConfigs() error = %v", err)
	}
	if len(peers) != 1 {
		t.Fatalf("peerConfigs() = %d peers, want 1", len(peers))
	}
	p := peers[0]
	if p.PublicKey.String() != pub || !p.ReplaceAllowedIPs {
		t.Errorf("peer = %+v", p)
	}
	if len(p.AllowedIPs) != 1 || p.AllowedIPs[0].String() != "10.8.0.2/32" {
		t.Errorf("AllowedIPs = %v", p.AllowedIPs)
	}
}

func TestPeerConfigsRejectsBadInput(t *testing.T) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		device model.Device
	}{
		{name: "bad key", device: model.Device{ID: 1, PublicKey: "nope", Address: "10.8.0.2/32", Status: model.DeviceActive}},
		{name: "bad address", device: model.Device{ID: 1, PublicKey: key.PublicKey().String(), Address: "10.8.0.2", Status: model.DeviceActive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := peerConfigs([]model.Device{tt.device}); err == nil {
				t.Error("peerConfigs() succeeded")
			}
		})
	}
}
