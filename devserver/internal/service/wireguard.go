// wireguard.go provisions WireGuard peers for devices.
//
// Each device gets its own key pair and one address from the VPN subnet:
//   - the first host address (.1) is the server
//   - devices take the lowest free address after it
//
// Addresses of revoked devices are free again.
package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

const (
	qrSize            = 256
	defaultListenPort = 51820
)

// Network describes the VPN server devices connect to.
type Network struct {
	Subnet           netip.Prefix
	Endpoint         string
	ServerPrivateKey wgtypes.Key
	ServerPublicKey  wgtypes.Key
	DNS              []string
	AllowedIPs       []string
	Keepalive        int
}

func ParseNetwork(subnet, endpoint, serverPrivateKey string) (Network, error) {
	prefix, err := netip.ParsePrefix(subnet)
	if err != nil {
		return Network{}, fmt.Errorf("vpn subnet: %w", err)
	}
	if !prefix.Addr().Is4() {
		return Network{}, errors.New("vpn subnet: only IPv4 supported")
	}

	var key wgtypes.Key
	if serverPrivateKey == "" {
		key, err = wgtypes.GeneratePrivateKey()
	} else {
		key, err = wgtypes.ParseKey(serverPrivateKey)
	}
	if err != nil {
		return Network{}, fmt.Errorf("server key: %w", err)
	}

	return Network{
		Subnet:           prefix.Masked(),
		Endpoint:         endpoint,
		ServerPrivateKey: key,
		ServerPublicKey:  key.PublicKey(),
		AllowedIPs:       []string{prefix.Masked().String()},
		Keepalive:        25,
	}, nil
}

// ServerAddress is the server's tunnel address: the first host of the subnet.
func (n Network) ServerAddress() netip.Prefix {
	return netip.PrefixFrom(n.Subnet.Addr().Next(), n.Subnet.Bits())
}

// ListenPort is the port of Endpoint, or the WireGuard default.
func (n Network) ListenPort() int {
	_, port, err := net.SplitHostPort(n.Endpoint)
	if err != nil {
		return defaultListenPort
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return defaultListenPort
	}
	return p
}

// allocateAddress returns the lowest host address in the subnet that is not
// the server's and not in used.
func (n Network) allocateAddress(used []string) (string, error) {
	taken := make(map[netip.Addr]bool, len(used))
	for _, u := range used {
		if p, err := netip.ParsePrefix(u); err == nil {
			taken[p.Addr()] = true
		} else if a, err := netip.ParseAddr(u); err == nil {
			taken[a] = true
		}
	}

	server := n.Subnet.Addr().Next()
	for addr := server.Next(); n.Subnet.Contains(addr); addr = addr.Next() {
		if !n.Subnet.Contains(addr.Next()) {
			break // broadcast
		}
		if !taken[addr] {
			return netip.PrefixFrom(addr, 32).String(), nil
		}
	}
	return "", ValidationError{Msg: "no free VPN address left"}
}

func newKeyPair() (private, public string, err error) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", "", err
	}
	return key.String(), key.PublicKey().String(), nil
}

// clientConfig renders the wg-quick file for a device.
func (n Network) clientConfig(privateKey, address string) string {
	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", privateKey)
	fmt.Fprintf(&b, "Address = %s\n", address)
	if len(n.DNS) > 0 {
		fmt.Fprintf(&b, "DNS = %s\n", strings.Join(n.DNS, ", "))
	}
	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", n.ServerPublicKey.String())
	fmt.Fprintf(&b, "AllowedIPs = %s\n", strings.Join(n.AllowedIPs, ", "))
	if n.Endpoint != "" {
		fmt.Fprintf(&b, "Endpoint = %s\n", n.Endpoint)
	}
	if n.Keepalive > 0 {
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", n.Keepalive)
	}
	return b.String()
}

// qrPNG encodes config as a base64 PNG QR code.
func qrPNG(config string) (string, error) {
	png, err := qrcode.Encode(config, qrcode.Medium, qrSize)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
