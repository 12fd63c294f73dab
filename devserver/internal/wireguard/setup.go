package wireguard

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"syscall"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Setup brings name up as the server end of the VPN. The link is created
// when missing, then given address and configured with key and listenPort.
func Setup(name string, address netip.Prefix, key wgtypes.Key, listenPort int) (*Interface, error) {
	if os.Geteuid() != 0 {
		return nil, errors.New("wireguard setup must run as root")
	}

	link, err := ensureLink(name)
	if err != nil {
		return nil, err
	}
	if err := ensureAddress(link, address); err != nil {
		return nil, err
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return nil, fmt.Errorf("link set up: %w", err)
	}

	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("wgctrl init: %w", err)
	}
	defer client.Close()

	cfg := wgtypes.Config{
		PrivateKey: &key,
		ListenPort: &listenPort,
	}
	if err := client.ConfigureDevice(name, cfg); err != nil {
		return nil, fmt.Errorf("configure device: %w", err)
	}
	return &Interface{name: name}, nil
}

func ensureLink(name string) (netlink.Link, error) {
	link, err := netlink.LinkByName(name)
	if err == nil {
		if link.Type() != "wireguard" {
			return nil, fmt.Errorf("link %s exists but is not wireguard", name)
		}
		return link, nil
	}

	var notFound netlink.LinkNotFoundError
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("link lookup: %w", err)
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	wgLink := &netlink.Wireguard{LinkAttrs: attrs}
	if err := netlink.LinkAdd(wgLink); err != nil {
		return nil, fmt.Errorf("link add: %w", err)
	}
	return wgLink, nil
}

// ensureAddress assigns the host address, keeping the prefix length.
func ensureAddress(link netlink.Link, address netip.Prefix) error {
	ipNet := &net.IPNet{
		IP:   address.Addr().AsSlice(),
		Mask: net.CIDRMask(address.Bits(), address.Addr().BitLen()),
	}
	if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: ipNet}); err != nil {
		if errors.Is(err, syscall.EEXIST) {
			return nil
		}
		return fmt.Errorf("addr add: %w", err)
	}
	return nil
}
