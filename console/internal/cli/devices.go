package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vpn-console/console/internal/backend"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid device id %q", arg)
	}
	return id, nil
}

func renderDevices(out io.Writer, format string, devices []backend.Device, withOwner bool) error {
	return render(out, format, devices, func(w io.Writer) {
		if len(devices) == 0 {
			fmt.Fprintln(w, "no devices")
			return
		}
		if withOwner {
			row(w, "ID", "OWNER", "NAME", "VPN IP", "STATUS", "CREATED", "LAST SEEN", "TRAFFIC")
		} else {
			row(w, "ID", "NAME", "VPN IP", "STATUS", "CREATED", "LAST SEEN", "TRAFFIC")
		}
		for _, d := range devices {
			cols := []any{d.ID}
			if withOwner {
				cols = append(cols, orDash(d.Owner))
			}
			cols = append(cols, d.Name, orDash(d.VPNAddress), d.Status, timeCol(d.CreatedAt), agoCol(d.LastSeen), bytesCol(d.TotalBytes))
			row(w, cols...)
		}
	})
}

func renderDevice(out io.Writer, format string, d backend.Device) error {
	return render(out, format, d, func(w io.Writer) {
		row(w, "ID:", d.ID)
		row(w, "Owner:", orDash(d.Owner))
		row(w, "Name:", d.Name)
		row(w, "VPN IP:", orDash(d.VPNAddress))
		row(w, "Status:", d.Status)
		row(w, "Created:", timeCol(d.CreatedAt))
		row(w, "Last seen:", agoCol(d.LastSeen))
		row(w, "Received:", bytesCol(d.RxBytes))
		row(w, "Sent:", bytesCol(d.TxBytes))
		row(w, "Total:", bytesCol(d.TotalBytes))
	})
}

func NewDevicesCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "devices",
		Short:             "Manage your VPN devices",
		PersistentPreRunE: rt.guarded(rt.requireUser),
	}
	cmd.AddCommand(
		newDevicesListCommand(rt),
		newDevicesAddCommand(rt),
		newDevicesShowCommand(rt),
		newDevicesRevokeCommand(rt),
		newDevicesConfigCommand(rt),
		newDevicesQRCommand(rt),
	)
	return cmd
}

func newDevicesListCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDevices(cmd, rt)
		},
	}
}

func listDevices(cmd *cobra.Command, rt *Runtime) error {
	ctx, cancel := rt.App.Call(cmd.Context())
	defer cancel()
	devices, err := rt.App.Client.ListDevices(ctx)
	if err != nil {
		return err
	}
	return renderDevices(cmd.OutOrStdout(), rt.App.Format, devices, false)
}

type deviceName struct {
	Name string `validate:"required,max=64"`
}

func newDevicesAddCommand(rt *Runtime) *cobra.Command {
	var configOut, qrOut string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a new device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := deviceName{Name: strings.TrimSpace(args[0])}
			if err := validateInput(in); err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			added, err := rt.App.Client.AddDevice(ctx, in.Name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "device %q registered (id %d, %s)\n", added.Device.Name, added.Device.ID, orDash(added.Device.VPNAddress))
			if err := saveArtifact(out, added.Artifact, configOut, qrOut); err != nil {
				return err
			}
			return listDevices(cmd, rt)
		},
	}

	cmd.Flags().StringVar(&configOut, "config-out", "", "write the WireGuard config to this file")
	cmd.Flags().StringVar(&qrOut, "qr-out", "", "write the QR code PNG to this file")
	return cmd
}

func newDevicesShowCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			device, err := rt.App.Client.GetDevice(ctx, id)
			if err != nil {
				return err
			}
			return renderDevice(cmd.OutOrStdout(), rt.App.Format, device)
		},
	}
}

func newDevicesRevokeCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke ID",
		Short: "Revoke one of your devices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			ack, err := rt.App.Client.RevokeDevice(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ackText(ack, fmt.Sprintf("device %d revoked", id)))
			return listDevices(cmd, rt)
		},
	}
}

func newDevicesConfigCommand(rt *Runtime) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "config ID",
		Short: "Download a device's WireGuard configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			device, err := rt.App.Client.GetDevice(ctx, id)
			if err != nil {
				return err
			}
			art, err := rt.App.Client.DeviceConfig(ctx, id)
			if err != nil {
				return err
			}
			if art.Config == "" {
				return fmt.Errorf("configuration not available: %s", orDash(art.Note))
			}
			if out == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), art.Config)
				return err
			}
			if out == "" {
				out = configFileName(device.Name)
			}
			return writeFile(cmd.OutOrStdout(), out, []byte(art.Config))
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file, - for stdout (default wg-<name>.conf)")
	return cmd
}

func newDevicesQRCommand(rt *Runtime) *cobra.Command {
	var (
		out        string
		regenerate bool
	)

	cmd := &cobra.Command{
		Use:   "qr ID",
		Short: "Download a device's QR code image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()

			fetch := rt.App.Client.DeviceQR
			if regenerate {
				fetch = rt.App.Client.RegenerateQR
			}
			art, err := fetch(ctx, id)
			if err != nil {
				return err
			}
			if len(art.QRCode) == 0 {
				return fmt.Errorf("QR code not available: %s", orDash(art.Note))
			}
			if out == "" {
				out = fmt.Sprintf("device-%d-qr.png", id)
			}
			return writeFile(cmd.OutOrStdout(), out, art.QRCode)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file (default device-<id>-qr.png)")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "issue a new QR code first")
	return cmd
}

// Device names come from the backend; anything but letters, digits, '_'
// and '-' is folded so the file stays in the working directory.
var nonNameChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

func configFileName(deviceName string) string {
	name := strings.ToLower(nonNameChars.ReplaceAllString(strings.TrimSpace(deviceName), "-"))
	name = strings.Trim(name, "-")
	if name == "" {
		name = "device"
	}
	return "wg-" + name + ".conf"
}

func saveArtifact(out io.Writer, art backend.Artifact, configPath, qrPath string) error {
	if configPath != "" && art.Config != "" {
		if err := writeFile(out, configPath, []byte(art.Config)); err != nil {
			return err
		}
	}
	if qrPath != "" && len(art.QRCode) > 0 {
		if err := writeFile(out, qrPath, art.QRCode); err != nil {
			return err
		}
	}
	if art.Note != "" {
		fmt.Fprintln(out, art.Note)
	}
	return nil
}

func writeFile(out io.Writer, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(out, "saved %s\n", path)
	return nil
}

func ackText(ack backend.Ack, fallback string) string {
	if ack.Message != "" {
		return ack.Message
	}
	return fallback
}
