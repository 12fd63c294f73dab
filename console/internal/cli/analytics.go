package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"vpn-console/console/internal/backend"
)

type trafficInput struct {
	DeviceID int64 `validate:"gte=0"`
	Hours    int   `validate:"gte=1,lte=720"`
}

func NewTrafficCommand(rt *Runtime) *cobra.Command {
	in := trafficInput{Hours: backend.DefaultTrafficHours}

	cmd := &cobra.Command{
		Use:               "traffic",
		Short:             "Show traffic over time",
		Args:              cobra.NoArgs,
		PersistentPreRunE: rt.guarded(rt.requireUser),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateInput(in); err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			report, err := rt.App.Client.Traffic(ctx, backend.TrafficQuery{DeviceID: in.DeviceID, Hours: in.Hours})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rt.App.Format, report, func(w io.Writer) {
				if len(report.Points) == 0 {
					fmt.Fprintf(w, "no traffic in the last %d hours\n", in.Hours)
				} else {
					row(w, "TIME", "BYTES")
					for _, p := range report.Points {
						row(w, timeCol(p.Time), bytesCol(p.Bytes))
					}
				}
				if s := report.Summary; s != nil {
					fmt.Fprintln(w)
					summaryRows(w, *s)
				}
			})
		},
	}

	cmd.Flags().Int64Var(&in.DeviceID, "device", 0, "limit to one device id")
	cmd.Flags().IntVar(&in.Hours, "hours", backend.DefaultTrafficHours, "window size in hours")
	return cmd
}

func NewSummaryCommand(rt *Runtime) *cobra.Command {
	var deviceID int64

	cmd := &cobra.Command{
		Use:               "summary",
		Short:             "Show total traffic",
		Args:              cobra.NoArgs,
		PersistentPreRunE: rt.guarded(rt.requireUser),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deviceID < 0 {
				return fmt.Errorf("invalid device id %d", deviceID)
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			summary, err := rt.App.Client.TrafficSummary(ctx, deviceID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rt.App.Format, summary, func(w io.Writer) {
				summaryRows(w, summary)
			})
		},
	}

	cmd.Flags().Int64Var(&deviceID, "device", 0, "limit to one device id")
	return cmd
}

func summaryRows(w io.Writer, s backend.TrafficSummary) {
	row(w, "Received:", bytesCol(s.RxBytes))
	row(w, "Sent:", bytesCol(s.TxBytes))
	row(w, "Total:", bytesCol(s.TotalBytes))
}

func NewAccessCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:               "access",
		Short:             "Show your VPN access and device quota",
		Args:              cobra.NoArgs,
		PersistentPreRunE: rt.guarded(rt.requireUser),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			access, err := rt.App.Client.MyAccess(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rt.App.Format, access, func(w io.Writer) {
				accessRows(w, access)
			})
		},
	}
}

func accessRows(w io.Writer, a backend.AccessSummary) {
	row(w, "Username:", orDash(a.Username))
	row(w, "VPN access:", enabledCol(a.WireGuardEnabled))
	row(w, "Devices:", fmt.Sprintf("%d of %d (%d remaining)", a.DeviceCount, a.MaxDevices, a.Remaining()))
}

func enabledCol(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func NewPeersCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:               "peers",
		Short:             "Show WireGuard peers known to the server",
		Args:              cobra.NoArgs,
		PersistentPreRunE: rt.guarded(rt.requireUser),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			peers, err := rt.App.Client.Peers(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rt.App.Format, peers, func(w io.Writer) {
				if len(peers) == 0 {
					fmt.Fprintln(w, "no peers")
					return
				}
				row(w, "PUBLIC KEY", "ALLOWED IPS", "RX", "TX", "HANDSHAKE")
				for _, p := range peers {
					row(w, shortKey(p.PublicKey), orDash(strings.Join(p.AllowedIPs, ",")), bytesCol(p.RxBytes), bytesCol(p.TxBytes), agoCol(p.LastHandshake))
				}
			})
		},
	}
}
