package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vpn-console/console/internal/backend"
)

// NewAdminCommand groups the admin views. Every subcommand requires an
// authenticated admin identity.
func NewAdminCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "admin",
		Short:             "Administer users, devices and monitoring",
		PersistentPreRunE: rt.guarded(rt.requireAdmin),
	}
	cmd.AddCommand(
		newAdminUsersCommand(rt),
		newAdminDevicesCommand(rt),
		newAdminStatsCommand(rt),
		newAdminAlertsCommand(rt),
		newAdminAuditCommand(rt),
		newAdminBandwidthCommand(rt),
	)
	return cmd
}

func newAdminUsersCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := rt.App.Call(cmd.Context())
				defer cancel()
				users, err := rt.App.Client.ListUsers(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), rt.App.Format, users, func(w io.Writer) {
					if len(users) == 0 {
						fmt.Fprintln(w, "no users")
						return
					}
					row(w, "USERNAME", "NAME", "MAIL", "ROLE", "VPN", "DEVICES")
					for _, u := range users {
						row(w, u.Username, orDash(u.CommonName), orDash(u.Mail), orDash(string(u.Role)), enabledCol(u.WireGuardEnabled), fmt.Sprintf("%d/%d", u.DeviceCount, u.MaxDevices))
					}
				})
			},
		},
		&cobra.Command{
			Use:   "show USERNAME",
			Short: "Show one user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := rt.App.Call(cmd.Context())
				defer cancel()
				detail, err := rt.App.Client.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), rt.App.Format, detail, func(w io.Writer) {
					u := detail.User
					row(w, "Username:", u.Username)
					row(w, "Name:", orDash(u.CommonName))
					row(w, "Mail:", orDash(u.Mail))
					row(w, "Role:", orDash(string(u.Role)))
					row(w, "VPN access:", enabledCol(u.WireGuardEnabled))
					row(w, "Devices:", fmt.Sprintf("%d of %d (%d active)", u.DeviceCount, u.MaxDevices, detail.ActiveDevices))
					if detail.CreatedAt != nil {
						row(w, "Created:", timeCol(*detail.CreatedAt))
					}
					if detail.UpdatedAt != nil {
						row(w, "Updated:", timeCol(*detail.UpdatedAt))
					}
				})
			},
		},
		newAdminCreateUserCommand(rt),
		&cobra.Command{
			Use:   "set-role USERNAME ROLE",
			Short: "Change a user's role",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				role := backend.Role(strings.ToLower(args[1]))
				if !role.Valid() {
					return fmt.Errorf("role must be one of: %s %s", backend.RoleAdmin, backend.RoleUser)
				}
				return rt.ackCall(cmd, fmt.Sprintf("%s is now %s", args[0], role), func(ctx context.Context) (backend.Ack, error) {
					return rt.App.Client.UpdateUserRole(ctx, args[0], role)
				})
			},
		},
		&cobra.Command{
			Use:   "delete USERNAME",
			Short: "Delete a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.ackCall(cmd, "deleted "+args[0], func(ctx context.Context) (backend.Ack, error) {
					return rt.App.Client.DeleteUser(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "enable USERNAME",
			Short: "Grant VPN access",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.ackCall(cmd, "VPN access enabled for "+args[0], func(ctx context.Context) (backend.Ack, error) {
					return rt.App.Client.EnableUserVPN(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "disable USERNAME",
			Short: "Revoke VPN access",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.ackCall(cmd, "VPN access disabled for "+args[0], func(ctx context.Context) (backend.Ack, error) {
					return rt.App.Client.DisableUserVPN(ctx, args[0])
				})
			},
		},
	)
	return cmd
}

// ackCall runs a mutating call bounded by the configured timeout and prints
// its acknowledgement.
func (rt *Runtime) ackCall(cmd *cobra.Command, fallback string, call func(context.Context) (backend.Ack, error)) error {
	ctx, cancel := rt.App.Call(cmd.Context())
	defer cancel()
	ack, err := call(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ackText(ack, fallback))
	return nil
}

type newUserInput struct {
	Username string `validate:"required"`
	Password string `validate:"required,min=8"`
	Role     string `validate:"oneof=admin user"`
}

func newAdminCreateUserCommand(rt *Runtime) *cobra.Command {
	in := newUserInput{Role: string(backend.RoleUser)}

	cmd := &cobra.Command{
		Use:   "create USERNAME",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Username = strings.TrimSpace(args[0])
			in.Role = strings.ToLower(in.Role)
			if err := validateInput(in); err != nil {
				return err
			}
			u := backend.NewUser{Username: in.Username, Password: in.Password, Role: backend.Role(in.Role)}
			return rt.ackCall(cmd, "created "+in.Username, func(ctx context.Context) (backend.Ack, error) {
				return rt.App.Client.CreateUser(ctx, u)
			})
		},
	}

	cmd.Flags().StringVar(&in.Password, "password", "", "initial password (at least 8 characters)")
	cmd.Flags().StringVar(&in.Role, "role", string(backend.RoleUser), "admin or user")
	return cmd
}

type deviceFilterInput struct {
	Status string `validate:"omitempty,oneof=active revoked expired"`
	Limit  int    `validate:"gte=1,lte=1000"`
	Offset int    `validate:"gte=0"`
}

func newAdminDevicesCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect every user's devices",
	}

	in := deviceFilterInput{Limit: backend.DefaultDeviceLimit}
	list := &cobra.Command{
		Use:   "list",
		Short: "List devices across all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateInput(in); err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			page, err := rt.App.Client.ListAdminDevices(ctx, backend.DeviceFilter{
				Status: backend.DeviceStatus(in.Status),
				Limit:  in.Limit,
				Offset: in.Offset,
			})
			if err != nil {
				return err
			}
			if rt.App.Format != formatTable {
				return render(cmd.OutOrStdout(), rt.App.Format, page, nil)
			}
			out := cmd.OutOrStdout()
			if err := renderDevices(out, formatTable, page.Devices, true); err != nil {
				return err
			}
			fmt.Fprintf(out, "showing %d of %d\n", len(page.Devices), page.Total)
			return nil
		},
	}
	list.Flags().StringVar(&in.Status, "status", "", "filter by status: active, revoked or expired")
	list.Flags().IntVar(&in.Limit, "limit", backend.DefaultDeviceLimit, "page size")
	list.Flags().IntVar(&in.Offset, "offset", 0, "page offset")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "show ID",
			Short: "Show any device",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				ctx, cancel := rt.App.Call(cmd.Context())
				defer cancel()
				device, err := rt.App.Client.GetAdminDevice(ctx, id)
				if err != nil {
					return err
				}
				return renderDevice(cmd.OutOrStdout(), rt.App.Format, device)
			},
		},
		&cobra.Command{
			Use:   "revoke ID",
			Short: "Revoke any device",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return rt.ackCall(cmd, fmt.Sprintf("device %d revoked", id), func(ctx context.Context) (backend.Ack, error) {
					return rt.App.Client.RevokeAdminDevice(ctx, id)
				})
			},
		},
	)
	return cmd
}

func newAdminStatsCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show system statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			stats, err := rt.App.Client.SystemStats(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rt.App.Format, stats, func(w io.Writer) {
				statsRows(w, stats)
			})
		},
	}
}

var severityOrder = []backend.Severity{
	backend.SeverityCritical,
	backend.SeverityHigh,
	backend.SeverityMedium,
	backend.SeverityLow,
}

func statsRows(w io.Writer, s backend.SystemStats) {
	row(w, "Users:", s.TotalUsers)
	row(w, "Devices:", fmt.Sprintf("%d (%d active, %d revoked)", s.TotalDevices, s.ActiveDevices, s.RevokedDevices))
	row(w, "Received:", bytesCol(s.RxBytes))
	row(w, "Sent:", bytesCol(s.TxBytes))
	counts := make([]string, 0, len(severityOrder))
	for _, sev := range severityOrder {
		counts = append(counts, fmt.Sprintf("%s=%d", sev, s.Alerts[sev]))
	}
	row(w, "Alerts:", strings.Join(counts, " "))
}

type alertInput struct {
	Limit    int    `validate:"gte=1,lte=1000"`
	Severity string `validate:"omitempty,oneof=critical high medium low"`
}

func newAdminAlertsCommand(rt *Runtime) *cobra.Command {
	in := alertInput{Limit: backend.DefaultAlertLimit}

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List recent alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Severity = strings.ToLower(in.Severity)
			if err := validateInput(in); err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			alerts, err := rt.App.Client.Alerts(ctx, backend.AlertQuery{Limit: in.Limit, Severity: backend.Severity(in.Severity)})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rt.App.Format, alerts, func(w io.Writer) {
				alertRows(w, alerts)
			})
		},
	}

	cmd.Flags().IntVar(&in.Limit, "limit", backend.DefaultAlertLimit, "maximum number of alerts")
	cmd.Flags().StringVar(&in.Severity, "severity", "", "filter by severity")
	return cmd
}

func alertRows(w io.Writer, alerts []backend.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "no alerts")
		return
	}
	row(w, "SEVERITY", "TIME", "MESSAGE")
	for _, a := range alerts {
		row(w, strings.ToUpper(string(a.Severity)), timeCol(a.Timestamp), a.Message)
	}
}

type auditInput struct {
	Action      string
	SubjectUser string
	PerformedBy string
	Limit       int `validate:"gte=1,lte=1000"`
	Offset      int `validate:"gte=0"`
}

func newAdminAuditCommand(rt *Runtime) *cobra.Command {
	in := auditInput{Limit: backend.DefaultAuditLimit}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Search the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateInput(in); err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			entries, err := rt.App.Client.AuditLogs(ctx, backend.AuditQuery{
				Action:      in.Action,
				SubjectUser: in.SubjectUser,
				PerformedBy: in.PerformedBy,
				Limit:       in.Limit,
				Offset:      in.Offset,
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rt.App.Format, entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "no audit entries")
					return
				}
				row(w, "TIME", "ACTION", "USER", "BY")
				for _, e := range entries {
					row(w, timeCol(e.Timestamp), e.Action, orDash(e.SubjectUser), orDash(e.PerformedBy))
				}
			})
		},
	}

	cmd.Flags().StringVar(&in.Action, "action", "", "filter by action")
	cmd.Flags().StringVar(&in.SubjectUser, "user", "", "filter by affected user")
	cmd.Flags().StringVar(&in.PerformedBy, "by", "", "filter by acting user")
	cmd.Flags().IntVar(&in.Limit, "limit", backend.DefaultAuditLimit, "page size")
	cmd.Flags().IntVar(&in.Offset, "offset", 0, "page offset")
	return cmd
}

type limitInput struct {
	Username string  `validate:"required"`
	LimitMB  float64 `validate:"gte=0"`
}

func newAdminBandwidthCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bandwidth",
		Short: "Manage per-user bandwidth limits",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List bandwidth limits and usage",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return listLimits(cmd, rt)
			},
		},
		&cobra.Command{
			Use:   "set USERNAME MB",
			Short: "Set a user's limit in megabytes; 0 removes the cap",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				mb, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid limit %q", args[1])
				}
				in := limitInput{Username: strings.TrimSpace(args[0]), LimitMB: mb}
				if err := validateInput(in); err != nil {
					return err
				}
				err = rt.ackCall(cmd, fmt.Sprintf("limit for %s set to %s", in.Username, megabytesCol(in.LimitMB)), func(ctx context.Context) (backend.Ack, error) {
					return rt.App.Client.SetBandwidthLimit(ctx, in.Username, in.LimitMB)
				})
				if err != nil {
					return err
				}
				return listLimits(cmd, rt)
			},
		},
		&cobra.Command{
			Use:   "reset USERNAME",
			Short: "Reset a user's recorded usage",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.ackCall(cmd, "usage reset for "+args[0], func(ctx context.Context) (backend.Ack, error) {
					return rt.App.Client.ResetBandwidthUsage(ctx, args[0])
				})
			},
		},
	)
	return cmd
}

func listLimits(cmd *cobra.Command, rt *Runtime) error {
	ctx, cancel := rt.App.Call(cmd.Context())
	defer cancel()
	limits, err := rt.App.Client.BandwidthLimits(ctx)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), rt.App.Format, limits, func(w io.Writer) {
		if len(limits) == 0 {
			fmt.Fprintln(w, "no limits")
			return
		}
		row(w, "USERNAME", "LIMIT", "USED")
		for _, l := range limits {
			limit := "unlimited"
			if !l.Unlimited() {
				limit = megabytesCol(*l.LimitMB)
			}
			row(w, l.Username, limit, megabytesCol(l.UsedMB))
		}
	})
}
