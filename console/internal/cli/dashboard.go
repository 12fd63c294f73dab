package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vpn-console/console/internal/async"
	"vpn-console/console/internal/backend"
)

// panel is the rendered form of one async value.
type panel[T any] struct {
	State string `json:"state" yaml:"state"`
	Data  *T     `json:"data,omitempty" yaml:"data,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func view[T any](v *async.Value[T]) panel[T] {
	state, val, err := v.Snapshot()
	p := panel[T]{State: state.String()}
	if v.Settled() == async.Resolved {
		p.Data = &val
	}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// dashboard fetches its panels concurrently. Each panel is an async.Value,
// so a refresh that lands after a newer one has started is dropped.
type dashboard struct {
	client *backend.Client
	admin  bool

	access  async.Value[backend.AccessSummary]
	devices async.Value[[]backend.Device]
	traffic async.Value[backend.TrafficSummary]
	stats   async.Value[backend.SystemStats]
	alerts  async.Value[[]backend.Alert]
}

type dashboardView struct {
	Identity backend.Identity              `json:"identity" yaml:"identity"`
	Access   panel[backend.AccessSummary]  `json:"access" yaml:"access"`
	Devices  panel[[]backend.Device]       `json:"devices" yaml:"devices"`
	Traffic  panel[backend.TrafficSummary] `json:"traffic" yaml:"traffic"`
	Stats    *panel[backend.SystemStats]   `json:"stats,omitempty" yaml:"stats,omitempty"`
	Alerts   *panel[[]backend.Alert]       `json:"alerts,omitempty" yaml:"alerts,omitempty"`
}

// refresh runs one round of fetches and reports whether any panel settled
// with its result.
func (d *dashboard) refresh(ctx context.Context) bool {
	var (
		g     errgroup.Group
		mu    sync.Mutex
		fresh bool
	)
	track := func(run func() bool) {
		g.Go(func() error {
			if run() {
				mu.Lock()
				fresh = true
				mu.Unlock()
			}
			return nil
		})
	}

	track(func() bool { return d.access.Run(ctx, d.client.MyAccess) })
	track(func() bool { return d.devices.Run(ctx, d.client.ListDevices) })
	track(func() bool {
		return d.traffic.Run(ctx, func(ctx context.Context) (backend.TrafficSummary, error) {
			return d.client.TrafficSummary(ctx, 0)
		})
	})
	if d.admin {
		track(func() bool { return d.stats.Run(ctx, d.client.SystemStats) })
		track(func() bool {
			return d.alerts.Run(ctx, func(ctx context.Context) ([]backend.Alert, error) {
				return d.client.Alerts(ctx, backend.AlertQuery{Limit: 10})
			})
		})
	}
	_ = g.Wait()
	return fresh
}

func (d *dashboard) view(id backend.Identity) dashboardView {
	v := dashboardView{
		Identity: id,
		Access:   view(&d.access),
		Devices:  view(&d.devices),
		Traffic:  view(&d.traffic),
	}
	if d.admin {
		stats, alerts := view(&d.stats), view(&d.alerts)
		v.Stats, v.Alerts = &stats, &alerts
	}
	return v
}

func writeDashboard(out io.Writer, format string, v dashboardView) error {
	return render(out, format, v, func(w io.Writer) {
		fmt.Fprintf(w, "%s (%s)  %s\n\n", v.Identity.Username, v.Identity.Role, time.Now().Format("15:04:05"))

		section(w, "Access", v.Access, func(a *backend.AccessSummary) { accessRows(w, *a) })
		section(w, "Traffic", v.Traffic, func(s *backend.TrafficSummary) { summaryRows(w, *s) })
		section(w, "Devices", v.Devices, func(ds *[]backend.Device) {
			row(w, "ID", "NAME", "VPN IP", "STATUS", "LAST SEEN")
			for _, d := range *ds {
				row(w, d.ID, d.Name, orDash(d.VPNAddress), d.Status, agoCol(d.LastSeen))
			}
		})
		if v.Stats != nil {
			section(w, "System", *v.Stats, func(s *backend.SystemStats) { statsRows(w, *s) })
		}
		if v.Alerts != nil {
			section(w, "Recent alerts", *v.Alerts, func(a *[]backend.Alert) { alertRows(w, *a) })
		}
	})
}

func section[T any](w io.Writer, title string, p panel[T], body func(*T)) {
	fmt.Fprintf(w, "== %s ==\n", title)
	switch {
	case p.Data == nil && p.Error != "":
		fmt.Fprintf(w, "error: %s\n", p.Error)
	case p.Data == nil:
		fmt.Fprintln(w, "loading...")
	default:
		body(p.Data)
	}
	fmt.Fprintln(w)
}

func NewDashboardCommand(rt *Runtime) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:               "dashboard",
		Short:             "Show an overview, optionally refreshing",
		Args:              cobra.NoArgs,
		PersistentPreRunE: rt.guarded(rt.requireUser),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < 0 {
				return fmt.Errorf("invalid watch interval %s", interval)
			}
			id, _ := rt.App.Session.Identity()
			d := &dashboard{client: rt.App.Client, admin: rt.App.Session.IsAdmin()}
			out := cmd.OutOrStdout()

			once := func(ctx context.Context) bool {
				ctx, cancel := rt.App.Call(ctx)
				defer cancel()
				return d.refresh(ctx)
			}

			if interval == 0 {
				once(cmd.Context())
				return writeDashboard(out, rt.App.Format, d.view(id))
			}
			return watch(cmd.Context(), interval, once, func() error {
				return writeDashboard(out, rt.App.Format, d.view(id))
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "watch", 0, "refresh at this interval until interrupted")
	return cmd
}

// watch starts a refresh on every tick without waiting for the previous one.
// Each refresh that lands fresh data triggers a redraw.
func watch(ctx context.Context, interval time.Duration, refresh func(context.Context) bool, draw func() error) error {
	var (
		g      errgroup.Group
		drawMu sync.Mutex
	)
	start := func() {
		g.Go(func() error {
			if !refresh(ctx) {
				return nil
			}
			drawMu.Lock()
			defer drawMu.Unlock()
			return draw()
		})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start()
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case <-ticker.C:
			start()
		}
	}
}
