package wireguard

import (
	"context"
	"log/slog"
	"time"
)

const DefaultCollectInterval = 30 * time.Second

// StatsSource is anything that reports peer counters, usually an Interface.
type StatsSource interface {
	Stats() (map[string]PeerStats, error)
}

// Collector polls peer counters and reports how much each peer transferred
// since the previous poll. The first poll only records a baseline.
type Collector struct {
	Source   StatsSource
	Interval time.Duration
	Log      *slog.Logger
	OnDelta  func(ctx context.Context, publicKey string, rx, tx int64, at time.Time) error

	last map[string]PeerStats
}

func (c *Collector) Run(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	if c.Log == nil {
		c.Log = slog.New(slog.DiscardHandler)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.collect(ctx, time.Now()); err != nil {
			c.Log.Warn("collect peer traffic", "error", err)
		}
		wait(ctx, interval)
	}
}

func (c *Collector) collect(ctx context.Context, now time.Time) error {
	stats, err := c.Source.Stats()
	if err != nil {
		return err
	}

	first := c.last == nil
	prev := c.last
	c.last = stats
	if first {
		return nil
	}

	for key, cur := range stats {
		old := prev[key]
		rx, tx := delta(old.RxBytes, cur.RxBytes), delta(old.TxBytes, cur.TxBytes)
		if rx == 0 && tx == 0 {
			continue
		}
		at := now
		if !cur.LastHandshake.IsZero() && cur.LastHandshake.Before(now) {
			at = cur.LastHandshake
		}
		if err := c.OnDelta(ctx, key, rx, tx, at); err != nil {
			c.Log.Warn("record peer traffic", "public_key", key, "error", err)
		}
	}
	return nil
}

// delta treats a counter that went backwards as reset to zero in between.
func delta(old, cur int64) int64 {
	if cur < old {
		return cur
	}
	return cur - old
}

func wait(ctx context.Context, interval time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
