package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
)

const (
	DefaultTrafficHours = 24
	maxTrafficHours     = 24 * 30
)

// RecordTraffic adds a transfer report for a device: device counters, a
// sample for the time series and the owner's bandwidth usage. An alert is
// raised when the usage crosses the owner's limit.
func RecordTraffic(ctx context.Context, repo repository.Repository, deviceID, rx, tx int64, at time.Time) error {
	if rx < 0 || tx < 0 {
		return ValidationError{Msg: "transfer counters must not be negative"}
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	return repo.WithTx(ctx, func(r repository.Repository) error {
		d, err := r.GetDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		if err := r.AddDeviceTraffic(ctx, deviceID, rx, tx, at); err != nil {
			return err
		}
		sample := model.TrafficSample{DeviceID: deviceID, Owner: d.Owner, RxBytes: rx, TxBytes: tx, Timestamp: at}
		if err := r.CreateTrafficSample(ctx, &sample); err != nil {
			return err
		}

		before, err := r.GetBandwidthLimit(ctx, d.Owner)
		if err != nil && !IsNotFound(err) {
			return err
		}
		after, err := r.AddBandwidthUsage(ctx, d.Owner, rx+tx)
		if err != nil {
			return err
		}
		return raiseUsageAlert(ctx, r, before, after)
	})
}

// RecordPeerTraffic is RecordTraffic for a device identified by its
// WireGuard public key, as reported by the interface.
func RecordPeerTraffic(ctx context.Context, repo repository.Repository, publicKey string, rx, tx int64, at time.Time) error {
	d, err := repo.GetDeviceByPublicKey(ctx, publicKey)
	if err != nil {
		return err
	}
	return RecordTraffic(ctx, repo, d.ID, rx, tx, at)
}

// raiseUsageAlert fires once when usage crosses the limit and once more
// when it crosses twice the limit. A single report crossing both raises
// both.
func raiseUsageAlert(ctx context.Context, repo repository.Repository, before, after model.BandwidthLimit) error {
	prev, _ := before.Exceeded()
	ratio, over := after.Exceeded()
	if !over {
		return nil
	}

	var severities []string
	if prev <= 1 {
		severities = append(severities, model.SeverityHigh)
	}
	if ratio >= 2 && prev < 2 {
		severities = append(severities, model.SeverityCritical)
	}
	msg := fmt.Sprintf("%s used %s of %s MB bandwidth limit",
		after.Username, humanize.IBytes(uint64(after.UsedBytes)), humanize.Ftoa(*after.LimitMB))
	for _, severity := range severities {
		alert := model.NewAlert(severity, after.Username, msg)
		if err := repo.CreateAlert(ctx, &alert); err != nil {
			return err
		}
	}
	return nil
}

type TrafficPoint struct {
	Time  time.Time
	Bytes int64
}

type TrafficSummary struct {
	RxBytes int64
	TxBytes int64
}

// Traffic returns hourly totals for owner over the last hours, and their
// summary. deviceID zero means all of owner's devices.
func Traffic(ctx context.Context, repo repository.Repository, owner string, deviceID int64, hours int) ([]TrafficPoint, TrafficSummary, error) {
	if hours <= 0 {
		hours = DefaultTrafficHours
	}
	if hours > maxTrafficHours {
		return nil, TrafficSummary{}, ValidationError{Msg: fmt.Sprintf("hours must be at most %d", maxTrafficHours)}
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	samples, err := repo.ListTrafficSamples(ctx, owner, deviceID, since)
	if err != nil {
		return nil, TrafficSummary{}, err
	}

	var (
		points  []TrafficPoint
		summary TrafficSummary
	)
	for _, s := range samples {
		summary.RxBytes += s.RxBytes
		summary.TxBytes += s.TxBytes
		bucket := s.Timestamp.UTC().Truncate(time.Hour)
		if n := len(points); n > 0 && points[n-1].Time.Equal(bucket) {
			points[n-1].Bytes += s.RxBytes + s.TxBytes
			continue
		}
		points = append(points, TrafficPoint{Time: bucket, Bytes: s.RxBytes + s.TxBytes})
	}
	return points, summary, nil
}

// Summary totals the device counters of owner, or of one device.
func Summary(ctx context.Context, repo repository.Repository, p Principal, deviceID int64) (TrafficSummary, error) {
	if deviceID != 0 {
		d, err := GetDevice(ctx, repo, p, deviceID)
		if err != nil {
			return TrafficSummary{}, err
		}
		return TrafficSummary{RxBytes: d.RxBytes, TxBytes: d.TxBytes}, nil
	}
	devices, err := ListDevices(ctx, repo, p.Username)
	if err != nil {
		return TrafficSummary{}, err
	}
	var s TrafficSummary
	for _, d := range devices {
		s.RxBytes += d.RxBytes
		s.TxBytes += d.TxBytes
	}
	return s, nil
}

type Access struct {
	User        model.User
	DeviceCount int
	Devices     []model.Device
}

func MyAccess(ctx context.Context, repo repository.Repository, username string) (Access, error) {
	u, err := repo.GetUserByUsername(ctx, username)
	if err != nil {
		return Access{}, err
	}
	devices, _, err := repo.ListDevices(ctx, repository.DeviceFilter{Owner: username, Status: model.DeviceActive})
	if err != nil {
		return Access{}, err
	}
	return Access{User: u, DeviceCount: len(devices), Devices: devices}, nil
}
