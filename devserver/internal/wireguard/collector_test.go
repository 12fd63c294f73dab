package wireguard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type fakeSource struct {
	polls []map[string]PeerStats
	err   error
}

func (f *fakeSource) Stats() (map[string]PeerStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.polls[0]
	f.polls = f.polls[1:]
	return s, nil
}

type report struct {
	Key    string
	Rx, Tx int64
}

func TestCollectorDeltas(t *testing.T) {
	src := &fakeSource{polls: []map[string]PeerStats{
		{"a": {RxBytes: 100, TxBytes: 10}},
		{"a": {RxBytes: 150, TxBytes: 10}, "b": {RxBytes: 5, TxBytes: 1}},
		{"a": {RxBytes: 150, TxBytes: 10}, "b": {RxBytes: 2, TxBytes: 3}},
	}}
	var got []report
	c := &Collector{
		Source: src,
		OnDelta: func(ctx context.Context, key string, rx, tx int64, at time.Time) error {
			got = append(got, report{key, rx, tx})
			return nil
		},
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.collect(context.Background(), now); err != nil {
			t.Fatalf("poll %d: collect() error = %v", i, err)
		}
	}

	want := []report{
		{"a", 50, 0},
		{"b", 5, 1},
		{"b", 2, 2},
	}
	less := func(x, y report) bool {
		if x.Key != y.Key {
			return x.Key < y.Key
		}
		return x.Rx > y.Rx
	}
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(less)); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectorHandshakeTime(t *testing.T) {
	now := time.Now()
	hs := now.Add(-time.Minute)
	src := &fakeSource{polls: []map[string]PeerStats{
		{},
		{"a": {RxBytes: 1, LastHandshake: hs}, "b": {RxBytes: 1, LastHandshake: now.Add(time.Hour)}},
	}}
	at := map[string]time.Time{}
	c := &Collector{
		Source: src,
		OnDelta: func(ctx context.Context, key string, rx, tx int64, t time.Time) error {
			at[key] = t
			return nil
		},
	}
	for i := 0; i < 2; i++ {
		if err := c.collect(context.Background(), now); err != nil {
			t.Fatal(err)
		}
	}
	if !at["a"].Equal(hs) || !at["b"].Equal(now) {
		t.Errorf("report times = %v", at)
	}
}

func TestCollectorSourceError(t *testing.T) {
	c := &Collector{Source: &fakeSource{err: errors.New("no device")}}
	if err := c.collect(context.Background(), time.Now()); err == nil {
		t.Error("collect() succeeded with a failing source")
	}
}

func TestCollectorRunStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Collector{Source: &fakeSource{err: errors.New("unused")}}
	if err := c.Run(ctx); err != nil {
		t.Errorf("Run() = %v", err)
	}
}
