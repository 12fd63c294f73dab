package async

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

func TestStaleTicketDropped(t *testing.T) {
	var v Value[string]
	if v.State() != Idle {
		t.Fatalf("State() = %v, want idle", v.State())
	}

	first := v.Begin()
	second := v.Begin()

	if !v.Resolve(second, "new") {
		t.Fatal("Resolve(latest) = false")
	}
	if v.Resolve(first, "old") {
		t.Error("Resolve(stale) = true")
	}
	if v.Reject(first, errors.New("late failure")) {
		t.Error("Reject(stale) = true")
	}

	state, val, err := v.Snapshot()
	if state != Resolved || val != "new" || err != nil {
		t.Errorf("Snapshot() = %v, %q, %v", state, val, err)
	}
}

func TestSettleOnlyOnce(t *testing.T) {
	var v Value[int]
	tk := v.Begin()
	if !v.Reject(tk, errors.New("boom")) {
		t.Fatal("Reject() = false")
	}
	if v.Resolve(tk, 1) {
		t.Error("Resolve() after Reject = true")
	}
	if state, _, err := v.Snapshot(); state != Rejected || err == nil {
		t.Errorf("Snapshot() = %v, %v", state, err)
	}
}

func TestPendingKeepsLastValue(t *testing.T) {
	var v Value[int]
	v.Resolve(v.Begin(), 7)

	tk := v.Begin()
	state, val, _ := v.Snapshot()
	if state != Pending || val != 7 {
		t.Errorf("Snapshot() while pending = %v, %d", state, val)
	}
	if v.Settled() != Resolved {
		t.Errorf("Settled() = %v, want resolved", v.Settled())
	}

	if !v.Cancel(tk) {
		t.Fatal("Cancel() = false")
	}
	if v.State() != Resolved {
		t.Errorf("State() after Cancel = %v, want resolved", v.State())
	}
	if v.Resolve(tk, 8) {
		t.Error("Resolve() after Cancel = true")
	}
}

func TestRun(t *testing.T) {
	var v Value[string]
	ok := v.Run(context.Background(), func(context.Context) (string, error) { return "done", nil })
	if !ok || v.State() != Resolved {
		t.Errorf("Run() = %v, State() = %v", ok, v.State())
	}

	ok = v.Run(context.Background(), func(context.Context) (string, error) { return "", errors.New("nope") })
	if !ok || v.State() != Rejected {
		t.Errorf("Run(failing) = %v, State() = %v", ok, v.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok = v.Run(ctx, func(ctx context.Context) (string, error) { return "", ctx.Err() })
	if ok {
		t.Error("Run(cancelled) = true")
	}
	if v.State() != Rejected {
		t.Errorf("State() after cancelled Run = %v, want previous rejected", v.State())
	}
}

func TestRunSupersededByNewerFetch(t *testing.T) {
	var v Value[int]
	release := make(chan struct{})
	done := make(chan bool)

	go func() {
		done <- v.Run(context.Background(), func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
	}()

	// Wait until the slow fetch has started.
	for v.State() != Pending {
		runtime.Gosched()
	}
	if !v.Run(context.Background(), func(context.Context) (int, error) { return 2, nil }) {
		t.Fatal("newer Run() = false")
	}
	close(release)
	if <-done {
		t.Error("superseded Run() = true")
	}
	if _, val, _ := v.Snapshot(); val != 2 {
		t.Errorf("value = %d, want 2", val)
	}
}
