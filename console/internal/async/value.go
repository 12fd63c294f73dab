// Package async tracks the lifecycle of a value fetched in the background.
//
// Each fetch is started with Begin, which hands out a ticket. Only the
// holder of the latest ticket may settle the value, so a slow response that
// was superseded by a newer fetch is dropped instead of overwriting it.
package async

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Pending
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "idle"
	}
}

// Ticket identifies one fetch.
type Ticket struct {
	id uuid.UUID
}

func (t Ticket) String() string {
	return t.id.String()
}

type Value[T any] struct {
	mu     sync.Mutex
	state  State
	value  T
	err    error
	ticket uuid.UUID

	// settled is the state restored when a fetch is cancelled.
	settled State
}

// Begin marks the value pending and invalidates any earlier ticket. The
// last settled value stays readable while pending.
func (v *Value[T]) Begin() Ticket {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ticket = uuid.New()
	v.state = Pending
	return Ticket{id: v.ticket}
}

// Resolve stores val if t is still current and reports whether it did.
func (v *Value[T]) Resolve(t Ticket, val T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.id != v.ticket || v.state != Pending {
		return false
	}
	v.state, v.settled = Resolved, Resolved
	v.value = val
	v.err = nil
	return true
}

// Reject stores err if t is still current and reports whether it did.
func (v *Value[T]) Reject(t Ticket, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.id != v.ticket || v.state != Pending {
		return false
	}
	v.state, v.settled = Rejected, Rejected
	v.err = err
	return true
}

// Cancel drops the in-flight fetch, returning to the previous settled state
// (or Idle when nothing has settled yet).
func (v *Value[T]) Cancel(t Ticket) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.id != v.ticket || v.state != Pending {
		return false
	}
	v.ticket = uuid.Nil
	v.state = v.settled
	return true
}

func (v *Value[T]) Snapshot() (State, T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.value, v.err
}

// Settled returns the outcome of the last fetch that settled. Unlike State
// it does not change while a newer fetch is pending.
func (v *Value[T]) Settled() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.settled
}

func (v *Value[T]) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Run performs fn as one fetch. It returns false when the result was
// discarded because a newer fetch started or ctx was cancelled.
func (v *Value[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) bool {
	t := v.Begin()
	val, err := fn(ctx)
	if ctx.Err() != nil {
		v.Cancel(t)
		return false
	}
	if err != nil {
		return v.Reject(t, err)
	}
	return v.Resolve(t, val)
}
