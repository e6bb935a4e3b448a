package client

import (
	"context"
	"sync"
)

// Optimistic is a two-phase local value: Apply shows the proposed value
// immediately, then confirms the server's answer or rolls back on failure.
// Completions that arrive after a newer Apply are ignored.
type Optimistic[T any] struct {
	mu        sync.Mutex
	confirmed T
	pending   *T
	seq       uint64
	settled   uint64
}

// NewOptimistic starts with a confirmed value.
func NewOptimistic[T any](initial T) *Optimistic[T] {
	return &Optimistic[T]{confirmed: initial}
}

// Value returns the pending value when one exists, else the confirmed value.
func (o *Optimistic[T]) Value() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending != nil {
		return *o.pending
	}
	return o.confirmed
}

// Confirmed returns the last value acknowledged by the server.
func (o *Optimistic[T]) Confirmed() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.confirmed
}

// Pending reports whether a mutation is in flight.
func (o *Optimistic[T]) Pending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending != nil
}

// Apply shows next, runs commit, and settles with its result.
func (o *Optimistic[T]) Apply(ctx context.Context, next T, commit func(ctx context.Context) (T, error)) (T, error) {
	o.mu.Lock()
	o.seq++
	seq := o.seq
	proposed := next
	o.pending = &proposed
	o.mu.Unlock()

	result, err := commit(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil && seq > o.settled {
		o.confirmed = result
		o.settled = seq
	}
	if seq == o.seq {
		o.pending = nil
	}
	if err != nil {
		return o.confirmed, err
	}
	return result, nil
}

// Reset drops any pending value and sets the confirmed value, e.g. after a re-read.
func (o *Optimistic[T]) Reset(v T) {
	o.mu.Lock()
	o.confirmed = v
	o.pending = nil
	o.settled = o.seq
	o.mu.Unlock()
}
