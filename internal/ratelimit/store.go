package ratelimit

import (
	"context"
	"time"
)

// Record is the counter state for one derived key under one policy.
type Record struct {
	Key           string
	Count         int
	WindowResetAt time.Time
}

// Expired reports whether the window has closed. A request arriving exactly
// at WindowResetAt starts a new window.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.WindowResetAt)
}

// CounterStore holds the records of a single policy. Take performs the whole
// read-decide-write step atomically for key.
type CounterStore interface {
	// Take starts a new window when none is open, increments the count when
	// it is below max, and otherwise denies without touching the record.
	Take(ctx context.Context, key string, max int, window time.Duration, now time.Time) (Record, bool, error)

	// Get returns the live record for key, if any.
	Get(ctx context.Context, key string, now time.Time) (Record, bool, error)

	// Reset forgets key.
	Reset(ctx context.Context, key string) error
}

// StoreFactory builds the store owned by the named policy. It is called once
// per policy name.
type StoreFactory func(policy string) CounterStore

// stopper is implemented by stores that run background work.
type stopper interface {
	Stop()
}
