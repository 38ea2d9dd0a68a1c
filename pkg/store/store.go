// Package store persists the reference server's counters.
package store

import (
	"context"

	"github.com/HMasataka/livecount/pkg/domain"
)

// Store holds the authoritative counter values
type Store interface {
	// Set stores value under name, creating the counter if needed
	Set(ctx context.Context, name domain.CounterName, value int64) error

	// Add adds delta to name and returns the result. Missing counters start
	// at zero.
	Add(ctx context.Context, name domain.CounterName, delta int64) (int64, error)

	// Delete removes name and reports whether it existed
	Delete(ctx context.Context, name domain.CounterName) (bool, error)

	// All returns every counter
	All(ctx context.Context) (domain.Snapshot, error)

	// Close releases the store
	Close() error
}
