package tokencache

import (
	"context"
)

// Store persists a single token record
type Store interface {
	// Load returns the stored record, or nil when nothing is stored
	Load(ctx context.Context) (*Record, error)

	// Save replaces the stored record
	Save(ctx context.Context, r *Record) error

	// CheckHealth verifies the storage backend is usable
	CheckHealth(ctx context.Context) error
}
