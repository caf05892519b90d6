// Package store persists whole tournament snapshots. Saves replace the previous
// snapshot entirely; the last write wins.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot is an opaque, versioned payload (JSON-encoded tournament state).
type Snapshot struct {
	Version int64
	Payload []byte
	SavedAt time.Time
}

type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}
