package store

import (
	"context"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// AccessEventStore is the local access log.
type AccessEventStore interface {
	// RecordEvent appends rec and returns its row id.
	RecordEvent(ctx context.Context, rec types.AccessRecord) (int64, error)
	// EventsWithStatus returns records whose status is in statuses, oldest first.
	EventsWithStatus(ctx context.Context, statuses ...types.Status) ([]types.AccessRecord, error)
	UpdateStatus(ctx context.Context, id int64, status types.Status) error
}
