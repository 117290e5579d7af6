package store

import (
	"context"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// ReaderStore persists reader rows.
type ReaderStore interface {
	// ActiveReaders returns active rows ordered by reader id.
	ActiveReaders(ctx context.Context) ([]types.ReaderInfo, error)
	DeactivateAll(ctx context.Context) error
	// Activate upserts reader info.ID as active with the given protocol data.
	Activate(ctx context.Context, info types.ReaderInfo) error
	SetMonitor(ctx context.Context, readerID int, open bool) error
}
