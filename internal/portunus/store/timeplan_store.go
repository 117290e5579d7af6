package store

import (
	"context"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

type TimePlanStore interface {
	TimePlans(ctx context.Context) ([]types.TimePlanRecord, error)
	// ReplaceTimePlans swaps the whole time plan table atomically.
	ReplaceTimePlans(ctx context.Context, recs []types.TimePlanRecord) error
}
