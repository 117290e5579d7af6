package store

import (
	"context"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// CardStore is the local authority.
type CardStore interface {
	// CheckAccess reports whether card is allowed (and not deleted) on reader.
	CheckAccess(ctx context.Context, cardID string, readerID int) (bool, error)
	// CardPlan returns the card's time plan on reader, or 0 when unknown.
	CardPlan(ctx context.Context, cardID string, readerID int) (int, error)
	GrantAccess(ctx context.Context, rec types.CardRecord) error
	RemoveAccess(ctx context.Context, cardID string, readerID int) error
	// ReplaceAll swaps the whole card table atomically.
	ReplaceAll(ctx context.Context, recs []types.CardRecord) error
}
