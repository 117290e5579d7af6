package sqlite_test

import (
	"context"
	"testing"

	sqlitestore "github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

func TestTimePlanStore_ReplaceAndLoad(t *testing.T) {
	conn := openTestDB(t)
	ts := sqlitestore.NewTimePlanStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	rec := types.TimePlanRecord{ID: 7, Name: "office", Action: types.ActionSilentOpen}
	for i := range rec.Times {
		rec.Times[i] = "00:00:00"
	}
	rec.Times[0], rec.Times[1], rec.Times[2], rec.Times[3] = "08:00:00", "12:00:00", "13:00:00", "17:00:00"

	if err := ts.ReplaceTimePlans(ctx, []types.TimePlanRecord{rec}); err != nil {
		t.Fatalf("ReplaceTimePlans: %v", err)
	}

	got, err := ts.TimePlans(ctx)
	if err != nil {
		t.Fatalf("TimePlans: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(got))
	}
	if got[0] != rec {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got[0], rec)
	}

	if err := ts.ReplaceTimePlans(ctx, nil); err != nil {
		t.Fatalf("ReplaceTimePlans empty: %v", err)
	}
	got, _ = ts.TimePlans(ctx)
	if len(got) != 0 {
		t.Errorf("expected table cleared, got %d", len(got))
	}
}
