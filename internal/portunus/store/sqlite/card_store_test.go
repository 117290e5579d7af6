package sqlite_test

import (
	"context"
	"testing"

	sqlitestore "github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// Grant / check / remove
// ═══════════════════════════════════════════════════════════════════════════

func TestCardStore_GrantCheckRemove(t *testing.T) {
	conn := openTestDB(t)
	cs := sqlitestore.NewCardStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	ok, err := cs.CheckAccess(ctx, "00001 0000001", 1)
	if err != nil || ok {
		t.Fatalf("unknown card: got %v, %v", ok, err)
	}

	if err := cs.GrantAccess(ctx, types.CardRecord{CardID: "00001 0000001", ReaderID: 1, PlanID: 4, Note: types.ConfigModeNote}); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	ok, _ = cs.CheckAccess(ctx, "00001 0000001", 1)
	if !ok {
		t.Error("expected access on reader 1")
	}
	ok, _ = cs.CheckAccess(ctx, "00001 0000001", 2)
	if ok {
		t.Error("grant must be per reader")
	}

	plan, _ := cs.CardPlan(ctx, "00001 0000001", 1)
	if plan != 4 {
		t.Errorf("plan = %d, want 4", plan)
	}

	if err := cs.RemoveAccess(ctx, "00001 0000001", 1); err != nil {
		t.Fatalf("RemoveAccess: %v", err)
	}
	ok, _ = cs.CheckAccess(ctx, "00001 0000001", 1)
	if ok {
		t.Error("expected no access after removal")
	}
	plan, _ = cs.CardPlan(ctx, "00001 0000001", 1)
	if plan != 0 {
		t.Errorf("plan of removed card = %d, want 0", plan)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// ReplaceAll
// ═══════════════════════════════════════════════════════════════════════════

func TestCardStore_ReplaceAll(t *testing.T) {
	conn := openTestDB(t)
	cs := sqlitestore.NewCardStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	_ = cs.GrantAccess(ctx, types.CardRecord{CardID: "old", ReaderID: 1})

	err := cs.ReplaceAll(ctx, []types.CardRecord{
		{CardID: "new", ReaderID: 1, Allowed: true},
		{CardID: "blocked", ReaderID: 1, Allowed: false},
		{CardID: "gone", ReaderID: 2, Allowed: true, Deleted: true},
	})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	cases := []struct {
		card   string
		reader int
		want   bool
	}{
		{"old", 1, false},
		{"new", 1, true},
		{"blocked", 1, false},
		{"gone", 2, false},
	}
	for _, c := range cases {
		got, err := cs.CheckAccess(ctx, c.card, c.reader)
		if err != nil {
			t.Fatalf("CheckAccess %s: %v", c.card, err)
		}
		if got != c.want {
			t.Errorf("CheckAccess(%s, %d) = %v, want %v", c.card, c.reader, got, c.want)
		}
	}
}
