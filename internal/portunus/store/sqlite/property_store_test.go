package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	sqlitestore "github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/sqlite"
)

func TestPropertyStore_SetThenGet(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlitestore.NewPropertyStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := ps.SetProp(ctx, store.TableConfigDU, "mode", "0"); err != nil {
		t.Fatalf("SetProp: %v", err)
	}
	if err := ps.SetProp(ctx, store.TableConfigDU, "mode", "1"); err != nil {
		t.Fatalf("SetProp overwrite: %v", err)
	}

	v, err := ps.GetProp(ctx, store.TableConfigDU, "mode")
	if err != nil {
		t.Fatalf("GetProp: %v", err)
	}
	if v != "1" {
		t.Errorf("mode = %q, want 1", v)
	}

	// Same key in the other table is independent.
	if _, err := ps.GetProp(ctx, store.TableRunning, "mode"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound from running.mode, got %v", err)
	}
}

func TestPropertyStore_UnknownTable(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlitestore.NewPropertyStore(conn, newTestWriter(t, conn))

	if err := ps.SetProp(context.Background(), "Readers", "x", "1"); !errors.Is(err, store.ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}
