package sqlite_test

import (
	"context"
	"testing"

	sqlitestore "github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

func TestReaderStore_ActivateDeactivate(t *testing.T) {
	conn := openTestDB(t)
	rs := sqlitestore.NewReaderStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if _, err := conn.Exec(`
INSERT INTO readers(reader_id, protocol, pulse_time_ms, has_monitor, monitor_default, max_open_time_ms, sys_plan, active)
VALUES (1, 'wiegand', 5000, 1, 1, 20000, 3, 1);`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := rs.ActiveReaders(ctx)
	if err != nil {
		t.Fatalf("ActiveReaders: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 reader, got %d", len(got))
	}
	r := got[0]
	if r.PulseTime.Milliseconds() != 5000 || r.MaxOpenTime.Milliseconds() != 20000 {
		t.Errorf("durations not mapped: %+v", r)
	}
	if !r.HasMonitor || !r.MonitorDefault || r.SysPlan != 3 || r.Address != nil {
		t.Errorf("unexpected row %+v", r)
	}

	if err := rs.DeactivateAll(ctx); err != nil {
		t.Fatalf("DeactivateAll: %v", err)
	}
	got, _ = rs.ActiveReaders(ctx)
	if len(got) != 0 {
		t.Fatalf("expected no active readers, got %d", len(got))
	}

	addr := 5
	if err := rs.Activate(ctx, types.ReaderInfo{ID: 1, Protocol: types.ProtocolOSDP, Address: &addr, SecureKey: "00ff"}); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	got, _ = rs.ActiveReaders(ctx)
	if len(got) != 1 || got[0].Protocol != types.ProtocolOSDP || got[0].Address == nil || *got[0].Address != 5 {
		t.Fatalf("unexpected activated row %+v", got)
	}
	if got[0].PulseTime.Milliseconds() != 5000 {
		t.Error("activate must keep door settings")
	}

	if err := rs.SetMonitor(ctx, 1, true); err != nil {
		t.Fatalf("SetMonitor: %v", err)
	}
	var monitor int
	_ = conn.QueryRow(`SELECT monitor FROM readers WHERE reader_id = 1`).Scan(&monitor)
	if monitor != 1 {
		t.Errorf("monitor = %d, want 1", monitor)
	}
}
