package service_test

import (
	"context"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/authority"
	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// ── System plans ─────────────────────────────────────────────────────────────

func TestSystemPlanner_OpensAndClosesOnChange(t *testing.T) {
	u := newFakeUnit()
	u.sysPlans[1] = 5
	u.sysPlans[2] = 0
	planner := &fakePlanner{}
	planner.set(5, types.ActionSilentOpen)
	planner.set(0, types.ActionPulse)

	sys := service.NewSystemPlanner(u, planner, clock.NewFake(testNow), zap.NewNop())
	sys.Tick()
	sys.Tick()
	if calls := u.Calls(); !slices.Equal(calls, []string{"permanent 1"}) {
		t.Fatalf("expected a single permanent open of door 1, got %v", calls)
	}
	if sys.Current(1) != types.ActionSilentOpen || sys.Current(2) != types.ActionPulse {
		t.Errorf("unexpected current actions %v %v", sys.Current(1), sys.Current(2))
	}

	planner.set(5, types.ActionNone)
	sys.Tick()
	if calls := u.Calls(); !slices.Equal(calls, []string{"permanent 1", "close 1"}) {
		t.Fatalf("expected door 1 closed when the window ends, got %v", calls)
	}
}

func TestSystemPlanner_RunTicksOnMinuteChange(t *testing.T) {
	u := newFakeUnit()
	u.sysPlans[1] = 5
	planner := &fakePlanner{}
	planner.set(5, types.ActionNone)
	clk := clock.NewFake(testNow)
	sys := service.NewSystemPlanner(u, planner, clk, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sys.Run(ctx, time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	planner.set(5, types.ActionSilentOpen)
	time.Sleep(10 * time.Millisecond)
	if len(u.Calls()) != 0 {
		t.Fatal("expected no change before the minute rolls over")
	}

	clk.Advance(time.Minute)
	deadline := time.Now().Add(time.Second)
	for len(u.Calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if calls := u.Calls(); !slices.Equal(calls, []string{"permanent 1"}) {
		t.Fatalf("expected permanent open after minute change, got %v", calls)
	}
}

// ── Resync ───────────────────────────────────────────────────────────────────

func TestResyncer_RepairsEveryRetryableBase(t *testing.T) {
	ctx := context.Background()
	events := memory.NewAccessEventStore()
	for _, s := range types.InsertFailedStatuses() {
		if _, err := events.RecordEvent(ctx, types.AccessRecord{CardID: "1", ReaderID: 1, Status: s}); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
	// not retried
	if _, err := events.RecordEvent(ctx, types.AccessRecord{CardID: "2", ReaderID: 1, Status: types.StatusDeny}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	online := &fakeAuthority{insertOK: true}
	r := service.NewResyncer(events, online, nil, 0, zap.NewNop())
	if n := r.ResyncOnce(ctx); n != len(types.RetryableStatuses) {
		t.Fatalf("expected %d repaired, got %d", len(types.RetryableStatuses), n)
	}

	for i, ev := range events.Events()[:len(types.RetryableStatuses)] {
		want := types.InsertFailedStatuses()[i] - types.InsertFailedOffset
		if ev.Status != want {
			t.Errorf("record %d: expected %d, got %d", ev.ID, want, ev.Status)
		}
	}
	if len(online.Inserted()) != len(types.RetryableStatuses) {
		t.Errorf("expected only failed records resent, got %d inserts", len(online.Inserted()))
	}
}

func TestResyncer_RunWaitsForReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := memory.NewAccessEventStore()
	if _, err := events.RecordEvent(ctx, types.AccessRecord{Status: types.StatusDenyInsertFailed}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	online := &fakeAuthority{insertOK: true}
	ready := &dirtyFlag{}
	r := service.NewResyncer(events, online, ready.isDirty, 2*time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	if len(online.Inserted()) != 0 {
		t.Fatal("expected no resync while not ready")
	}
	ready.MarkDirty()
	deadline := time.Now().Add(time.Second)
	for len(online.Inserted()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if ev := events.Events()[0]; ev.Status != types.StatusDeny {
		t.Errorf("expected 716 after resync, got %d", ev.Status)
	}
}

// ── Cache sync ───────────────────────────────────────────────────────────────

type countingLoader struct{ recs []types.TimePlanRecord }

func (l *countingLoader) Load(recs []types.TimePlanRecord) int {
	l.recs = recs
	return 0
}

func TestCacheSync_ReplacesCardsAndPlans(t *testing.T) {
	ctx := context.Background()
	online := &fakeAuthority{
		cards: []types.CardRecord{{CardID: "A", ReaderID: 1, Allowed: true}, {CardID: "B", ReaderID: 2, Allowed: true}},
		plans: []types.TimePlanRecord{{ID: 4, Action: types.ActionSilentOpen}},
	}
	cards := memory.NewCardStore(types.CardRecord{CardID: "old", ReaderID: 1, Allowed: true})
	plans := memory.NewTimePlanStore()
	loader := &countingLoader{}
	cs := service.NewCacheSync(online, cards, plans, loader, clock.NewFake(testNow), zap.NewNop())

	if !cs.Dirty() {
		t.Fatal("expected a new cache sync to start dirty")
	}
	if err := cs.SyncIfDirty(ctx); err != nil {
		t.Fatalf("SyncIfDirty: %v", err)
	}
	if cs.Dirty() {
		t.Error("expected cache clean after sync")
	}
	if cards.Len() != 2 {
		t.Errorf("expected 2 cards, got %d", cards.Len())
	}
	if ok, _ := cards.CheckAccess(ctx, "old", 1); ok {
		t.Error("expected stale card removed")
	}
	stored, _ := plans.TimePlans(ctx)
	if len(stored) != 1 || len(loader.recs) != 1 {
		t.Errorf("expected plans stored and loaded, got %d/%d", len(stored), len(loader.recs))
	}
}

func TestCacheSync_RunSyncsOnceAuthorityReady(t *testing.T) {
	online := &fakeAuthority{cards: []types.CardRecord{{CardID: "A", ReaderID: 1, Allowed: true}}}
	cards := memory.NewCardStore()
	cs := service.NewCacheSync(online, cards, memory.NewTimePlanStore(), &countingLoader{}, clock.NewFake(testNow), zap.NewNop())

	var ready atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cs.Run(ctx, 2*time.Millisecond, ready.Load)
	}()

	time.Sleep(20 * time.Millisecond)
	if cards.Len() != 0 || !cs.Dirty() {
		t.Fatal("expected no sync while the authority is not ready")
	}
	ready.Store(true)
	deadline := time.Now().Add(time.Second)
	for cs.Dirty() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if cards.Len() != 1 {
		t.Errorf("expected 1 synced card, got %d", cards.Len())
	}
}

func TestCacheSync_UnsupportedTimePlansKeepLocal(t *testing.T) {
	ctx := context.Background()
	online := &fakeAuthority{plansErr: authority.ErrUnsupported}
	plans := memory.NewTimePlanStore(types.TimePlanRecord{ID: 7})
	loader := &countingLoader{}
	cs := service.NewCacheSync(online, memory.NewCardStore(), plans, loader, clock.NewFake(testNow), zap.NewNop())

	if err := cs.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	stored, _ := plans.TimePlans(ctx)
	if len(stored) != 1 || loader.recs != nil {
		t.Error("expected local time plans untouched")
	}
}

func TestDailySyncTime_WithinFirstHour(t *testing.T) {
	for range 100 {
		d := service.DailySyncTime()
		if d < 0 || d > time.Hour {
			t.Fatalf("sync time %v outside [0, 1h]", d)
		}
	}
}

// ── Health ───────────────────────────────────────────────────────────────────

func TestHealth_Check(t *testing.T) {
	online := &fakeAuthority{}
	var seen []bool
	h := service.NewHealth(online, zap.NewNop(), func(r bool) { seen = append(seen, r) })

	if h.Check(context.Background()) || h.Ready() {
		t.Fatal("expected unreachable authority to be not ready")
	}
	online.mu.Lock()
	online.reachable = true
	online.mu.Unlock()
	if !h.Check(context.Background()) || !h.Ready() {
		t.Fatal("expected reachable authority to be ready")
	}
	if !slices.Equal(seen, []bool{false, true}) {
		t.Errorf("unexpected callbacks %v", seen)
	}
}

func TestHealth_RunChecksOnlyWhenIdle(t *testing.T) {
	online := &fakeAuthority{reachable: true, openResult: types.StatusDenyCardNotFound}
	h := service.NewHealth(online, zap.NewNop(), nil)
	tracked := h.Track()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx, 20*time.Millisecond)
	}()

	// steady traffic keeps the authority busy, so no check is needed
	busyUntil := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(busyUntil) {
		tracked.OpenDoorOnline(ctx, types.Credential{ReaderID: 1, CardID: "0000"}, testNow)
		time.Sleep(2 * time.Millisecond)
	}
	if n := online.Checks(); n != 0 {
		t.Fatalf("expected no checks while the authority answers calls, got %d", n)
	}

	deadline := time.Now().Add(time.Second)
	for online.Checks() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if online.Checks() == 0 {
		t.Fatal("expected a check once the authority went idle")
	}
	if !h.Ready() {
		t.Error("expected reachable authority to be ready")
	}
}

func TestHealth_FailedCallsDoNotCountAsAnswers(t *testing.T) {
	online := &fakeAuthority{openResult: types.StatusDenyInsertFailed}
	h := service.NewHealth(online, zap.NewNop(), nil)

	time.Sleep(10 * time.Millisecond)
	h.Track().OpenDoorOnline(context.Background(), types.Credential{ReaderID: 1, CardID: "0000"}, testNow)
	if h.Idle() < 10*time.Millisecond {
		t.Errorf("failed call reset idle time to %v", h.Idle())
	}
	h.Track().InsertToAccess(context.Background(), types.AccessRecord{ReaderID: 1, Status: types.StatusAllow})
	if h.Idle() < 10*time.Millisecond {
		t.Errorf("failed insert reset idle time to %v", h.Idle())
	}
}
