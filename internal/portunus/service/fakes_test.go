package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/unit/internal/authority"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/reader"
)

// fakeUnit records door commands. Door sensors and relay state are set by
// the test.
type fakeUnit struct {
	mu         sync.Mutex
	calls      []string
	signals    []int
	opening    map[int]bool
	permanent  map[int]bool
	doorOpen   map[int]bool
	hasMonitor map[int]bool
	monitor    map[int]bool
	sysPlans   map[int]int
	pulse      time.Duration
	maxOpen    time.Duration
}

func newFakeUnit() *fakeUnit {
	return &fakeUnit{
		opening:    map[int]bool{},
		permanent:  map[int]bool{},
		doorOpen:   map[int]bool{},
		hasMonitor: map[int]bool{},
		monitor:    map[int]bool{},
		sysPlans:   map[int]int{},
		pulse:      20 * time.Millisecond,
		maxOpen:    30 * time.Millisecond,
	}
}

func (f *fakeUnit) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeUnit) OpenDoor(id int, _ time.Duration) { f.record(fmt.Sprintf("open %d", id)) }
func (f *fakeUnit) CloseDoor(id int)                 { f.record(fmt.Sprintf("close %d", id)) }
func (f *fakeUnit) PermanentOpenDoor(id int)         { f.record(fmt.Sprintf("permanent %d", id)) }
func (f *fakeUnit) ReverseDoor(id int)               { f.record(fmt.Sprintf("reverse %d", id)) }

func (f *fakeUnit) IsOpening(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opening[id]
}

func (f *fakeUnit) IsPermanentOpen(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permanent[id]
}

func (f *fakeUnit) HasMonitor(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMonitor[id]
}

func (f *fakeUnit) IsDoorOpen(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doorOpen[id]
}

func (f *fakeUnit) SetMonitor(_ context.Context, id int, level bool) {
	f.mu.Lock()
	f.monitor[id] = level
	f.mu.Unlock()
}

func (f *fakeUnit) PulseTime(int) time.Duration   { return f.pulse }
func (f *fakeUnit) MaxOpenTime(int) time.Duration { return f.maxOpen }

func (f *fakeUnit) SysPlanIDs() map[int]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]int, len(f.sysPlans))
	for k, v := range f.sysPlans {
		out[k] = v
	}
	return out
}

func (f *fakeUnit) SetSignal(readerID int, _ reader.Signal) {
	f.mu.Lock()
	f.signals = append(f.signals, readerID)
	f.mu.Unlock()
}

func (f *fakeUnit) setDoorOpen(id int, open bool) {
	f.mu.Lock()
	f.doorOpen[id] = open
	f.mu.Unlock()
}

func (f *fakeUnit) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeUnit) Signals() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.signals...)
}

// fakePlanner maps plan ids to actions; unknown plans pulse.
type fakePlanner struct {
	mu      sync.Mutex
	actions map[int]types.Action
}

func (p *fakePlanner) Action(planID int) types.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.actions[planID]; ok {
		return a
	}
	return types.ActionPulse
}

func (p *fakePlanner) set(planID int, a types.Action) {
	p.mu.Lock()
	if p.actions == nil {
		p.actions = map[int]types.Action{}
	}
	p.actions[planID] = a
	p.mu.Unlock()
}

// fakeAuthority answers online checks with openResult and accepts inserts
// while insertOK is set.
type fakeAuthority struct {
	mu         sync.Mutex
	openResult types.Status
	insertOK   bool
	reachable  bool
	inserted   []types.AccessRecord
	cards      []types.CardRecord
	plans      []types.TimePlanRecord
	plansErr   error
	checks     int
}

func (a *fakeAuthority) Name() string { return "fake" }

func (a *fakeAuthority) LoadAllCards(context.Context) ([]types.CardRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cards, nil
}

func (a *fakeAuthority) LoadAllTimePlans(context.Context) ([]types.TimePlanRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plans, a.plansErr
}

func (a *fakeAuthority) OpenDoorOnline(context.Context, types.Credential, time.Time) types.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openResult
}

func (a *fakeAuthority) InsertToAccess(_ context.Context, rec types.AccessRecord) types.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inserted = append(a.inserted, rec)
	if a.insertOK {
		return rec.Status
	}
	return rec.Status.InsertFailed()
}

func (a *fakeAuthority) CheckConnection(context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks++
	return a.reachable
}

func (a *fakeAuthority) Checks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checks
}

func (a *fakeAuthority) setInsertOK(ok bool) {
	a.mu.Lock()
	a.insertOK = ok
	a.mu.Unlock()
}

func (a *fakeAuthority) Inserted() []types.AccessRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.AccessRecord(nil), a.inserted...)
}

var _ authority.Authority = (*fakeAuthority)(nil)

type fakePublisher struct {
	mu    sync.Mutex
	creds []types.Credential
}

func (p *fakePublisher) PublishCard(_ context.Context, c types.Credential) error {
	p.mu.Lock()
	p.creds = append(p.creds, c)
	p.mu.Unlock()
	return nil
}

type dirtyFlag struct {
	mu    sync.Mutex
	dirty bool
}

func (d *dirtyFlag) MarkDirty() {
	d.mu.Lock()
	d.dirty = true
	d.mu.Unlock()
}

func (d *dirtyFlag) isDirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}
