package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/authority"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

// Health tracks whether the online authority answers.
type Health struct {
	online   authority.Authority
	logger   *zap.Logger
	ready    atomic.Bool
	onChange func(ready bool)

	// lastAccess is the unix nano time the authority last answered.
	lastAccess atomic.Int64
}

// NewHealth returns a tracker. onChange, if set, is called on every check
// with the current state so status indicators stay in step.
func NewHealth(online authority.Authority, logger *zap.Logger, onChange func(ready bool)) *Health {
	h := &Health{online: online, logger: logger.Named("health"), onChange: onChange}
	h.touch()
	return h
}

func (h *Health) Ready() bool { return h.ready.Load() }

func (h *Health) touch() { h.lastAccess.Store(time.Now().UnixNano()) }

// Idle is the time since the authority last answered a call.
func (h *Health) Idle() time.Duration {
	return time.Since(time.Unix(0, h.lastAccess.Load()))
}

// Check asks the authority once and returns the new state.
func (h *Health) Check(ctx context.Context) bool {
	ready := h.online.CheckConnection(ctx)
	if ready {
		h.touch()
	}
	if old := h.ready.Swap(ready); old != ready {
		h.logger.Info("online authority readiness changed", zap.String("authority", h.online.Name()), zap.Bool("ready", ready))
	}
	if h.onChange != nil {
		h.onChange(ready)
	}
	return ready
}

// Run checks the authority once it has been idle for interval, until ctx is
// cancelled. Calls made through Track count as answers.
func (h *Health) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	for taskmgr.Sleep(ctx, interval) {
		if h.Idle() >= interval {
			h.Check(ctx)
		}
	}
}

// Track wraps the authority so every call it answers postpones the next
// check.
func (h *Health) Track() authority.Authority {
	return tracked{Authority: h.online, health: h}
}

type tracked struct {
	authority.Authority
	health *Health
}

func (t tracked) LoadAllCards(ctx context.Context) ([]types.CardRecord, error) {
	recs, err := t.Authority.LoadAllCards(ctx)
	if err == nil {
		t.health.touch()
	}
	return recs, err
}

func (t tracked) LoadAllTimePlans(ctx context.Context) ([]types.TimePlanRecord, error) {
	recs, err := t.Authority.LoadAllTimePlans(ctx)
	if err == nil {
		t.health.touch()
	}
	return recs, err
}

func (t tracked) OpenDoorOnline(ctx context.Context, cred types.Credential, at time.Time) types.Status {
	st := t.Authority.OpenDoorOnline(ctx, cred, at)
	if !st.IsInsertFailed() {
		t.health.touch()
	}
	return st
}

func (t tracked) InsertToAccess(ctx context.Context, rec types.AccessRecord) types.Status {
	st := t.Authority.InsertToAccess(ctx, rec)
	if !st.IsInsertFailed() {
		t.health.touch()
	}
	return st
}
