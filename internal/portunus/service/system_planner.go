package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// SystemPlanner applies each door's system time plan without a card:
// entering a silent-open window holds the door open, leaving it closes the
// door again. Plans are re-evaluated once per started minute.
type SystemPlanner struct {
	unit   Unit
	plans  Planner
	clk    clock.Clock
	logger *zap.Logger

	mu      sync.RWMutex
	current map[int]types.Action
	applied map[int]types.Action
}

func NewSystemPlanner(u Unit, plans Planner, clk clock.Clock, logger *zap.Logger) *SystemPlanner {
	return &SystemPlanner{
		unit:    u,
		plans:   plans,
		clk:     clk,
		logger:  logger.Named("sysplan"),
		current: make(map[int]types.Action),
		applied: make(map[int]types.Action),
	}
}

// Current is the action the system plan of readerID applies right now.
func (p *SystemPlanner) Current(readerID int) types.Action {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current[readerID]
}

// Tick re-evaluates every system plan and drives the doors whose action
// changed since the last tick.
func (p *SystemPlanner) Tick() {
	next := make(map[int]types.Action)
	for readerID, planID := range p.unit.SysPlanIDs() {
		next[readerID] = p.plans.Action(planID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = next
	for readerID, action := range next {
		prev := p.applied[readerID]
		if prev == action {
			continue
		}
		switch {
		case action == types.ActionSilentOpen:
			p.logger.Info("system plan opens door", zap.Int("reader", readerID))
			p.unit.PermanentOpenDoor(readerID)
		case prev == types.ActionSilentOpen:
			p.logger.Info("system plan closes door", zap.Int("reader", readerID))
			p.unit.CloseDoor(readerID)
		}
		p.applied[readerID] = action
	}
}

// Run ticks immediately and then at every minute change, checking every
// poll, until ctx is cancelled.
func (p *SystemPlanner) Run(ctx context.Context, poll time.Duration) {
	if poll <= 0 {
		poll = time.Second
	}
	p.Tick()
	last := p.clk.Now().Truncate(time.Minute)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m := p.clk.Now().Truncate(time.Minute); !m.Equal(last) {
				last = m
				p.Tick()
			}
		}
	}
}
