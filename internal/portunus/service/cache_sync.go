package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/authority"
	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// PlanLoader replaces the parsed time plans.
type PlanLoader interface {
	Load(recs []types.TimePlanRecord) int
}

// CacheSync copies cards and time plans from the online authority into the
// local stores. It starts dirty so the first pass after mode entry syncs.
type CacheSync struct {
	online authority.Authority
	cards  store.CardStore
	plans  store.TimePlanStore
	engine PlanLoader
	clk    clock.Clock
	logger *zap.Logger
	dirty  atomic.Bool
}

func NewCacheSync(online authority.Authority, cards store.CardStore, plans store.TimePlanStore, engine PlanLoader, clk clock.Clock, logger *zap.Logger) *CacheSync {
	c := &CacheSync{
		online: online,
		cards:  cards,
		plans:  plans,
		engine: engine,
		clk:    clk,
		logger: logger.Named("cachesync"),
	}
	c.dirty.Store(true)
	return c
}

func (c *CacheSync) MarkDirty() { c.dirty.Store(true) }

func (c *CacheSync) Dirty() bool { return c.dirty.Load() }

// SyncIfDirty syncs when the cache is marked dirty. A failed sync leaves
// it dirty for the next pass.
func (c *CacheSync) SyncIfDirty(ctx context.Context) error {
	if !c.dirty.CompareAndSwap(true, false) {
		return nil
	}
	if err := c.Sync(ctx); err != nil {
		c.dirty.Store(true)
		return err
	}
	return nil
}

// Sync replaces the local cards and, when the authority has them, the time
// plans.
func (c *CacheSync) Sync(ctx context.Context) error {
	cards, err := c.online.LoadAllCards(ctx)
	if err != nil {
		return fmt.Errorf("sync cards: %w", err)
	}
	if err := c.cards.ReplaceAll(ctx, cards); err != nil {
		return fmt.Errorf("sync cards: %w", err)
	}
	c.logger.Info("cards synced", zap.Int("cards", len(cards)))

	plans, err := c.online.LoadAllTimePlans(ctx)
	switch {
	case errors.Is(err, authority.ErrUnsupported):
		c.logger.Debug("time plans not provided by authority", zap.String("authority", c.online.Name()))
		return nil
	case err != nil:
		return fmt.Errorf("sync time plans: %w", err)
	}
	if err := c.plans.ReplaceTimePlans(ctx, plans); err != nil {
		return fmt.Errorf("sync time plans: %w", err)
	}
	rejected := c.engine.Load(plans)
	c.logger.Info("time plans synced", zap.Int("plans", len(plans)), zap.Int("rejected", rejected))
	return nil
}

// Run syncs whenever the cache is dirty and ready reports the authority
// reachable, checking every interval. It marks the cache dirty once a day
// at a random time between midnight and 01:00 so units do not all hit the
// authority together.
func (c *CacheSync) Run(ctx context.Context, interval time.Duration, ready func() bool) {
	if interval <= 0 {
		interval = time.Second
	}
	at := DailySyncTime()
	c.logger.Info("daily sync time", zap.Duration("after_midnight", at))

	lastDay := -1
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := c.clk.Now()
			if now.YearDay() != lastDay && sinceMidnight(now) >= at && sinceMidnight(now) < at+time.Minute {
				lastDay = now.YearDay()
				c.MarkDirty()
			}
			if ready != nil && !ready() {
				continue
			}
			if err := c.SyncIfDirty(ctx); err != nil {
				c.logger.Warn("cache sync failed", zap.Error(err))
			}
		}
	}
}

// DailySyncTime picks a second in [00:00, 01:00].
func DailySyncTime() time.Duration {
	return time.Duration(rand.IntN(3601)) * time.Second
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}
