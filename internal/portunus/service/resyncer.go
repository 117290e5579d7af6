package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/authority"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// Resyncer periodically re-sends access records whose online insert failed
// and clears the insert-failed offset of every record the authority accepts.
type Resyncer struct {
	events   store.AccessEventStore
	online   authority.Authority
	ready    func() bool
	interval time.Duration
	logger   *zap.Logger
}

// NewResyncer creates a resyncer. ready gates each pass; nil means always.
// An interval <= 0 defaults to one second.
func NewResyncer(events store.AccessEventStore, online authority.Authority, ready func() bool, interval time.Duration, logger *zap.Logger) *Resyncer {
	if interval <= 0 {
		interval = time.Second
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Resyncer{
		events:   events,
		online:   online,
		ready:    ready,
		interval: interval,
		logger:   logger.Named("resync"),
	}
}

// Run resyncs every interval until ctx is cancelled.
func (r *Resyncer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.ready() {
				r.ResyncOnce(ctx)
			}
		}
	}
}

// ResyncOnce makes one pass over the failed records and returns how many
// were repaired.
func (r *Resyncer) ResyncOnce(ctx context.Context) int {
	recs, err := r.events.EventsWithStatus(ctx, types.InsertFailedStatuses()...)
	if err != nil {
		r.logger.Warn("resync: list failed records", zap.Error(err))
		return 0
	}

	repaired := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		retry := rec
		retry.Status = rec.Status.Base()
		status := r.online.InsertToAccess(ctx, retry)
		if status.IsInsertFailed() {
			continue
		}
		if err := r.events.UpdateStatus(ctx, rec.ID, status); err != nil {
			r.logger.Warn("resync: update status", zap.Int64("id", rec.ID), zap.Error(err))
			continue
		}
		repaired++
		r.logger.Debug("access record resynced",
			zap.Int64("id", rec.ID),
			zap.String("event_id", rec.EventID),
			zap.Int("from", int(rec.Status)),
			zap.Int("to", int(status)),
		)
	}
	if repaired > 0 {
		r.logger.Info("resync: records repaired", zap.Int("repaired", repaired), zap.Int("pending", len(recs)-repaired))
	}
	return repaired
}
