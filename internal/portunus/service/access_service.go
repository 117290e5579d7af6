package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/authority"
	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/reader"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

// DefaultMonitorPoll is the door sensor polling period.
const DefaultMonitorPoll = 100 * time.Millisecond

// persistTimeout bounds writing one access record after the mode has been
// asked to stop.
const persistTimeout = 5 * time.Second

// denySignal flashes red with the buzzer on a refused card.
var denySignal = reader.Signal{
	Color:    hw.Red,
	Buzzer:   true,
	Duration: time.Second,
	OnTime:   time.Second,
	OffTime:  time.Second,
}

type AccessOptions struct {
	// Online is the online authority; nil runs the unit offline.
	Online authority.Authority
	// Publisher mirrors card reads; nil disables mirroring.
	Publisher CardPublisher
	// Sys suppresses card actions on doors held open by the system plan.
	Sys SysActions
	// Cache is marked dirty when the online authority grants a card the
	// local cache refused.
	Cache       CacheInvalidator
	MonitorPoll time.Duration
}

// AccessService decides every card read and button press and keeps the
// audit trail of the outcome.
type AccessService struct {
	unit   Unit
	cards  store.CardStore
	events store.AccessEventStore
	plans  Planner
	clk    clock.Clock
	logger *zap.Logger
	opt    AccessOptions
}

func NewAccessService(u Unit, cards store.CardStore, events store.AccessEventStore, plans Planner, clk clock.Clock, logger *zap.Logger, opt AccessOptions) *AccessService {
	if opt.MonitorPoll <= 0 {
		opt.MonitorPoll = DefaultMonitorPoll
	}
	return &AccessService{
		unit:   u,
		cards:  cards,
		events: events,
		plans:  plans,
		clk:    clk,
		logger: logger.Named("access"),
		opt:    opt,
	}
}

// Online reports whether an online authority is configured.
func (s *AccessService) Online() bool { return s.opt.Online != nil }

// HandleCredential runs the full decision for one card read and returns the
// persisted status.
func (s *AccessService) HandleCredential(ctx context.Context, cred types.Credential) types.Status {
	at := s.clk.Now()
	log := s.logger.With(zap.String("card", cred.CardID), zap.Int("reader", cred.ReaderID))

	planID, err := s.cards.CardPlan(ctx, cred.CardID, cred.ReaderID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warn("card plan lookup failed", zap.Error(err))
	}
	action := s.plans.Action(planID)

	allowed, err := s.cards.CheckAccess(ctx, cred.CardID, cred.ReaderID)
	if err != nil {
		log.Warn("local access check failed", zap.Error(err))
		allowed = false
	}

	var status types.Status
	switch {
	case allowed:
		status = types.StatusAllow
		s.execute(action, cred.ReaderID)
		if action == types.ActionPulse && s.unit.HasMonitor(cred.ReaderID) {
			window := s.unit.PulseTime(cred.ReaderID) + s.unit.MaxOpenTime(cred.ReaderID)
			status = s.waitDoorClosed(ctx, cred.ReaderID, window)
		}
	case s.opt.Online != nil:
		status = s.opt.Online.OpenDoorOnline(ctx, cred, at)
		if status == types.StatusAllow {
			s.execute(action, cred.ReaderID)
			if s.opt.Cache != nil {
				s.opt.Cache.MarkDirty()
			}
		} else {
			s.unit.SetSignal(cred.ReaderID, denySignal)
		}
	default:
		status = types.StatusDeny
		s.unit.SetSignal(cred.ReaderID, denySignal)
	}

	// A refusal from the online authority is already on its side.
	sendOnline := s.opt.Online != nil && status.Granted()
	status = s.persist(ctx, types.AccessRecord{
		CardID:     cred.CardID,
		ReaderID:   cred.ReaderID,
		OccurredAt: at,
		Status:     status,
	}, sendOnline)

	if s.opt.Publisher != nil {
		if err := s.opt.Publisher.PublishCard(ctx, cred); err != nil {
			log.Warn("card mirror failed", zap.Error(err))
		}
	}

	log.Info("access decided",
		zap.Int("plan", planID),
		zap.Stringer("action", action),
		zap.Int("status", int(status)),
		zap.Stringer("status_name", status),
	)
	return status
}

// RecordEvent persists a card-less event (open button, unauthorized open)
// and forwards it to the online authority when one is configured.
func (s *AccessService) RecordEvent(ctx context.Context, readerID int, status types.Status) types.Status {
	status = s.persist(ctx, types.AccessRecord{
		CardID:     types.ButtonCardID,
		ReaderID:   readerID,
		OccurredAt: s.clk.Now(),
		Status:     status,
	}, s.opt.Online != nil)
	s.logger.Info("event recorded", zap.Int("reader", readerID), zap.Int("status", int(status)), zap.Stringer("status_name", status))
	return status
}

// persist writes rec locally, after offering it to the online authority if
// sendOnline is set. A failed online insert is stored with the insert-failed
// offset so the resync task can retry it.
func (s *AccessService) persist(ctx context.Context, rec types.AccessRecord, sendOnline bool) types.Status {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	rec.EventID = uuid.NewString()
	if sendOnline {
		rec.Status = s.opt.Online.InsertToAccess(ctx, rec)
	}
	if _, err := s.events.RecordEvent(ctx, rec); err != nil {
		s.logger.Error("access record not stored",
			zap.String("event_id", rec.EventID),
			zap.String("card", rec.CardID),
			zap.Int("reader", rec.ReaderID),
			zap.Int("status", int(rec.Status)),
			zap.Error(err),
		)
	}
	return rec.Status
}

func (s *AccessService) execute(action types.Action, readerID int) {
	if s.opt.Sys != nil && s.opt.Sys.Current(readerID) == types.ActionSilentOpen {
		return
	}
	switch action {
	case types.ActionPulse:
		s.unit.OpenDoor(readerID, 0)
	case types.ActionReverse:
		s.unit.ReverseDoor(readerID)
	}
}

// waitDoorClosed watches the door sensor after a pulse. The door gets the
// whole window to open and then the same window again to close; a door that
// never opens counts as closed.
func (s *AccessService) waitDoorClosed(ctx context.Context, readerID int, window time.Duration) types.Status {
	deadline := time.Now().Add(window)
	for !s.unit.IsDoorOpen(readerID) {
		if time.Now().After(deadline) {
			return types.StatusAllow
		}
		if !taskmgr.Sleep(ctx, s.opt.MonitorPoll) {
			return types.StatusAllow
		}
	}

	deadline = time.Now().Add(window)
	for time.Now().Before(deadline) {
		if !s.unit.IsDoorOpen(readerID) {
			return types.StatusAllow
		}
		if !taskmgr.Sleep(ctx, s.opt.MonitorPoll) {
			return types.StatusAllow
		}
	}
	s.logger.Warn("door held open", zap.Int("reader", readerID), zap.Duration("window", window))
	return types.StatusAllowDoorNotClosed
}
