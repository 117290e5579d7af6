package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

// WatchUnauthorized records one UnauthorizedAccess event each time the door
// of readerID opens while the unit is not holding it open. It returns when
// ctx is cancelled.
func (s *AccessService) WatchUnauthorized(ctx context.Context, readerID int) {
	log := s.logger.With(zap.Int("reader", readerID))
	for {
		if s.unit.IsDoorOpen(readerID) {
			if !s.unit.IsOpening(readerID) && !s.unit.IsPermanentOpen(readerID) {
				log.Warn("door opened without authorization")
				s.RecordEvent(ctx, readerID, types.StatusUnauthorizedAccess)
			}
			for s.unit.IsDoorOpen(readerID) {
				if !taskmgr.Sleep(ctx, s.opt.MonitorPoll) {
					return
				}
			}
		}
		if !taskmgr.Sleep(ctx, s.opt.MonitorPoll) {
			return
		}
	}
}

// WatchOpenButtons pulses a door when its open button is pressed and the door
// is not already opening, recording an OpenWithButton event.
func (s *AccessService) WatchOpenButtons(ctx context.Context, buttons map[int]*hw.Button, poll time.Duration) {
	for {
		for readerID, b := range buttons {
			if b.Pressed() && !s.unit.IsOpening(readerID) && !s.unit.IsPermanentOpen(readerID) {
				s.unit.OpenDoor(readerID, 0)
				s.RecordEvent(ctx, readerID, types.StatusOpenWithButton)
			}
		}
		if !taskmgr.Sleep(ctx, poll) {
			return
		}
	}
}

// SyncMonitors reads every door sensor once into the unit.
func SyncMonitors(ctx context.Context, u Unit, pins map[int]hw.InputPin) {
	for readerID, pin := range pins {
		u.SetMonitor(ctx, readerID, pin.Read())
	}
}

// PollMonitors mirrors the door sensor inputs into the unit every poll.
func PollMonitors(ctx context.Context, u Unit, pins map[int]hw.InputPin, poll time.Duration) {
	for taskmgr.Sleep(ctx, poll) {
		SyncMonitors(ctx, u, pins)
	}
}
