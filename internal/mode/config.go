package mode

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
	"github.com/BrandonDHaskell/Portunus/unit/internal/unit"
)

// maintenance is ConfigOffline and ConfigCloud. Both wait for the operator
// to leave; ConfigOffline also enrolls and removes cards by tapping them.
type maintenance struct {
	kind   Kind
	deps   *Deps
	op     config.Operator
	logger *zap.Logger
}

func newMaintenance(kind Kind, deps *Deps, op config.Operator) *maintenance {
	return &maintenance{
		kind:   kind,
		deps:   deps,
		op:     op,
		logger: deps.Logger.Named("mode").With(zap.Stringer("mode", kind)),
	}
}

func (m *maintenance) Kind() Kind { return m.kind }

func (m *maintenance) Run(ctx context.Context, events <-chan Event) (Kind, error) {
	d := m.deps
	d.LED.Set(hw.Blue, hw.Blink)

	enroll := m.kind == ConfigOffline
	if enroll {
		if err := d.Unit.LoadActiveReaders(ctx, m.op.EnableOSDP); err != nil {
			return Shutdown, fmt.Errorf("%s: %w", m.kind, err)
		}
		if err := d.Unit.InitRead(ctx); err != nil {
			return Shutdown, fmt.Errorf("%s: %w", m.kind, err)
		}
	}
	m.logger.Info("mode running", zap.Bool("easy_add", enroll && m.op.EasyAdd), zap.Bool("easy_remove", enroll && m.op.EasyRemove))

	for {
		if enroll {
			if cred, ok := d.Unit.ReadCredential(); ok {
				m.manageCard(ctx, cred)
			}
		}

		select {
		case <-ctx.Done():
			return Shutdown, nil
		case ev := <-events:
			switch ev {
			case EventShortPress, EventWatchdog:
				return mainKind(m.op), nil
			case EventLongPress:
				return ConfigOSDP, nil
			case EventRebootPending:
				return Shutdown, nil
			}
		default:
		}
		if !taskmgr.Sleep(ctx, d.Timing.ModeSleep) {
			return Shutdown, nil
		}
	}
}

// manageCard toggles cred: a card with access loses it, any other card is
// granted the always-pulse plan.
func (m *maintenance) manageCard(ctx context.Context, cred types.Credential) {
	d := m.deps
	log := m.logger.With(zap.Int("reader", cred.ReaderID), zap.String("card", cred.CardID))

	allowed, err := d.Cards.CheckAccess(ctx, cred.CardID, cred.ReaderID)
	if err != nil {
		log.Error("card lookup failed", zap.Error(err))
		return
	}

	var flash hw.Color
	switch {
	case allowed && m.op.EasyRemove:
		if err := d.Cards.RemoveAccess(ctx, cred.CardID, cred.ReaderID); err != nil {
			log.Error("remove access failed", zap.Error(err))
			return
		}
		log.Info("card removed")
		flash = hw.Red
	case !allowed && m.op.EasyAdd:
		rec := types.CardRecord{
			CardID:   cred.CardID,
			ReaderID: cred.ReaderID,
			Allowed:  true,
			Note:     types.ConfigModeNote,
		}
		if err := d.Cards.GrantAccess(ctx, rec); err != nil {
			log.Error("grant access failed", zap.Error(err))
			return
		}
		log.Info("card added")
		flash = hw.Green
	default:
		return
	}

	d.LED.Set(flash, hw.Solid)
	taskmgr.Sleep(ctx, enrollFlash)
	d.LED.Set(hw.Blue, hw.Blink)
}

// osdpScan enables OSDP and enrolls whatever readers answer on the bus,
// then returns to the main mode.
type osdpScan struct {
	deps   *Deps
	op     config.Operator
	logger *zap.Logger
}

func newOSDPScan(deps *Deps, op config.Operator) *osdpScan {
	return &osdpScan{
		deps:   deps,
		op:     op,
		logger: deps.Logger.Named("mode").With(zap.Stringer("mode", ConfigOSDP)),
	}
}

func (m *osdpScan) Kind() Kind { return ConfigOSDP }

func (m *osdpScan) Run(ctx context.Context, events <-chan Event) (Kind, error) {
	d := m.deps
	d.LED.Set(hw.White, hw.BlinkFast)

	if err := d.Props.SetProp(ctx, store.TableConfigDU, "enable_osdp", "1"); err != nil {
		return Shutdown, fmt.Errorf("%s: %w", ConfigOSDP, err)
	}
	if !taskmgr.Sleep(ctx, d.ScanSettle) {
		return Shutdown, nil
	}

	found, err := d.Unit.Scan(ctx, m.op.UseSecureChannel)
	switch {
	case errors.Is(err, unit.ErrNoReaders):
		m.logger.Warn("no osdp readers answered, wiegand restored")
	case err != nil:
		m.logger.Error("osdp scan failed", zap.Error(err))
	default:
		m.logger.Info("osdp readers enrolled", zap.Int("count", len(found)), zap.Bool("secure", m.op.UseSecureChannel))
	}

	select {
	case ev := <-events:
		if ev == EventRebootPending {
			return Shutdown, nil
		}
	default:
	}
	return mainKind(m.op), nil
}
