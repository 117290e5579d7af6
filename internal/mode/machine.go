package mode

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

// Snapshot is the machine state exposed to the status servers.
type Snapshot struct {
	Mode        Kind
	OnlineReady bool
	Since       time.Time
}

// Observer reads the current machine state.
type Observer interface {
	Snapshot() Snapshot
}

// Machine runs one mode at a time until a mode asks for Shutdown or ctx is
// cancelled.
type Machine struct {
	deps   *Deps
	logger *zap.Logger

	kind   atomic.Int32
	online atomic.Bool
	since  atomic.Int64
}

func NewMachine(deps *Deps) *Machine {
	if deps.Hooks == nil {
		deps.Hooks = NopHooks{}
	}
	return &Machine{deps: deps, logger: deps.Logger.Named("machine")}
}

func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Mode:        Kind(m.kind.Load()),
		OnlineReady: m.online.Load(),
		Since:       time.Unix(0, m.since.Load()),
	}
}

func (m *Machine) enter(k Kind) {
	m.kind.Store(int32(k))
	m.online.Store(false)
	m.since.Store(m.deps.Clock.Now().UnixNano())
}

// Run starts in the operator's main mode. The operator settings are
// reloaded before every mode so changes made in a maintenance mode apply on
// the next transition.
func (m *Machine) Run(ctx context.Context) error {
	d := m.deps
	defer func() {
		m.enter(Shutdown)
		d.LED.Set(hw.Off, hw.Solid)
	}()

	op, err := config.LoadOperator(ctx, d.Props)
	if err != nil {
		return fmt.Errorf("load operator config: %w", err)
	}

	next := mainKind(op)
	for next != Shutdown {
		if op, err = config.LoadOperator(ctx, d.Props); err != nil {
			return fmt.Errorf("load operator config: %w", err)
		}

		prev := next
		next, err = m.runMode(ctx, m.build(next, op), op)
		if err != nil {
			m.logger.Error("mode failed", zap.Stringer("mode", prev), zap.Error(err))
			return err
		}
		m.logger.Info("mode change", zap.Stringer("from", prev), zap.Stringer("to", next))
	}
	return nil
}

func (m *Machine) build(k Kind, op config.Operator) Mode {
	switch k {
	case Offline, Cloud:
		return newOperational(k, m.deps, op, m.online.Store)
	case ConfigOffline, ConfigCloud:
		return newMaintenance(k, m.deps, op)
	default:
		return newOSDPScan(m.deps, op)
	}
}

func (m *Machine) runMode(ctx context.Context, mode Mode, op config.Operator) (next Kind, err error) {
	d := m.deps
	k := mode.Kind()
	m.enter(k)
	m.logger.Info("mode enter", zap.Stringer("mode", k))

	defer func() {
		d.Tasks.StopAll()
		if rerr := d.Unit.Release(); rerr != nil {
			m.logger.Warn("release unit", zap.Error(rerr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			next, err = Shutdown, fmt.Errorf("%s panicked: %v", k, r)
		}
	}()

	if herr := d.Hooks.Enter(ctx, k, op); herr != nil {
		m.logger.Warn("host services not configured", zap.Stringer("mode", k), zap.Error(herr))
	}

	events := make(chan Event, 4)
	if err := m.startCommon(k, events); err != nil {
		return Shutdown, fmt.Errorf("%s: %w", k, err)
	}
	return mode.Run(ctx, events)
}

func send(events chan<- Event, ev Event) {
	select {
	case events <- ev:
	default:
	}
}

// startCommon starts the tasks every mode runs: the config button, the
// reboot watch, the status LED and, in maintenance modes, the watchdog that
// returns to the main mode.
func (m *Machine) startCommon(k Kind, events chan<- Event) error {
	d := m.deps

	if d.ConfigButton != nil {
		err := d.Tasks.Start("config-button", func(ctx context.Context) {
			for {
				switch d.ConfigButton.WaitPress(ctx, d.Timing.ButtonPoll, d.Timing.LongPress) {
				case hw.PressShort:
					send(events, EventShortPress)
				case hw.PressLong:
					send(events, EventLongPress)
				default:
					return
				}
			}
		})
		if err != nil {
			return err
		}
	}

	err := d.Tasks.Start("reboot-watch", func(ctx context.Context) {
		taskmgr.Every(ctx, d.Timing.RebootPoll, func(ctx context.Context) {
			v, err := d.Props.GetProp(ctx, store.TableRunning, store.PropRebootPending)
			if err == nil && v == "1" {
				m.logger.Info("reboot pending")
				send(events, EventRebootPending)
			}
		})
	})
	if err != nil {
		return err
	}

	if err := d.Tasks.Start("status-led", d.LED.Run); err != nil {
		return err
	}

	if k.IsConfig() && d.Timing.ConfigTimeout > 0 {
		return d.Tasks.Start("config-watchdog", func(ctx context.Context) {
			if taskmgr.Sleep(ctx, d.Timing.ConfigTimeout) {
				m.logger.Info("maintenance mode timed out")
				send(events, EventWatchdog)
			}
		})
	}
	return nil
}
