package mode

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

// operational runs Offline and Cloud. Cloud adds the online authority: the
// fallback decision, the health check, cache sync and the resync of failed
// inserts.
type operational struct {
	kind     Kind
	deps     *Deps
	op       config.Operator
	logger   *zap.Logger
	observer func(onlineReady bool)
}

func newOperational(kind Kind, deps *Deps, op config.Operator, observer func(bool)) *operational {
	return &operational{
		kind:     kind,
		deps:     deps,
		op:       op,
		logger:   deps.Logger.Named("mode").With(zap.Stringer("mode", kind)),
		observer: observer,
	}
}

func (m *operational) Kind() Kind { return m.kind }

func (m *operational) Run(ctx context.Context, events <-chan Event) (Kind, error) {
	d := m.deps

	if m.kind == Cloud {
		d.LED.Set(hw.Yellow, hw.BlinkFast)
	} else {
		d.LED.Set(hw.Magenta, hw.Solid)
	}

	recs, err := d.TimePlans.TimePlans(ctx)
	if err != nil {
		m.logger.Error("time plans unavailable, plans default to pulse", zap.Error(err))
	}
	if rejected := d.Engine.Load(recs); rejected > 0 {
		m.logger.Error("time plans rejected", zap.Int("rejected", rejected))
	}

	if err := d.Unit.LoadActiveReaders(ctx, m.op.EnableOSDP); err != nil {
		return Shutdown, fmt.Errorf("%s: %w", m.kind, err)
	}

	sys := service.NewSystemPlanner(d.Unit, d.Engine, d.Clock, d.Logger)
	opts := service.AccessOptions{Sys: sys, MonitorPoll: d.Timing.MonitorPoll}
	if m.op.MQTTEnabled && d.Commands != nil {
		opts.Publisher = d.Commands
	}

	var starts []func() error
	if m.kind == Cloud {
		online := d.authority(m.op)
		if online == nil {
			m.logger.Error("cloud mode without online authority address, deciding locally")
		} else {
			health := service.NewHealth(online, d.Logger, func(ready bool) {
				if ready {
					d.LED.Set(hw.Yellow, hw.Solid)
				} else {
					d.LED.Set(hw.Yellow, hw.BlinkFast)
				}
				if m.observer != nil {
					m.observer(ready)
				}
			})
			online = health.Track()
			cache := service.NewCacheSync(online, d.Cards, d.TimePlans, d.Engine, d.Clock, d.Logger)
			resync := service.NewResyncer(d.Events, online, health.Ready, d.Timing.ResyncInterval, d.Logger)
			opts.Online = online
			opts.Cache = cache

			health.Check(ctx)
			m.logger.Info("online authority", zap.String("authority", online.Name()), zap.Bool("ready", health.Ready()))

			starts = append(starts,
				func() error {
					return d.Tasks.Start("check-online", func(ctx context.Context) { health.Run(ctx, d.Online.CheckInterval) })
				},
				func() error {
					return d.Tasks.Start("update-db", func(ctx context.Context) { cache.Run(ctx, d.Online.CheckInterval, health.Ready) })
				},
				func() error { return d.Tasks.Start("sync-access", resync.Run) },
			)
		}
	}

	svc := service.NewAccessService(d.Unit, d.Cards, d.Events, d.Engine, d.Clock, d.Logger, opts)
	service.SyncMonitors(ctx, d.Unit, d.MonitorPins)

	starts = append(starts,
		func() error {
			return d.Tasks.Start("open-buttons", func(ctx context.Context) {
				svc.WatchOpenButtons(ctx, d.OpenButtons, d.Timing.ButtonPoll)
			})
		},
		func() error {
			return d.Tasks.Start("monitors", func(ctx context.Context) {
				service.PollMonitors(ctx, d.Unit, d.MonitorPins, d.Timing.MonitorPoll)
			})
		},
		func() error {
			return d.Tasks.Start("sys-plans", func(ctx context.Context) { sys.Run(ctx, d.Timing.SysPlanPoll) })
		},
	)
	if m.op.MQTTEnabled && d.Commands != nil {
		starts = append(starts, func() error { return d.Tasks.Start("mqtt", d.Commands.Run) })
	}
	for _, id := range d.Unit.ReaderIDs() {
		if !d.Unit.HasMonitor(id) {
			continue
		}
		starts = append(starts, func() error {
			return d.Tasks.Start(fmt.Sprintf("unauthorized-%d", id), func(ctx context.Context) {
				svc.WatchUnauthorized(ctx, id)
			})
		})
	}
	for _, start := range starts {
		if err := start(); err != nil {
			return Shutdown, fmt.Errorf("%s: %w", m.kind, err)
		}
	}

	if err := d.Unit.InitRead(ctx); err != nil {
		return Shutdown, fmt.Errorf("%s: %w", m.kind, err)
	}
	m.logger.Info("mode running", zap.Ints("readers", d.Unit.ReaderIDs()), zap.Strings("tasks", d.Tasks.Names()))

	for {
		if cred, ok := d.Unit.ReadCredential(); ok {
			m.logger.Debug("card read", zap.Int("reader", cred.ReaderID), zap.String("card", cred.CardID))
			err := d.Tasks.Go(ctx, func(ctx context.Context) { svc.HandleCredential(ctx, cred) })
			if err != nil {
				m.logger.Warn("card read not handled", zap.Int("reader", cred.ReaderID), zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return Shutdown, nil
		case ev := <-events:
			switch ev {
			case EventShortPress:
				return configKind(m.op), nil
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
