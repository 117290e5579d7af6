// Package mode runs the unit's operating modes one at a time.
//
// Offline and Cloud are the operational modes; ConfigOffline, ConfigCloud
// and ConfigOSDP are maintenance modes entered with the config button. Each
// mode owns the unit controller, schedule engine and task manager while it
// runs and stops every task it started before handing over to the next.
package mode

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/authority"
	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/schedule"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
	"github.com/BrandonDHaskell/Portunus/unit/internal/unit"
)

type Kind int

const (
	Shutdown Kind = iota
	Offline
	Cloud
	ConfigOffline
	ConfigCloud
	ConfigOSDP
)

func (k Kind) String() string {
	switch k {
	case Offline:
		return "offline"
	case Cloud:
		return "cloud"
	case ConfigOffline:
		return "config_offline"
	case ConfigCloud:
		return "config_cloud"
	case ConfigOSDP:
		return "config_osdp"
	default:
		return "shutdown"
	}
}

// IsConfig reports whether k is a maintenance mode.
func (k Kind) IsConfig() bool {
	return k == ConfigOffline || k == ConfigCloud || k == ConfigOSDP
}

// mainKind is the operational mode selected by the operator.
func mainKind(op config.Operator) Kind {
	if op.Mode == config.MainCloud {
		return Cloud
	}
	return Offline
}

// configKind is the maintenance mode paired with the operator's main mode.
func configKind(op config.Operator) Kind {
	if op.Mode == config.MainCloud {
		return ConfigCloud
	}
	return ConfigOffline
}

// Event interrupts a running mode.
type Event int

const (
	EventShortPress Event = iota + 1
	EventLongPress
	EventWatchdog
	EventRebootPending
)

// Mode is one operating state. Run returns the next mode when an event or
// its own work ends it.
type Mode interface {
	Kind() Kind
	Run(ctx context.Context, events <-chan Event) (Kind, error)
}

// CommandService is the MQTT side of an operational mode.
type CommandService interface {
	Run(ctx context.Context)
	PublishCard(ctx context.Context, cred types.Credential) error
}

// SystemHooks configures host services (web UI, SSH, access point) on mode
// entry. The unit itself does not depend on them.
type SystemHooks interface {
	Enter(ctx context.Context, k Kind, op config.Operator) error
}

// NopHooks does nothing.
type NopHooks struct{}

func (NopHooks) Enter(context.Context, Kind, config.Operator) error { return nil }

// Deps is everything the modes share.
type Deps struct {
	Logger    *zap.Logger
	Clock     clock.Clock
	Tasks     *taskmgr.Manager
	Unit      *unit.Controller
	Engine    *schedule.Engine
	Props     store.PropertyStore
	Cards     store.CardStore
	TimePlans store.TimePlanStore
	Events    store.AccessEventStore

	LED          *hw.StatusLED
	ConfigButton *hw.Button
	OpenButtons  map[int]*hw.Button
	MonitorPins  map[int]hw.InputPin

	Timing config.TimingConfig
	Online config.OnlineConfig
	UnitID string
	// ScanSettle is the pause before an OSDP scan.
	ScanSettle time.Duration

	// NewAuthority builds the online authority on Cloud entry; nil uses
	// authority.New.
	NewAuthority func(op config.Operator) authority.Authority
	// Commands is nil when no broker is configured.
	Commands CommandService
	Hooks    SystemHooks
}

func (d *Deps) authority(op config.Operator) authority.Authority {
	if d.NewAuthority != nil {
		return d.NewAuthority(op)
	}
	return authority.New(op, d.UnitID, d.Online.Timeout, d.Logger)
}

// enrollFlash is how long the status LED confirms an enrollment.
var enrollFlash = 2 * time.Second
