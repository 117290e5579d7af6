// Package door owns the relay of one physical door.
package door

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
)

// State is a snapshot of one door's runtime state.
type State struct {
	Opening          bool
	PermanentOpen    bool
	Monitor          bool
	ExtraTimeCount   int
	OpeningStartedAt time.Time
}

// Actuator is the only writer of its door relay. The relay always mirrors
// opening || permanentOpen.
type Actuator struct {
	id     int
	relay  hw.OutputPin
	logger *zap.Logger

	mu    sync.Mutex
	state State
	extra bool
	// gen invalidates in-flight pulses when the door is forced shut.
	gen uint64

	hasMonitor     bool
	monitorDefault bool
	maxOpenTime    time.Duration

	pulses sync.WaitGroup
}

func NewActuator(id int, relay hw.OutputPin, logger *zap.Logger) *Actuator {
	a := &Actuator{
		id:     id,
		relay:  relay,
		logger: logger.With(zap.Int("door", id)),
	}
	a.applyRelayLocked()
	return a
}

func (a *Actuator) ID() int { return a.id }

// ConfigureMonitor sets the door sensor wiring loaded at mode entry. The
// monitor level starts at the closed level until the first sensor read.
func (a *Actuator) ConfigureMonitor(hasMonitor, monitorDefault bool, maxOpen time.Duration) {
	a.mu.Lock()
	a.hasMonitor = hasMonitor
	a.monitorDefault = monitorDefault
	a.maxOpenTime = maxOpen
	a.state.Monitor = monitorDefault
	a.mu.Unlock()
}

// OpenDoor pulses the relay for d. A call while a pulse is running extends
// that pulse by one more d instead of starting a second timer. It is a no-op
// while the door is permanently open.
func (a *Actuator) OpenDoor(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.PermanentOpen {
		return
	}
	if a.state.Opening {
		a.state.ExtraTimeCount++
		a.extra = true
		a.logger.Debug("extending opening", zap.Int("extra_time_count", a.state.ExtraTimeCount))
		return
	}

	a.state.Opening = true
	a.state.ExtraTimeCount = 1
	a.state.OpeningStartedAt = time.Now()
	a.extra = false
	a.applyRelayLocked()

	gen := a.gen
	a.pulses.Add(1)
	go a.pulse(gen, d)
}

func (a *Actuator) pulse(gen uint64, d time.Duration) {
	defer a.pulses.Done()
	for {
		time.Sleep(d)

		a.mu.Lock()
		if a.gen != gen {
			a.mu.Unlock()
			return
		}
		if a.extra {
			a.extra = false
			a.mu.Unlock()
			continue
		}
		a.state.Opening = false
		a.applyRelayLocked()
		a.mu.Unlock()
		return
	}
}

// PermanentOpenDoor holds the relay energized until CloseDoor.
func (a *Actuator) PermanentOpenDoor() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.PermanentOpen = true
	a.applyRelayLocked()
}

// CloseDoor releases the relay, cancelling any pulse in flight.
func (a *Actuator) CloseDoor() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.state.Opening = false
	a.state.PermanentOpen = false
	a.extra = false
	a.applyRelayLocked()
}

// Reverse toggles between permanent open and closed.
func (a *Actuator) Reverse() {
	if a.IsPermanentOpen() {
		a.CloseDoor()
		return
	}
	a.PermanentOpenDoor()
}

func (a *Actuator) IsOpening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Opening
}

func (a *Actuator) IsPermanentOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.PermanentOpen
}

// SetMonitor records the sensor level and reports whether it changed.
func (a *Actuator) SetMonitor(level bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := a.state.Monitor != level
	a.state.Monitor = level
	return changed
}

func (a *Actuator) Monitor() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Monitor
}

func (a *Actuator) HasMonitor() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasMonitor
}

func (a *Actuator) MonitorDefault() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.monitorDefault
}

func (a *Actuator) MaxOpenTime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxOpenTime
}

// IsDoorOpen reports whether the sensor shows the door leaf open.
func (a *Actuator) IsDoorOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasMonitor && a.state.Monitor != a.monitorDefault
}

func (a *Actuator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Reset closes the door and clears runtime state.
func (a *Actuator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	monitor := a.state.Monitor
	a.state = State{Monitor: monitor}
	a.extra = false
	a.applyRelayLocked()
}

// Wait blocks until every pulse in flight has finished.
func (a *Actuator) Wait() {
	a.pulses.Wait()
}

func (a *Actuator) applyRelayLocked() {
	on := a.state.Opening || a.state.PermanentOpen
	if err := a.relay.Write(on); err != nil {
		a.logger.Error("relay write failed", zap.Bool("on", on), zap.Error(err))
	}
}
