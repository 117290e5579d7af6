// Package unit exposes the doors and readers of one access unit behind a
// hardware-agnostic API.
package unit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/door"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/reader"
)

// ErrNoReaders is returned by Scan when no OSDP reader answered.
var ErrNoReaders = errors.New("no osdp readers found")

// defaultReaderIDs is the fallback two-reader Wiegand layout.
var defaultReaderIDs = []int{1, 2}

type Controller struct {
	logger  *zap.Logger
	readers store.ReaderStore
	doors   map[int]*door.Actuator
	wiegand reader.Driver
	osdp    *reader.OSDP

	mu     sync.RWMutex
	active reader.Driver
	info   map[int]types.ReaderInfo
}

// New builds a controller over doors keyed by their id. osdp may be nil on
// units without an OSDP bus.
func New(logger *zap.Logger, readers store.ReaderStore, doors []*door.Actuator, wiegand reader.Driver, osdp *reader.OSDP) *Controller {
	c := &Controller{
		logger:  logger.Named("unit"),
		readers: readers,
		doors:   make(map[int]*door.Actuator, len(doors)),
		wiegand: wiegand,
		osdp:    osdp,
		active:  wiegand,
		info:    make(map[int]types.ReaderInfo),
	}
	for _, d := range doors {
		c.doors[d.ID()] = d
	}
	return c
}

// LoadActiveReaders reads the persisted reader rows and selects the driver.
// Rows must all use one protocol, and OSDP only when enableOSDP is set;
// anything else resets the unit to two Wiegand readers.
func (c *Controller) LoadActiveReaders(ctx context.Context, enableOSDP bool) error {
	rows, err := c.readers.ActiveReaders(ctx)
	if err != nil {
		return fmt.Errorf("load readers: %w", err)
	}

	protocol := types.ProtocolWiegand
	switch {
	case enableOSDP && c.osdp != nil && allProtocol(rows, types.ProtocolOSDP):
		protocol = types.ProtocolOSDP
	case allProtocol(rows, types.ProtocolWiegand):
	default:
		c.logger.Error("reader rows invalid for current settings, resetting to wiegand",
			zap.Int("rows", len(rows)), zap.Bool("enable_osdp", enableOSDP))
		if rows, err = c.resetToWiegand(ctx); err != nil {
			return err
		}
	}

	info := make(map[int]types.ReaderInfo, len(rows))
	for _, r := range rows {
		d, ok := c.doors[r.ID]
		if !ok {
			c.logger.Warn("reader has no door, ignored", zap.Int("reader", r.ID))
			continue
		}
		d.ConfigureMonitor(r.HasMonitor, r.MonitorDefault, r.MaxOpenTime)
		info[r.ID] = r
	}

	c.mu.Lock()
	c.info = info
	if protocol == types.ProtocolOSDP {
		c.active = c.osdp
	} else {
		c.active = c.wiegand
	}
	c.mu.Unlock()

	c.logger.Info("readers loaded", zap.String("protocol", string(protocol)), zap.Ints("readers", c.ReaderIDs()))
	return nil
}

func allProtocol(rows []types.ReaderInfo, p types.Protocol) bool {
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if r.Protocol != p {
			return false
		}
	}
	return true
}

func (c *Controller) resetToWiegand(ctx context.Context) ([]types.ReaderInfo, error) {
	if err := c.readers.DeactivateAll(ctx); err != nil {
		return nil, fmt.Errorf("reset readers: %w", err)
	}
	for _, id := range defaultReaderIDs {
		if err := c.readers.Activate(ctx, types.ReaderInfo{ID: id, Protocol: types.ProtocolWiegand}); err != nil {
			return nil, fmt.Errorf("reset readers: %w", err)
		}
	}
	return c.readers.ActiveReaders(ctx)
}

// Scan runs OSDP enrollment: deactivate every reader, poll the bus,
// generate keys and persist the discovered readers. When nothing answers
// the Wiegand defaults are restored and ErrNoReaders is returned.
func (c *Controller) Scan(ctx context.Context, secure bool) ([]types.ReaderInfo, error) {
	if c.osdp == nil {
		return nil, fmt.Errorf("scan: %w", ErrNoReaders)
	}
	if err := c.readers.DeactivateAll(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	addrs, err := c.osdp.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(addrs) == 0 {
		if _, err := c.resetToWiegand(ctx); err != nil {
			return nil, err
		}
		return nil, ErrNoReaders
	}

	keys, err := c.osdp.GenerateSecureKeys(ctx, addrs, secure)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]types.ReaderInfo, 0, len(addrs))
	for i, a := range addrs {
		addr := a
		r := types.ReaderInfo{ID: i + 1, Protocol: types.ProtocolOSDP, Address: &addr, SecureKey: keys[a], Active: true}
		if err := c.readers.Activate(ctx, r); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	c.logger.Info("osdp readers enrolled", zap.Ints("addresses", addrs), zap.Bool("secure", secure))
	return out, nil
}

// InitRead starts the active driver's read tasks.
func (c *Controller) InitRead(ctx context.Context) error {
	c.mu.RLock()
	drv := c.active
	readers := make([]types.ReaderInfo, 0, len(c.info))
	for _, id := range c.readerIDsLocked() {
		readers = append(readers, c.info[id])
	}
	c.mu.RUnlock()
	return drv.Init(ctx, readers)
}

func (c *Controller) driver() reader.Driver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *Controller) Protocol() types.Protocol { return c.driver().Protocol() }

func (c *Controller) ReadCredential() (types.Credential, bool) { return c.driver().Read() }

func (c *Controller) SetSignal(readerID int, s reader.Signal) { c.driver().SetSignal(readerID, s) }

func (c *Controller) SetDefaultSignal(readerID int) { c.driver().SetDefaultSignal(readerID) }

func (c *Controller) door(id int) (*door.Actuator, bool) {
	d, ok := c.doors[id]
	if !ok {
		c.logger.Warn("unknown door", zap.Int("door", id))
	}
	return d, ok
}

// OpenDoor pulses door id for d, or for its configured pulse time when d is zero.
func (c *Controller) OpenDoor(id int, d time.Duration) {
	if d <= 0 {
		d = c.PulseTime(id)
	}
	if dr, ok := c.door(id); ok {
		dr.OpenDoor(d)
	}
}

func (c *Controller) CloseDoor(id int) {
	if dr, ok := c.door(id); ok {
		dr.CloseDoor()
	}
}

func (c *Controller) PermanentOpenDoor(id int) {
	if dr, ok := c.door(id); ok {
		dr.PermanentOpenDoor()
	}
}

func (c *Controller) ReverseDoor(id int) {
	if dr, ok := c.door(id); ok {
		dr.Reverse()
	}
}

func (c *Controller) IsOpening(id int) bool {
	d, ok := c.door(id)
	return ok && d.IsOpening()
}

func (c *Controller) IsPermanentOpen(id int) bool {
	d, ok := c.door(id)
	return ok && d.IsPermanentOpen()
}

func (c *Controller) HasMonitor(id int) bool {
	d, ok := c.door(id)
	return ok && d.HasMonitor()
}

func (c *Controller) Monitor(id int) bool {
	d, ok := c.door(id)
	return ok && d.Monitor()
}

func (c *Controller) MonitorDefault(id int) bool {
	d, ok := c.door(id)
	return ok && d.MonitorDefault()
}

// IsDoorOpen reports whether the door sensor shows door id open.
func (c *Controller) IsDoorOpen(id int) bool {
	d, ok := c.door(id)
	return ok && d.IsDoorOpen()
}

// SetMonitor records a sensor level and persists it when it changed.
func (c *Controller) SetMonitor(ctx context.Context, id int, level bool) {
	d, ok := c.door(id)
	if !ok || !d.SetMonitor(level) {
		return
	}
	if err := c.readers.SetMonitor(ctx, id, level); err != nil {
		c.logger.Warn("persist monitor failed", zap.Int("door", id), zap.Error(err))
	}
}

func (c *Controller) PulseTime(id int) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info[id].EffectivePulseTime()
}

func (c *Controller) MaxOpenTime(id int) time.Duration {
	d, ok := c.door(id)
	if !ok {
		return 0
	}
	return d.MaxOpenTime()
}

// SysPlanIDs maps reader id to its system time plan.
func (c *Controller) SysPlanIDs() map[int]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]int, len(c.info))
	for id, r := range c.info {
		out[id] = r.SysPlan
	}
	return out
}

// ReaderIDs returns the loaded reader ids, sorted.
func (c *Controller) ReaderIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readerIDsLocked()
}

func (c *Controller) readerIDsLocked() []int {
	ids := make([]int, 0, len(c.info))
	for id := range c.info {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DoorIDs returns every door id, sorted.
func (c *Controller) DoorIDs() []int {
	ids := make([]int, 0, len(c.doors))
	for id := range c.doors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DoorState returns a snapshot of door id.
func (c *Controller) DoorState(id int) (door.State, bool) {
	d, ok := c.doors[id]
	if !ok {
		return door.State{}, false
	}
	return d.State(), true
}

// WaitIdle blocks until every door pulse in flight has finished.
func (c *Controller) WaitIdle() {
	for _, d := range c.doors {
		d.Wait()
	}
}

// Release stops the active driver and closes every door. Call after the
// owning mode's tasks have been stopped.
func (c *Controller) Release() error {
	c.WaitIdle()
	for _, d := range c.doors {
		d.Reset()
	}
	return c.driver().Close()
}
