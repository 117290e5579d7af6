package reader

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

const (
	// OSDPAddresses is the size of the OSDP address space.
	OSDPAddresses = 128
	// osdpConfigAddress answers on every bus and is never enrolled.
	osdpConfigAddress = 127
	secureKeyLen      = 16
)

// readFlash acknowledges every card read on the reader itself.
var readFlash = Signal{Color: hw.Green, Duration: 300 * time.Millisecond}

// EventKind identifies an OSDP peripheral event.
type EventKind int

const (
	EventCard   EventKind = 1
	EventTamper EventKind = 4
)

type Event struct {
	Kind EventKind
	Data []byte
}

// PD describes one peripheral device on the bus.
type PD struct {
	Address   int
	SecureKey []byte // nil when secure channel is off
}

// LEDCommand drives a reader LED. Counts are in 100 ms units.
type LEDCommand struct {
	Color     hw.Color
	OnCount   int
	OffCount  int
	Timer     time.Duration // zero sets the permanent state
	Temporary bool
}

// BuzzerCommand drives a reader buzzer. Counts are in 100 ms units.
type BuzzerCommand struct {
	OnCount  int
	OffCount int
	Repeat   int
}

// Panel is a running OSDP control panel session over a set of PDs.
type Panel interface {
	IsOnline(addr int) bool
	IsSecure(addr int) bool
	PollEvent(addr int) (Event, bool)
	SendLED(addr int, cmd LEDCommand) error
	SendBuzzer(addr int, cmd BuzzerCommand) error
	Close() error
}

// PanelFactory opens a control panel session. install requests secure
// channel key installation on the listed PDs.
type PanelFactory func(pds []PD, install bool) (Panel, error)

type OSDPOptions struct {
	// Settle is how long a freshly opened panel is given for PDs to come online.
	Settle     time.Duration
	BatchSize  int
	MaxReaders int
	Poll       time.Duration
}

func (o *OSDPOptions) defaults() {
	if o.Settle <= 0 {
		o.Settle = time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}
	if o.MaxReaders <= 0 {
		o.MaxReaders = 2
	}
	if o.Poll <= 0 {
		o.Poll = 50 * time.Millisecond
	}
}

type OSDP struct {
	tasks   *taskmgr.Manager
	logger  *zap.Logger
	factory PanelFactory
	opts    OSDPOptions
	queue

	mu     sync.Mutex
	panel  Panel
	addrs  map[int]int // reader id -> bus address
	tamper map[int]bool
}

func NewOSDP(tasks *taskmgr.Manager, logger *zap.Logger, factory PanelFactory, opts OSDPOptions) *OSDP {
	logger = logger.Named("osdp")
	opts.defaults()
	return &OSDP{
		tasks:   tasks,
		logger:  logger,
		factory: factory,
		opts:    opts,
		queue:   newQueue(logger),
		addrs:   make(map[int]int),
		tamper:  make(map[int]bool),
	}
}

func (o *OSDP) Protocol() types.Protocol { return types.ProtocolOSDP }

func (o *OSDP) Init(_ context.Context, readers []types.ReaderInfo) error {
	pds := make([]PD, 0, len(readers))
	addrs := make(map[int]int, len(readers))
	for _, r := range readers {
		if r.Address == nil {
			return fmt.Errorf("osdp init: reader %d has no address", r.ID)
		}
		pd := PD{Address: *r.Address}
		if r.SecureKey != "" {
			key, err := hex.DecodeString(r.SecureKey)
			if err != nil || len(key) != secureKeyLen {
				return fmt.Errorf("osdp init: reader %d: bad secure key", r.ID)
			}
			pd.SecureKey = key
		}
		pds = append(pds, pd)
		addrs[r.ID] = *r.Address
	}

	panel, err := o.factory(pds, false)
	if err != nil {
		return fmt.Errorf("osdp init: open panel: %w", err)
	}

	o.mu.Lock()
	o.panel = panel
	o.addrs = addrs
	o.mu.Unlock()

	for id, addr := range addrs {
		if err := o.tasks.Start(fmt.Sprintf("osdp-events-%d", id), func(ctx context.Context) {
			o.eventLoop(ctx, id, addr, panel)
		}); err != nil {
			return fmt.Errorf("osdp init: %w", err)
		}
	}
	return nil
}

func (o *OSDP) eventLoop(ctx context.Context, id, addr int, panel Panel) {
	logger := o.logger.With(zap.Int("reader", id), zap.Int("address", addr))
	for taskmgr.Sleep(ctx, o.opts.Poll) {
		ev, ok := panel.PollEvent(addr)
		if !ok {
			continue
		}
		switch ev.Kind {
		case EventCard:
			card, err := DecodeCard(ev.Data)
			if err != nil {
				logger.Warn("bad card event", zap.Error(err))
				continue
			}
			logger.Debug("card read", zap.String("card", card))
			o.SetSignal(id, readFlash)
			o.push(types.Credential{ReaderID: id, CardID: card})
		case EventTamper:
			o.mu.Lock()
			o.tamper[id] = !o.tamper[id]
			state := o.tamper[id]
			o.mu.Unlock()
			logger.Warn("reader tamper", zap.Bool("tamper", state))
		default:
			logger.Debug("ignored event", zap.Int("kind", int(ev.Kind)))
		}
	}
}

// DecodeCard formats the first two 16-bit big-endian fields of a card event
// as "%05d %07d".
func DecodeCard(data []byte) (string, error) {
	if len(data) < 4 {
		return "", fmt.Errorf("card data too short: %d bytes", len(data))
	}
	hi := uint16(data[0])<<8 | uint16(data[1])
	lo := uint16(data[2])<<8 | uint16(data[3])
	return fmt.Sprintf("%05d %07d", hi, lo), nil
}

// Tamper reports the current tamper flag of a reader.
func (o *OSDP) Tamper(readerID int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tamper[readerID]
}

func (o *OSDP) target(readerID int) (Panel, int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	addr, ok := o.addrs[readerID]
	return o.panel, addr, ok && o.panel != nil
}

func counts(d time.Duration) int {
	return int(d / (100 * time.Millisecond))
}

func (o *OSDP) SetSignal(readerID int, s Signal) {
	panel, addr, ok := o.target(readerID)
	if !ok {
		o.logger.Warn("signal for inactive reader", zap.Int("reader", readerID))
		return
	}

	on, off := counts(s.OnTime), counts(s.OffTime)
	if on == 0 {
		on = counts(s.Duration)
	}
	led := LEDCommand{Color: s.Color, OnCount: on, OffCount: off, Timer: s.Duration, Temporary: s.Duration > 0}
	if err := panel.SendLED(addr, led); err != nil {
		o.logger.Warn("led command failed", zap.Int("reader", readerID), zap.Error(err))
	}

	if !s.Buzzer {
		return
	}
	bz := BuzzerCommand{OnCount: max(on, 1), OffCount: off, Repeat: 1}
	if period := s.OnTime + s.OffTime; period > 0 {
		bz.Repeat = max(int(s.Duration/period), 1)
	}
	if err := panel.SendBuzzer(addr, bz); err != nil {
		o.logger.Warn("buzzer command failed", zap.Int("reader", readerID), zap.Error(err))
	}
}

func (o *OSDP) SetDefaultSignal(readerID int) {
	panel, addr, ok := o.target(readerID)
	if !ok {
		return
	}
	if err := panel.SendLED(addr, LEDCommand{Color: hw.Red}); err != nil {
		o.logger.Warn("led command failed", zap.Int("reader", readerID), zap.Error(err))
	}
}

// Scan polls the whole address space in batches and returns the addresses
// that came online, at most MaxReaders of them.
func (o *OSDP) Scan(ctx context.Context) ([]int, error) {
	var found []int
	for start := 0; start < OSDPAddresses && len(found) < o.opts.MaxReaders; start += o.opts.BatchSize {
		end := min(start+o.opts.BatchSize, OSDPAddresses)
		pds := make([]PD, 0, end-start)
		for a := start; a < end; a++ {
			pds = append(pds, PD{Address: a})
		}

		online, err := o.sweep(ctx, pds, false, func(p Panel, addr int) bool { return p.IsOnline(addr) })
		if err != nil {
			return nil, err
		}
		o.logger.Debug("scan batch", zap.Int("from", start), zap.Int("to", end-1), zap.Ints("online", online))
		found = append(found, online...)
	}

	found = slices.DeleteFunc(found, func(a int) bool { return a == osdpConfigAddress })
	if len(found) > o.opts.MaxReaders {
		found = found[:o.opts.MaxReaders]
	}
	o.logger.Info("scan finished", zap.Ints("addresses", found))
	return found, nil
}

// GenerateSecureKeys creates one random secure channel key per address and
// installs it. With secure off every key is empty.
func (o *OSDP) GenerateSecureKeys(ctx context.Context, addrs []int, secure bool) (map[int]string, error) {
	keys := make(map[int]string, len(addrs))
	if !secure {
		for _, a := range addrs {
			keys[a] = ""
		}
		return keys, nil
	}

	pds := make([]PD, 0, len(addrs))
	for _, a := range addrs {
		key := make([]byte, secureKeyLen)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		keys[a] = hex.EncodeToString(key)
		pds = append(pds, PD{Address: a, SecureKey: key})
	}

	secured, err := o.sweep(ctx, pds, true, func(p Panel, addr int) bool { return p.IsSecure(addr) })
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if !slices.Contains(secured, a) {
			o.logger.Warn("secure channel not established", zap.Int("address", a))
		}
	}
	return keys, nil
}

// sweep opens a panel over pds, waits Settle and returns the addresses
// accepted by check.
func (o *OSDP) sweep(ctx context.Context, pds []PD, install bool, check func(Panel, int) bool) ([]int, error) {
	panel, err := o.factory(pds, install)
	if err != nil {
		return nil, fmt.Errorf("open panel: %w", err)
	}
	defer panel.Close()

	if !taskmgr.Sleep(ctx, o.opts.Settle) {
		return nil, ctx.Err()
	}
	var out []int
	for _, pd := range pds {
		if check(panel, pd.Address) {
			out = append(out, pd.Address)
		}
	}
	return out, nil
}

func (o *OSDP) Close() error {
	o.mu.Lock()
	panel := o.panel
	o.panel = nil
	o.addrs = make(map[int]int)
	o.mu.Unlock()
	if panel == nil {
		return nil
	}
	return panel.Close()
}
