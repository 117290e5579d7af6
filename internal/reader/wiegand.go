package reader

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

// Source yields one card id per call, or "" when nothing was read.
type Source interface {
	ReadCard(ctx context.Context) (string, error)
}

type deviceSource struct{ path string }

// DeviceSource reads card ids from a Wiegand character device such as /dev/wie1.
func DeviceSource(path string) Source { return deviceSource{path: path} }

func (d deviceSource) ReadCard(context.Context) (string, error) {
	b, err := os.ReadFile(d.path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// WiegandPort is the wiring of one Wiegand reader.
type WiegandPort struct {
	Source Source
	Red    hw.OutputPin
	Green  hw.OutputPin
	Buzzer hw.OutputPin

	signalMu sync.Mutex
}

type Wiegand struct {
	tasks  *taskmgr.Manager
	logger *zap.Logger
	poll   time.Duration
	queue

	mu      sync.Mutex
	ports   map[int]*WiegandPort
	active  map[int]bool
	signals map[int]chan Signal
}

// NewWiegand builds the driver over ports keyed by reader id. poll is the
// pause between device reads.
func NewWiegand(tasks *taskmgr.Manager, logger *zap.Logger, ports map[int]*WiegandPort, poll time.Duration) *Wiegand {
	logger = logger.Named("wiegand")
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Wiegand{
		tasks:   tasks,
		logger:  logger,
		poll:    poll,
		queue:   newQueue(logger),
		ports:   ports,
		active:  make(map[int]bool),
		signals: make(map[int]chan Signal),
	}
}

func (w *Wiegand) Protocol() types.Protocol { return types.ProtocolWiegand }

func (w *Wiegand) Init(_ context.Context, readers []types.ReaderInfo) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range readers {
		port, ok := w.ports[r.ID]
		if !ok {
			return fmt.Errorf("wiegand init: reader %d: %w", r.ID, ErrUnknownReader)
		}
		id := r.ID
		if err := w.tasks.Start(fmt.Sprintf("wiegand-read-%d", id), func(ctx context.Context) {
			w.readLoop(ctx, id, port)
		}); err != nil {
			return fmt.Errorf("wiegand init: %w", err)
		}
		signals := make(chan Signal, 1)
		if err := w.tasks.Start(fmt.Sprintf("wiegand-signal-%d", id), func(ctx context.Context) {
			w.signalLoop(ctx, port, signals)
		}); err != nil {
			return fmt.Errorf("wiegand init: %w", err)
		}
		w.active[id] = true
		w.signals[id] = signals
		w.setDefault(port)
	}
	return nil
}

func (w *Wiegand) readLoop(ctx context.Context, id int, port *WiegandPort) {
	logger := w.logger.With(zap.Int("reader", id))
	for ctx.Err() == nil {
		card, err := port.Source.ReadCard(ctx)
		if err != nil {
			logger.Warn("reader device read failed, reader disabled until restart", zap.Error(err))
			return
		}
		if card != "" {
			logger.Debug("card read", zap.String("card", card))
			w.push(types.Credential{ReaderID: id, CardID: card})
		}
		if !taskmgr.Sleep(ctx, w.poll) {
			return
		}
	}
}

func (w *Wiegand) port(readerID int) (*WiegandPort, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.ports[readerID]
	return p, ok && w.active[readerID]
}

// SetSignal hands the signal to the reader's signal task and never blocks.
// A signal still waiting behind the one being played is replaced.
func (w *Wiegand) SetSignal(readerID int, s Signal) {
	w.mu.Lock()
	signals, ok := w.signals[readerID]
	ok = ok && w.active[readerID]
	w.mu.Unlock()
	if !ok {
		w.logger.Warn("signal for inactive reader", zap.Int("reader", readerID))
		return
	}
	for range 2 {
		select {
		case signals <- s:
			return
		default:
		}
		select {
		case <-signals:
		default:
		}
	}
	w.logger.Warn("signal dropped", zap.Int("reader", readerID))
}

func (w *Wiegand) signalLoop(ctx context.Context, port *WiegandPort, signals <-chan Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-signals:
			port.signalMu.Lock()
			w.play(ctx, port, s)
			port.signalMu.Unlock()
		}
	}
}

func (w *Wiegand) play(ctx context.Context, port *WiegandPort, s Signal) {
	w.show(port, s.Color, s.Buzzer)
	if s.Duration <= 0 {
		return
	}
	defer w.setDefault(port)

	if s.OnTime <= 0 {
		taskmgr.Sleep(ctx, s.Duration)
		return
	}
	deadline := time.Now().Add(s.Duration)
	for time.Now().Before(deadline) {
		w.show(port, s.Color, s.Buzzer)
		if !taskmgr.Sleep(ctx, s.OnTime) {
			return
		}
		w.show(port, hw.Off, false)
		if !taskmgr.Sleep(ctx, s.OffTime) {
			return
		}
	}
}

func (w *Wiegand) SetDefaultSignal(readerID int) {
	if port, ok := w.port(readerID); ok {
		port.signalMu.Lock()
		w.setDefault(port)
		port.signalMu.Unlock()
	}
}

func (w *Wiegand) setDefault(port *WiegandPort) {
	w.show(port, hw.Off, false)
}

func (w *Wiegand) show(port *WiegandPort, c hw.Color, buzzer bool) {
	write(port.Red, c.R)
	write(port.Green, c.G)
	write(port.Buzzer, buzzer)
}

func write(p hw.OutputPin, v bool) {
	if p != nil {
		_ = p.Write(v)
	}
}

func (w *Wiegand) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.active {
		w.setDefault(w.ports[id])
	}
	w.active = make(map[int]bool)
	w.signals = make(map[int]chan Signal)
	return nil
}
