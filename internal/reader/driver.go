// Package reader implements the card reader protocol drivers. Exactly one
// Driver is active at a time; it feeds card reads into a queue that the
// operating mode drains with Read.
package reader

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

var (
	ErrNotInitialized = errors.New("reader driver not initialized")
	ErrUnknownReader  = errors.New("unknown reader")
)

const queueSize = 64

// Signal is a temporary visual/audible indication on a reader. A zero
// Duration applies it until the next signal. OnTime/OffTime blink the
// indication; zero OnTime keeps it steady.
type Signal struct {
	Color    hw.Color
	Buzzer   bool
	Duration time.Duration
	OnTime   time.Duration
	OffTime  time.Duration
}

type Driver interface {
	Protocol() types.Protocol
	// Init starts one read task per reader.
	Init(ctx context.Context, readers []types.ReaderInfo) error
	// Read returns the next queued credential without blocking.
	Read() (types.Credential, bool)
	SetSignal(readerID int, s Signal)
	SetDefaultSignal(readerID int)
	Close() error
}

// queue is the shared single-consumer credential queue.
type queue struct {
	ch     chan types.Credential
	logger *zap.Logger
}

func newQueue(logger *zap.Logger) queue {
	return queue{ch: make(chan types.Credential, queueSize), logger: logger}
}

func (q queue) push(c types.Credential) {
	select {
	case q.ch <- c:
	default:
		q.logger.Warn("credential queue full, dropping read", zap.Int("reader", c.ReaderID))
	}
}

func (q queue) Read() (types.Credential, bool) {
	select {
	case c := <-q.ch:
		return c, true
	default:
		return types.Credential{}, false
	}
}
