// Package taskmgr supervises the unit's background loops.
//
// Every loop is either a named task (a supervision loop that is started at
// most once and joined on StopAll) or a pooled task (per-event work such as
// handling one card read). Both kinds share one capacity ceiling, and every
// task observes the same cancellation context.
package taskmgr

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultCapacity = 20

var (
	ErrCapacity = errors.New("task capacity exceeded")
	ErrStopped  = errors.New("task manager stopped")
	ErrNoName   = errors.New("task name is required")
)

type task struct {
	done chan struct{}
}

func (t *task) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

type Manager struct {
	logger *zap.Logger
	slots  chan struct{}

	mu     sync.Mutex
	named  map[string]*task
	ctx    context.Context
	cancel context.CancelFunc
	pooled sync.WaitGroup
}

// New returns a Manager allowing at most capacity live tasks.
// capacity <= 0 uses DefaultCapacity.
func New(logger *zap.Logger, capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Manager{
		logger: logger,
		slots:  make(chan struct{}, capacity),
		named:  make(map[string]*task),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Context is cancelled by StopAll.
func (m *Manager) Context() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// Stopped reports whether StopAll has been requested for the current run.
func (m *Manager) Stopped() bool {
	return m.Context().Err() != nil
}

// Start runs fn as the named task name. If a task with that name is still
// alive Start returns nil without starting another. When the capacity is
// exhausted the task is refused with ErrCapacity.
func (m *Manager) Start(name string, fn func(ctx context.Context)) error {
	if name == "" {
		return ErrNoName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return ErrStopped
	}
	if t, ok := m.named[name]; ok && t.alive() {
		return nil
	}

	select {
	case m.slots <- struct{}{}:
	default:
		m.logger.Warn("task refused, capacity reached",
			zap.String("task", name), zap.Int("capacity", cap(m.slots)))
		return fmt.Errorf("start %s: %w", name, ErrCapacity)
	}

	t := &task{done: make(chan struct{})}
	m.named[name] = t
	ctx := m.ctx
	go func() {
		defer close(t.done)
		defer m.release()
		m.run(ctx, name, fn)
	}()
	return nil
}

// Go submits fn to the shared pool, waiting for a free slot until ctx is
// done or the manager is stopped. Pooled tasks are drained by StopAll.
func (m *Manager) Go(ctx context.Context, fn func(ctx context.Context)) error {
	runCtx := m.Context()
	if runCtx.Err() != nil {
		return ErrStopped
	}

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-runCtx.Done():
		return ErrStopped
	}

	m.mu.Lock()
	if m.ctx != runCtx || runCtx.Err() != nil {
		m.mu.Unlock()
		m.release()
		return ErrStopped
	}
	m.pooled.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.pooled.Done()
		defer m.release()
		m.run(runCtx, "", fn)
	}()
	return nil
}

func (m *Manager) release() { <-m.slots }

func (m *Manager) run(ctx context.Context, name string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("task panicked",
				zap.String("task", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn(ctx)
}

// IsAlive reports whether the named task is still running.
func (m *Manager) IsAlive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.named[name]
	return ok && t.alive()
}

// PurgeDead forgets finished named tasks and returns how many were removed.
func (m *Manager) PurgeDead() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for name, t := range m.named {
		if !t.alive() {
			delete(m.named, name)
			n++
		}
	}
	return n
}

// Names returns the names of live named tasks, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.named))
	for name, t := range m.named {
		if t.alive() {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Len returns the number of live tasks, named and pooled.
func (m *Manager) Len() int { return len(m.slots) }

// StopAll cancels the shared context, joins every named task, drains the
// pool and then resets the manager so it can be started again.
func (m *Manager) StopAll() {
	m.mu.Lock()
	m.cancel()
	tasks := make([]*task, 0, len(m.named))
	for _, t := range m.named {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		<-t.done
	}
	m.pooled.Wait()

	m.mu.Lock()
	m.named = make(map[string]*task)
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.mu.Unlock()
}

// Sleep waits for d or until ctx is done. It returns false if ctx ended first.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Every calls fn immediately and then every interval until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
