package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// AccessEventStore is an in-memory access log for tests and dev runs.
type AccessEventStore struct {
	mu     sync.Mutex
	nextID int64
	events []types.AccessRecord
}

func NewAccessEventStore() *AccessEventStore {
	return &AccessEventStore{nextID: 1}
}

func (s *AccessEventStore) RecordEvent(_ context.Context, rec types.AccessRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	if rec.EventID == "" {
		rec.EventID = uuid.NewString()
	}
	rec.ID = s.nextID
	s.nextID++
	s.events = append(s.events, rec)
	return rec.ID, nil
}

func (s *AccessEventStore) EventsWithStatus(_ context.Context, statuses ...types.Status) ([]types.AccessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.AccessRecord
	for _, e := range s.events {
		if slices.Contains(statuses, e.Status) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *AccessEventStore) UpdateStatus(_ context.Context, id int64, status types.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("UpdateStatus id=%d: %w", id, store.ErrNotFound)
}

// Events returns a copy of all recorded events. Test-only helper.
func (s *AccessEventStore) Events() []types.AccessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}
