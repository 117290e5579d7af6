package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

type TimePlanStore struct {
	mu    sync.RWMutex
	plans []types.TimePlanRecord
}

func NewTimePlanStore(recs ...types.TimePlanRecord) *TimePlanStore {
	return &TimePlanStore{plans: slices.Clone(recs)}
}

func (s *TimePlanStore) TimePlans(context.Context) ([]types.TimePlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.plans), nil
}

func (s *TimePlanStore) ReplaceTimePlans(_ context.Context, recs []types.TimePlanRecord) error {
	s.mu.Lock()
	s.plans = slices.Clone(recs)
	s.mu.Unlock()
	return nil
}
