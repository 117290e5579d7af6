package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

type ReaderStore struct {
	mu       sync.RWMutex
	readers  map[int]types.ReaderInfo
	monitors map[int]bool
}

// NewReaderStore seeds rows; pass none for two default Wiegand readers.
func NewReaderStore(rows ...types.ReaderInfo) *ReaderStore {
	if len(rows) == 0 {
		rows = []types.ReaderInfo{
			{ID: 1, Protocol: types.ProtocolWiegand, Active: true},
			{ID: 2, Protocol: types.ProtocolWiegand, Active: true},
		}
	}
	s := &ReaderStore{readers: make(map[int]types.ReaderInfo), monitors: make(map[int]bool)}
	for _, r := range rows {
		s.readers[r.ID] = r
	}
	return s
}

func (s *ReaderStore) ActiveReaders(context.Context) ([]types.ReaderInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ReaderInfo
	for _, r := range s.readers {
		if r.Active {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b types.ReaderInfo) int { return a.ID - b.ID })
	return out, nil
}

func (s *ReaderStore) DeactivateAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.readers {
		r.Active = false
		s.readers[id] = r
	}
	return nil
}

func (s *ReaderStore) Activate(_ context.Context, info types.ReaderInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.readers[info.ID]
	if !ok {
		r = types.ReaderInfo{ID: info.ID}
	}
	r.Protocol = info.Protocol
	r.Address = info.Address
	r.SecureKey = info.SecureKey
	r.Active = true
	s.readers[info.ID] = r
	return nil
}

func (s *ReaderStore) SetMonitor(_ context.Context, readerID int, open bool) error {
	s.mu.Lock()
	s.monitors[readerID] = open
	s.mu.Unlock()
	return nil
}

// Monitor returns the last persisted monitor state. Test-only helper.
func (s *ReaderStore) Monitor(readerID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitors[readerID]
}
