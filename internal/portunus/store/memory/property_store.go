package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
)

type PropertyStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewPropertyStore returns a store with the ConfigDU table preloaded from
// configDU (which may be nil).
func NewPropertyStore(configDU map[string]string) *PropertyStore {
	s := &PropertyStore{data: map[string]map[string]string{
		store.TableRunning:  {},
		store.TableConfigDU: {},
	}}
	for k, v := range configDU {
		s.data[store.TableConfigDU][k] = v
	}
	return s
}

func (s *PropertyStore) GetProp(_ context.Context, table, key string) (string, error) {
	if err := store.CheckTable(table); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[table][key]
	if !ok {
		return "", fmt.Errorf("%s.%s: %w", table, key, store.ErrNotFound)
	}
	return v, nil
}

func (s *PropertyStore) SetProp(_ context.Context, table, key, value string) error {
	if err := store.CheckTable(table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[table][key] = value
	return nil
}
