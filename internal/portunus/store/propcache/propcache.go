// Package propcache fronts a PropertyStore with a short-lived read cache.
// Mode loops poll a handful of properties every few seconds; the cache keeps
// those polls off the database.
package propcache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
)

const (
	DefaultTTL   = 2 * time.Second
	cleanupEvery = time.Minute
	keySeparator = "\x00"
)

// Store is a read-through, write-through cache over a PropertyStore.
type Store struct {
	next  store.PropertyStore
	cache *cache.Cache
}

// New wraps next. ttl <= 0 uses DefaultTTL.
func New(next store.PropertyStore, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{next: next, cache: cache.New(ttl, cleanupEvery)}
}

func (s *Store) GetProp(ctx context.Context, table, key string) (string, error) {
	k := table + keySeparator + key
	if v, ok := s.cache.Get(k); ok {
		return v.(string), nil
	}
	v, err := s.next.GetProp(ctx, table, key)
	if err != nil {
		return "", err
	}
	s.cache.SetDefault(k, v)
	return v, nil
}

func (s *Store) SetProp(ctx context.Context, table, key, value string) error {
	if err := s.next.SetProp(ctx, table, key, value); err != nil {
		return err
	}
	s.cache.SetDefault(table+keySeparator+key, value)
	return nil
}

// Flush drops every cached value.
func (s *Store) Flush() { s.cache.Flush() }
