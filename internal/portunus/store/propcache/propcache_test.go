package propcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store/propcache"
)

type countingStore struct {
	store.PropertyStore
	gets int
}

func (c *countingStore) GetProp(ctx context.Context, table, key string) (string, error) {
	c.gets++
	return c.PropertyStore.GetProp(ctx, table, key)
}

func TestStore_CachesReads(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{PropertyStore: memory.NewPropertyStore(map[string]string{"mode": "0"})}
	ps := propcache.New(backing, time.Minute)

	for range 3 {
		v, err := ps.GetProp(ctx, store.TableConfigDU, "mode")
		require.NoError(t, err)
		assert.Equal(t, "0", v)
	}
	assert.Equal(t, 1, backing.gets)
}

func TestStore_WriteThrough(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewPropertyStore(nil)
	ps := propcache.New(backing, time.Minute)

	require.NoError(t, ps.SetProp(ctx, store.TableRunning, store.PropRebootPending, "1"))

	v, err := backing.GetProp(ctx, store.TableRunning, store.PropRebootPending)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = ps.GetProp(ctx, store.TableRunning, store.PropRebootPending)
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestStore_MissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{PropertyStore: memory.NewPropertyStore(nil)}
	ps := propcache.New(backing, time.Minute)

	_, err := ps.GetProp(ctx, store.TableRunning, "LastStart")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, _ = ps.GetProp(ctx, store.TableRunning, "LastStart")
	assert.Equal(t, 2, backing.gets)
}
