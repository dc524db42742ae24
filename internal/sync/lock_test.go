package sync

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (f *fakeLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeLockStore) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeLockStore) LockKey(scope ...string) string {
	return "vs:lock:" + strings.Join(scope, ":")
}

func TestProductLockMutualExclusion(t *testing.T) {
	store := newFakeLockStore()
	productID := uuid.New()
	ctx := context.Background()

	first, err := NewProductLock(store, productID, time.Minute)
	require.NoError(t, err)
	second, err := NewProductLock(store, productID, time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockReleaseOnlyByOwner(t *testing.T) {
	store := newFakeLockStore()
	ctx := context.Background()

	holder, err := NewWorkerLock(store, time.Minute)
	require.NoError(t, err)
	bystander, err := NewWorkerLock(store, time.Minute)
	require.NoError(t, err)

	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A lock that never acquired must not free the holder's lock.
	require.NoError(t, bystander.Release(ctx))
	assert.Len(t, store.values, 1)

	require.NoError(t, holder.Release(ctx))
	assert.Empty(t, store.values)
}

func TestLockKeysAreScoped(t *testing.T) {
	store := newFakeLockStore()
	productID := uuid.New()
	ctx := context.Background()

	productLock, err := NewProductLock(store, productID, time.Minute)
	require.NoError(t, err)
	workerLock, err := NewWorkerLock(store, time.Minute)
	require.NoError(t, err)

	ok, err := productLock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = workerLock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
