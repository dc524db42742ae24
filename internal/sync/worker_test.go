package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jslopezg/velastore-backend/pkg/config"
)

type fakeSyncer struct {
	calls  []uuid.UUID
	err    error
	panics bool
}

func (f *fakeSyncer) SyncFull(ctx context.Context, productID uuid.UUID) error {
	if f.panics {
		panic("boom")
	}
	f.calls = append(f.calls, productID)
	return f.err
}

type fakeLock struct {
	acquireOK   bool
	acquireErr  error
	acquired    bool
	released    bool
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	f.acquired = true
	return f.acquireOK, f.acquireErr
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released = true
	return nil
}

func newTestWorker(syncer *fakeSyncer, catalog *fakeCatalog, lock *fakeLock) *Worker {
	return &Worker{
		syncer:  syncer,
		catalog: catalog,
		locks: func(productID uuid.UUID) (Lock, error) {
			return lock, nil
		},
		cfg: config.SyncConfig{
			ProductCooldown: 30 * time.Minute,
			IdleSleep:       time.Millisecond,
			ProductDelay:    time.Millisecond,
			CrashCooldown:   time.Millisecond,
		},
		now: time.Now,
	}
}

func TestWorkerIdleWhenNoCandidate(t *testing.T) {
	syncer := &fakeSyncer{}
	worker := newTestWorker(syncer, &fakeCatalog{}, &fakeLock{acquireOK: true})

	state, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, syncer.calls)
}

func TestWorkerIdleWithinCooldown(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	product := linkedProduct(t)
	product.LastStockSyncedAt = &recent

	syncer := &fakeSyncer{}
	lock := &fakeLock{acquireOK: true}
	worker := newTestWorker(syncer, &fakeCatalog{product: product}, lock)

	state, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, syncer.calls)
	assert.False(t, lock.acquired)
}

func TestWorkerSyncsOverdueProduct(t *testing.T) {
	stale := time.Now().Add(-2 * time.Hour)
	product := linkedProduct(t)
	product.LastStockSyncedAt = &stale

	syncer := &fakeSyncer{}
	lock := &fakeLock{acquireOK: true}
	worker := newTestWorker(syncer, &fakeCatalog{product: product}, lock)

	state, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSyncing, state)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, product.ID, syncer.calls[0])
	assert.True(t, lock.released)
}

func TestWorkerSyncsNeverSyncedProduct(t *testing.T) {
	product := linkedProduct(t)
	product.LastStockSyncedAt = nil

	syncer := &fakeSyncer{}
	worker := newTestWorker(syncer, &fakeCatalog{product: product}, &fakeLock{acquireOK: true})

	state, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSyncing, state)
	assert.Len(t, syncer.calls, 1)
}

func TestWorkerSkipsLockedProduct(t *testing.T) {
	product := linkedProduct(t)

	syncer := &fakeSyncer{}
	worker := newTestWorker(syncer, &fakeCatalog{product: product}, &fakeLock{acquireOK: false})

	state, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, syncer.calls)
}

func TestWorkerCycleRecoversPanic(t *testing.T) {
	product := linkedProduct(t)
	worker := newTestWorker(&fakeSyncer{panics: true}, &fakeCatalog{product: product}, &fakeLock{acquireOK: true})

	state, err := worker.cycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, StateSyncing, state)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	worker := newTestWorker(&fakeSyncer{}, &fakeCatalog{}, &fakeLock{acquireOK: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := worker.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerSurfacesSyncError(t *testing.T) {
	product := linkedProduct(t)
	syncer := &fakeSyncer{err: assert.AnError}
	worker := newTestWorker(syncer, &fakeCatalog{product: product}, &fakeLock{acquireOK: true})

	state, err := worker.RunOnce(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, StateSyncing, state)
}
