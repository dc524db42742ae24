package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jslopezg/velastore-backend/pkg/config"
	"github.com/jslopezg/velastore-backend/pkg/db/models"
	"github.com/jslopezg/velastore-backend/pkg/logger"
)

// WorkerState is the worker's position in its idle/syncing cycle.
type WorkerState string

const (
	StateIdle    WorkerState = "idle"
	StateSyncing WorkerState = "syncing"
)

// productSyncer is the slice of the sync service the worker drives.
type productSyncer interface {
	SyncFull(ctx context.Context, productID uuid.UUID) error
}

// oldestSelector picks the next sync candidate.
type oldestSelector interface {
	FindOldestStockSynced(ctx context.Context) (*models.Product, error)
}

// lockFactory builds the per-product lock guarding one sync cycle.
type lockFactory func(productID uuid.UUID) (Lock, error)

// Worker is the unattended sync loop. Each cycle picks the supplier-linked
// product whose stock sync is most overdue, takes its lock, and runs a paced
// full sync. The loop never exits on an ordinary error; it cools down and
// resumes. Cancellation lands between cycles, not mid-variant.
type Worker struct {
	syncer  productSyncer
	catalog oldestSelector
	locks   lockFactory
	cfg     config.SyncConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewWorker constructs the background sync worker. The service is switched
// into paced mode so variant calls trickle out instead of bursting.
func NewWorker(service *Service, catalog oldestSelector, redisClient lockStore, cfg config.SyncConfig, logg *logger.Logger) (*Worker, error) {
	if service == nil {
		return nil, fmt.Errorf("sync service required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &Worker{
		syncer:  service.Paced(),
		catalog: catalog,
		locks: func(productID uuid.UUID) (Lock, error) {
			return NewProductLock(redisClient, productID, cfg.ProductLockTTL)
		},
		cfg:  cfg,
		logg: logg,
		now:  time.Now,
	}, nil
}

// Run drives cycles until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		state, err := w.cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var delay time.Duration
		switch {
		case err != nil:
			if w.logg != nil {
				w.logg.Error(ctx, "sync cycle failed, cooling down", err)
			}
			delay = w.cfg.CrashCooldown
		case state == StateIdle:
			delay = w.cfg.IdleSleep
		default:
			delay = Jitter(w.cfg.ProductDelay, w.cfg.JitterFraction)
		}
		sleepContext(ctx, delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// cycle shields the loop from panics escaping a sync.
func (w *Worker) cycle(ctx context.Context) (state WorkerState, err error) {
	defer func() {
		if r := recover(); r != nil {
			state = StateSyncing
			err = fmt.Errorf("sync cycle panic: %v", r)
		}
	}()
	return w.RunOnce(ctx)
}

// RunOnce evaluates the selection rule and runs at most one full sync.
// Exposed so a single deterministic iteration can be driven directly.
func (w *Worker) RunOnce(ctx context.Context) (WorkerState, error) {
	product, err := w.catalog.FindOldestStockSynced(ctx)
	if err != nil {
		return StateIdle, err
	}
	if product == nil {
		return StateIdle, nil
	}
	if product.LastStockSyncedAt != nil && w.now().Sub(*product.LastStockSyncedAt) < w.cfg.ProductCooldown {
		return StateIdle, nil
	}

	lock, err := w.locks(product.ID)
	if err != nil {
		return StateIdle, err
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return StateIdle, err
	}
	if !acquired {
		// An on-demand sync owns this product right now.
		return StateIdle, nil
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && w.logg != nil {
			w.logg.Warn(ctx, "failed to release product sync lock")
		}
	}()

	if w.logg != nil {
		pctx := w.logg.WithProductID(ctx, product.ID.String())
		w.logg.Info(pctx, "starting full sync cycle")
	}
	return StateSyncing, w.syncer.SyncFull(ctx, product.ID)
}
