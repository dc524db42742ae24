package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jslopezg/velastore-backend/api/responses"
	syncpkg "github.com/jslopezg/velastore-backend/internal/sync"
	"github.com/jslopezg/velastore-backend/pkg/config"
	"github.com/jslopezg/velastore-backend/pkg/enums"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"
)

// SyncService is the on-demand trigger surface over the sync operations.
type SyncService interface {
	SyncPrice(ctx context.Context, productID uuid.UUID) error
	SyncStock(ctx context.Context, productID uuid.UUID) error
	SyncShipping(ctx context.Context, productID uuid.UUID) error
	SyncFull(ctx context.Context, productID uuid.UUID) error
}

// SyncLockStore is the redis surface backing the per-product sync locks.
type SyncLockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope ...string) string
}

// TriggerSync runs one sync operation against one product. The per-product
// lock keeps an on-demand trigger from racing the background worker or a
// second trigger on the same product.
func TriggerSync(svc SyncService, locks SyncLockStore, cfg config.SyncConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		operation := enums.SyncOperation(chi.URLParam(r, "operation"))
		if !operation.IsValid() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown sync operation"))
			return
		}

		lock, err := syncpkg.NewProductLock(locks, productID, cfg.ProductLockTTL)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire sync lock"))
			return
		}
		if !acquired {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a sync for this product is already running"))
			return
		}
		defer func() {
			if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && logg != nil {
				logg.Warn(ctx, "failed to release product sync lock")
			}
		}()

		var runErr error
		switch operation {
		case enums.SyncOperationPrice:
			runErr = svc.SyncPrice(ctx, productID)
		case enums.SyncOperationStock:
			runErr = svc.SyncStock(ctx, productID)
		case enums.SyncOperationShipping:
			runErr = svc.SyncShipping(ctx, productID)
		case enums.SyncOperationFull:
			runErr = svc.SyncFull(ctx, productID)
		}
		if runErr != nil {
			responses.WriteError(ctx, logg, w, runErr)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"message": fmt.Sprintf("%s sync completed", operation),
		})
	}
}
