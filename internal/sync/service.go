package sync

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/jslopezg/velastore-backend/internal/supplier"
	"github.com/jslopezg/velastore-backend/pkg/concurrency"
	"github.com/jslopezg/velastore-backend/pkg/config"
	"github.com/jslopezg/velastore-backend/pkg/db/models"
	"github.com/jslopezg/velastore-backend/pkg/enums"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"
	"github.com/jslopezg/velastore-backend/pkg/metrics"
)

// ErrNotLinked signals that the product carries no supplier linkage and is
// therefore outside this subsystem's authority.
var ErrNotLinked = pkgerrors.New(pkgerrors.CodeStateConflict, "product is not supplier-managed")

// supplierAPI is the remote surface the sync operations consume.
type supplierAPI interface {
	GetProduct(ctx context.Context, token, supplierProductID string) (*supplier.RemoteProduct, error)
	GetVariantStockByID(ctx context.Context, token, supplierVariantID string) ([]supplier.WarehouseStock, error)
	GetVariantStockBySKU(ctx context.Context, token, sku string) ([]supplier.WarehouseStock, error)
	FreightCalculate(ctx context.Context, token, supplierVariantID, destinationCountry string) ([]supplier.FreightOption, error)
}

// tokenSource yields a usable access token or supplier.ErrNotConnected.
type tokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// catalogStore is the catalog surface the sync operations read and write.
type catalogStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindOldestStockSynced(ctx context.Context) (*models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error
	AdvanceSyncTimestamps(ctx context.Context, productID uuid.UUID, at time.Time, price, stock, shipping bool) error
}

// Service implements the four catalog sync operations. Per-variant remote
// calls run under bounded concurrency; per-variant failures are absorbed by
// keeping the previous value, while token, linkage, and product-level fetch
// failures surface to the caller.
type Service struct {
	tokens  tokenSource
	api     supplierAPI
	catalog catalogStore
	cfg     config.SyncConfig
	met     *metrics.SyncMetrics
	logg    *logger.Logger
	now     func() time.Time

	// paced serializes variant calls with jittered delays. Only the
	// background worker runs paced; on-demand triggers stay parallel.
	paced bool
}

// NewService constructs the sync service.
func NewService(tokens tokenSource, api supplierAPI, catalog catalogStore, cfg config.SyncConfig, met *metrics.SyncMetrics, logg *logger.Logger) (*Service, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token manager required")
	}
	if api == nil {
		return nil, fmt.Errorf("supplier client required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Service{
		tokens:  tokens,
		api:     api,
		catalog: catalog,
		cfg:     cfg,
		met:     met,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Paced returns a copy of the service that runs variant calls one at a time
// with a jittered delay between them, approximating human-paced usage.
func (s *Service) Paced() *Service {
	clone := *s
	clone.paced = true
	return &clone
}

// SyncPrice refreshes variant prices from the remote product and re-derives
// the product's base price. Local variants without a remote match are left
// untouched.
func (s *Service) SyncPrice(ctx context.Context, productID uuid.UUID) error {
	return s.instrument(ctx, enums.SyncOperationPrice, productID, func(ctx context.Context, token string, product *models.Product) error {
		remote, err := s.api.GetProduct(ctx, token, *product.SupplierProductID)
		if err != nil {
			return err
		}
		s.applyRemotePrices(product, remote)
		product.RecalcDerived()
		if err := s.catalog.SaveProduct(ctx, product); err != nil {
			return err
		}
		return s.catalog.AdvanceSyncTimestamps(ctx, product.ID, s.now().UTC(), true, false, false)
	})
}

// SyncStock refreshes each variant's stock from the per-warehouse query,
// falling back to the SKU query, and re-derives the aggregate. A variant
// whose queries keep failing retains its previous stock.
func (s *Service) SyncStock(ctx context.Context, productID uuid.UUID) error {
	return s.instrument(ctx, enums.SyncOperationStock, productID, func(ctx context.Context, token string, product *models.Product) error {
		s.resolveStocks(ctx, token, product)
		product.RecalcDerived()
		if err := s.catalog.SaveProduct(ctx, product); err != nil {
			return err
		}
		return s.catalog.AdvanceSyncTimestamps(ctx, product.ID, s.now().UTC(), false, true, false)
	})
}

// SyncShipping refreshes each variant's freight quotes for the home market
// and selects the fee to charge. A variant whose quotes keep failing retains
// its previous rates.
func (s *Service) SyncShipping(ctx context.Context, productID uuid.UUID) error {
	return s.instrument(ctx, enums.SyncOperationShipping, productID, func(ctx context.Context, token string, product *models.Product) error {
		s.resolveShipping(ctx, token, product)
		if err := s.catalog.SaveProduct(ctx, product); err != nil {
			return err
		}
		return s.catalog.AdvanceSyncTimestamps(ctx, product.ID, s.now().UTC(), false, false, true)
	})
}

// SyncFull runs one remote product fetch, then stock and shipping resolution
// per variant, and re-derives every aggregate. All three sync timestamps
// advance together once the product is loaded and linked, even when inner
// steps fail, so a permanently broken product cannot monopolize the
// oldest-synced selection.
func (s *Service) SyncFull(ctx context.Context, productID uuid.UUID) error {
	return s.instrument(ctx, enums.SyncOperationFull, productID, func(ctx context.Context, token string, product *models.Product) (err error) {
		defer func() {
			stampErr := s.catalog.AdvanceSyncTimestamps(ctx, product.ID, s.now().UTC(), true, true, true)
			if err == nil {
				err = stampErr
			}
		}()

		remote, fetchErr := s.api.GetProduct(ctx, token, *product.SupplierProductID)
		if fetchErr != nil {
			return fetchErr
		}
		s.applyRemoteIdentity(product, remote)
		s.pause(ctx)
		s.resolveStocks(ctx, token, product)
		s.pause(ctx)
		s.resolveShipping(ctx, token, product)
		product.RecalcDerived()
		return s.catalog.SaveProduct(ctx, product)
	})
}

// instrument loads and authorizes the product, runs the operation body, and
// records metrics and structured logs around it.
func (s *Service) instrument(ctx context.Context, op enums.SyncOperation, productID uuid.UUID, body func(ctx context.Context, token string, product *models.Product) error) error {
	start := s.now()
	ctx = s.withLogFields(ctx, op, productID)

	err := func() error {
		token, err := s.tokens.GetValidAccessToken(ctx)
		if err != nil {
			return err
		}
		product, err := s.catalog.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if !product.IsSupplierManaged() {
			return ErrNotLinked
		}
		return body(ctx, token, product)
	}()

	s.met.ObserveDuration(op.String(), s.now().Sub(start))
	if err != nil {
		s.met.IncFailure(op.String())
		if s.logg != nil {
			s.logg.Error(ctx, "catalog sync failed", err)
		}
		return err
	}
	s.met.IncSuccess(op.String())
	if s.logg != nil {
		s.logg.Info(ctx, "catalog sync completed")
	}
	return nil
}

func (s *Service) withLogFields(ctx context.Context, op enums.SyncOperation, productID uuid.UUID) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithOperation(ctx, op.String())
	return s.logg.WithProductID(ctx, productID.String())
}

// applyRemotePrices rewrites each matched variant's price from the remote
// payload through the markup rule. The variant's current cost is the last
// fallback, so a remote record with no usable price keeps the previous value.
func (s *Service) applyRemotePrices(product *models.Product, remote *supplier.RemoteProduct) {
	byVID := indexRemoteVariants(remote)
	for i := range product.Variants {
		v := &product.Variants[i]
		rv, ok := byVID[v.SupplierVariantID]
		if !ok {
			continue
		}
		v.PriceCents = MarkupCents(resolveCost(rv, *remote, currentCost(v.PriceCents)))
	}
}

// applyRemoteIdentity refreshes matched variants' attributes and prices from
// the normalized remote records. Variants the remote no longer lists are
// preserved as-is; the supplier variant id is the stable match key.
func (s *Service) applyRemoteIdentity(product *models.Product, remote *supplier.RemoteProduct) {
	byVID := indexRemoteVariants(remote)
	for i := range product.Variants {
		v := &product.Variants[i]
		rv, ok := byVID[v.SupplierVariantID]
		if !ok {
			continue
		}
		norm := NormalizeVariant(rv, *remote, currentCost(v.PriceCents))
		v.PriceCents = norm.PriceCents
		if norm.Color != "" {
			v.Color = norm.Color
		}
		if norm.Size != "" {
			v.Size = norm.Size
		}
		if norm.Image != "" {
			v.Image = norm.Image
		}
		if norm.SupplierSKU != "" {
			v.SupplierSKU = norm.SupplierSKU
		}
	}
}

// resolveStocks queries stock for every linked variant under bounded
// concurrency and writes the sums in place. Exhausted retries keep the
// previous value and count a skip.
func (s *Service) resolveStocks(ctx context.Context, token string, product *models.Product) {
	results := concurrency.MapConcurrent(ctx, product.Variants, func(ctx context.Context, v models.Variant) (int, error) {
		if v.SupplierVariantID == "" {
			return v.Stock, nil
		}
		defer s.variantPause(ctx)
		return s.fetchVariantStock(ctx, token, v)
	}, s.concurrencyCap())

	for i, res := range results {
		if res.Err != nil {
			s.met.IncVariantSkip(enums.SyncOperationStock.String())
			if s.logg != nil {
				vctx := s.logg.WithVariantID(ctx, product.Variants[i].ID.String())
				s.logg.Warn(vctx, "stock query exhausted retries, keeping previous value")
			}
			continue
		}
		product.Variants[i].Stock = res.Value
	}
}

func (s *Service) fetchVariantStock(ctx context.Context, token string, v models.Variant) (int, error) {
	var total int
	backoff := retry.WithMaxRetries(uint64(s.cfg.StockRetries), retry.NewConstant(s.cfg.StockRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		entries, err := s.api.GetVariantStockByID(ctx, token, v.SupplierVariantID)
		if err != nil && v.SupplierSKU != "" {
			entries, err = s.api.GetVariantStockBySKU(ctx, token, v.SupplierSKU)
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		total = sumWarehouseStock(entries)
		return nil
	})
	return total, err
}

// resolveShipping quotes freight to the home market for every linked variant
// under bounded concurrency and writes the sorted rates and selected fee in
// place. Exhausted retries keep the previous rates and count a skip.
func (s *Service) resolveShipping(ctx context.Context, token string, product *models.Product) {
	type quote struct {
		rates []models.ShippingRate
		fee   int
	}
	results := concurrency.MapConcurrent(ctx, product.Variants, func(ctx context.Context, v models.Variant) (quote, error) {
		if v.SupplierVariantID == "" {
			return quote{rates: v.ShippingRates, fee: v.ShippingFeeCents}, nil
		}
		defer s.variantPause(ctx)

		var options []supplier.FreightOption
		backoff := retry.WithMaxRetries(uint64(s.cfg.FreightRetries), retry.NewConstant(s.cfg.FreightRetryDelay))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			quoted, err := s.api.FreightCalculate(ctx, token, v.SupplierVariantID, s.cfg.HomeCountry)
			if err != nil {
				return retry.RetryableError(err)
			}
			options = quoted
			return nil
		})
		if err != nil {
			return quote{}, err
		}
		rates := NormalizeRates(options, s.cfg.HomeCountry)
		return quote{rates: rates, fee: SelectShippingFee(rates, s.cfg.HomeCountry)}, nil
	}, s.concurrencyCap())

	for i, res := range results {
		if res.Err != nil {
			s.met.IncVariantSkip(enums.SyncOperationShipping.String())
			if s.logg != nil {
				vctx := s.logg.WithVariantID(ctx, product.Variants[i].ID.String())
				s.logg.Warn(vctx, "freight query exhausted retries, keeping previous rates")
			}
			continue
		}
		product.Variants[i].ShippingRates = res.Value.rates
		product.Variants[i].ShippingFeeCents = res.Value.fee
	}
}

func (s *Service) concurrencyCap() int {
	if s.paced {
		return 1
	}
	if s.cfg.MaxConcurrent > 0 {
		return s.cfg.MaxConcurrent
	}
	return 1
}

// pause separates the phases of a paced full sync.
func (s *Service) pause(ctx context.Context) {
	if s.paced {
		sleepContext(ctx, Jitter(s.cfg.VariantDelay, s.cfg.JitterFraction))
	}
}

// variantPause spaces out consecutive variant calls in paced mode.
func (s *Service) variantPause(ctx context.Context) {
	if s.paced {
		sleepContext(ctx, Jitter(s.cfg.VariantDelay, s.cfg.JitterFraction))
	}
}

// Jitter spreads a delay by ±fraction so paced traffic does not form a
// detectable fixed cadence.
func Jitter(d time.Duration, fraction float64) time.Duration {
	if d <= 0 || fraction <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * fraction
	return time.Duration(float64(d) * (1 + spread))
}

// sleepContext waits for the duration or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func indexRemoteVariants(remote *supplier.RemoteProduct) map[string]supplier.RemoteVariant {
	byVID := make(map[string]supplier.RemoteVariant, len(remote.Variants))
	for _, rv := range remote.Variants {
		if rv.VID == "" {
			continue
		}
		byVID[rv.VID] = rv
	}
	return byVID
}

func sumWarehouseStock(entries []supplier.WarehouseStock) int {
	total := 0
	for _, e := range entries {
		total += e.StorageNum
	}
	return total
}

// currentCost reverses the markup on a stored price so it can act as the
// last-resort cost in the price resolution chain.
func currentCost(priceCents int) decimal.Decimal {
	if priceCents <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(priceCents)).Div(centsPerUnit).Div(markupFactor)
}
