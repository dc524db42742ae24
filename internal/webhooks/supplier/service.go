package supplierwebhook

import (
	"context"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/jslopezg/velastore-backend/internal/supplier"
	"github.com/jslopezg/velastore-backend/internal/sync"
	"github.com/jslopezg/velastore-backend/pkg/db/models"
	"github.com/jslopezg/velastore-backend/pkg/enums"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"
	"github.com/jslopezg/velastore-backend/pkg/metrics"
)

// catalogStore is the catalog surface the ingestor mutates.
type catalogStore interface {
	FindBySupplierProductID(ctx context.Context, supplierProductID string) (*models.Product, error)
	FindBySupplierVariantID(ctx context.Context, supplierVariantID string) (*models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error
}

// Event is one inbound supplier push notification.
type Event struct {
	Type   enums.WebhookEventType `json:"type"`
	Params json.RawMessage        `json:"params"`
}

// ProductParams carries a product-level change. Absent fields leave the
// local value untouched.
type ProductParams struct {
	PID         string       `json:"pid"`
	Name        *string      `json:"productNameEn"`
	Description *string      `json:"description"`
	Image       *string      `json:"productImage"`
	Price       *json.Number `json:"productPrice"`
}

// VariantParams carries a variant-level change.
type VariantParams struct {
	VID   string       `json:"vid"`
	Price *json.Number `json:"variantSellPrice"`
	Image *string      `json:"variantImage"`
}

// StockParams maps supplier variant ids to per-warehouse stock entries.
type StockParams map[string][]supplier.WarehouseStock

type ServiceParams struct {
	Catalog catalogStore
	Metrics *metrics.SyncMetrics
	Logger  *logger.Logger
}

// Service applies push-based incremental catalog updates. Identifiers with
// no local match are silently skipped; the supplier may push products that
// were never imported here.
type Service struct {
	catalog catalogStore
	met     *metrics.SyncMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	return &Service{
		catalog: params.Catalog,
		met:     params.Metrics,
		logg:    params.Logger,
	}, nil
}

// HandleEvent processes one supplier event. The returned error is for the
// internal error sink only; transport-level callers must still acknowledge.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "supplier event required")
	}
	s.met.IncWebhookEvent(event.Type.String())

	var err error
	switch event.Type {
	case enums.WebhookEventProduct:
		err = s.handleProduct(ctx, event.Params)
	case enums.WebhookEventVariant:
		err = s.handleVariant(ctx, event.Params)
	case enums.WebhookEventStock:
		err = s.handleStock(ctx, event.Params)
	default:
		err = pkgerrors.New(pkgerrors.CodeValidation, "unknown supplier event type")
	}
	if err != nil {
		s.met.IncWebhookError(event.Type.String())
		if s.logg != nil {
			s.logg.Error(ctx, "supplier webhook processing failed", err)
		}
	}
	return err
}

func (s *Service) handleProduct(ctx context.Context, raw json.RawMessage) error {
	var params ProductParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode product event")
	}
	if params.PID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product event missing pid")
	}

	product, err := s.catalog.FindBySupplierProductID(ctx, params.PID)
	if err != nil {
		return err
	}
	if product == nil {
		return nil
	}

	if params.Name != nil && *params.Name != "" {
		product.Name = *params.Name
	}
	if params.Description != nil && *params.Description != "" {
		product.Description = *params.Description
	}
	if params.Image != nil && *params.Image != "" {
		if len(product.Images) > 0 {
			product.Images[0] = *params.Image
		} else {
			product.Images = pq.StringArray{*params.Image}
		}
	}
	if cost, ok := positivePrice(params.Price); ok {
		product.PriceCents = sync.MarkupCents(cost)
	}
	return s.catalog.SaveProduct(ctx, product)
}

func (s *Service) handleVariant(ctx context.Context, raw json.RawMessage) error {
	var params VariantParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode variant event")
	}
	if params.VID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant event missing vid")
	}

	product, err := s.catalog.FindBySupplierVariantID(ctx, params.VID)
	if err != nil {
		return err
	}
	if product == nil {
		return nil
	}

	for i := range product.Variants {
		v := &product.Variants[i]
		if v.SupplierVariantID != params.VID {
			continue
		}
		if cost, ok := positivePrice(params.Price); ok {
			v.PriceCents = sync.MarkupCents(cost)
		}
		if params.Image != nil && *params.Image != "" {
			v.Image = *params.Image
		}
	}
	product.RecalcDerived()
	return s.catalog.SaveProduct(ctx, product)
}

func (s *Service) handleStock(ctx context.Context, raw json.RawMessage) error {
	var params StockParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stock event")
	}

	var errs []error
	for vid, entries := range params {
		total := 0
		for _, entry := range entries {
			total += entry.StorageNum
		}

		product, err := s.catalog.FindBySupplierVariantID(ctx, vid)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if product == nil {
			continue
		}
		for i := range product.Variants {
			if product.Variants[i].SupplierVariantID == vid {
				product.Variants[i].Stock = total
			}
		}
		product.RecalcDerived()
		if err := s.catalog.SaveProduct(ctx, product); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func positivePrice(n *json.Number) (decimal.Decimal, bool) {
	if n == nil || *n == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
