package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jslopezg/velastore-backend/pkg/db"
	"github.com/jslopezg/velastore-backend/pkg/db/models"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
)

// Repository exposes the catalog reads and writes the sync engine needs.
// All product loads eager-load variants ordered by position, since every
// sync path walks the variant list.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) scope(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// FindByID loads one product with its variants.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.scope(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySupplierProductID loads the product linked to the given supplier id.
// Returns (nil, nil) when no product carries the linkage; webhook callers
// silently skip those.
func (r *Repository) FindBySupplierProductID(ctx context.Context, supplierProductID string) (*models.Product, error) {
	if supplierProductID == "" {
		return nil, nil
	}
	var product models.Product
	err := r.scope(ctx).First(&product, "supplier_product_id = ?", supplierProductID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySupplierVariantID loads the product owning the variant with the
// given supplier variant id. Returns (nil, nil) when unmatched.
func (r *Repository) FindBySupplierVariantID(ctx context.Context, supplierVariantID string) (*models.Product, error) {
	if supplierVariantID == "" {
		return nil, nil
	}
	var variant models.Variant
	err := r.db.WithContext(ctx).First(&variant, "supplier_variant_id = ?", supplierVariantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, variant.ProductID)
}

// FindOldestStockSynced picks the supplier-linked product whose stock sync
// is most overdue. Never-synced products sort first. Returns (nil, nil)
// when no supplier-linked product exists.
func (r *Repository) FindOldestStockSynced(ctx context.Context) (*models.Product, error) {
	var product models.Product
	err := r.scope(ctx).
		Where("supplier_product_id IS NOT NULL AND supplier_product_id <> ''").
		Order("last_stock_synced_at ASC NULLS FIRST").
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SaveProduct persists the product row and all of its variants.
func (r *Repository) SaveProduct(ctx context.Context, product *models.Product) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Omit("Variants").Save(product).Error; err != nil {
		if db.IsUniqueViolation(err, "idx_products_slug") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug already in use")
		}
		return err
	}
	for i := range product.Variants {
		product.Variants[i].ProductID = product.ID
		if err := tx.Save(&product.Variants[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpdateProductFields applies a partial update to the product row.
func (r *Repository) UpdateProductFields(ctx context.Context, productID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(updates).Error
}

// UpdateVariantFields applies a partial update to one variant row.
func (r *Repository) UpdateVariantFields(ctx context.Context, variantID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", variantID).
		Updates(updates).Error
}

// AdvanceSyncTimestamps stamps the requested sync clocks. Full syncs stamp
// all three together, even on partial failure, so a permanently broken
// product cannot monopolize the oldest-synced selection.
func (r *Repository) AdvanceSyncTimestamps(ctx context.Context, productID uuid.UUID, at time.Time, price, stock, shipping bool) error {
	updates := map[string]any{}
	if price {
		updates["last_price_synced_at"] = at
	}
	if stock {
		updates["last_stock_synced_at"] = at
	}
	if shipping {
		updates["last_shipping_synced_at"] = at
	}
	return r.UpdateProductFields(ctx, productID, updates)
}
