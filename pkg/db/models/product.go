package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is a catalog entry. Price, stock, and shipping fields are derived
// from the variants; the three sync timestamps schedule background refreshes.
// A nil SupplierProductID means the product is not supplier-managed and the
// sync engine must never touch it.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string         `gorm:"column:name;not null"`
	Slug        string         `gorm:"column:slug;not null;uniqueIndex"`
	Description string         `gorm:"column:description"`
	Images      pq.StringArray `gorm:"column:images;type:text[]"`

	// Derived from variants.
	PriceCents int `gorm:"column:price_cents;not null;default:0"`
	Stock      int `gorm:"column:stock;not null;default:0"`

	SupplierProductID *string `gorm:"column:supplier_product_id;index"`

	Variants []Variant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`

	LastPriceSyncedAt    *time.Time `gorm:"column:last_price_synced_at"`
	LastStockSyncedAt    *time.Time `gorm:"column:last_stock_synced_at;index"`
	LastShippingSyncedAt *time.Time `gorm:"column:last_shipping_synced_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsSupplierManaged reports whether the sync engine is allowed to mutate
// this product. Absence of the supplier linkage is the authorization
// boundary, not a role check.
func (p *Product) IsSupplierManaged() bool {
	return p != nil && p.SupplierProductID != nil && *p.SupplierProductID != ""
}

// DefaultImage returns the first product image, or "".
func (p *Product) DefaultImage() string {
	if p == nil || len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// RecalcDerived recomputes the aggregate stock (sum) and the base price
// (minimum variant price) from the current variant list.
func (p *Product) RecalcDerived() {
	total := 0
	minPrice := 0
	for i, v := range p.Variants {
		total += v.Stock
		if i == 0 || v.PriceCents < minPrice {
			minPrice = v.PriceCents
		}
	}
	p.Stock = total
	if len(p.Variants) > 0 {
		p.PriceCents = minPrice
	}
}
