package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingRate is one freight quote for a variant to a destination country.
type ShippingRate struct {
	Country    string `json:"country"`
	PriceCents int    `json:"priceCents"`
	Method     string `json:"method"`
	LeadTime   string `json:"leadTime"`
}

// Variant is a purchasable color/size combination of a Product. Variants are
// owned by their product and have no independent lifecycle; the sync engine
// mutates price/stock/shipping fields in place, matched by SupplierVariantID.
type Variant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Position  int       `gorm:"column:position;not null;default:0"`

	Color string `gorm:"column:color"`
	Size  string `gorm:"column:size"`
	Image string `gorm:"column:image"`

	PriceCents int `gorm:"column:price_cents;not null;default:0"`
	Stock      int `gorm:"column:stock;not null;default:0"`

	SupplierVariantID string `gorm:"column:supplier_variant_id;index"`
	SupplierSKU       string `gorm:"column:supplier_sku"`

	// Cheapest resolved quote and the full quoted list.
	ShippingFeeCents int            `gorm:"column:shipping_fee_cents;not null;default:0"`
	ShippingRates    []ShippingRate `gorm:"column:shipping_rates;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Variant) TableName() string { return "product_variants" }
