package supplier

import (
	"encoding/json"
	"time"
)

// TokenPair is the credential set returned by the supplier token exchange.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// RemoteProduct is the supplier's product detail payload. Field names follow
// the supplier wire format; prices arrive as strings or numbers depending on
// the endpoint, hence json.Number.
type RemoteProduct struct {
	PID          string          `json:"pid"`
	Name         string          `json:"productNameEn"`
	Description  string          `json:"description"`
	Image        string          `json:"productImage"`
	ProductPrice json.Number     `json:"productPrice"`
	SellPrice    json.Number     `json:"sellPrice"`
	Variants     []RemoteVariant `json:"variants"`
}

// RemoteVariant is one supplier variant record. The explicit color/size
// fields are frequently missing or hold the literal placeholder "Default";
// the composite Key field then carries the real attributes.
type RemoteVariant struct {
	VID              string      `json:"vid"`
	SKU              string      `json:"variantSku"`
	Color            string      `json:"variantColor"`
	Size             string      `json:"variantSize"`
	Key              string      `json:"variantKey"`
	Image            string      `json:"variantImage"`
	VariantSellPrice json.Number `json:"variantSellPrice"`
	VariantPrice     json.Number `json:"variantPrice"`
	RealStock        *int        `json:"realStock"`
	StockCount       *int        `json:"stockCount"`
}

// WarehouseStock is one per-warehouse stock entry for a variant.
type WarehouseStock struct {
	Area       string `json:"areaEn"`
	StorageNum int    `json:"storageNum"`
}

// FreightOption is one shipping quote from the freight-calculate endpoint.
type FreightOption struct {
	LogisticName  string      `json:"logisticName"`
	LogisticPrice json.Number `json:"logisticPrice"`
	LogisticAging string      `json:"logisticAging"`
}

type envelope struct {
	Code    int             `json:"code"`
	Result  bool            `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}
