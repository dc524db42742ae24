package sync

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jslopezg/velastore-backend/internal/supplier"
	"github.com/jslopezg/velastore-backend/pkg/db/models"
)

// markupFactor is the fixed resale multiplier applied to every supplier
// cost before it is written to the catalog.
var markupFactor = decimal.NewFromFloat(1.5)

var centsPerUnit = decimal.NewFromInt(100)

// placeholderSizes are supplier size labels that carry no information.
// They normalize to the empty string, never to a real attribute value.
var placeholderSizes = map[string]struct{}{
	"default":       {},
	"standard":      {},
	"one size":      {},
	"specification": {},
	"model":         {},
}

// CleanSize lower-cases and trims a supplier size label and maps generic
// placeholder tokens to "". Idempotent.
func CleanSize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := placeholderSizes[s]; ok {
		return ""
	}
	return s
}

// MarkupCents converts a supplier cost in currency units into the local
// sell price in cents.
func MarkupCents(cost decimal.Decimal) int {
	return int(cost.Mul(markupFactor).Mul(centsPerUnit).Round(0).IntPart())
}

// positiveNumber parses a supplier price field, accepting it only when it
// holds a positive numeric value.
func positiveNumber(n json.Number) (decimal.Decimal, bool) {
	if n == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// resolveCost picks the supplier cost for one variant. The remote payload
// spells prices under several field names depending on endpoint and product
// age, so candidates are tried in a fixed priority order and the first
// positive value wins.
func resolveCost(raw supplier.RemoteVariant, product supplier.RemoteProduct, baseCost decimal.Decimal) decimal.Decimal {
	extractors := []func() (decimal.Decimal, bool){
		func() (decimal.Decimal, bool) { return positiveNumber(raw.VariantSellPrice) },
		func() (decimal.Decimal, bool) { return positiveNumber(product.ProductPrice) },
		func() (decimal.Decimal, bool) { return positiveNumber(product.SellPrice) },
		func() (decimal.Decimal, bool) { return positiveNumber(raw.VariantPrice) },
		func() (decimal.Decimal, bool) { return baseCost, baseCost.IsPositive() },
	}
	for _, extract := range extractors {
		if cost, ok := extract(); ok {
			return cost
		}
	}
	return decimal.Zero
}

// parseVariantKey extracts color/size from the composite variant key field.
// Keys arrive either as "key:value;key:value" pairs or, when no colon is
// present, as a positional "color-size" pair.
func parseVariantKey(key string) (color, size string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ""
	}
	if strings.Contains(key, ":") {
		for _, pair := range strings.Split(key, ";") {
			k, v, ok := strings.Cut(pair, ":")
			if !ok {
				continue
			}
			v = strings.TrimSpace(v)
			switch strings.ToLower(strings.TrimSpace(k)) {
			case "color", "colour":
				if color == "" {
					color = v
				}
			case "size", "specification", "standard":
				if size == "" {
					size = v
				}
			}
		}
		return color, size
	}
	parts := strings.SplitN(key, "-", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", ""
}

func normalizeColor(c string) string {
	c = strings.TrimSpace(c)
	if strings.EqualFold(c, "default") {
		return ""
	}
	return c
}

// resolveAttributes returns the cleaned color and size for one raw variant,
// falling back to the composite key when the explicit fields are missing or
// hold the "Default" placeholder.
func resolveAttributes(raw supplier.RemoteVariant) (color, size string) {
	color = normalizeColor(raw.Color)
	size = CleanSize(raw.Size)
	if color != "" && size != "" {
		return color, size
	}
	keyColor, keySize := parseVariantKey(raw.Key)
	if color == "" {
		color = normalizeColor(keyColor)
	}
	if size == "" {
		size = CleanSize(keySize)
	}
	return color, size
}

// NormalizeVariant converts one raw supplier variant into the canonical
// local shape: cleaned attributes, marked-up price in cents, stock with
// field fallbacks, and the product image when the variant has none. Pure;
// identical input always yields identical output.
func NormalizeVariant(raw supplier.RemoteVariant, product supplier.RemoteProduct, baseCost decimal.Decimal) models.Variant {
	color, size := resolveAttributes(raw)

	image := raw.Image
	if image == "" {
		image = product.Image
	}

	stock := 0
	switch {
	case raw.RealStock != nil:
		stock = *raw.RealStock
	case raw.StockCount != nil:
		stock = *raw.StockCount
	}

	return models.Variant{
		Color:             color,
		Size:              size,
		Image:             image,
		PriceCents:        MarkupCents(resolveCost(raw, product, baseCost)),
		Stock:             stock,
		SupplierVariantID: raw.VID,
		SupplierSKU:       raw.SKU,
	}
}

// NormalizeRates converts freight quotes for one destination into catalog
// shipping rates sorted ascending by price. Quotes with unparseable prices
// are dropped.
func NormalizeRates(options []supplier.FreightOption, destination string) []models.ShippingRate {
	rates := make([]models.ShippingRate, 0, len(options))
	for _, opt := range options {
		price, err := decimal.NewFromString(opt.LogisticPrice.String())
		if err != nil {
			continue
		}
		rates = append(rates, models.ShippingRate{
			Country:    destination,
			PriceCents: int(price.Mul(centsPerUnit).Round(0).IntPart()),
			Method:     opt.LogisticName,
			LeadTime:   opt.LogisticAging,
		})
	}
	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].PriceCents < rates[j].PriceCents
	})
	return rates
}

// SelectShippingFee picks the fee to charge from a sorted rate list: the
// home-market rate when one exists, otherwise the cheapest. An empty list
// means no shipping route, fee zero.
func SelectShippingFee(rates []models.ShippingRate, homeCountry string) int {
	if len(rates) == 0 {
		return 0
	}
	for _, r := range rates {
		if strings.EqualFold(r.Country, homeCountry) {
			return r.PriceCents
		}
	}
	return rates[0].PriceCents
}
