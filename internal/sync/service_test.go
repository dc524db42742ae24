package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jslopezg/velastore-backend/internal/supplier"
	"github.com/jslopezg/velastore-backend/pkg/config"
	"github.com/jslopezg/velastore-backend/pkg/db/models"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) GetValidAccessToken(ctx context.Context) (string, error) {
	return f.token, f.err
}

type fakeAPI struct {
	product    *supplier.RemoteProduct
	productErr error

	stockByID   map[string][]supplier.WarehouseStock
	stockErrs   map[string]error
	stockBySKU  map[string][]supplier.WarehouseStock
	skuErrs     map[string]error
	freight     map[string][]supplier.FreightOption
	freightErrs map[string]error
}

func (f *fakeAPI) GetProduct(ctx context.Context, token, pid string) (*supplier.RemoteProduct, error) {
	if f.productErr != nil {
		return nil, f.productErr
	}
	return f.product, nil
}

func (f *fakeAPI) GetVariantStockByID(ctx context.Context, token, vid string) ([]supplier.WarehouseStock, error) {
	if err, ok := f.stockErrs[vid]; ok {
		return nil, err
	}
	return f.stockByID[vid], nil
}

func (f *fakeAPI) GetVariantStockBySKU(ctx context.Context, token, sku string) ([]supplier.WarehouseStock, error) {
	if err, ok := f.skuErrs[sku]; ok {
		return nil, err
	}
	if entries, ok := f.stockBySKU[sku]; ok {
		return entries, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown sku")
}

func (f *fakeAPI) FreightCalculate(ctx context.Context, token, vid, destination string) ([]supplier.FreightOption, error) {
	if err, ok := f.freightErrs[vid]; ok {
		return nil, err
	}
	return f.freight[vid], nil
}

type timestampCall struct {
	price, stock, shipping bool
}

type fakeCatalog struct {
	product *models.Product
	saved   bool
	stamps  []timestampCall
}

func (f *fakeCatalog) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if f.product == nil || f.product.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return f.product, nil
}

func (f *fakeCatalog) FindOldestStockSynced(ctx context.Context) (*models.Product, error) {
	return f.product, nil
}

func (f *fakeCatalog) SaveProduct(ctx context.Context, product *models.Product) error {
	f.saved = true
	f.product = product
	return nil
}

func (f *fakeCatalog) AdvanceSyncTimestamps(ctx context.Context, productID uuid.UUID, at time.Time, price, stock, shipping bool) error {
	f.stamps = append(f.stamps, timestampCall{price: price, stock: stock, shipping: shipping})
	return nil
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		HomeCountry:       "US",
		MaxConcurrent:     2,
		StockRetries:      2,
		StockRetryDelay:   time.Millisecond,
		FreightRetries:    2,
		FreightRetryDelay: time.Millisecond,
	}
}

func linkedProduct(t *testing.T) *models.Product {
	t.Helper()

	supplierID := "pid-1"
	return &models.Product{
		ID:                uuid.New(),
		Name:              "hoodie",
		SupplierProductID: &supplierID,
		Variants: []models.Variant{
			{ID: uuid.New(), Position: 0, PriceCents: 1500, Stock: 5, SupplierVariantID: "v1", SupplierSKU: "SKU-1"},
			{ID: uuid.New(), Position: 1, PriceCents: 3000, Stock: 2, SupplierVariantID: "v2", SupplierSKU: "SKU-2"},
		},
	}
}

func newTestService(t *testing.T, api *fakeAPI, catalog *fakeCatalog) *Service {
	t.Helper()

	svc, err := NewService(&fakeTokens{token: "tok"}, api, catalog, testSyncConfig(), nil, nil)
	require.NoError(t, err)
	return svc
}

func TestSyncPriceAppliesMarkupAndMinimum(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	api := &fakeAPI{product: &supplier.RemoteProduct{
		PID: "pid-1",
		Variants: []supplier.RemoteVariant{
			{VID: "v1", VariantSellPrice: "10"},
			{VID: "v2", VariantSellPrice: "20"},
		},
	}}
	svc := newTestService(t, api, catalog)

	require.NoError(t, svc.SyncPrice(context.Background(), product.ID))

	assert.Equal(t, 1500, product.Variants[0].PriceCents)
	assert.Equal(t, 3000, product.Variants[1].PriceCents)
	assert.Equal(t, 1500, product.PriceCents)
	assert.True(t, catalog.saved)
	require.Len(t, catalog.stamps, 1)
	assert.Equal(t, timestampCall{price: true}, catalog.stamps[0])
}

func TestSyncPriceLeavesUnmatchedVariants(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	api := &fakeAPI{product: &supplier.RemoteProduct{
		PID:      "pid-1",
		Variants: []supplier.RemoteVariant{{VID: "v1", VariantSellPrice: "40"}},
	}}
	svc := newTestService(t, api, catalog)

	require.NoError(t, svc.SyncPrice(context.Background(), product.ID))

	assert.Equal(t, 6000, product.Variants[0].PriceCents)
	assert.Equal(t, 3000, product.Variants[1].PriceCents)
}

func TestSyncPriceKeepsValueWhenRemoteHasNoPrice(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	api := &fakeAPI{product: &supplier.RemoteProduct{
		PID:      "pid-1",
		Variants: []supplier.RemoteVariant{{VID: "v1"}, {VID: "v2"}},
	}}
	svc := newTestService(t, api, catalog)

	require.NoError(t, svc.SyncPrice(context.Background(), product.ID))

	assert.Equal(t, 1500, product.Variants[0].PriceCents)
	assert.Equal(t, 3000, product.Variants[1].PriceCents)
}

func TestSyncStockFailedVariantKeepsPreviousValue(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	boom := pkgerrors.New(pkgerrors.CodeDependency, "stock query down")
	api := &fakeAPI{
		stockErrs: map[string]error{"v1": boom},
		skuErrs:   map[string]error{"SKU-1": boom},
		stockByID: map[string][]supplier.WarehouseStock{
			"v2": {{Area: "US", StorageNum: 7}},
		},
	}
	svc := newTestService(t, api, catalog)

	require.NoError(t, svc.SyncStock(context.Background(), product.ID))

	assert.Equal(t, 5, product.Variants[0].Stock)
	assert.Equal(t, 7, product.Variants[1].Stock)
	assert.Equal(t, 12, product.Stock)
	require.Len(t, catalog.stamps, 1)
	assert.Equal(t, timestampCall{stock: true}, catalog.stamps[0])
}

func TestSyncStockFallsBackToSKU(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	api := &fakeAPI{
		stockErrs: map[string]error{"v1": pkgerrors.New(pkgerrors.CodeDependency, "vid query down")},
		stockBySKU: map[string][]supplier.WarehouseStock{
			"SKU-1": {{Area: "US", StorageNum: 3}, {Area: "CN", StorageNum: 4}},
		},
		stockByID: map[string][]supplier.WarehouseStock{
			"v2": {{Area: "US", StorageNum: 1}},
		},
	}
	svc := newTestService(t, api, catalog)

	require.NoError(t, svc.SyncStock(context.Background(), product.ID))

	assert.Equal(t, 7, product.Variants[0].Stock)
	assert.Equal(t, 8, product.Stock)
}

func TestSyncShippingSelectsFeeAndStoresRates(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	api := &fakeAPI{
		freight: map[string][]supplier.FreightOption{
			"v1": {
				{LogisticName: "fast", LogisticPrice: "9.99"},
				{LogisticName: "slow", LogisticPrice: "2.50"},
			},
			"v2": {},
		},
	}
	svc := newTestService(t, api, catalog)

	require.NoError(t, svc.SyncShipping(context.Background(), product.ID))

	require.Len(t, product.Variants[0].ShippingRates, 2)
	assert.Equal(t, "slow", product.Variants[0].ShippingRates[0].Method)
	assert.Equal(t, 250, product.Variants[0].ShippingFeeCents)

	// No shipping route is a legitimate outcome, fee zero.
	assert.Empty(t, product.Variants[1].ShippingRates)
	assert.Equal(t, 0, product.Variants[1].ShippingFeeCents)
	require.Len(t, catalog.stamps, 1)
	assert.Equal(t, timestampCall{shipping: true}, catalog.stamps[0])
}

func TestSyncShippingFailedVariantKeepsPreviousRates(t *testing.T) {
	product := linkedProduct(t)
	product.Variants[0].ShippingRates = []models.ShippingRate{{Country: "US", PriceCents: 400}}
	product.Variants[0].ShippingFeeCents = 400
	catalog := &fakeCatalog{product: product}
	api := &fakeAPI{
		freightErrs: map[string]error{"v1": pkgerrors.New(pkgerrors.CodeRateLimit, "slow down")},
		freight: map[string][]supplier.FreightOption{
			"v2": {{LogisticName: "only", LogisticPrice: "1.00"}},
		},
	}
	svc := newTestService(t, api, catalog)

	require.NoError(t, svc.SyncShipping(context.Background(), product.ID))

	assert.Equal(t, 400, product.Variants[0].ShippingFeeCents)
	require.Len(t, product.Variants[0].ShippingRates, 1)
	assert.Equal(t, 100, product.Variants[1].ShippingFeeCents)
}

func TestSyncFullRefreshesEverything(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	api := &fakeAPI{
		product: &supplier.RemoteProduct{
			PID:   "pid-1",
			Image: "product.jpg",
			Variants: []supplier.RemoteVariant{
				{VID: "v1", VariantSellPrice: "10", Key: "color:Black;size:XL"},
				{VID: "v2", VariantSellPrice: "20", Key: "color:Black;size:XXL"},
			},
		},
		stockByID: map[string][]supplier.WarehouseStock{
			"v1": {{StorageNum: 4}},
			"v2": {{StorageNum: 6}},
		},
		freight: map[string][]supplier.FreightOption{
			"v1": {{LogisticName: "a", LogisticPrice: "3.00"}},
			"v2": {{LogisticName: "a", LogisticPrice: "5.00"}},
		},
	}
	svc := newTestService(t, api, catalog)

	require.NoError(t, svc.SyncFull(context.Background(), product.ID))

	assert.Equal(t, 1500, product.Variants[0].PriceCents)
	assert.Equal(t, "Black", product.Variants[0].Color)
	assert.Equal(t, "xl", product.Variants[0].Size)
	assert.Equal(t, "product.jpg", product.Variants[0].Image)
	assert.Equal(t, 4, product.Variants[0].Stock)
	assert.Equal(t, 300, product.Variants[0].ShippingFeeCents)

	assert.Equal(t, 1500, product.PriceCents)
	assert.Equal(t, 10, product.Stock)

	require.Len(t, catalog.stamps, 1)
	assert.Equal(t, timestampCall{price: true, stock: true, shipping: true}, catalog.stamps[0])
}

func TestSyncFullAdvancesTimestampsOnFetchFailure(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	api := &fakeAPI{productErr: pkgerrors.New(pkgerrors.CodeNotFound, "supplier no longer lists this product")}
	svc := newTestService(t, api, catalog)

	err := svc.SyncFull(context.Background(), product.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	// Timestamps still advance so the product cannot starve the queue.
	require.Len(t, catalog.stamps, 1)
	assert.Equal(t, timestampCall{price: true, stock: true, shipping: true}, catalog.stamps[0])
	assert.False(t, catalog.saved)
}

func TestSyncSurfacesTokenFailure(t *testing.T) {
	product := linkedProduct(t)
	catalog := &fakeCatalog{product: product}
	svc, err := NewService(&fakeTokens{err: supplier.ErrNotConnected}, &fakeAPI{}, catalog, testSyncConfig(), nil, nil)
	require.NoError(t, err)

	err = svc.SyncPrice(context.Background(), product.ID)
	assert.ErrorIs(t, err, supplier.ErrNotConnected)
	assert.False(t, catalog.saved)
	assert.Empty(t, catalog.stamps)
}

func TestSyncRejectsUnlinkedProduct(t *testing.T) {
	product := linkedProduct(t)
	product.SupplierProductID = nil
	catalog := &fakeCatalog{product: product}
	svc := newTestService(t, &fakeAPI{}, catalog)

	for _, op := range []func(context.Context, uuid.UUID) error{svc.SyncPrice, svc.SyncStock, svc.SyncShipping, svc.SyncFull} {
		err := op(context.Background(), product.ID)
		assert.ErrorIs(t, err, ErrNotLinked)
	}
	assert.False(t, catalog.saved)
}

func TestJitterStaysWithinFraction(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 100; i++ {
		d := Jitter(base, 0.1)
		assert.GreaterOrEqual(t, d, 9*time.Second)
		assert.LessOrEqual(t, d, 11*time.Second)
	}
	assert.Equal(t, base, Jitter(base, 0))
}
