package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jslopezg/velastore-backend/pkg/config"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"
)

const (
	authPath         = "/authentication/getAccessToken"
	productQueryPath = "/product/query"
	stockByVidPath   = "/product/stock/queryByVid"
	stockBySkuPath   = "/product/stock/queryBySku"
	freightPath      = "/logistic/freightCalculate"

	tokenHeader = "CJ-Access-Token"

	// Supplier envelope codes observed outside plain HTTP statuses.
	codeOK          = 200
	codeRateLimited = 1600200
	codeNotFound    = 1601000
)

var errBaseURLRequired = errors.New("supplier base url is required")

// Client talks to the dropshipping supplier API. Every call is throttled by
// a shared limiter so the combined worker plus on-demand traffic stays under
// the supplier's rate ceiling, and every call carries a bounded timeout.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	limiter       *rate.Limiter
	originCountry string
	logg          *logger.Logger
}

// NewClient validates the configuration and builds the API client.
func NewClient(cfg config.SupplierConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(rate.Limit(perSecond), burst),
		originCountry: cfg.OriginCountry,
		logg:          logg,
	}, nil
}

// Authenticate exchanges the long-lived API key for a fresh token pair.
// The supplier does not guarantee a dedicated refresh-token endpoint, so
// refreshes reuse this same exchange.
func (c *Client) Authenticate(ctx context.Context, apiKey string) (*TokenPair, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "supplier api key is missing")
	}

	body := map[string]string{"apiKey": apiKey}
	var data struct {
		AccessToken        string `json:"accessToken"`
		AccessTokenExpiry  string `json:"accessTokenExpiryDate"`
		RefreshToken       string `json:"refreshToken"`
		RefreshTokenExpiry string `json:"refreshTokenExpiryDate"`
	}
	if err := c.post(ctx, "", authPath, body, &data); err != nil {
		return nil, err
	}
	if data.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "supplier returned an empty access token")
	}

	pair := &TokenPair{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
	}
	pair.AccessTokenExpiry = parseExpiry(data.AccessTokenExpiry)
	pair.RefreshTokenExpiry = parseExpiry(data.RefreshTokenExpiry)
	return pair, nil
}

// GetProduct fetches the remote product detail including its variant list.
func (c *Client) GetProduct(ctx context.Context, token, supplierProductID string) (*RemoteProduct, error) {
	query := url.Values{"pid": {supplierProductID}}
	var product RemoteProduct
	if err := c.get(ctx, token, productQueryPath, query, &product); err != nil {
		return nil, err
	}
	if product.PID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier no longer lists this product")
	}
	return &product, nil
}

// GetVariantStockByID queries per-warehouse stock for one variant.
func (c *Client) GetVariantStockByID(ctx context.Context, token, supplierVariantID string) ([]WarehouseStock, error) {
	query := url.Values{"vid": {supplierVariantID}}
	var entries []WarehouseStock
	if err := c.get(ctx, token, stockByVidPath, query, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetVariantStockBySKU is the fallback stock query keyed on the supplier SKU.
func (c *Client) GetVariantStockBySKU(ctx context.Context, token, sku string) ([]WarehouseStock, error) {
	query := url.Values{"sku": {sku}}
	var entries []WarehouseStock
	if err := c.get(ctx, token, stockBySkuPath, query, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// FreightCalculate quotes shipping for a single unit of the variant to the
// destination country. An empty option list is a legitimate outcome; callers
// must not treat it as an error.
func (c *Client) FreightCalculate(ctx context.Context, token, supplierVariantID, destinationCountry string) ([]FreightOption, error) {
	body := map[string]any{
		"startCountryCode": c.originCountry,
		"endCountryCode":   destinationCountry,
		"products": []map[string]any{
			{"vid": supplierVariantID, "quantity": 1},
		},
	}
	var options []FreightOption
	if err := c.post(ctx, token, freightPath, body, &options); err != nil {
		return nil, err
	}
	return options, nil
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values, dest any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build supplier request")
	}
	return c.do(req, token, dest)
}

func (c *Client) post(ctx context.Context, token, path string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode supplier request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build supplier request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, token, dest)
}

func (c *Client) do(req *http.Request, token string, dest any) error {
	ctx := req.Context()
	if err := c.limiter.Wait(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supplier throttle wait")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	if c.logg != nil {
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"event":  "supplier.request",
			"method": req.Method,
			"path":   req.URL.Path,
		}), "supplier request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supplier request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "supplier rate limit hit")
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "supplier rejected the access token")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("supplier returned status %d", resp.StatusCode))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode supplier response")
	}

	switch {
	case env.Code == codeRateLimited:
		return pkgerrors.New(pkgerrors.CodeRateLimit, "supplier rate limit hit")
	case env.Code == codeNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "supplier resource not found")
	case env.Code != codeOK || !env.Result:
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("supplier error code %d", env.Code)
		}
		return pkgerrors.New(pkgerrors.CodeDependency, msg)
	}

	if dest == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode supplier payload")
	}
	return nil
}

func parseExpiry(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
