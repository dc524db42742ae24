package supplier

import (
	"context"
	"time"

	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"

	"github.com/jslopezg/velastore-backend/pkg/db/models"
)

// refreshWindow is the safety margin before expiry inside which the manager
// refreshes rather than handing out a token about to go stale mid-sync.
const refreshWindow = 5 * time.Minute

// ErrNotConnected signals that no usable supplier credential exists. Callers
// must surface this instead of retrying remote calls on a stale token.
var ErrNotConnected = pkgerrors.New(pkgerrors.CodeUnauthorized, "supplier not connected")

type settingsStore interface {
	Get(ctx context.Context) (*models.SupplierSettings, error)
	Upsert(ctx context.Context, settings *models.SupplierSettings) error
}

type authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*TokenPair, error)
}

// TokenManager owns the supplier access token lifecycle. It is safe for
// concurrent use: the settings row is last-writer-wins, so a refresh racing
// another refresh simply persists whichever token arrived last. Both are
// valid.
type TokenManager struct {
	settings settingsStore
	auth     authenticator
	logg     *logger.Logger
	now      func() time.Time
}

// NewTokenManager wires the manager to its settings store and the supplier
// token exchange.
func NewTokenManager(settings settingsStore, auth authenticator, logg *logger.Logger) *TokenManager {
	return &TokenManager{
		settings: settings,
		auth:     auth,
		logg:     logg,
		now:      time.Now,
	}
}

// Connect exchanges a new API key for a token pair and stores both. Used on
// first connect and whenever the operator rotates the key.
func (m *TokenManager) Connect(ctx context.Context, apiKey string) error {
	pair, err := m.auth.Authenticate(ctx, apiKey)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "supplier rejected api key")
	}

	settings, err := m.settings.Get(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier settings")
	}
	if settings == nil {
		settings = &models.SupplierSettings{}
	}

	settings.APIKey = apiKey
	settings.AccessToken = pair.AccessToken
	settings.RefreshToken = pair.RefreshToken
	if !pair.AccessTokenExpiry.IsZero() {
		expiry := pair.AccessTokenExpiry
		settings.AccessTokenExpiry = &expiry
	}
	if !pair.RefreshTokenExpiry.IsZero() {
		expiry := pair.RefreshTokenExpiry
		settings.RefreshTokenExpiry = &expiry
	}

	if err := m.settings.Upsert(ctx, settings); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist supplier credentials")
	}

	if m.logg != nil {
		m.logg.Info(ctx, "supplier connected")
	}
	return nil
}

// GetValidAccessToken returns a token usable right now, refreshing it first
// when the stored one expires within the safety window. ErrNotConnected is
// returned when the supplier was never connected or the refresh failed.
func (m *TokenManager) GetValidAccessToken(ctx context.Context) (string, error) {
	settings, err := m.settings.Get(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier settings")
	}
	if settings == nil || settings.AccessToken == "" {
		return "", ErrNotConnected
	}

	if !m.needsRefresh(settings) {
		return settings.AccessToken, nil
	}

	if settings.APIKey == "" {
		if m.logg != nil {
			m.logg.Warn(ctx, "supplier token expiring but no api key stored for refresh")
		}
		return "", ErrNotConnected
	}

	pair, err := m.auth.Authenticate(ctx, settings.APIKey)
	if err != nil {
		if m.logg != nil {
			m.logg.Error(ctx, "supplier token refresh failed", err)
		}
		return "", ErrNotConnected
	}

	settings.AccessToken = pair.AccessToken
	settings.RefreshToken = pair.RefreshToken
	if !pair.AccessTokenExpiry.IsZero() {
		expiry := pair.AccessTokenExpiry
		settings.AccessTokenExpiry = &expiry
	}
	if !pair.RefreshTokenExpiry.IsZero() {
		expiry := pair.RefreshTokenExpiry
		settings.RefreshTokenExpiry = &expiry
	}

	if err := m.settings.Upsert(ctx, settings); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist refreshed supplier token")
	}

	if m.logg != nil {
		m.logg.Info(ctx, "supplier access token refreshed")
	}
	return settings.AccessToken, nil
}

func (m *TokenManager) needsRefresh(settings *models.SupplierSettings) bool {
	if settings.AccessTokenExpiry == nil {
		// No recorded expiry: assume the token may be stale and refresh.
		return true
	}
	return m.now().Add(refreshWindow).After(*settings.AccessTokenExpiry)
}
