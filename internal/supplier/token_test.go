package supplier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jslopezg/velastore-backend/pkg/db/models"
)

type fakeSettingsStore struct {
	settings *models.SupplierSettings
	getErr   error
	upserts  []models.SupplierSettings
}

func (f *fakeSettingsStore) Get(context.Context) (*models.SupplierSettings, error) {
	return f.settings, f.getErr
}

func (f *fakeSettingsStore) Upsert(_ context.Context, settings *models.SupplierSettings) error {
	f.upserts = append(f.upserts, *settings)
	return nil
}

type fakeAuthenticator struct {
	pair  *TokenPair
	err   error
	calls int
}

func (f *fakeAuthenticator) Authenticate(context.Context, string) (*TokenPair, error) {
	f.calls++
	return f.pair, f.err
}

func newTokenManager(store *fakeSettingsStore, auth *fakeAuthenticator, now time.Time) *TokenManager {
	mgr := NewTokenManager(store, auth, nil)
	mgr.now = func() time.Time { return now }
	return mgr
}

func TestGetValidAccessToken_NotConnected(t *testing.T) {
	mgr := newTokenManager(&fakeSettingsStore{}, &fakeAuthenticator{}, time.Now())

	_, err := mgr.GetValidAccessToken(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestGetValidAccessToken_FreshTokenReturnedAsIs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(2 * time.Hour)
	store := &fakeSettingsStore{settings: &models.SupplierSettings{
		APIKey:            "key",
		AccessToken:       "token-fresh",
		AccessTokenExpiry: &expiry,
	}}
	auth := &fakeAuthenticator{}
	mgr := newTokenManager(store, auth, now)

	token, err := mgr.GetValidAccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-fresh" {
		t.Fatalf("unexpected token %q", token)
	}
	if auth.calls != 0 {
		t.Fatalf("fresh token must not trigger a refresh, got %d calls", auth.calls)
	}
}

func TestGetValidAccessToken_RefreshInsideWindow(t *testing.T) {
	// Expiry 3 minutes out is inside the 5-minute safety window.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(3 * time.Minute)
	store := &fakeSettingsStore{settings: &models.SupplierSettings{
		APIKey:            "key",
		AccessToken:       "token-stale",
		AccessTokenExpiry: &expiry,
	}}
	newExpiry := now.Add(14 * 24 * time.Hour)
	auth := &fakeAuthenticator{pair: &TokenPair{
		AccessToken:       "token-new",
		AccessTokenExpiry: newExpiry,
		RefreshToken:      "refresh-new",
	}}
	mgr := newTokenManager(store, auth, now)

	token, err := mgr.GetValidAccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-new" {
		t.Fatalf("expected refreshed token, got %q", token)
	}
	if auth.calls != 1 {
		t.Fatalf("expected exactly one refresh, got %d", auth.calls)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected refreshed token to be persisted")
	}
	persisted := store.upserts[0]
	if persisted.AccessToken != "token-new" || persisted.RefreshToken != "refresh-new" {
		t.Fatalf("unexpected persisted settings %+v", persisted)
	}
	if persisted.AccessTokenExpiry == nil || !persisted.AccessTokenExpiry.Equal(newExpiry) {
		t.Fatalf("expected persisted expiry %v, got %v", newExpiry, persisted.AccessTokenExpiry)
	}
}

func TestGetValidAccessToken_RefreshFailureSurfacesNotConnected(t *testing.T) {
	now := time.Now()
	expiry := now.Add(time.Minute)
	store := &fakeSettingsStore{settings: &models.SupplierSettings{
		APIKey:            "key",
		AccessToken:       "token-stale",
		AccessTokenExpiry: &expiry,
	}}
	auth := &fakeAuthenticator{err: errors.New("supplier down")}
	mgr := newTokenManager(store, auth, now)

	_, err := mgr.GetValidAccessToken(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on refresh failure, got %v", err)
	}
	if len(store.upserts) != 0 {
		t.Fatalf("failed refresh must not persist anything")
	}
}

func TestConnect_PersistsKeyAndTokens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(14 * 24 * time.Hour)
	store := &fakeSettingsStore{}
	auth := &fakeAuthenticator{pair: &TokenPair{
		AccessToken:       "token-first",
		AccessTokenExpiry: expiry,
		RefreshToken:      "refresh-first",
	}}
	mgr := newTokenManager(store, auth, now)

	if err := mgr.Connect(context.Background(), "api-key-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected credentials to be persisted")
	}
	persisted := store.upserts[0]
	if persisted.APIKey != "api-key-1" || persisted.AccessToken != "token-first" {
		t.Fatalf("unexpected persisted settings %+v", persisted)
	}
	if persisted.AccessTokenExpiry == nil || !persisted.AccessTokenExpiry.Equal(expiry) {
		t.Fatalf("expected expiry %v, got %v", expiry, persisted.AccessTokenExpiry)
	}
}

func TestConnect_RejectedKeyPersistsNothing(t *testing.T) {
	store := &fakeSettingsStore{}
	auth := &fakeAuthenticator{err: errors.New("bad key")}
	mgr := newTokenManager(store, auth, time.Now())

	if err := mgr.Connect(context.Background(), "api-key-bad"); err == nil {
		t.Fatal("expected error for rejected key")
	}
	if len(store.upserts) != 0 {
		t.Fatalf("rejected key must not persist anything")
	}
}

func TestGetValidAccessToken_MissingExpiryForcesRefresh(t *testing.T) {
	store := &fakeSettingsStore{settings: &models.SupplierSettings{
		APIKey:      "key",
		AccessToken: "token-unknown-age",
	}}
	auth := &fakeAuthenticator{pair: &TokenPair{AccessToken: "token-new"}}
	mgr := newTokenManager(store, auth, time.Now())

	token, err := mgr.GetValidAccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-new" {
		t.Fatalf("expected refresh when expiry unknown, got %q", token)
	}
}
