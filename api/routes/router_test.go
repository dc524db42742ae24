package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	supplierwebhook "github.com/jslopezg/velastore-backend/internal/webhooks/supplier"
	"github.com/jslopezg/velastore-backend/pkg/config"
)

type fakeSyncService struct {
	calls int
}

func (f *fakeSyncService) SyncPrice(ctx context.Context, productID uuid.UUID) error {
	f.calls++
	return nil
}

func (f *fakeSyncService) SyncStock(ctx context.Context, productID uuid.UUID) error {
	f.calls++
	return nil
}

func (f *fakeSyncService) SyncShipping(ctx context.Context, productID uuid.UUID) error {
	f.calls++
	return nil
}

func (f *fakeSyncService) SyncFull(ctx context.Context, productID uuid.UUID) error {
	f.calls++
	return nil
}

type fakeWebhookService struct {
	calls int
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, event *supplierwebhook.Event) error {
	f.calls++
	return nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("vs:idempotency:%s:%s", scope, id)
}

func newTestRouter(t *testing.T) (http.Handler, *fakeSyncService, *fakeWebhookService) {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"

	guard, err := supplierwebhook.NewIdempotencyGuard(newMemoryStore(), time.Minute, "supplier-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}

	syncSvc := &fakeSyncService{}
	webhookSvc := &fakeWebhookService{}
	router := NewRouter(cfg, nil, nil, nil, nil, syncSvc, nil, webhookSvc, guard)
	return router, syncSvc, webhookSvc
}

func TestRouterHealthLive(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := rec.Header().Get("X-Velastore-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestRouterPublicPing(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterSupplierWebhookAlwaysAcks(t *testing.T) {
	router, _, webhookSvc := newTestRouter(t)

	body := strings.NewReader(`{"type":"STOCK","params":{"vid1":[{"storageNum":3}]}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/supplier", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if webhookSvc.calls != 1 {
		t.Fatalf("expected webhook service called once, got %d", webhookSvc.calls)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
