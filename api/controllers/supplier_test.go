package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
)

type fakeConnector struct {
	keys []string
	err  error
}

func (f *fakeConnector) Connect(_ context.Context, apiKey string) error {
	f.keys = append(f.keys, apiKey)
	return f.err
}

func TestConnectSupplierStoresKey(t *testing.T) {
	connector := &fakeConnector{}
	handler := ConnectSupplier(connector, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/supplier/connect",
		strings.NewReader(`{"apiKey":"0123456789abcdef"}`))
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(connector.keys) != 1 || connector.keys[0] != "0123456789abcdef" {
		t.Fatalf("unexpected connector calls %v", connector.keys)
	}
}

func TestConnectSupplierRejectsShortKey(t *testing.T) {
	connector := &fakeConnector{}
	handler := ConnectSupplier(connector, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/supplier/connect",
		strings.NewReader(`{"apiKey":"short"}`))
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(connector.keys) != 0 {
		t.Fatal("invalid payload must not reach the connector")
	}
}

func TestConnectSupplierSurfacesRejectedKey(t *testing.T) {
	connector := &fakeConnector{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "supplier rejected api key")}
	handler := ConnectSupplier(connector, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/supplier/connect",
		strings.NewReader(`{"apiKey":"0123456789abcdef"}`))
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
