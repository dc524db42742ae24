package controllers

import (
	"context"
	"net/http"

	"github.com/jslopezg/velastore-backend/api/responses"
	"github.com/jslopezg/velastore-backend/api/validators"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"
)

// SupplierConnector stores supplier credentials after verifying them.
type SupplierConnector interface {
	Connect(ctx context.Context, apiKey string) error
}

type connectSupplierRequest struct {
	APIKey string `json:"apiKey" validate:"required,min=16"`
}

// ConnectSupplier exchanges an operator-provided API key for a supplier
// token pair and persists both.
func ConnectSupplier(connector SupplierConnector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if connector == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "supplier connector unavailable"))
			return
		}

		var req connectSupplierRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := connector.Connect(ctx, req.APIKey); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"message": "supplier connected",
		})
	}
}
