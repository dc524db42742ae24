package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jslopezg/velastore-backend/api/responses"
	supplierwebhook "github.com/jslopezg/velastore-backend/internal/webhooks/supplier"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"
)

const supplierSignatureHeader = "X-Supplier-Signature"

type SupplierWebhookService interface {
	HandleEvent(ctx context.Context, event *supplierwebhook.Event) error
}

type supplierWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// SupplierWebhook ingests supplier catalog push events. The external
// contract is to always acknowledge: a 200 goes back even when processing
// fails, so the supplier's retry storm cannot amplify a transient local
// error. Failures land in the metrics sink and the log, not the response.
func SupplierWebhook(svc SupplierWebhookService, secret string, guard supplierWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		// Signature verification is transport auth, not processing; a
		// forged payload is rejected rather than acknowledged.
		if secret != "" && !validateSupplierSignature(payload, secret, r.Header.Get(supplierSignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var event supplierwebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			if logg != nil {
				logg.Error(ctx, "undecodable supplier event acknowledged", err)
			}
			responses.WriteSuccess(w, nil)
			return
		}

		// The supplier sends no event id, so the payload digest stands in.
		eventID := payloadDigest(payload)
		if guard != nil {
			alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
			if err == nil && alreadyProcessed {
				responses.WriteSuccess(w, nil)
				return
			}
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, eventID)
			}
		}
		responses.WriteSuccess(w, nil)
	}
}

func validateSupplierSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

func payloadDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
