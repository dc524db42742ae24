package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/jslopezg/velastore-backend/api/responses"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit throttles a traffic surface with a fixed-window counter. The
// sync triggers sit behind it so a misbehaving caller cannot hammer the
// supplier API through us.
func RateLimit(scope string, limit int64, window time.Duration, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			allowed, count, err := store.FixedWindowAllow(ctx, scope, limit, window)
			if err != nil {
				// Fail open: a redis hiccup must not take the triggers down.
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "scope", scope), "rate limit check failed, allowing request")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					lctx := logg.WithFields(ctx, map[string]any{
						"scope": scope,
						"count": count,
						"limit": limit,
					})
					logg.Warn(lctx, "rate limit exceeded")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
