package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/jslopezg/velastore-backend/api/responses"
	"github.com/jslopezg/velastore-backend/pkg/config"
	"github.com/jslopezg/velastore-backend/pkg/db"
	pkgerrors "github.com/jslopezg/velastore-backend/pkg/errors"
	"github.com/jslopezg/velastore-backend/pkg/logger"
	"github.com/jslopezg/velastore-backend/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Velastore-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies and reports per-dependency status.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Velastore-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		statuses := map[string]string{}
		healthy := true
		for name, pinger := range map[string]interface {
			Ping(context.Context) error
		}{
			"database": dbP,
			"redis":    redisP,
		} {
			if pinger == nil {
				statuses[name] = "not configured"
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				statuses[name] = "unavailable"
				healthy = false
				continue
			}
			statuses[name] = "ok"
		}

		if !healthy {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(statuses))
			return
		}
		responses.WriteSuccess(w, statuses)
	}
}
