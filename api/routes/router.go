package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jslopezg/velastore-backend/api/controllers"
	webhookcontrollers "github.com/jslopezg/velastore-backend/api/controllers/webhooks"
	"github.com/jslopezg/velastore-backend/api/middleware"
	supplierwebhook "github.com/jslopezg/velastore-backend/internal/webhooks/supplier"
	"github.com/jslopezg/velastore-backend/pkg/config"
	"github.com/jslopezg/velastore-backend/pkg/db"
	"github.com/jslopezg/velastore-backend/pkg/logger"
	"github.com/jslopezg/velastore-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface: health and metrics endpoints, the
// supplier webhook, and the on-demand sync triggers.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	syncService controllers.SyncService,
	supplierConnector controllers.SupplierConnector,
	webhookService webhookcontrollers.SupplierWebhookService,
	webhookGuard *supplierwebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/supplier", webhookcontrollers.SupplierWebhook(webhookService, cfg.Sync.WebhookSecret, webhookGuard, logg))
	})

	r.Route("/api/v1/supplier", func(r chi.Router) {
		r.Post("/connect", controllers.ConnectSupplier(supplierConnector, logg))
	})

	r.Route("/api/v1/sync", func(r chi.Router) {
		if redisClient != nil {
			r.Use(middleware.RateLimit("sync-trigger", cfg.Sync.TriggerRateLimit, cfg.Sync.TriggerRateWindow, redisClient, logg))
		}
		r.Post("/products/{productId}/{operation}", controllers.TriggerSync(syncService, redisClient, cfg.Sync, logg))
	})

	return r
}
