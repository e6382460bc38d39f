package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/paysync/api/controllers"
	chargecontrollers "github.com/angelmondragon/paysync/api/controllers/charges"
	webhookcontrollers "github.com/angelmondragon/paysync/api/controllers/webhooks"
	"github.com/angelmondragon/paysync/api/middleware"
	"github.com/angelmondragon/paysync/internal/charges"
	"github.com/angelmondragon/paysync/pkg/config"
	"github.com/angelmondragon/paysync/pkg/enums"
	"github.com/angelmondragon/paysync/pkg/logger"
)

type redisStore interface {
	controllers.Pinger
	middleware.ResponseStore
}

type signingClient interface {
	SigningSecret() string
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// RouterParams carries every dependency the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          redisStore
	Gatherer       prometheus.Gatherer
	ChargeService  charges.Service
	StripeClient   signingClient
	WebhookService webhookcontrollers.StripeWebhookService
	WebhookGuard   webhookGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.WebhookService, p.StripeClient, p.WebhookGuard, logg))
	})

	r.Route("/api/v1/charges", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(
			middleware.RequireRole(logg, enums.OperatorRoleAdmin),
			middleware.Idempotency(p.Redis, logg),
		).Post("/{chargeId}/refund", chargecontrollers.RefundCharge(p.ChargeService, logg))
		r.With(
			middleware.RequireRole(logg, enums.OperatorRoleAdmin, enums.OperatorRoleSupport),
		).Post("/sync", chargecontrollers.SyncCharge(p.ChargeService, logg))
	})

	return r
}
