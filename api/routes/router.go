package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iTakecare/leazr-backend/api/controllers"
	"github.com/iTakecare/leazr-backend/api/middleware"
	"github.com/iTakecare/leazr-backend/internal/leasers"
	"github.com/iTakecare/leazr-backend/internal/offers"
	"github.com/iTakecare/leazr-backend/pkg/config"
	"github.com/iTakecare/leazr-backend/pkg/db"
	"github.com/iTakecare/leazr-backend/pkg/enums"
	"github.com/iTakecare/leazr-backend/pkg/logger"
	"github.com/iTakecare/leazr-backend/pkg/metrics"
	"github.com/iTakecare/leazr-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	calcMetrics *metrics.CalculatorMetrics,
	leaserService leasers.Service,
	offerService offers.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/calculator", func(r chi.Router) {
			r.Get("/coefficient", controllers.CalculatorCoefficient(leaserService, calcMetrics, logg))
			r.Post("/monthly-payment", controllers.CalculatorMonthlyPayment(leaserService, calcMetrics, logg))
			r.Post("/margin-from-payment", controllers.CalculatorMarginFromPayment(leaserService, calcMetrics, logg))
			r.Post("/margin-from-sale-price", controllers.CalculatorMarginFromSalePrice(leaserService, calcMetrics, logg))
		})

		r.Route("/leasers", func(r chi.Router) {
			r.Get("/", controllers.LeaserList(leaserService, logg))
			r.Get("/{leaserID}", controllers.LeaserGet(leaserService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.MemberRoleAdmin.String(), logg))
				r.Post("/", controllers.LeaserCreate(leaserService, logg))
				r.Put("/{leaserID}", controllers.LeaserUpdate(leaserService, logg))
				r.Delete("/{leaserID}", controllers.LeaserDelete(leaserService, logg))
			})
		})

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", controllers.OfferList(offerService, logg))
			r.Post("/", controllers.OfferCreate(offerService, logg))
			r.Get("/{offerID}", controllers.OfferGet(offerService, logg))
			r.Delete("/{offerID}", controllers.OfferDelete(offerService, logg))
			r.Post("/{offerID}/status", controllers.OfferStatusUpdate(offerService, logg))
			r.Post("/{offerID}/duration", controllers.OfferDurationChange(offerService, logg))
			r.Get("/{offerID}/quote", controllers.OfferQuote(offerService, logg))

			r.Route("/{offerID}/lines", func(r chi.Router) {
				r.Post("/", controllers.OfferLineAdd(offerService, logg))
				r.Put("/{lineID}", controllers.OfferLineUpdate(offerService, logg))
				r.Delete("/{lineID}", controllers.OfferLineRemove(offerService, logg))
				r.Post("/{lineID}/quantity", controllers.OfferLineQuantity(offerService, logg))
				r.Get("/{lineID}/edit", controllers.OfferLineEditView(offerService, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.MemberRoleAdmin.String(), logg))
			r.Get("/ping", controllers.AdminPing())
		})
	})

	return r
}
