package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/schedule"
)

// RouterDeps carries everything the HTTP surface needs. Pool and Redis may
// be nil when the respective backend is not configured.
type RouterDeps struct {
	Config  config.Config
	Logger  zerolog.Logger
	Service *schedule.Service
	Pool    *pgxpool.Pool
	Redis   *goredis.Client
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(deps.Logger))

	r.Get("/health/live", livenessHandler())
	r.Get("/health/ready", readinessHandler(deps.Pool, deps.Redis))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/public", func(r chi.Router) {
		r.Get("/{slug}/availability", getAvailabilityHandler(deps.Service))
		r.Post("/{slug}/bookings", createBookingHandler(deps.Service))
		r.Get("/appointments/{editToken}", getAppointmentByTokenHandler(deps.Service))
		r.Post("/appointments/{editToken}/cancel", cancelByTokenHandler(deps.Service))
	})

	r.Route("/provider", func(r chi.Router) {
		r.Use(ProviderAuth(deps.Config.JWTSecret))

		r.Put("/availability-rules", upsertRuleHandler(deps.Service))
		r.Get("/availability-rules", listRulesHandler(deps.Service))

		r.Post("/blocked-periods", createBlockHandler(deps.Service))
		r.Get("/blocked-periods", listBlocksHandler(deps.Service))
		r.Delete("/blocked-periods/{blockID}", deleteBlockHandler(deps.Service))

		r.Get("/appointments", listAppointmentsHandler(deps.Service))
		r.Patch("/appointments/{appointmentID}/status", updateStatusHandler(deps.Service))
	})

	return r
}
