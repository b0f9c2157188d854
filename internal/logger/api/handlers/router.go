package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/filepipe/internal/api/middleware"
)

// NewRouter собирает маршруты Logger Service.
// POST /log защищён JWT, служебные endpoints открыты.
func NewRouter(
	logHandler *LogHandler,
	health *HealthHandler,
	stats *StatsHandler,
	auth *middleware.JWTAuth,
	commonMiddlewares ...func(http.Handler) http.Handler,
) http.Handler {
	router := chi.NewRouter()

	for _, mw := range commonMiddlewares {
		router.Use(mw)
	}

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Post("/log", logHandler.CreateLog)
	})

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/api/v1/stats", stats.GetStats)
	router.Handle("/metrics", promhttp.Handler())

	return router
}
