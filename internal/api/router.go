package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-schedule/internal/schedule"
)

type RouterConfig struct {
	Service *schedule.Service
	PgPool  *pgxpool.Pool // nil when running on the memory backend
	Redis   *redis.Client
	Storage string // storage backend name, reported by readiness
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Storage, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Schedule endpoints
	r.Route("/practitioners/{practitionerID}/locations/{locationID}/days/{date}", func(r chi.Router) {
		r.Get("/", getDayHandler(cfg.Service))
		r.Get("/queue", waitingQueueHandler(cfg.Service))
		r.Get("/window", windowHandler)
		r.Post("/finalize", finalizeDayHandler(cfg.Service))
		r.Post("/propagate", propagateHandler(cfg.Service))

		r.Post("/sessions", addSessionHandler(cfg.Service))
		r.Put("/sessions/{sessionID}", editSessionHandler(cfg.Service))
		r.Delete("/sessions/{sessionID}", deleteSessionHandler(cfg.Service))
		r.Post("/sessions/{sessionID}/finalize", finalizeSessionHandler(cfg.Service))

		r.Put("/slots/{slotID}/booking", recordBookingHandler(cfg.Service))
	})

	return r
}
