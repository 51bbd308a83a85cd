package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	depOK       = "ok"
	depDown     = "down"
	depDisabled = "disabled"
)

type HealthHandler struct {
	pgPool  *pgxpool.Pool
	redis   *redis.Client
	storage string
	env     string
	version string
}

func NewHealthHandler(pgPool *pgxpool.Pool, redis *redis.Client, storage, env, version string) *HealthHandler {
	return &HealthHandler{
		pgPool:  pgPool,
		redis:   redis,
		storage: storage,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Storage      string            `json:"storage,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// checkDep runs one dependency check with its own short deadline.
func checkDep(ctx context.Context, enabled bool, ping func(context.Context) error) string {
	if !enabled {
		return depDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := ping(ctx); err != nil {
		return depDown
	}
	return depOK
}

// Readiness fails when the schedule store is down. Redis down only degrades:
// reads still work but writes cannot take the schedule lock.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{
		"postgres": checkDep(ctx, h.pgPool != nil, func(ctx context.Context) error {
			return h.pgPool.Ping(ctx)
		}),
		"redis": checkDep(ctx, h.redis != nil, func(ctx context.Context) error {
			return h.redis.Ping(ctx).Err()
		}),
	}

	status := "ok"
	switch {
	case deps["postgres"] == depDown:
		status = "error"
	case deps["redis"] == depDown:
		status = "degraded"
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Storage:      h.storage,
		Dependencies: deps,
	})
}
