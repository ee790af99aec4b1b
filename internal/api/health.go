package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func livenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthStatus{Status: "ok"})
	}
}

// readinessHandler pings the backing stores. Either may be nil (memory
// storage driver, or redis disabled) and is then skipped.
func readinessHandler(pool *pgxpool.Pool, rdb *goredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				checks["postgres"] = "down: " + err.Error()
				healthy = false
			} else {
				checks["postgres"] = "up"
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "down: " + err.Error()
				healthy = false
			} else {
				checks["redis"] = "up"
			}
		}

		status := http.StatusOK
		body := healthStatus{Status: "ready", Checks: checks}
		if !healthy {
			status = http.StatusServiceUnavailable
			body.Status = "degraded"
		}
		writeJSON(w, status, body)
	}
}
