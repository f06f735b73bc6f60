package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"logisync-backend/internal/logger"
	"logisync-backend/pkg/utils"
)

// Pinger is a dependency the health check can probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports ok only when every dependency answers
func Health(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		healthy := true
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logger.Get().Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
				checks[name] = "down"
				healthy = false
				continue
			}
			checks[name] = "ok"
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		utils.RespondJSON(w, status, map[string]interface{}{
			"status": state,
			"checks": checks,
		})
	}
}
