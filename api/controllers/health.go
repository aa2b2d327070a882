package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/teranga-eats/teranga-backend/api/responses"
	"github.com/teranga-eats/teranga-backend/pkg/config"
	pkgerrors "github.com/teranga-eats/teranga-backend/pkg/errors"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is the readiness contract backing dependencies expose.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Teranga-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady answers 200 only when every backing dependency responds.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Teranga-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := []struct {
			name string
			dep  Pinger
		}{
			{"database", dbP},
			{"redis", redisP},
		}
		for _, check := range checks {
			if check.dep == nil {
				continue
			}
			if err := check.dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" unavailable").
						WithDetails(map[string]string{"dependency": check.name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
