package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-receiving/internal/observability"
	"github.com/odyssey-erp/odyssey-receiving/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-receiving/internal/receiving"
	"github.com/odyssey-erp/odyssey-receiving/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	ReceivingHandler *receiving.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	// Checks are pinged by /healthz; a nil map reports ok.
	Checks map[string]Pinger
}

// NewRouter constructs the chi.Router with receiving defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range params.Checks {
			if err := check.Ping(ctx); err != nil {
				params.Logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				status[name] = "unavailable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httpx.JSON(w, code, status)
	})

	if params.ReceivingHandler != nil {
		r.Route("/receiving", params.ReceivingHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
