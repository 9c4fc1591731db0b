package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shiksha-erp/shiksha-erp/internal/auth"
	"github.com/shiksha-erp/shiksha-erp/internal/fees"
	"github.com/shiksha-erp/shiksha-erp/internal/observability"
	"github.com/shiksha-erp/shiksha-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	FeesHandler *fees.Handler
	JobsHandler *jobs.Handler
	Keyring     auth.Keyring
	Metrics     *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults. The health
// and metrics endpoints stay outside the API-key guard so probes and scrapers
// need no credentials.
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
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		if len(params.Keyring) > 0 {
			r.Use(auth.Middleware(params.Logger, params.Keyring))
		}
		if params.FeesHandler != nil {
			params.FeesHandler.MountRoutes(r)
		}
	})

	return r
}
