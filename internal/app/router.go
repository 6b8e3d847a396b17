package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/domus-pm/domus/internal/access"
	"github.com/domus-pm/domus/internal/directory"
	"github.com/domus-pm/domus/internal/documents"
	"github.com/domus-pm/domus/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AccessHandler    *access.Handler
	DirectoryHandler *directory.Handler
	DocumentsHandler *documents.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Domus defaults. Every route
// except health and metrics runs behind the gateway-identity middleware;
// the handlers mount their own access guards.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/access", params.AccessHandler.MountRoutes)
		params.DirectoryHandler.MountRoutes(r)
		params.DocumentsHandler.MountRoutes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
