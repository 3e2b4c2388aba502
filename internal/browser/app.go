package browser

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"CatalogLens/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
	AdminToken     string

	SessionLimitPerMin int
}

const limitWindow = 60 * time.Second

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if s.Log == nil {
		s.Log = deps.Log
	}

	r := chi.NewRouter()

	setupMiddleware(r, deps)
	setupMetrics(r, deps)
	setupRoutes(r, s, deps)

	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		if deps.MetricsEnabled {
			deps.Log.Warn("metrics enabled but Registry is nil")
		}
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.BearerAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func setupRoutes(r *chi.Mux, s *Server, deps HTTPDeps) {
	limiter := kit.NewIPRateLimiter(deps.SessionLimitPerMin, limitWindow)

	r.Get("/healthz", healthz)
	r.Get("/readyz", s.handleReady)

	r.With(limiter.Middleware).Post("/sessions", s.handleCreateSession)
	r.With(kit.BearerAuth(deps.AdminToken)).Post("/records/refresh", s.handleRefresh)

	r.Route("/session", func(sr chi.Router) {
		sr.Use(SessionAuth(s.Tokens, s.Sessions))

		sr.Get("/", s.handleState)
		sr.Delete("/", s.handleClose)
		sr.Put("/query", s.handleQuery)
		sr.Post("/likes/{id}", s.handleToggleLike)
		sr.Put("/viewport", s.handleViewport)
		sr.Get("/window", s.handleWindow)
		sr.Get("/ws", s.handleWS)
	})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
