// Package httpapi exposes C8/C9 over HTTP and the live broadcaster over
// WebSocket (spec.md §6.2), using the router/CORS stack carried over from
// erigon's go.mod.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sastik/logserver/internal/aggregate"
	"github.com/sastik/logserver/internal/broadcast"
	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/hotstore"
	"github.com/sastik/logserver/internal/logging"
	"github.com/sastik/logserver/internal/query"
)

// HealthChecker reports the liveness of one ambient dependency.
type HealthChecker func(ctx context.Context) bool

// Server wires the routed HTTP surface.
type Server struct {
	router    *chi.Mux
	log       *logging.Logger
	queryRt   *query.Router
	agg       *aggregate.Aggregator
	cold      *coldstore.Store
	hot       *hotstore.Store
	bcast     *broadcast.Broadcaster
	health    map[string]HealthChecker
	hotCutoff func() time.Time
}

type Config struct {
	CORSOrigins []string
}

func New(cfg Config, queryRt *query.Router, agg *aggregate.Aggregator, cold *coldstore.Store, hot *hotstore.Store, bcast *broadcast.Broadcaster, health map[string]HealthChecker, hotCutoff func() time.Time, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewDiscard()
	}
	s := &Server{
		router:    chi.NewRouter(),
		log:       log,
		queryRt:   queryRt,
		agg:       agg,
		cold:      cold,
		hot:       hot,
		bcast:     bcast,
		health:    health,
		hotCutoff: hotCutoff,
	}
	s.routes(cfg)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes(cfg Config) {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/logs", func(r chi.Router) {
		r.Get("/", s.handleLogsQuery)
		r.Get("/today", s.handleLogsToday)
		r.Get("/error-logs", s.handleErrorLogs)
		r.Get("/filter-options", s.handleFilterOptions)
		r.Get("/trace/{cid}", s.handleTrace)
		r.Get("/details/{cid}", s.handleLogByID)
		r.Get("/{cid}", s.handleLogByID)
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/overview", s.handleOverview)
		r.Get("/summary", s.handleOverview)
		r.Get("/performance", s.handleTopSlowest)
		r.Get("/errors/breakdown", s.handleErrorDistribution)
		r.Get("/stats", s.handleOverview)
		r.Get("/logs-per-day", s.handleDailyTimeSeries)
		r.Get("/error-distribution", s.handleErrorDistribution)
		r.Get("/top-response-time-urls", s.handleTopSlowest)
		r.Get("/url-heat-map", s.handleURLHeatMap)
	})

	r.Get("/ws/logs", s.handleWSLogs)
	r.Get("/ws/live-stats", s.handleWSLiveStats)
}
