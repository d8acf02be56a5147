package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/agusmdev/burntop/internal/benchmark"
	"github.com/agusmdev/burntop/internal/config"
	"github.com/agusmdev/burntop/internal/dedup"
	"github.com/agusmdev/burntop/internal/handlers"
	"github.com/agusmdev/burntop/internal/insights"
	"github.com/agusmdev/burntop/internal/leaderboard"
	"github.com/agusmdev/burntop/internal/logger"
	appMiddleware "github.com/agusmdev/burntop/internal/middleware"
	"github.com/agusmdev/burntop/internal/pgxstore"
	"github.com/agusmdev/burntop/internal/pricing"
	"github.com/agusmdev/burntop/internal/scheduler"
	"github.com/agusmdev/burntop/internal/streak"
	"github.com/agusmdev/burntop/internal/sync"
	"github.com/agusmdev/burntop/internal/usage"
	"github.com/agusmdev/burntop/internal/user"
)

// Server wires the core components (C1-C10) to a single chi router and
// owns the process-wide connection pool and scheduler.
type Server struct {
	router    chi.Router
	pool      *pgxstore.Pool
	catalog   *pricing.Catalog
	scheduler *scheduler.Scheduler
	config    *config.Config

	httpServer *http.Server
	mu         sync.Mutex
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	pool, err := pgxstore.Open(ctx, cfg.DatabaseURL, cfg.DatabasePoolMin, cfg.DatabasePoolMax)
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}

	catalog := pricing.NewCatalog(cfg.PricingCatalogURL, cfg.PricingCachePath, cfg.PricingCacheTTL)
	if err := catalog.Refresh(ctx); err != nil {
		logger.Warn("initial pricing catalog refresh failed, falling back to static table", "error", err)
	}

	dedupStore := dedup.NewStore(pool.Pool)
	usageEngine := usage.NewEngine(pool.Pool)
	streakEngine := streak.NewEngine(pool.Pool)
	userRepo := user.NewRepository(pool.Pool)
	orchestrator := sync.NewOrchestrator(dedupStore, catalog, usageEngine, streakEngine, userRepo, pool)

	leaderboardBuilder := leaderboard.NewBuilder(pool.Pool)
	benchmarkBuilder := benchmark.NewBuilder(pool.Pool)
	insightsAssembler := insights.NewAssembler(pool.Pool)

	sched := scheduler.New(leaderboardBuilder, benchmarkBuilder, logger.Logger())

	s := &Server{
		router:    chi.NewRouter(),
		pool:      pool,
		catalog:   catalog,
		scheduler: sched,
		config:    cfg,
	}

	s.setupMiddleware()

	h := handlersBundle{
		sync:            handlers.NewSyncHandler(orchestrator),
		leaderboard:     handlers.NewLeaderboardHandler(pool.Pool),
		insights:        handlers.NewInsightsHandler(insightsAssembler),
		health:          handlers.NewHealthHandler(pool.Pool),
	}
	s.setupRoutes(h)

	if cfg.SchedulerEnabled {
		go sched.Start(ctx)
	}

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(appMiddleware.CorrelationID)
	s.router.Use(appMiddleware.DefaultPayloadLimitMiddleware)
	s.router.Use(appMiddleware.DefaultContextTimeoutMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Correlation-ID"},
		ExposedHeaders:   []string{appMiddleware.CorrelationHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.config.RateLimitEnabled {
		limiter := appMiddleware.NewRateLimiter(s.config.RateLimitEnabled, s.config.RateLimitRPM, s.config.RateLimitBurst)
		s.router.Use(limiter.Handler)
	}
}

func (s *Server) ListenAndServe() error {
	log := logger.Logger()

	addr := fmt.Sprintf(":%d", s.config.APIPort)
	h2s := &http2.Server{}
	handler := h2c.NewHandler(s.router, h2s)

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.mu.Unlock()

	log.Info("burntop API server starting",
		"addr", addr,
		"endpoints", "POST /api/v1/sync, GET /api/v1/leaderboard, GET /api/v1/insights",
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down server")

	if s.config.SchedulerEnabled {
		s.scheduler.Stop()
	}

	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	var err error
	if httpServer != nil {
		err = httpServer.Shutdown(ctx)
	}

	s.pool.Close()
	return err
}
