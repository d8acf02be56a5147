package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/agusmdev/burntop/internal/handlers"
	appMiddleware "github.com/agusmdev/burntop/internal/middleware"
)

type handlersBundle struct {
	sync        *handlers.SyncHandler
	leaderboard *handlers.LeaderboardHandler
	insights    *handlers.InsightsHandler
	health      *handlers.HealthHandler
}

func (s *Server) setupRoutes(h handlersBundle) {
	s.router.Get("/healthz", h.health.ServeHTTP)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/leaderboard", h.leaderboard.ServeHTTP)
		r.Get("/leaderboard/debug", h.leaderboard.Debug)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.BearerAuth)
			r.Post("/sync", h.sync.ServeHTTP)
			r.Get("/insights", h.insights.ServeHTTP)
		})
	})
}
