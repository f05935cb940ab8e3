package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/teamquest/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	store, engine := deps.Store, deps.Engine

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Team Quest API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, deps.Checkers).Routes())

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", handleLeaderboard(logger, store))

		r.Get("/missions", handleListMissions(logger, store))
		r.Post("/missions", handleCreateMission(logger, store))
		r.Put("/missions/{missionID}", handleUpdateMission(logger, store))

		r.Post("/teams", handleCreateTeam(logger, store))
		r.Post("/teams/login", handleTeamLogin(logger, store))
		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Get("/", handleGetTeam(logger, store))
			r.Get("/completions", handleListCompletions(logger, store))
			r.Post("/credits", handleAdjustBalance(logger, engine))

			r.Route("/missions/{missionID}", func(r chi.Router) {
				r.Post("/start", handleStartMission(logger, engine))
				r.Post("/fail", handleFailMission(logger, engine))
				r.Post("/adjust-time", handleAdjustTime(logger, engine))
				r.Post("/complete", handleCompleteMission(logger, engine))
				r.Post("/override", handleOverrideMission(logger, engine))
				r.Delete("/completion", handleUncompleteMission(logger, engine))
			})
		})

		r.Post("/admin/reset", handleResetGame(logger, store))
	})
}
