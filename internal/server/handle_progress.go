package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/teamquest/internal/progress"
)

// AdjustTimeRequest is the request body for the adjust-time endpoint.
type AdjustTimeRequest struct {
	Minutes int `json:"minutes"`
}

// CompleteRequest is the request body for complete and override.
type CompleteRequest struct {
	CompletedBy string `json:"completedBy"`
}

func (req *CompleteRequest) validate() string {
	req.CompletedBy = strings.TrimSpace(req.CompletedBy)
	if req.CompletedBy == "" {
		return "completedBy is required"
	}
	return ""
}

func pairFrom(r *http.Request) (teamID, missionID string) {
	return chi.URLParam(r, "teamID"), chi.URLParam(r, "missionID")
}

func handleStartMission(logger *slog.Logger, engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, missionID := pairFrom(r)
		p, err := engine.Start(r.Context(), teamID, missionID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleFailMission(logger *slog.Logger, engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, missionID := pairFrom(r)
		p, err := engine.Fail(r.Context(), teamID, missionID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleAdjustTime(logger *slog.Logger, engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdjustTimeRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Minutes <= 0 {
			writeError(w, http.StatusBadRequest, "minutes must be positive")
			return
		}

		teamID, missionID := pairFrom(r)
		p, err := engine.AdjustTime(r.Context(), teamID, missionID, req.Minutes)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleCompleteMission(logger *slog.Logger, engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompleteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		teamID, missionID := pairFrom(r)
		c, err := engine.Complete(r.Context(), teamID, missionID, req.CompletedBy, false)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func handleOverrideMission(logger *slog.Logger, engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompleteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		teamID, missionID := pairFrom(r)
		c, err := engine.Override(r.Context(), teamID, missionID, req.CompletedBy)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleUncompleteMission(logger *slog.Logger, engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, missionID := pairFrom(r)
		rev, err := engine.Uncomplete(r.Context(), teamID, missionID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, rev)
	}
}

func handleLeaderboard(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := store.Teams(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, progress.Leaderboard(teams))
	}
}
