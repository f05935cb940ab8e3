package server

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/teamquest/internal/identity"
	"github.com/playperu/teamquest/internal/teamquest"
)

// TeamResponse is a team without its secrets.
type TeamResponse struct {
	ID        string                      `json:"id"`
	Code      string                      `json:"code"`
	Name      string                      `json:"name"`
	Credits   int                         `json:"credits"`
	Crystals  int                         `json:"crystals"`
	Missions  []teamquest.MissionProgress `json:"missions"`
	CreatedAt time.Time                   `json:"createdAt"`
}

// CreateTeamRequest is the request body for POST /api/teams.
type CreateTeamRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

// LoginRequest is the request body for POST /api/teams/login.
type LoginRequest struct {
	Code string `json:"code"`
	PIN  string `json:"pin"`
}

// BalanceRequest is the request body for POST /api/teams/{teamID}/credits.
// Both fields are signed deltas.
type BalanceRequest struct {
	Credits  int `json:"credits"`
	Crystals int `json:"crystals"`
}

func (req *CreateTeamRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.PIN = strings.TrimSpace(req.PIN)
	if req.Name == "" {
		return "name is required"
	}
	if req.PIN == "" {
		return "pin is required"
	}
	return ""
}

func toTeamResponse(t teamquest.Team) TeamResponse {
	missions := make([]teamquest.MissionProgress, 0, len(t.Missions))
	for _, p := range t.Missions {
		if p != nil {
			missions = append(missions, *p)
		}
	}
	slices.SortFunc(missions, func(a, b teamquest.MissionProgress) int {
		return strings.Compare(a.MissionID, b.MissionID)
	})
	return TeamResponse{
		ID:        t.ID,
		Code:      t.Code,
		Name:      t.Name,
		Credits:   t.Credits,
		Crystals:  t.Crystals,
		Missions:  missions,
		CreatedAt: t.CreatedAt,
	}
}

func handleCreateTeam(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTeamRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		hash, err := identity.HashPIN(req.PIN)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		guid := identity.NewGUID()

		team, err := store.CreateTeam(r.Context(), teamquest.Team{
			GUID:    guid,
			Code:    identity.ShortCode(guid),
			Name:    req.Name,
			PINHash: hash,
		})
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toTeamResponse(team))
	}
}

// handleTeamLogin checks a team's code and PIN. Unknown codes and wrong
// PINs get the same response.
func handleTeamLogin(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Code = strings.TrimSpace(req.Code)
		req.PIN = strings.TrimSpace(req.PIN)
		if req.Code == "" || req.PIN == "" {
			writeError(w, http.StatusBadRequest, "code and pin are required")
			return
		}

		team, err := store.TeamByCode(r.Context(), req.Code)
		if errors.Is(err, teamquest.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid code or pin")
			return
		}
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		if !identity.CheckPIN(team.PINHash, req.PIN) {
			logger.Warn("team login failed", "team_id", team.ID)
			writeError(w, http.StatusUnauthorized, "invalid code or pin")
			return
		}

		writeJSON(w, http.StatusOK, toTeamResponse(team))
	}
}

func handleGetTeam(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := store.Team(r.Context(), chi.URLParam(r, "teamID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toTeamResponse(team))
	}
}

func handleListCompletions(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamID")
		if _, err := store.Team(r.Context(), teamID); err != nil {
			writeDomainError(w, logger, err)
			return
		}

		completions, err := store.CompletionsByTeam(r.Context(), teamID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, completions)
	}
}

func handleAdjustBalance(logger *slog.Logger, engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BalanceRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		team, err := engine.AdjustBalance(r.Context(), chi.URLParam(r, "teamID"), req.Credits, req.Crystals)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toTeamResponse(team))
	}
}

func handleResetGame(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.ResetGame(r.Context()); err != nil {
			writeDomainError(w, logger, err)
			return
		}
		logger.Warn("game reset: all teams and completions deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}
