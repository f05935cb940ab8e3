package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/teamquest/internal/teamquest"
)

// MissionRequest is the request body for creating or editing a mission.
type MissionRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	CreditsAwarded   int    `json:"creditsAwarded"`
	AwardsCrystal    bool   `json:"awardsCrystal"`
	IsFinalChallenge bool   `json:"isFinalChallenge"`
	MissionDuration  int    `json:"missionDuration"`
	MissionNumber    int    `json:"missionNumber"`
}

func (req *MissionRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" {
		return "name is required"
	}
	if req.CreditsAwarded < 0 {
		return "creditsAwarded must not be negative"
	}
	if req.MissionDuration < 0 {
		return "missionDuration must not be negative"
	}
	return ""
}

func (req MissionRequest) apply(m *teamquest.Mission) {
	m.Name = req.Name
	m.Description = req.Description
	m.CreditsAwarded = req.CreditsAwarded
	m.AwardsCrystal = req.AwardsCrystal
	m.IsFinalChallenge = req.IsFinalChallenge
	m.MissionDuration = req.MissionDuration
	m.MissionNumber = req.MissionNumber
}

func handleListMissions(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		missions, err := store.Missions(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, missions)
	}
}

func handleCreateMission(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MissionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		var m teamquest.Mission
		req.apply(&m)
		m, err := store.PutMission(r.Context(), m)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

// handleUpdateMission edits catalog values. Amounts already paid to teams
// are frozen on their progress entries and do not change.
func handleUpdateMission(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MissionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		m, err := store.Mission(r.Context(), chi.URLParam(r, "missionID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		req.apply(&m)
		m, err = store.PutMission(r.Context(), m)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
