package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/teamquest/internal/progress"
	"github.com/playperu/teamquest/internal/teamquest"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps dependency name to its status.
type HealthResponse map[string]struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Path parameter carriers for the reflector.
type (
	TeamPath struct {
		TeamID string `path:"teamID"`
	}
	MissionPath struct {
		MissionID string `path:"missionID"`
	}
	TeamMissionPath struct {
		TeamID    string `path:"teamID"`
		MissionID string `path:"missionID"`
	}
)

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	errors                             []int
}

var operations = []operation{
	{http.MethodGet, "/healthz", "Health check", "Returns the health status of backend dependencies.",
		nil, HealthResponse{}, http.StatusOK, []int{http.StatusServiceUnavailable}},
	{http.MethodGet, "/api/leaderboard", "Leaderboard", "Teams ranked by credits, then crystals. Clients poll this endpoint.",
		nil, []progress.Standing{}, http.StatusOK, nil},
	{http.MethodGet, "/api/missions", "List missions", "Returns the mission catalog ordered by mission number.",
		nil, []teamquest.Mission{}, http.StatusOK, nil},
	{http.MethodPost, "/api/missions", "Create mission", "Adds a mission to the catalog.",
		MissionRequest{}, teamquest.Mission{}, http.StatusCreated, []int{http.StatusBadRequest}},
	{http.MethodPut, "/api/missions/{missionID}", "Update mission", "Edits a mission. Rewards already paid to teams are not changed.",
		struct {
			MissionPath
			MissionRequest
		}{}, teamquest.Mission{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
	{http.MethodPost, "/api/teams", "Create team", "Creates a team with a derived short code and a hashed PIN.",
		CreateTeamRequest{}, TeamResponse{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusConflict}},
	{http.MethodPost, "/api/teams/login", "Team login", "Checks a team code and PIN and returns the team.",
		LoginRequest{}, TeamResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusUnauthorized}},
	{http.MethodGet, "/api/teams/{teamID}", "Get team", "Returns balances and mission progress for a team.",
		TeamPath{}, TeamResponse{}, http.StatusOK, []int{http.StatusNotFound}},
	{http.MethodGet, "/api/teams/{teamID}/completions", "List completions", "Returns the team's completion ledger rows.",
		TeamPath{}, []teamquest.Completion{}, http.StatusOK, []int{http.StatusNotFound}},
	{http.MethodPost, "/api/teams/{teamID}/credits", "Adjust balance", "Applies signed credit and crystal deltas. Balances never go below zero.",
		struct {
			TeamPath
			BalanceRequest
		}{}, TeamResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
	{http.MethodPost, "/api/teams/{teamID}/missions/{missionID}/start", "Start mission", "Puts the mission in progress. Rejected if already complete.",
		TeamMissionPath{}, teamquest.MissionProgress{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
	{http.MethodPost, "/api/teams/{teamID}/missions/{missionID}/fail", "Fail mission", "Records a failed attempt and clears the start time.",
		TeamMissionPath{}, teamquest.MissionProgress{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
	{http.MethodPost, "/api/teams/{teamID}/missions/{missionID}/adjust-time", "Adjust mission time", "Moves the start time back, extending a timed mission.",
		struct {
			TeamMissionPath
			AdjustTimeRequest
		}{}, teamquest.MissionProgress{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
	{http.MethodPost, "/api/teams/{teamID}/missions/{missionID}/complete", "Complete mission", "Pays the reward and records the completion. Fails if already completed.",
		struct {
			TeamMissionPath
			CompleteRequest
		}{}, teamquest.Completion{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}},
	{http.MethodPost, "/api/teams/{teamID}/missions/{missionID}/override", "Override mission", "Force-completes a mission. Pays at most once.",
		struct {
			TeamMissionPath
			CompleteRequest
		}{}, teamquest.Completion{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
	{http.MethodDelete, "/api/teams/{teamID}/missions/{missionID}/completion", "Uncomplete mission", "Removes the completion and reverses its reward.",
		TeamMissionPath{}, progress.Reversal{}, http.StatusOK, []int{http.StatusNotFound}},
	{http.MethodPost, "/api/admin/reset", "Reset game", "Deletes every team and completion.",
		nil, nil, http.StatusNoContent, nil},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Team Quest API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Mission progress and reward ledger for the Team Quest event.")

	for _, op := range operations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
