package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/teamquest/internal/handler/health"
	"github.com/playperu/teamquest/internal/progress"
	"github.com/playperu/teamquest/internal/reconcile"
	"github.com/playperu/teamquest/internal/store"
	"github.com/playperu/teamquest/internal/store/storetest"
	"github.com/playperu/teamquest/internal/teamquest"
)

func setupRouter(t *testing.T) (*chi.Mux, *store.DocStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := storetest.Open(t)
	engine := progress.New(s, reconcile.New(logger, "0000"), logger)

	r := chi.NewRouter()
	addRoutes(r, logger, Deps{
		Store:  s,
		Engine: engine,
		Checkers: map[string]health.Checker{
			"sqlite": health.CheckerFunc(s.Ping),
		},
	})
	return r, s
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	r, _ := setupRouter(t)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestCreateTeam(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/teams", CreateTeamRequest{Name: " Red Foxes ", PIN: "1234"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	team := decode[TeamResponse](t, rec)
	if team.Name != "Red Foxes" {
		t.Errorf("name = %q, want %q", team.Name, "Red Foxes")
	}
	if len(team.Code) != 8 {
		t.Errorf("code = %q, want 8 characters", team.Code)
	}
	if team.Credits != 0 || team.Crystals != 0 || len(team.Missions) != 0 {
		t.Errorf("new team not empty: %+v", team)
	}

	rec = do(t, r, http.MethodGet, "/api/teams/"+team.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("pinHash")) {
		t.Error("team response leaks the pin hash")
	}
}

func TestCreateTeamValidation(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing name", CreateTeamRequest{PIN: "1234"}},
		{"missing pin", CreateTeamRequest{Name: "Foxes"}},
		{"not json", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, "/api/teams", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestGetTeamNotFound(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/api/teams/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Error == "" {
		t.Error("expected an error message")
	}
}

func TestMissionLifecycleOverHTTP(t *testing.T) {
	r, s := setupRouter(t)
	team := storetest.Team(t, s, "Foxes", 0, 0)

	rec := do(t, r, http.MethodPost, "/api/missions", MissionRequest{Name: "Vault", CreditsAwarded: 50, AwardsCrystal: true, MissionNumber: 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create mission status = %d; body: %s", rec.Code, rec.Body.String())
	}
	m := decode[teamquest.Mission](t, rec)

	base := "/api/teams/" + team.ID + "/missions/" + m.ID

	rec = do(t, r, http.MethodPost, base+"/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d; body: %s", rec.Code, rec.Body.String())
	}
	if p := decode[teamquest.MissionProgress](t, rec); p.Status != teamquest.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", p.Status)
	}

	rec = do(t, r, http.MethodPost, base+"/adjust-time", AdjustTimeRequest{Minutes: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust-time status = %d; body: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodPost, base+"/complete", CompleteRequest{CompletedBy: "admin"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("complete status = %d; body: %s", rec.Code, rec.Body.String())
	}
	c := decode[teamquest.Completion](t, rec)
	if c.CompletedBy != "admin" || c.IsManualOverride {
		t.Errorf("completion = %+v", c)
	}

	rec = do(t, r, http.MethodPost, base+"/complete", CompleteRequest{CompletedBy: "admin"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second complete status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = do(t, r, http.MethodPost, base+"/override", CompleteRequest{CompletedBy: "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("override status = %d; body: %s", rec.Code, rec.Body.String())
	}
	if got := decode[teamquest.Completion](t, rec); got.ID != c.ID {
		t.Errorf("override returned %s, want existing %s", got.ID, c.ID)
	}

	rec = do(t, r, http.MethodGet, "/api/teams/"+team.ID, nil)
	got := decode[TeamResponse](t, rec)
	if got.Credits != 50 || got.Crystals != 1 {
		t.Errorf("balances = %d/%d, want 50/1", got.Credits, got.Crystals)
	}

	rec = do(t, r, http.MethodGet, "/api/teams/"+team.ID+"/completions", nil)
	if list := decode[[]teamquest.Completion](t, rec); len(list) != 1 {
		t.Errorf("got %d completions, want 1", len(list))
	}

	rec = do(t, r, http.MethodDelete, base+"/completion", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("uncomplete status = %d; body: %s", rec.Code, rec.Body.String())
	}
	if rev := decode[progress.Reversal](t, rec); rev.Credits != 50 || rev.Crystals != 1 {
		t.Errorf("reversal = %+v, want 50/1", rev)
	}

	rec = do(t, r, http.MethodDelete, base+"/completion", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second uncomplete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestProgressRequestValidation(t *testing.T) {
	r, s := setupRouter(t)
	team := storetest.Team(t, s, "Foxes", 0, 0)
	m := storetest.Mission(t, s, teamquest.Mission{Name: "Vault"})
	base := "/api/teams/" + team.ID + "/missions/" + m.ID

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"complete without actor", base + "/complete", CompleteRequest{}, http.StatusBadRequest},
		{"override without actor", base + "/override", CompleteRequest{CompletedBy: "  "}, http.StatusBadRequest},
		{"zero minutes", base + "/adjust-time", AdjustTimeRequest{}, http.StatusBadRequest},
		{"unknown mission", "/api/teams/" + team.ID + "/missions/nope/start", nil, http.StatusNotFound},
		{"unknown team", "/api/teams/nope/missions/" + m.ID + "/fail", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestUpdateMission(t *testing.T) {
	r, s := setupRouter(t)
	m := storetest.Mission(t, s, teamquest.Mission{Name: "Vault", CreditsAwarded: 10})

	rec := do(t, r, http.MethodPut, "/api/missions/"+m.ID, MissionRequest{Name: "Vault", CreditsAwarded: 25})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
	if got := decode[teamquest.Mission](t, rec); got.ID != m.ID || got.CreditsAwarded != 25 {
		t.Errorf("mission = %+v", got)
	}

	rec = do(t, r, http.MethodPut, "/api/missions/nope", MissionRequest{Name: "Vault"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown mission status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = do(t, r, http.MethodPost, "/api/missions", MissionRequest{Name: "Bad", CreditsAwarded: -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative credits status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLeaderboardAndBalance(t *testing.T) {
	r, s := setupRouter(t)
	foxes := storetest.Team(t, s, "Foxes", 10, 0)
	storetest.Team(t, s, "Herons", 40, 0)

	rec := do(t, r, http.MethodPost, "/api/teams/"+foxes.ID+"/credits", BalanceRequest{Credits: 50, Crystals: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("credits status = %d; body: %s", rec.Code, rec.Body.String())
	}
	if got := decode[TeamResponse](t, rec); got.Credits != 60 || got.Crystals != 1 {
		t.Errorf("balances = %d/%d, want 60/1", got.Credits, got.Crystals)
	}

	rec = do(t, r, http.MethodGet, "/api/leaderboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status = %d", rec.Code)
	}
	board := decode[[]progress.Standing](t, rec)
	if len(board) != 2 {
		t.Fatalf("got %d standings, want 2", len(board))
	}
	if board[0].Name != "Foxes" || board[0].Rank != 1 || board[1].Rank != 2 {
		t.Errorf("board = %+v", board)
	}
}

func TestResetGame(t *testing.T) {
	r, s := setupRouter(t)
	storetest.Team(t, s, "Foxes", 10, 0)

	rec := do(t, r, http.MethodPost, "/api/admin/reset", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	teams, err := s.Teams(context.Background())
	if err != nil {
		t.Fatalf("Teams: %v", err)
	}
	if len(teams) != 0 {
		t.Errorf("got %d teams after reset", len(teams))
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := SeedDemo(ctx, logger, s, "0000"); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	if err := SeedDemo(ctx, logger, s, "0000"); err != nil {
		t.Fatalf("second SeedDemo: %v", err)
	}

	missions, _ := s.Missions(ctx)
	if len(missions) != len(demoMissions) {
		t.Errorf("got %d missions, want %d", len(missions), len(demoMissions))
	}
	teams, _ := s.Teams(ctx)
	if len(teams) != len(demoTeams) {
		t.Errorf("got %d teams, want %d", len(teams), len(demoTeams))
	}
}

func TestTeamLogin(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/teams", CreateTeamRequest{Name: "Foxes", PIN: "4321"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	team := decode[TeamResponse](t, rec)

	tests := []struct {
		name string
		req  LoginRequest
		want int
	}{
		{"valid", LoginRequest{Code: team.Code, PIN: "4321"}, http.StatusOK},
		{"code is case insensitive", LoginRequest{Code: strings.ToLower(team.Code), PIN: "4321"}, http.StatusOK},
		{"wrong pin", LoginRequest{Code: team.Code, PIN: "0000"}, http.StatusUnauthorized},
		{"unknown code", LoginRequest{Code: "NOPE1234", PIN: "4321"}, http.StatusUnauthorized},
		{"missing pin", LoginRequest{Code: team.Code}, http.StatusBadRequest},
		{"blank pin", LoginRequest{Code: team.Code, PIN: "   "}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, "/api/teams/login", tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestTeamLoginTrimsPIN(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/teams", CreateTeamRequest{Name: "Foxes", PIN: " 4321 "})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	team := decode[TeamResponse](t, rec)

	for _, pin := range []string{" 4321 ", "4321"} {
		rec := do(t, r, http.MethodPost, "/api/teams/login", LoginRequest{Code: team.Code, PIN: pin})
		if rec.Code != http.StatusOK {
			t.Errorf("login with %q: status = %d, want %d", pin, rec.Code, http.StatusOK)
		}
	}
}

func TestAdjustBalanceOverflow(t *testing.T) {
	r, s := setupRouter(t)
	team := storetest.Team(t, s, "Foxes", 10, 0)

	rec := do(t, r, http.MethodPost, "/api/teams/"+team.ID+"/credits", BalanceRequest{Credits: math.MaxInt})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}

	got, err := s.Team(context.Background(), team.ID)
	if err != nil {
		t.Fatalf("Team: %v", err)
	}
	if got.Credits != 10 {
		t.Errorf("credits = %d, want unchanged 10", got.Credits)
	}
}

func TestHealthzReportsCheckerError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	addRoutes(r, logger, Deps{
		Checkers: map[string]health.Checker{
			"sqlite": health.CheckerFunc(func(context.Context) error { return errors.New("disk I/O error") }),
		},
	})

	rec := do(t, r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	resp := decode[HealthResponse](t, rec)
	if got := resp["sqlite"]; got.Status != "error" || got.Error != "disk I/O error" {
		t.Errorf("sqlite = %+v, want error status with message", got)
	}
}
