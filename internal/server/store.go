package server

import (
	"context"

	"github.com/playperu/teamquest/internal/handler/health"
	"github.com/playperu/teamquest/internal/progress"
	"github.com/playperu/teamquest/internal/teamquest"
)

// Store is the read side and administrative surface of the repositories.
type Store interface {
	Team(ctx context.Context, id string) (teamquest.Team, error)
	TeamByCode(ctx context.Context, code string) (teamquest.Team, error)
	Teams(ctx context.Context) ([]teamquest.Team, error)
	CreateTeam(ctx context.Context, t teamquest.Team) (teamquest.Team, error)
	ResetGame(ctx context.Context) error

	Mission(ctx context.Context, id string) (teamquest.Mission, error)
	Missions(ctx context.Context) ([]teamquest.Mission, error)
	PutMission(ctx context.Context, m teamquest.Mission) (teamquest.Mission, error)

	CompletionsByTeam(ctx context.Context, teamID string) ([]teamquest.Completion, error)
}

// Engine applies mission transitions and balance changes.
type Engine interface {
	Start(ctx context.Context, teamID, missionID string) (teamquest.MissionProgress, error)
	Fail(ctx context.Context, teamID, missionID string) (teamquest.MissionProgress, error)
	AdjustTime(ctx context.Context, teamID, missionID string, minutes int) (teamquest.MissionProgress, error)
	Complete(ctx context.Context, teamID, missionID, completedBy string, manualOverride bool) (teamquest.Completion, error)
	Override(ctx context.Context, teamID, missionID, completedBy string) (teamquest.Completion, error)
	Uncomplete(ctx context.Context, teamID, missionID string) (progress.Reversal, error)
	AdjustBalance(ctx context.Context, teamID string, credits, crystals int) (teamquest.Team, error)
}

// Deps bundles what the routes need.
type Deps struct {
	Store    Store
	Engine   Engine
	Checkers map[string]health.Checker
}
