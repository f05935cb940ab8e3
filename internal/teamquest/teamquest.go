// Package teamquest defines the core domain types for the mission event:
// teams, missions, per-mission progress and the completion ledger.
// It has no external dependencies.
package teamquest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

// LegacyActor is recorded as completedBy on ledger rows synthesized from
// legacy completion lists.
const LegacyActor = "legacy-backfill"

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFailed     Status = "FAILED"
	StatusComplete   Status = "COMPLETE"
)

type Team struct {
	ID        string                      `json:"id"`
	Code      string                      `json:"code"`
	GUID      string                      `json:"guid"`
	Name      string                      `json:"name"`
	PINHash   string                      `json:"pinHash"`
	Credits   int                         `json:"credits"`
	Crystals  int                         `json:"crystals"`
	Missions  map[string]*MissionProgress `json:"missions"`
	CreatedAt time.Time                   `json:"createdAt"`

	// Fields written by older builds. The reconciler folds them into the
	// current shape and clears them.
	LegacyPIN               string   `json:"pin,omitempty"`
	LegacyCompletedMissions []string `json:"completedMissions,omitempty"`
}

// Progress returns the team's progress for missionID. A missing entry
// reads as NOT_STARTED.
func (t Team) Progress(missionID string) MissionProgress {
	if p, ok := t.Missions[missionID]; ok && p != nil {
		return *p
	}
	return MissionProgress{MissionID: missionID, Status: StatusNotStarted}
}

// SetProgress stores p under its mission id, replacing any existing entry.
func (t *Team) SetProgress(p MissionProgress) {
	if t.Missions == nil {
		t.Missions = make(map[string]*MissionProgress)
	}
	t.Missions[p.MissionID] = &p
}

// AddBalance applies signed deltas to the balances, clamping each at zero.
// A delta that would overflow either balance is rejected with ErrInvalid
// and neither balance changes.
func (t *Team) AddBalance(credits, crystals int) error {
	c, ok := addClamped(t.Credits, credits)
	if !ok {
		return fmt.Errorf("credits delta %d: %w", credits, ErrInvalid)
	}
	x, ok := addClamped(t.Crystals, crystals)
	if !ok {
		return fmt.Errorf("crystals delta %d: %w", crystals, ErrInvalid)
	}
	t.Credits, t.Crystals = c, x
	return nil
}

func addClamped(balance, delta int) (int, bool) {
	if delta > 0 && balance > math.MaxInt-delta {
		return 0, false
	}
	if delta < 0 && balance < math.MinInt-delta {
		return 0, false
	}
	return max(balance+delta, 0), true
}

type MissionProgress struct {
	MissionID        string     `json:"missionId"`
	Status           Status     `json:"status"`
	Tries            int        `json:"tries"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreditsReceived  int        `json:"creditsReceived"`
	CrystalsReceived int        `json:"crystalsReceived"`
}

type Mission struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	CreditsAwarded   int       `json:"creditsAwarded"`
	AwardsCrystal    bool      `json:"awardsCrystal"`
	IsFinalChallenge bool      `json:"isFinalChallenge"`
	MissionDuration  int       `json:"missionDuration"`
	MissionNumber    int       `json:"missionNumber"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Reward is the payout for completing m.
func (m Mission) Reward() (credits, crystals int) {
	if m.AwardsCrystal {
		crystals = 1
	}
	return m.CreditsAwarded, crystals
}

// Timed reports whether the mission has a time limit.
func (m Mission) Timed() bool { return m.MissionDuration > 0 }

type Completion struct {
	ID               string    `json:"id"`
	TeamID           string    `json:"teamId"`
	MissionID        string    `json:"missionId"`
	CompletedBy      string    `json:"completedBy"`
	CompletedAt      time.Time `json:"completedAt"`
	IsManualOverride bool      `json:"isManualOverride"`
}

// TeamTx is a unit of work scoped to one loaded team. Every write made
// through it, including the team document itself, commits together.
type TeamTx interface {
	Team() *Team
	Mission(ctx context.Context, missionID string) (Mission, error)
	Completion(ctx context.Context, missionID string) (Completion, error)
	// InsertCompletion stores c and returns the stored row. It reports
	// false, without writing, when the team already has a row for the
	// same mission.
	InsertCompletion(ctx context.Context, c Completion) (Completion, bool, error)
	DeleteCompletion(ctx context.Context, missionID string) (Completion, error)
}
