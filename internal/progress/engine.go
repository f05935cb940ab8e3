// Package progress implements the per-(team, mission) state machine and the
// reward bookkeeping that goes with it.
//
//	NOT_STARTED --start-------> IN_PROGRESS
//	IN_PROGRESS --fail--------> FAILED       (tries += 1)
//	IN_PROGRESS --complete----> COMPLETE     (reward paid, ledger row added)
//	FAILED      --start-------> IN_PROGRESS
//	COMPLETE    --uncomplete--> NOT_STARTED  (reward reversed, ledger row removed)
//	any         --override----> COMPLETE     (pays at most once)
//
// Every operation runs inside a single team transaction, so the ledger row,
// the progress entry and the balances change together or not at all.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/teamquest/internal/teamquest"
)

// Store is the team repository the engine writes through.
type Store interface {
	ModifyTeam(ctx context.Context, teamID string, fn func(teamquest.TeamTx) error) error
}

// Normalizer brings legacy team documents up to the current shape before
// a transition touches them.
type Normalizer interface {
	Normalize(ctx context.Context, tx teamquest.TeamTx) (bool, error)
}

type Engine struct {
	store  Store
	norm   Normalizer
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, norm Normalizer, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		norm:   norm,
		logger: logger,
		now:    time.Now,
	}
}

// Reversal describes what Uncomplete took back.
type Reversal struct {
	Completion teamquest.Completion `json:"completion"`
	Credits    int                  `json:"credits"`
	Crystals   int                  `json:"crystals"`
}

// apply loads team and mission inside one transaction, reconciles the team,
// and hands both to fn.
func (e *Engine) apply(ctx context.Context, teamID, missionID string, fn func(tx teamquest.TeamTx, t *teamquest.Team, m teamquest.Mission) error) error {
	return e.store.ModifyTeam(ctx, teamID, func(tx teamquest.TeamTx) error {
		if _, err := e.norm.Normalize(ctx, tx); err != nil {
			return fmt.Errorf("reconciling team %s: %w", teamID, err)
		}
		m, err := tx.Mission(ctx, missionID)
		if err != nil {
			return err
		}
		return fn(tx, tx.Team(), m)
	})
}

// Start puts the mission in progress with a fresh start time. Restarting a
// failed or running mission is allowed; a completed one must be
// uncompleted first.
func (e *Engine) Start(ctx context.Context, teamID, missionID string) (teamquest.MissionProgress, error) {
	var out teamquest.MissionProgress
	err := e.apply(ctx, teamID, missionID, func(_ teamquest.TeamTx, t *teamquest.Team, _ teamquest.Mission) error {
		p := t.Progress(missionID)
		if p.Status == teamquest.StatusComplete {
			return fmt.Errorf("mission %s is already complete for team %s: %w", missionID, teamID, teamquest.ErrConflict)
		}
		now := e.now().UTC()
		out = teamquest.MissionProgress{
			MissionID: missionID,
			Status:    teamquest.StatusInProgress,
			Tries:     p.Tries,
			StartedAt: &now,
		}
		t.SetProgress(out)
		return nil
	})
	if err != nil {
		return teamquest.MissionProgress{}, err
	}
	e.logTransition("mission started", teamID, out)
	return out, nil
}

// Fail records a failed attempt. It serves both manual stops and timer
// expiry.
func (e *Engine) Fail(ctx context.Context, teamID, missionID string) (teamquest.MissionProgress, error) {
	var out teamquest.MissionProgress
	err := e.apply(ctx, teamID, missionID, func(_ teamquest.TeamTx, t *teamquest.Team, _ teamquest.Mission) error {
		p := t.Progress(missionID)
		if p.Status == teamquest.StatusComplete {
			return fmt.Errorf("mission %s is already complete for team %s: %w", missionID, teamID, teamquest.ErrConflict)
		}
		out = teamquest.MissionProgress{
			MissionID: missionID,
			Status:    teamquest.StatusFailed,
			Tries:     p.Tries + 1,
		}
		t.SetProgress(out)
		return nil
	})
	if err != nil {
		return teamquest.MissionProgress{}, err
	}
	e.logTransition("mission failed", teamID, out)
	return out, nil
}

// Expire fails the mission if it is still running and its duration has
// elapsed at now. It reports whether the mission was failed. The check and
// the transition happen in one transaction, so a mission completed or
// restarted since the caller looked is left alone.
func (e *Engine) Expire(ctx context.Context, teamID, missionID string, now time.Time) (bool, error) {
	var out teamquest.MissionProgress
	expired := false
	err := e.apply(ctx, teamID, missionID, func(_ teamquest.TeamTx, t *teamquest.Team, m teamquest.Mission) error {
		p := t.Progress(missionID)
		if !Expired(p, m, now) {
			return nil
		}
		out = teamquest.MissionProgress{
			MissionID: missionID,
			Status:    teamquest.StatusFailed,
			Tries:     p.Tries + 1,
		}
		t.SetProgress(out)
		expired = true
		return nil
	})
	if err != nil || !expired {
		return false, err
	}
	e.logTransition("mission expired", teamID, out)
	return true, nil
}

// Expired reports whether p is a running attempt at a timed mission whose
// time ran out at now.
func Expired(p teamquest.MissionProgress, m teamquest.Mission, now time.Time) bool {
	if p.Status != teamquest.StatusInProgress || p.StartedAt == nil || !m.Timed() {
		return false
	}
	deadline := p.StartedAt.Add(time.Duration(m.MissionDuration) * time.Minute)
	return !now.Before(deadline)
}

// AdjustTime moves the start time back by minutes, giving a timed mission
// that much longer. Status is untouched and is not checked.
func (e *Engine) AdjustTime(ctx context.Context, teamID, missionID string, minutes int) (teamquest.MissionProgress, error) {
	var out teamquest.MissionProgress
	err := e.apply(ctx, teamID, missionID, func(_ teamquest.TeamTx, t *teamquest.Team, _ teamquest.Mission) error {
		out = t.Progress(missionID)
		if out.StartedAt == nil {
			return nil
		}
		shifted := out.StartedAt.Add(-time.Duration(minutes) * time.Minute)
		out.StartedAt = &shifted
		t.SetProgress(out)
		return nil
	})
	if err != nil {
		return teamquest.MissionProgress{}, err
	}
	e.logger.Info("mission time adjusted",
		"team_id", teamID,
		"mission_id", missionID,
		"minutes", minutes,
	)
	return out, nil
}

// Complete pays the mission reward and records the completion. Without
// manualOverride a second completion of the same pair fails with
// ErrConflict; with it the existing row is returned and nothing is paid.
func (e *Engine) Complete(ctx context.Context, teamID, missionID, completedBy string, manualOverride bool) (teamquest.Completion, error) {
	var out teamquest.Completion
	paid := false
	err := e.apply(ctx, teamID, missionID, func(tx teamquest.TeamTx, t *teamquest.Team, m teamquest.Mission) error {
		c, inserted, err := tx.InsertCompletion(ctx, teamquest.Completion{
			MissionID:        missionID,
			CompletedBy:      completedBy,
			CompletedAt:      e.now(),
			IsManualOverride: manualOverride,
		})
		if err != nil {
			return fmt.Errorf("recording completion: %w", err)
		}

		if !inserted {
			if !manualOverride {
				return fmt.Errorf("mission %s already completed by team %s: %w", missionID, teamID, teamquest.ErrConflict)
			}
			existing, err := tx.Completion(ctx, missionID)
			if err != nil {
				return err
			}
			resync(t, existing)
			out = existing
			return nil
		}

		credits, crystals := m.Reward()
		if err := t.AddBalance(credits, crystals); err != nil {
			return err
		}
		completedAt := c.CompletedAt
		t.SetProgress(teamquest.MissionProgress{
			MissionID:        missionID,
			Status:           teamquest.StatusComplete,
			Tries:            t.Progress(missionID).Tries,
			CompletedAt:      &completedAt,
			CreditsReceived:  credits,
			CrystalsReceived: crystals,
		})
		out = c
		paid = true
		return nil
	})
	if err != nil {
		return teamquest.Completion{}, err
	}

	e.logger.Info("mission completed",
		"team_id", teamID,
		"mission_id", missionID,
		"completed_by", completedBy,
		"manual_override", manualOverride,
		"paid", paid,
	)
	return out, nil
}

// Override force-completes a mission. It is idempotent with respect to
// payout: repeated calls return the original completion row.
func (e *Engine) Override(ctx context.Context, teamID, missionID, completedBy string) (teamquest.Completion, error) {
	return e.Complete(ctx, teamID, missionID, completedBy, true)
}

// resync marks the progress entry complete to match an existing ledger
// row, keeping whatever amounts were recorded.
func resync(t *teamquest.Team, c teamquest.Completion) {
	p := t.Progress(c.MissionID)
	if p.Status == teamquest.StatusComplete && p.CompletedAt != nil {
		return
	}
	completedAt := c.CompletedAt
	p.Status = teamquest.StatusComplete
	p.StartedAt = nil
	p.CompletedAt = &completedAt
	t.SetProgress(p)
}

// Uncomplete removes the completion and takes back its reward. The amounts
// recorded at completion time are used. Entries that predate that
// bookkeeping, recognized by a legacy ledger row or by no recorded amounts
// at all, are reversed at the mission's current values instead. Balances
// never go below zero.
func (e *Engine) Uncomplete(ctx context.Context, teamID, missionID string) (Reversal, error) {
	var out Reversal
	err := e.apply(ctx, teamID, missionID, func(tx teamquest.TeamTx, t *teamquest.Team, m teamquest.Mission) error {
		c, err := tx.DeleteCompletion(ctx, missionID)
		if err != nil {
			return err
		}

		p := t.Progress(missionID)
		credits, crystals := p.CreditsReceived, p.CrystalsReceived
		if legacyEntry(c, p) {
			credits, crystals = m.Reward()
		}

		if err := t.AddBalance(-credits, -crystals); err != nil {
			return err
		}
		t.SetProgress(teamquest.MissionProgress{
			MissionID: missionID,
			Status:    teamquest.StatusNotStarted,
			Tries:     p.Tries,
		})

		out = Reversal{Completion: c, Credits: credits, Crystals: crystals}
		return nil
	})
	if err != nil {
		return Reversal{}, err
	}

	e.logger.Info("mission uncompleted",
		"team_id", teamID,
		"mission_id", missionID,
		"credits", out.Credits,
		"crystals", out.Crystals,
	)
	return out, nil
}

func legacyEntry(c teamquest.Completion, p teamquest.MissionProgress) bool {
	if c.CompletedBy == teamquest.LegacyActor {
		return true
	}
	return p.CreditsReceived == 0 && p.CrystalsReceived == 0
}

// AdjustBalance applies signed credit and crystal deltas, clamped at zero.
// Deltas that would overflow a balance fail with ErrInvalid.
func (e *Engine) AdjustBalance(ctx context.Context, teamID string, credits, crystals int) (teamquest.Team, error) {
	var out teamquest.Team
	err := e.store.ModifyTeam(ctx, teamID, func(tx teamquest.TeamTx) error {
		if _, err := e.norm.Normalize(ctx, tx); err != nil {
			return fmt.Errorf("reconciling team %s: %w", teamID, err)
		}
		t := tx.Team()
		if err := t.AddBalance(credits, crystals); err != nil {
			return err
		}
		out = *t
		return nil
	})
	if err != nil {
		return teamquest.Team{}, err
	}
	e.logger.Info("balance adjusted",
		"team_id", teamID,
		"credits", credits,
		"crystals", crystals,
	)
	return out, nil
}

func (e *Engine) logTransition(msg, teamID string, p teamquest.MissionProgress) {
	e.logger.Info(msg,
		"team_id", teamID,
		"mission_id", p.MissionID,
		"status", p.Status,
		"tries", p.Tries,
	)
}
