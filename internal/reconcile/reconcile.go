// Package reconcile upgrades team documents written by older builds to the
// current shape: identity fields, hashed PIN, and progress entries migrated
// from the flat list of completed mission ids.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/teamquest/internal/identity"
	"github.com/playperu/teamquest/internal/teamquest"
)

type Reconciler struct {
	defaultPIN string
	logger     *slog.Logger
	now        func() time.Time
}

func New(logger *slog.Logger, defaultPIN string) *Reconciler {
	return &Reconciler{
		defaultPIN: defaultPIN,
		logger:     logger,
		now:        time.Now,
	}
}

// Normalize fills in whatever tx's team is missing. It is idempotent:
// a team already in the current shape is left untouched and false is
// returned.
func (r *Reconciler) Normalize(ctx context.Context, tx teamquest.TeamTx) (bool, error) {
	t := tx.Team()
	var fixed []string

	if t.GUID == "" {
		t.GUID = identity.NewGUID()
		fixed = append(fixed, "guid")
	}
	if t.Code == "" {
		t.Code = identity.ShortCode(t.GUID)
		fixed = append(fixed, "code")
	}
	if t.PINHash == "" {
		pin := t.LegacyPIN
		if pin == "" {
			pin = r.defaultPIN
		}
		hash, err := identity.HashPIN(pin)
		if err != nil {
			return false, err
		}
		t.PINHash = hash
		fixed = append(fixed, "pinHash")
	}
	if t.LegacyPIN != "" {
		t.LegacyPIN = ""
		fixed = append(fixed, "pin")
	}
	if t.Missions == nil {
		t.Missions = map[string]*teamquest.MissionProgress{}
	}

	if len(t.Missions) == 0 && len(t.LegacyCompletedMissions) > 0 {
		n, err := r.migrateCompleted(ctx, tx)
		if err != nil {
			return false, err
		}
		fixed = append(fixed, fmt.Sprintf("missions(%d)", n))
	}

	if len(fixed) == 0 {
		return false, nil
	}
	r.logger.Info("reconciled legacy team",
		"team_id", t.ID,
		"fields", fixed,
	)
	return true, nil
}

// migrateCompleted turns the legacy id list into COMPLETE progress entries.
// The amounts originally paid were never recorded, so received amounts stay
// zero and reversal falls back to the mission catalog.
func (r *Reconciler) migrateCompleted(ctx context.Context, tx teamquest.TeamTx) (int, error) {
	t := tx.Team()
	now := r.now().UTC()
	migrated := 0

	for _, missionID := range t.LegacyCompletedMissions {
		if missionID == "" {
			continue
		}
		if _, ok := t.Missions[missionID]; ok {
			continue
		}
		completedAt := now
		t.SetProgress(teamquest.MissionProgress{
			MissionID:   missionID,
			Status:      teamquest.StatusComplete,
			CompletedAt: &completedAt,
		})
		_, _, err := tx.InsertCompletion(ctx, teamquest.Completion{
			MissionID:   missionID,
			CompletedBy: teamquest.LegacyActor,
			CompletedAt: now,
		})
		if err != nil {
			return 0, fmt.Errorf("backfilling completion for mission %s: %w", missionID, err)
		}
		migrated++
	}

	t.LegacyCompletedMissions = nil
	return migrated, nil
}

// Store is the slice of the team repository Backfill needs.
type Store interface {
	TeamIDs(ctx context.Context) ([]string, error)
	ModifyTeam(ctx context.Context, teamID string, fn func(teamquest.TeamTx) error) error
}

// Backfill normalizes every stored team once and returns how many changed.
func (r *Reconciler) Backfill(ctx context.Context, s Store) (int, error) {
	ids, err := s.TeamIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing teams: %w", err)
	}

	changed := 0
	for _, id := range ids {
		err := s.ModifyTeam(ctx, id, func(tx teamquest.TeamTx) error {
			ok, err := r.Normalize(ctx, tx)
			if ok {
				changed++
			}
			return err
		})
		if err != nil {
			return changed, fmt.Errorf("backfilling team %s: %w", id, err)
		}
	}
	return changed, nil
}
