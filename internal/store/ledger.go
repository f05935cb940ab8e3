package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/teamquest/internal/teamquest"
)

// Completion ledger. One row per paid (team, mission) pair; the unique
// index on (team_id, mission_id) rejects a second row.

func (s *DocStore) Completion(ctx context.Context, teamID, missionID string) (teamquest.Completion, error) {
	return findCompletion(ctx, s.db, teamID, missionID)
}

// CompletionsByTeam lists a team's completions, oldest first.
func (s *DocStore) CompletionsByTeam(ctx context.Context, teamID string) ([]teamquest.Completion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, mission_id, completed_by, completed_at, is_manual_override
		FROM completions
		WHERE team_id = ?
		ORDER BY completed_at, id
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completions := []teamquest.Completion{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// InsertCompletion writes c outside any team transaction. It reports false
// if the pair already has a row.
func (s *DocStore) InsertCompletion(ctx context.Context, c teamquest.Completion) (teamquest.Completion, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return insertCompletion(ctx, s.db, c)
}

// DeleteCompletion removes the pair's row and returns it.
func (s *DocStore) DeleteCompletion(ctx context.Context, teamID, missionID string) (teamquest.Completion, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return deleteCompletion(ctx, s.db, teamID, missionID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompletion(row scanner) (teamquest.Completion, error) {
	var c teamquest.Completion
	var completedAt string
	var manual int
	if err := row.Scan(&c.ID, &c.TeamID, &c.MissionID, &c.CompletedBy, &completedAt, &manual); err != nil {
		return teamquest.Completion{}, err
	}
	t, err := parseTime(completedAt)
	if err != nil {
		return teamquest.Completion{}, fmt.Errorf("parsing completed_at: %w", err)
	}
	c.CompletedAt = t
	c.IsManualOverride = manual != 0
	return c, nil
}

func findCompletion(ctx context.Context, q querier, teamID, missionID string) (teamquest.Completion, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, team_id, mission_id, completed_by, completed_at, is_manual_override
		FROM completions
		WHERE team_id = ? AND mission_id = ?
	`, teamID, missionID)
	c, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("completion %s/%s: %w", teamID, missionID, teamquest.ErrNotFound)
	}
	return c, err
}

func insertCompletion(ctx context.Context, q querier, c teamquest.Completion) (teamquest.Completion, bool, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now()
	}
	c.CompletedAt = c.CompletedAt.UTC().Truncate(time.Millisecond)

	manual := 0
	if c.IsManualOverride {
		manual = 1
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO completions (id, team_id, mission_id, completed_by, completed_at, is_manual_override)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(team_id, mission_id) DO NOTHING
	`, c.ID, c.TeamID, c.MissionID, c.CompletedBy, formatTime(c.CompletedAt), manual)
	if err != nil {
		return teamquest.Completion{}, false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return teamquest.Completion{}, false, err
	}
	if n == 0 {
		return teamquest.Completion{}, false, nil
	}
	return c, true, nil
}

func deleteCompletion(ctx context.Context, q querier, teamID, missionID string) (teamquest.Completion, error) {
	c, err := findCompletion(ctx, q, teamID, missionID)
	if err != nil {
		return c, err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM completions WHERE id = ?`, c.ID); err != nil {
		return teamquest.Completion{}, err
	}
	return c, nil
}
