// Package store persists teams and missions as JSONB documents and the
// completion ledger as a relational table, all in one SQLite database.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playperu/teamquest/internal/teamquest"
)

// DocStore implements the team, mission and completion repositories.
type DocStore struct {
	db *sql.DB

	// SQLite allows a single writer; serializing read-modify-write
	// transactions here keeps deferred transactions from failing on
	// lock upgrade.
	writeMu sync.Mutex
}

// New wraps a migrated database.
func New(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Timestamps are stored with fixed millisecond width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts any fractional width. libSQL may return the column as a
// time.Time, which scans into a string as RFC 3339 without trailing zeros.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Generic document helpers.

func getDoc(ctx context.Context, q querier, table, id string, dest any) error {
	var data string
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return teamquest.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func putTeam(ctx context.Context, q querier, t *teamquest.Team) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO teams (id, name, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data`,
		t.ID, t.Name, string(data),
	)
	return err
}

// Teams

func (s *DocStore) Team(ctx context.Context, id string) (teamquest.Team, error) {
	var t teamquest.Team
	if err := getDoc(ctx, s.db, "teams", id, &t); err != nil {
		return teamquest.Team{}, fmt.Errorf("team %s: %w", id, err)
	}
	return t, nil
}

// Teams loads every team document ordered by name.
func (s *DocStore) Teams(ctx context.Context) ([]teamquest.Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM teams ORDER BY name, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []teamquest.Team{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t teamquest.Team
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// TeamByCode finds a team by its short code, ignoring case.
func (s *DocStore) TeamByCode(ctx context.Context, code string) (teamquest.Team, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM teams WHERE upper(json_extract(data, '$.code')) = upper(?)`, code,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return teamquest.Team{}, fmt.Errorf("team code %s: %w", code, teamquest.ErrNotFound)
	}
	if err != nil {
		return teamquest.Team{}, err
	}
	var t teamquest.Team
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return teamquest.Team{}, err
	}
	return t, nil
}

func (s *DocStore) TeamIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PutTeam upserts a team document as-is.
func (s *DocStore) PutTeam(ctx context.Context, t teamquest.Team) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return putTeam(ctx, s.db, &t)
}

// CreateTeam inserts a new team, assigning its id and creation time. The
// GUID and code must not be in use by another team.
func (s *DocStore) CreateTeam(ctx context.Context, t teamquest.Team) (teamquest.Team, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teams
		 WHERE json_extract(data, '$.guid') = ? OR json_extract(data, '$.code') = ?`,
		t.GUID, t.Code,
	).Scan(&count)
	if err != nil {
		return teamquest.Team{}, err
	}
	if count > 0 {
		return teamquest.Team{}, fmt.Errorf("team code %s: %w", t.Code, teamquest.ErrConflict)
	}

	t.ID = newID()
	t.CreatedAt = time.Now().UTC()
	if t.Missions == nil {
		t.Missions = map[string]*teamquest.MissionProgress{}
	}
	if err := putTeam(ctx, s.db, &t); err != nil {
		return teamquest.Team{}, err
	}
	return t, nil
}

// ModifyTeam loads a team, applies fn, and saves it in a transaction.
// Ledger writes made through the TeamTx share the same transaction, so
// either everything fn did is committed or nothing is.
func (s *DocStore) ModifyTeam(ctx context.Context, teamID string, fn func(teamquest.TeamTx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var t teamquest.Team
	if err := getDoc(ctx, tx, "teams", teamID, &t); err != nil {
		return fmt.Errorf("team %s: %w", teamID, err)
	}

	if err := fn(&teamTx{tx: tx, team: &t}); err != nil {
		return err
	}

	if err := putTeam(ctx, tx, &t); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetGame deletes every team and every completion.
func (s *DocStore) ResetGame(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM completions`, `DELETE FROM teams`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Missions

func (s *DocStore) Mission(ctx context.Context, id string) (teamquest.Mission, error) {
	return getMission(ctx, s.db, id)
}

func getMission(ctx context.Context, q querier, id string) (teamquest.Mission, error) {
	var m teamquest.Mission
	if err := getDoc(ctx, q, "missions", id, &m); err != nil {
		return teamquest.Mission{}, fmt.Errorf("mission %s: %w", id, err)
	}
	return m, nil
}

// Missions returns the catalog ordered by mission number.
func (s *DocStore) Missions(ctx context.Context) ([]teamquest.Mission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM missions ORDER BY mission_number, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	missions := []teamquest.Mission{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var m teamquest.Mission
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// PutMission upserts a mission, assigning an id and creation time to new
// ones.
func (s *DocStore) PutMission(ctx context.Context, m teamquest.Mission) (teamquest.Mission, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return teamquest.Mission{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO missions (id, mission_number, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET mission_number = excluded.mission_number, data = excluded.data`,
		m.ID, m.MissionNumber, string(data),
	)
	if err != nil {
		return teamquest.Mission{}, err
	}
	return m, nil
}

func (s *DocStore) CountMissions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM missions`).Scan(&n)
	return n, err
}

// Ping reports whether the database is reachable.
func (s *DocStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// teamTx is the TeamTx handed to ModifyTeam callbacks.
type teamTx struct {
	tx   *sql.Tx
	team *teamquest.Team
}

func (t *teamTx) Team() *teamquest.Team { return t.team }

func (t *teamTx) Mission(ctx context.Context, missionID string) (teamquest.Mission, error) {
	return getMission(ctx, t.tx, missionID)
}

func (t *teamTx) Completion(ctx context.Context, missionID string) (teamquest.Completion, error) {
	return findCompletion(ctx, t.tx, t.team.ID, missionID)
}

func (t *teamTx) InsertCompletion(ctx context.Context, c teamquest.Completion) (teamquest.Completion, bool, error) {
	c.TeamID = t.team.ID
	return insertCompletion(ctx, t.tx, c)
}

func (t *teamTx) DeleteCompletion(ctx context.Context, missionID string) (teamquest.Completion, error) {
	return deleteCompletion(ctx, t.tx, t.team.ID, missionID)
}

var _ teamquest.TeamTx = (*teamTx)(nil)
