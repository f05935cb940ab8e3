// Package storetest opens throwaway migrated stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/playperu/teamquest/internal/database"
	"github.com/playperu/teamquest/internal/migrations"
	"github.com/playperu/teamquest/internal/store"
	"github.com/playperu/teamquest/internal/teamquest"
)

// Open returns a DocStore over a fresh database in t's temp dir.
func Open(t testing.TB) *store.DocStore {
	t.Helper()

	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db)
}

// Team creates a team with the given name and balances. Identity fields
// are filled with fixed placeholder values.
func Team(t testing.TB, s *store.DocStore, name string, credits, crystals int) teamquest.Team {
	t.Helper()

	team, err := s.CreateTeam(context.Background(), teamquest.Team{
		GUID:     "guid-" + name,
		Code:     "CODE-" + name,
		Name:     name,
		PINHash:  "hash",
		Credits:  credits,
		Crystals: crystals,
	})
	if err != nil {
		t.Fatalf("create team %q: %v", name, err)
	}
	return team
}

// Mission stores m and returns it with its assigned id.
func Mission(t testing.TB, s *store.DocStore, m teamquest.Mission) teamquest.Mission {
	t.Helper()

	m, err := s.PutMission(context.Background(), m)
	if err != nil {
		t.Fatalf("put mission %q: %v", m.Name, err)
	}
	return m
}
