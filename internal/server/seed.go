package server

import (
	"context"
	"log/slog"

	"github.com/playperu/teamquest/internal/identity"
	"github.com/playperu/teamquest/internal/teamquest"
)

// SeedStore is what SeedDemo writes through.
type SeedStore interface {
	CountMissions(ctx context.Context) (int, error)
	PutMission(ctx context.Context, m teamquest.Mission) (teamquest.Mission, error)
	CreateTeam(ctx context.Context, t teamquest.Team) (teamquest.Team, error)
}

var demoMissions = []teamquest.Mission{
	{ID: "m0000000000vault", MissionNumber: 1, Name: "Crack the Vault", Description: "Find the three digits hidden around the lobby.", CreditsAwarded: 100, AwardsCrystal: true},
	{ID: "m00000000courier", MissionNumber: 2, Name: "Courier Run", Description: "Deliver the sealed envelope to the front desk within the time limit.", CreditsAwarded: 50, MissionDuration: 15},
	{ID: "m000000000cipher", MissionNumber: 3, Name: "Cipher Wall", Description: "Decode the message on the east wall.", CreditsAwarded: 75},
	{ID: "m0000000000final", MissionNumber: 4, Name: "The Last Door", Description: "Open the final door with everything you have learned.", CreditsAwarded: 250, AwardsCrystal: true, IsFinalChallenge: true, MissionDuration: 30},
}

var demoTeams = []string{"Red Foxes", "Blue Herons"}

// SeedDemo creates the demo missions and teams if the catalog is empty.
// Idempotent: does nothing if any mission exists.
func SeedDemo(ctx context.Context, logger *slog.Logger, store SeedStore, pin string) error {
	n, err := store.CountMissions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	for _, m := range demoMissions {
		if _, err := store.PutMission(ctx, m); err != nil {
			return err
		}
	}

	hash, err := identity.HashPIN(pin)
	if err != nil {
		return err
	}
	for _, name := range demoTeams {
		guid := identity.NewGUID()
		_, err := store.CreateTeam(ctx, teamquest.Team{
			GUID:    guid,
			Code:    identity.ShortCode(guid),
			Name:    name,
			PINHash: hash,
		})
		if err != nil {
			return err
		}
	}

	logger.Info("demo missions and teams seeded",
		"missions", len(demoMissions),
		"teams", len(demoTeams),
	)
	return nil
}
