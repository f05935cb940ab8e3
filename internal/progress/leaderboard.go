package progress

import (
	"cmp"
	"slices"

	"github.com/playperu/teamquest/internal/teamquest"
)

type Standing struct {
	Rank      int    `json:"rank"`
	TeamID    string `json:"teamId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Credits   int    `json:"credits"`
	Crystals  int    `json:"crystals"`
	Completed int    `json:"completed"`
}

// Leaderboard ranks teams by credits, then crystals. Teams level on both
// share a rank and are listed by name.
func Leaderboard(teams []teamquest.Team) []Standing {
	standings := make([]Standing, 0, len(teams))
	for _, t := range teams {
		completed := 0
		for _, p := range t.Missions {
			if p != nil && p.Status == teamquest.StatusComplete {
				completed++
			}
		}
		standings = append(standings, Standing{
			TeamID:    t.ID,
			Code:      t.Code,
			Name:      t.Name,
			Credits:   t.Credits,
			Crystals:  t.Crystals,
			Completed: completed,
		})
	}

	slices.SortFunc(standings, func(a, b Standing) int {
		return cmp.Or(
			cmp.Compare(b.Credits, a.Credits),
			cmp.Compare(b.Crystals, a.Crystals),
			cmp.Compare(a.Name, b.Name),
		)
	})

	for i := range standings {
		standings[i].Rank = i + 1
		if i > 0 && standings[i].Credits == standings[i-1].Credits && standings[i].Crystals == standings[i-1].Crystals {
			standings[i].Rank = standings[i-1].Rank
		}
	}
	return standings
}
