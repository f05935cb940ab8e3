// Package timer fails timed missions whose duration has run out.
package timer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/playperu/teamquest/internal/progress"
	"github.com/playperu/teamquest/internal/teamquest"
)

// Source lists what the sweeper scans.
type Source interface {
	Teams(ctx context.Context) ([]teamquest.Team, error)
	Missions(ctx context.Context) ([]teamquest.Mission, error)
}

// Expirer applies the timeout transition.
type Expirer interface {
	Expire(ctx context.Context, teamID, missionID string, now time.Time) (bool, error)
}

type Sweeper struct {
	source  Source
	expirer Expirer
	logger  *slog.Logger
	now     func() time.Time
}

func NewSweeper(source Source, expirer Expirer, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		source:  source,
		expirer: expirer,
		logger:  logger,
		now:     time.Now,
	}
}

// Sweep fails every expired running mission and returns how many it
// failed. A failure on one team is logged and does not stop the rest.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	missions, err := s.source.Missions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing missions: %w", err)
	}
	timed := make(map[string]teamquest.Mission)
	for _, m := range missions {
		if m.Timed() {
			timed[m.ID] = m
		}
	}
	if len(timed) == 0 {
		return 0, nil
	}

	teams, err := s.source.Teams(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing teams: %w", err)
	}

	now := s.now()
	expired := 0
	for _, t := range teams {
		for missionID, p := range t.Missions {
			m, ok := timed[missionID]
			if !ok || p == nil || !progress.Expired(*p, m, now) {
				continue
			}
			ok, err := s.expirer.Expire(ctx, t.ID, missionID, now)
			if err != nil {
				s.logger.Error("expiring mission",
					"team_id", t.ID,
					"mission_id", missionID,
					"error", err,
				)
				continue
			}
			if ok {
				expired++
			}
		}
	}
	return expired, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error("mission timer sweep failed", "error", err)
				return
			}
			if n > 0 {
				s.logger.Info("mission timers expired", "count", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		sched.Shutdown()
		return fmt.Errorf("scheduling sweep: %w", err)
	}

	s.logger.Info("starting mission timer", "interval", interval)
	sched.Start()
	<-ctx.Done()
	return sched.Shutdown()
}
