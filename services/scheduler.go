package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartExpiryScheduler runs the sweeper every interval until the returned
// scheduler is shut down. A slow sweep is never overlapped by the next run.
func (s *ExpirySweeper) StartExpiryScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.deps.Clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(ctx); err != nil {
				s.deps.Logger.WithError(err).Error("[Scheduler] expiry sweep failed")
			}
		}),
		gocron.WithName("expiry-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	sched.Start()
	s.deps.Logger.WithField("interval", interval.String()).Info("expiry sweep scheduled")
	return sched, nil
}
