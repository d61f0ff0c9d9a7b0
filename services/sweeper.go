package services

import (
	"context"

	"ecoenzim-service/models"

	"github.com/sirupsen/logrus"
)

// SweepResult counts what one sweep did.
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// ExpirySweeper closes ongoing projects whose end date has passed.
type ExpirySweeper struct {
	deps Deps
}

func NewExpirySweeper(deps Deps) *ExpirySweeper {
	return &ExpirySweeper{deps: deps.withDefaults()}
}

// Sweep applies the status rule to every expired ongoing project. A failure
// on one project is logged and counted; the rest still run.
func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.deps.Clock.Now()

	projects, err := s.deps.Store.ListExpiredOngoing(ctx, now)
	if err != nil {
		return res, err
	}

	for i := range projects {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		p := &projects[i]
		res.Scanned++

		changed, err := reconcileProject(ctx, s.deps.Store, p, now)
		if err != nil {
			res.Failed++
			s.deps.Metrics.sweepOutcome("failed")
			s.deps.Logger.WithError(err).WithField("project_id", p.ID).Warn("sweep: failed to close project")
			continue
		}

		switch {
		case !changed:
			res.Unchanged++
			s.deps.Metrics.sweepOutcome("unchanged")
		case p.Status == models.ProjectCompleted:
			res.Completed++
			s.deps.Metrics.sweepOutcome("completed")
		case p.Status == models.ProjectCancelled:
			res.Cancelled++
			s.deps.Metrics.sweepOutcome("cancelled")
		}
	}

	if res.Scanned > 0 {
		s.deps.Logger.WithFields(logrus.Fields{
			"scanned":   res.Scanned,
			"completed": res.Completed,
			"cancelled": res.Cancelled,
			"unchanged": res.Unchanged,
			"failed":    res.Failed,
		}).Info("expiry sweep finished")
	}
	return res, nil
}
