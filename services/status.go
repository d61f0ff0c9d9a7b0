package services

import (
	"context"
	"time"

	"ecoenzim-service/models"
	"ecoenzim-service/store"
)

// RequiredCheckpoints is the number of verified checkpoint photos a project
// needs before it can be claimed.
const RequiredCheckpoints = 3

// DeriveStatus computes the status pair a project should hold at now.
//
// Claimed projects never move. A completed, unclaimed project keeps its
// claimability so a batch closed by the sweeper can still be claimed
// (DESIGN.md, open question 1). A cancelled project is re-derived past its
// end date, so a checkpoint verified after the sweep can still complete it;
// it never goes back to ongoing.
func DeriveStatus(p models.Project, verifiedCheckpoints int64, now time.Time) models.ProjectState {
	enough := verifiedCheckpoints >= RequiredCheckpoints
	expired := now.After(p.EndDate)

	switch {
	case p.IsClaimed:
		return models.ProjectState{Status: models.ProjectCompleted}
	case p.Status == models.ProjectCompleted:
		return models.ProjectState{Status: models.ProjectCompleted, CanClaim: enough}
	case p.Status == models.ProjectCancelled && !expired:
		return models.ProjectState{Status: models.ProjectCancelled}
	case expired:
		if enough {
			return models.ProjectState{Status: models.ProjectCompleted, CanClaim: true}
		}
		return models.ProjectState{Status: models.ProjectCancelled}
	case p.Started:
		return models.ProjectState{Status: models.ProjectOngoing}
	}
	return models.ProjectState{Status: models.ProjectNotStarted}
}

// reconcileProject recomputes p's status and persists it when it changed.
// The write is a compare-and-set on the previously read state; when another
// writer got there first p is refreshed from the store instead.
func reconcileProject(ctx context.Context, repo store.Repository, p *models.Project, now time.Time) (bool, error) {
	verified, err := repo.CountVerifiedCheckpoints(ctx, p.ID)
	if err != nil {
		return false, err
	}

	next := DeriveStatus(*p, verified, now)
	if next == p.State() {
		return false, nil
	}

	ok, err := repo.UpdateProjectState(ctx, p.ID, p.State(), next)
	if err != nil {
		return false, err
	}
	if !ok {
		fresh, err := repo.FindProject(ctx, p.ID)
		if err != nil {
			return false, err
		}
		*p = *fresh
		return false, nil
	}

	p.Status = next.Status
	p.CanClaim = next.CanClaim
	return true, nil
}
