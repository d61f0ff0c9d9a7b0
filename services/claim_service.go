package services

import (
	"context"

	"ecoenzim-service/models"
	"ecoenzim-service/store"

	"github.com/sirupsen/logrus"
)

// ClaimService moves a completed project's pre-points into the owner's balance.
type ClaimService struct {
	deps Deps
}

func NewClaimService(deps Deps) *ClaimService {
	return &ClaimService{deps: deps.withDefaults()}
}

type ClaimResult struct {
	Project       *models.Project       `json:"project"`
	PointsAwarded int64                 `json:"points_awarded"`
	TotalPoints   int64                 `json:"total_points"`
	Entry         *models.PointsHistory `json:"ledger_entry"`
}

// Claim is one-shot: a second call fails with ALREADY_CLAIMED.
func (s *ClaimService) Claim(ctx context.Context, actor Actor, projectID string) (*ClaimResult, error) {
	var (
		result  *ClaimResult
		blocked bool
	)

	err := s.deps.Store.Transaction(ctx, func(tx store.Repository) error {
		p, err := loadOwned(ctx, tx, actor, projectID, true)
		if err != nil {
			return err
		}
		if p.IsClaimed {
			return Conflict(CodeAlreadyClaimed, "project already claimed")
		}

		now := s.deps.Clock.Now()
		if _, err := reconcileProject(ctx, tx, p, now); err != nil {
			return err
		}
		if !p.CanClaim {
			// Keep the status change; the claim itself is refused after commit.
			blocked = true
			return nil
		}

		award := p.PrePoints()
		p.Points = &award
		p.PrePointsEarned = nil
		p.IsClaimed = true
		p.ClaimedAt = &now
		p.Status = models.ProjectCompleted
		p.CanClaim = false
		if err := tx.SaveProject(ctx, p); err != nil {
			return err
		}

		if _, err := tx.EnsureUser(ctx, &models.User{ID: actor.ID, Role: actor.Role}); err != nil {
			return err
		}
		entry, err := creditPoints(ctx, tx, actor.ID, award, models.PointsSourceEcoenzim, p.ID, now)
		if err != nil {
			return err
		}
		user, err := tx.FindUser(ctx, actor.ID)
		if err != nil {
			return err
		}

		result = &ClaimResult{Project: p, PointsAwarded: award, TotalPoints: user.TotalPoints, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, Validation(CodeClaimRequirementsNotMet,
			"project needs 3 verified checkpoint photos and a completed period before it can be claimed")
	}

	s.deps.Metrics.projectClaimed()
	s.deps.Metrics.pointsAdded(string(models.PointsSourceEcoenzim), result.PointsAwarded)
	s.deps.Logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"user_id":    actor.ID,
		"points":     result.PointsAwarded,
	}).Info("project claimed")
	return result, nil
}
