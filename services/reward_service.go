package services

import (
	"context"
	"errors"
	"strings"

	"ecoenzim-service/models"
	"ecoenzim-service/store"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RewardService owns milestone definitions and runs the milestone engine.
type RewardService struct {
	deps Deps
}

func NewRewardService(deps Deps) *RewardService {
	return &RewardService{deps: deps.withDefaults()}
}

var upper = cases.Upper(language.Und)

// NormalizeRewardCode turns free text such as "Streak 7 hari" into STREAK_7_HARI.
func NormalizeRewardCode(raw string) string {
	s := slug.Make(unidecode.Unidecode(strings.TrimSpace(raw)))
	return upper.String(strings.ReplaceAll(s, "-", "_"))
}

type RewardQuery struct {
	IsActive *bool
	Search   string
	Page     PageParams
}

type RewardInput struct {
	Code         string
	Name         string
	Description  string
	PointsReward int64
	TargetDays   int
	IsActive     *bool
}

// RewardPatch carries optional fields for Update.
type RewardPatch struct {
	Code         *string
	Name         *string
	Description  *string
	PointsReward *int64
	TargetDays   *int
	IsActive     *bool
}

type MilestoneResult struct {
	Reward                models.Reward         `json:"reward"`
	Claim                 models.MilestoneClaim `json:"claim"`
	PointsAwardedThisCall int64                 `json:"points_awarded_this_call"`
	TotalPoints           int64                 `json:"total_points"`
}

func (s *RewardService) List(ctx context.Context, q RewardQuery) (PageResult[models.Reward], error) {
	filter := store.RewardFilter{IsActive: q.IsActive, Search: strings.TrimSpace(q.Search)}
	rewards, total, err := s.deps.Store.ListRewards(ctx, filter, q.Page.window())
	if err != nil {
		return PageResult[models.Reward]{}, err
	}
	return newPageResult(rewards, total, q.Page), nil
}

func (s *RewardService) Get(ctx context.Context, id string) (*models.Reward, error) {
	r, err := s.deps.Store.FindReward(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, NotFound(CodeRewardNotFound, "reward not found")
		}
		return nil, err
	}
	return r, nil
}

func validateReward(r *models.Reward) error {
	switch {
	case r.Code == "":
		return Validation(CodeRewardCodeRequired, "reward code is required")
	case strings.TrimSpace(r.Name) == "":
		return Validation(CodeValidationFailed, "reward name is required")
	case r.PointsReward < 0:
		return Validation(CodeValidationFailed, "points reward must not be negative")
	case r.TargetDays < 1:
		return Validation(CodeValidationFailed, "target days must be at least 1")
	}
	return nil
}

func rewardCodeExists(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return Conflict(CodeRewardCodeExists, "reward code already exists")
	}
	return err
}

func (s *RewardService) Create(ctx context.Context, actor Actor, in RewardInput) (*models.Reward, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	r := &models.Reward{
		ID:           uuid.NewString(),
		Code:         NormalizeRewardCode(in.Code),
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		PointsReward: in.PointsReward,
		TargetDays:   in.TargetDays,
		IsActive:     true,
	}
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	if err := validateReward(r); err != nil {
		return nil, err
	}
	if err := s.deps.Store.CreateReward(ctx, r); err != nil {
		return nil, rewardCodeExists(err)
	}
	s.deps.Logger.WithField("reward_code", r.Code).Info("reward created")
	return r, nil
}

func (s *RewardService) Update(ctx context.Context, actor Actor, id string, patch RewardPatch) (*models.Reward, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Code != nil {
		r.Code = NormalizeRewardCode(*patch.Code)
	}
	if patch.Name != nil {
		r.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		r.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.PointsReward != nil {
		r.PointsReward = *patch.PointsReward
	}
	if patch.TargetDays != nil {
		r.TargetDays = *patch.TargetDays
	}
	if patch.IsActive != nil {
		r.IsActive = *patch.IsActive
	}
	if err := validateReward(r); err != nil {
		return nil, err
	}
	if err := s.deps.Store.SaveReward(ctx, r); err != nil {
		return nil, rewardCodeExists(err)
	}
	return r, nil
}

func (s *RewardService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.deps.Store.DeleteReward(ctx, id); err != nil {
		if isNotFound(err) {
			return NotFound(CodeRewardNotFound, "reward not found")
		}
		return err
	}
	return nil
}

// ClaimMilestone records progress against a reward and pays it out the first
// time progress reaches the target. Progress never moves backwards; a nil
// progress keeps the stored value. Repeat calls after the payout award 0.
func (s *RewardService) ClaimMilestone(ctx context.Context, userID, code string, progress *int) (*MilestoneResult, error) {
	return s.claimMilestone(ctx, code, progress, func(tx store.Repository) (*models.User, error) {
		return tx.LockUser(ctx, userID)
	})
}

// ClaimMilestoneFor runs ClaimMilestone on behalf of username. Admin only.
// The reward is checked before the user, as in ClaimMilestone.
func (s *RewardService) ClaimMilestoneFor(ctx context.Context, actor Actor, username, code string, progress *int) (*MilestoneResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	return s.claimMilestone(ctx, code, progress, func(tx store.Repository) (*models.User, error) {
		u, err := tx.FindUserByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		return tx.LockUser(ctx, u.ID)
	})
}

func (s *RewardService) claimMilestone(ctx context.Context, code string, progress *int, lockUser func(tx store.Repository) (*models.User, error)) (*MilestoneResult, error) {
	code = NormalizeRewardCode(code)
	var result *MilestoneResult

	err := s.deps.Store.Transaction(ctx, func(tx store.Repository) error {
		reward, err := tx.FindRewardByCode(ctx, code)
		if err != nil {
			if isNotFound(err) {
				return NotFound(CodeRewardNotFound, "reward not found")
			}
			return err
		}
		if !reward.IsActive {
			return Validation(CodeRewardInactive, "reward is not active")
		}
		// The user row lock serialises milestone claims per user.
		user, err := lockUser(tx)
		if err != nil {
			if isNotFound(err) {
				return NotFound(CodeUserNotFound, "user not found")
			}
			return err
		}
		if progress != nil && *progress < 0 {
			return Validation(CodeInvalidProgress, "progress days must not be negative")
		}

		claim, err := tx.FindMilestoneClaim(ctx, user.ID, reward.ID)
		isNew := false
		switch {
		case isNotFound(err):
			isNew = true
			claim = &models.MilestoneClaim{
				ID:       uuid.NewString(),
				UserID:   user.ID,
				RewardID: reward.ID,
				Code:     reward.Code,
				Status:   models.MilestonePending,
			}
		case err != nil:
			return err
		}

		next := claim.ProgressDays
		if progress != nil && *progress > next {
			next = *progress
		}
		changed := isNew || next != claim.ProgressDays
		claim.ProgressDays = next

		var awarded int64
		if next >= reward.TargetDays && claim.Status != models.MilestoneCompleted && claim.PointsAwarded == 0 {
			now := s.deps.Clock.Now()
			awarded = reward.PointsReward
			claim.PointsAwarded = reward.PointsReward
			claim.Status = models.MilestoneCompleted
			claim.ClaimedAt = &now
			changed = true
			if _, err := creditPoints(ctx, tx, user.ID, awarded, models.PointsSourceReward, reward.Code, now); err != nil {
				return err
			}
			user.TotalPoints += awarded
		}

		if changed {
			if isNew {
				err = tx.CreateMilestoneClaim(ctx, claim)
			} else {
				err = tx.SaveMilestoneClaim(ctx, claim)
			}
			if err != nil {
				return err
			}
		}

		result = &MilestoneResult{
			Reward:                *reward,
			Claim:                 *claim,
			PointsAwardedThisCall: awarded,
			TotalPoints:           user.TotalPoints,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.PointsAwardedThisCall > 0 {
		s.deps.Metrics.milestonePaid(result.Reward.Code)
		s.deps.Metrics.pointsAdded(string(models.PointsSourceReward), result.PointsAwardedThisCall)
		s.deps.Logger.WithFields(logrus.Fields{
			"user_id":     result.Claim.UserID,
			"reward_code": result.Reward.Code,
			"points":      result.PointsAwardedThisCall,
		}).Info("milestone reward paid")
	}
	return result, nil
}

func (s *RewardService) ListClaims(ctx context.Context, userID string, page PageParams) (PageResult[models.MilestoneClaim], error) {
	claims, total, err := s.deps.Store.ListMilestoneClaims(ctx, userID, page.window())
	if err != nil {
		return PageResult[models.MilestoneClaim]{}, err
	}
	return newPageResult(claims, total, page), nil
}
