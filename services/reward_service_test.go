package services

import (
	"context"
	"sync"
	"testing"

	"ecoenzim-service/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedReward(t *testing.T, code string, target int, points int64, active bool) *models.Reward {
	t.Helper()
	r, err := e.rewards.Create(context.Background(), admin, RewardInput{
		Code:         code,
		Name:         "Streak " + code,
		PointsReward: points,
		TargetDays:   target,
		IsActive:     boolPtr(active),
	})
	require.NoError(t, err)
	return r
}

func TestNormalizeRewardCode(t *testing.T) {
	assert.Equal(t, "STREAK_7", NormalizeRewardCode("streak 7"))
	assert.Equal(t, "STREAK_7", NormalizeRewardCode("STREAK_7"))
	assert.Equal(t, "PANEN_PERTAMA", NormalizeRewardCode("  Panén   pertama "))
	assert.Equal(t, "", NormalizeRewardCode("   "))
}

func TestClaimMilestone_PaysOnceAtTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.users.Ensure(ctx, owner)
	require.NoError(t, err)
	env.seedReward(t, "STREAK_7", 7, 100, true)

	res, err := env.rewards.ClaimMilestone(ctx, owner.ID, "STREAK_7", intPtr(5))
	require.NoError(t, err)
	assert.Zero(t, res.PointsAwardedThisCall)
	assert.Equal(t, 5, res.Claim.ProgressDays)
	assert.Zero(t, res.Claim.PointsAwarded)
	assert.Equal(t, models.MilestonePending, res.Claim.Status)

	res, err = env.rewards.ClaimMilestone(ctx, owner.ID, "streak_7", intPtr(7))
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.PointsAwardedThisCall)
	assert.Equal(t, int64(100), res.Claim.PointsAwarded)
	assert.Equal(t, models.MilestoneCompleted, res.Claim.Status)
	assert.NotNil(t, res.Claim.ClaimedAt)
	assert.Equal(t, int64(100), res.TotalPoints)

	res, err = env.rewards.ClaimMilestone(ctx, owner.ID, "STREAK_7", intPtr(10))
	require.NoError(t, err)
	assert.Zero(t, res.PointsAwardedThisCall)
	assert.Equal(t, 10, res.Claim.ProgressDays)
	assert.Equal(t, int64(100), res.Claim.PointsAwarded)

	history, err := env.ledger.History(ctx, owner.ID, PageParams{})
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, models.PointsSourceReward, history.Items[0].Source)
	require.NotNil(t, history.Items[0].ReferenceID)
	assert.Equal(t, "STREAK_7", *history.Items[0].ReferenceID)

	u, err := env.users.Profile(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.TotalPoints)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.milestonePayouts.WithLabelValues("STREAK_7")))
}

func TestClaimMilestone_ProgressNeverRegresses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.users.Ensure(ctx, owner)
	require.NoError(t, err)
	env.seedReward(t, "STREAK_30", 30, 300, true)

	_, err = env.rewards.ClaimMilestone(ctx, owner.ID, "STREAK_30", intPtr(12))
	require.NoError(t, err)

	res, err := env.rewards.ClaimMilestone(ctx, owner.ID, "STREAK_30", intPtr(4))
	require.NoError(t, err)
	assert.Equal(t, 12, res.Claim.ProgressDays)

	res, err = env.rewards.ClaimMilestone(ctx, owner.ID, "STREAK_30", nil)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Claim.ProgressDays)
	assert.Zero(t, res.PointsAwardedThisCall)

	claims, err := env.rewards.ListClaims(ctx, owner.ID, PageParams{})
	require.NoError(t, err)
	require.Len(t, claims.Items, 1)
	assert.Equal(t, 12, claims.Items[0].ProgressDays)
}

func TestClaimMilestone_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedReward(t, "STREAK_7", 7, 100, true)
	env.seedReward(t, "RETIRED", 3, 10, false)

	_, err := env.rewards.ClaimMilestone(ctx, owner.ID, "UNKNOWN", intPtr(1))
	requireCode(t, err, KindNotFound, CodeRewardNotFound)

	_, err = env.rewards.ClaimMilestone(ctx, owner.ID, "RETIRED", intPtr(5))
	requireCode(t, err, KindValidation, CodeRewardInactive)

	_, err = env.rewards.ClaimMilestone(ctx, owner.ID, "STREAK_7", intPtr(1))
	requireCode(t, err, KindNotFound, CodeUserNotFound)

	_, err = env.users.Ensure(ctx, owner)
	require.NoError(t, err)
	_, err = env.rewards.ClaimMilestone(ctx, owner.ID, "STREAK_7", intPtr(-1))
	requireCode(t, err, KindValidation, CodeInvalidProgress)

	// Failed calls leave nothing behind.
	claims, err := env.rewards.ListClaims(ctx, owner.ID, PageParams{})
	require.NoError(t, err)
	assert.Empty(t, claims.Items)
}

func TestClaimMilestoneFor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedReward(t, "STREAK_3", 3, 30, true)
	env.seedReward(t, "RETIRED", 3, 10, false)

	_, err := env.rewards.ClaimMilestoneFor(ctx, owner, "sari", "STREAK_3", intPtr(3))
	requireCode(t, err, KindForbidden, CodeAdminOnly)

	// Reward errors win over an unknown username.
	_, err = env.rewards.ClaimMilestoneFor(ctx, admin, "ghost", "UNKNOWN", intPtr(3))
	requireCode(t, err, KindNotFound, CodeRewardNotFound)
	_, err = env.rewards.ClaimMilestoneFor(ctx, admin, "ghost", "RETIRED", intPtr(3))
	requireCode(t, err, KindValidation, CodeRewardInactive)
	_, err = env.rewards.ClaimMilestoneFor(ctx, admin, "ghost", "STREAK_3", intPtr(3))
	requireCode(t, err, KindNotFound, CodeUserNotFound)

	require.NoError(t, env.users.Sync(ctx, []models.User{{ID: owner.ID, Username: "sari"}}))
	res, err := env.rewards.ClaimMilestoneFor(ctx, admin, " sari ", "streak 3", intPtr(3))
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.PointsAwardedThisCall)
	assert.Equal(t, owner.ID, res.Claim.UserID)
	assert.Equal(t, int64(30), res.TotalPoints)
}

func TestClaimMilestone_ConcurrentPayoutOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.users.Ensure(ctx, owner)
	require.NoError(t, err)
	env.seedReward(t, "STREAK_7", 7, 100, true)

	const callers = 12
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(progress int) {
			defer wg.Done()
			res, err := env.rewards.ClaimMilestone(ctx, owner.ID, "STREAK_7", intPtr(progress))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			total += res.PointsAwardedThisCall
			mu.Unlock()
		}(7 + i)
	}
	wg.Wait()

	assert.Equal(t, int64(100), total)
	u, err := env.users.Profile(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.TotalPoints)

	history, err := env.ledger.History(ctx, owner.ID, PageParams{})
	require.NoError(t, err)
	assert.Len(t, history.Items, 1)
}

func TestRewardAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rewards.Create(ctx, owner, RewardInput{Code: "x", Name: "x", TargetDays: 1})
	requireCode(t, err, KindForbidden, CodeAdminOnly)

	_, err = env.rewards.Create(ctx, admin, RewardInput{Code: "  ", Name: "x", TargetDays: 1})
	requireCode(t, err, KindValidation, CodeRewardCodeRequired)

	_, err = env.rewards.Create(ctx, admin, RewardInput{Code: "week", Name: "Week", TargetDays: 0})
	requireCode(t, err, KindValidation, CodeValidationFailed)

	week := env.seedReward(t, "week one", 7, 50, true)
	assert.Equal(t, "WEEK_ONE", week.Code)
	env.seedReward(t, "month", 30, 200, false)

	_, err = env.rewards.Create(ctx, admin, RewardInput{Code: "Week-One", Name: "dup", TargetDays: 3})
	requireCode(t, err, KindConflict, CodeRewardCodeExists)

	all, err := env.rewards.List(ctx, RewardQuery{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	assert.Equal(t, "WEEK_ONE", all.Items[0].Code)

	active, err := env.rewards.List(ctx, RewardQuery{IsActive: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, active.Items, 1)

	found, err := env.rewards.List(ctx, RewardQuery{Search: "MONTH"})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "MONTH", found.Items[0].Code)

	updated, err := env.rewards.Update(ctx, admin, week.ID, RewardPatch{
		PointsReward: int64Ptr(75),
		IsActive:     boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(75), updated.PointsReward)
	assert.False(t, updated.IsActive)

	_, err = env.rewards.Update(ctx, admin, week.ID, RewardPatch{Code: strPtr("month")})
	requireCode(t, err, KindConflict, CodeRewardCodeExists)

	require.NoError(t, env.rewards.Delete(ctx, admin, week.ID))
	_, err = env.rewards.Get(ctx, week.ID)
	requireCode(t, err, KindNotFound, CodeRewardNotFound)
	requireCode(t, env.rewards.Delete(ctx, admin, week.ID), KindNotFound, CodeRewardNotFound)
}
