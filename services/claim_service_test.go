package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ecoenzim-service/models"
	"ecoenzim-service/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaim_ThreeVerifiedCheckpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2, 3)
	assert.Equal(t, int64(150), env.reload(t, p.ID).PrePoints())

	env.clock.Advance(91 * 24 * time.Hour)

	res, err := env.claims.Claim(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.PointsAwarded)
	assert.Equal(t, int64(150), res.TotalPoints)

	stored := env.reload(t, p.ID)
	assert.True(t, stored.IsClaimed)
	assert.Nil(t, stored.PrePointsEarned)
	require.NotNil(t, stored.Points)
	assert.Equal(t, int64(150), *stored.Points)
	require.NotNil(t, stored.ClaimedAt)
	assertProjectInvariants(t, stored)

	history, err := env.ledger.History(ctx, owner.ID, PageParams{})
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	entry := history.Items[0]
	assert.Equal(t, int64(150), entry.PointsAmount)
	assert.Equal(t, models.PointsSourceEcoenzim, entry.Source)
	require.NotNil(t, entry.ReferenceID)
	assert.Equal(t, p.ID, *entry.ReferenceID)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.projectClaims))
	assert.Equal(t, float64(150), testutil.ToFloat64(env.metrics.pointsCredited.WithLabelValues("ecoenzim")))
}

func TestClaim_SecondCallConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2, 3)
	env.clock.Advance(91 * 24 * time.Hour)

	_, err := env.claims.Claim(ctx, owner, p.ID)
	require.NoError(t, err)

	_, err = env.claims.Claim(ctx, owner, p.ID)
	requireCode(t, err, KindConflict, CodeAlreadyClaimed)

	u, err := env.store.FindUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), u.TotalPoints)
}

func TestClaim_RequirementsNotMet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2, 3)

	// Still inside the fermentation window.
	_, err := env.claims.Claim(ctx, owner, p.ID)
	requireCode(t, err, KindValidation, CodeClaimRequirementsNotMet)

	_, err = env.claims.Claim(ctx, stranger, p.ID)
	requireCode(t, err, KindForbidden, CodeForbidden)

	_, err = env.claims.Claim(ctx, owner, "missing")
	requireCode(t, err, KindNotFound, CodeProjectNotFound)
}

func TestClaim_TwoCheckpointsCancels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2)
	env.clock.Advance(91 * 24 * time.Hour)

	_, err := env.claims.Claim(ctx, owner, p.ID)
	requireCode(t, err, KindValidation, CodeClaimRequirementsNotMet)

	// The claim attempt persisted the derived status even though it failed.
	stored := env.reload(t, p.ID)
	assert.Equal(t, models.ProjectCancelled, stored.Status)
	assert.False(t, stored.CanClaim)
	assert.False(t, stored.IsClaimed)
}

func TestClaim_AfterSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2, 3)
	env.clock.Advance(91 * 24 * time.Hour)

	res, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.True(t, env.reload(t, p.ID).CanClaim)

	claimed, err := env.claims.Claim(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), claimed.PointsAwarded)
}

func TestClaim_LateVerificationAfterSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2)

	late, err := env.uploads.Submit(ctx, owner, SubmitUploadInput{
		ProjectID:   p.ID,
		MonthNumber: intPtr(3),
		PhotoURL:    strPtr("https://cdn.test/month-3.jpg"),
	})
	require.NoError(t, err)

	env.clock.Advance(91 * 24 * time.Hour)
	res, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)
	assert.Equal(t, models.ProjectCancelled, env.reload(t, p.ID).Status)

	_, err = env.uploads.Verify(ctx, admin, late.ID)
	require.NoError(t, err)

	detail, err := env.projects.Get(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectCompleted, detail.Status)
	assert.True(t, detail.CanClaim)
	assert.Equal(t, int64(3), detail.Progress.VerifiedCheckpoints)

	claimed, err := env.claims.Claim(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), claimed.PointsAwarded)
	assertProjectInvariants(t, env.reload(t, p.ID))
}

func TestClaim_ConcurrentCallsPayOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2, 3)
	env.clock.Advance(91 * 24 * time.Hour)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.claims.Claim(ctx, owner, p.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if de, ok := AsError(err); ok && de.Code == CodeAlreadyClaimed {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)

	u, err := env.store.FindUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), u.TotalPoints)

	_, total, err := env.store.ListPointsHistory(ctx, owner.ID, store.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestClaim_ZeroPointProjectStillWritesLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2, 3)

	// Force an accrual of zero to exercise the nil/zero path.
	_, err := env.store.SetProjectPrePoints(ctx, p.ID, 0)
	require.NoError(t, err)
	env.clock.Advance(91 * 24 * time.Hour)

	res, err := env.claims.Claim(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Zero(t, res.PointsAwarded)
	require.NotNil(t, res.Entry)
	assert.Zero(t, res.Entry.PointsAmount)
}
