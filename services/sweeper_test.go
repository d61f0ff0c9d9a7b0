package services

import (
	"context"
	"testing"
	"time"

	"ecoenzim-service/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	done := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, done.ID, 1, 2, 3)

	short := env.createProject(t, stranger)
	env.verifiedCheckpoints(t, stranger, short.ID, 1, 2)

	third := Actor{ID: "user-3"}
	running, err := env.projects.Create(ctx, third, CreateProjectInput{
		OrganicWasteWeight: 1,
		StartDate:          env.now(),
		EndDate:            env.now().Add(200 * 24 * time.Hour),
	})
	require.NoError(t, err)

	res, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)

	env.clock.Advance(91 * 24 * time.Hour)

	res, err = env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Completed: 1, Cancelled: 1}, res)

	completed := env.reload(t, done.ID)
	assert.Equal(t, models.ProjectCompleted, completed.Status)
	assert.True(t, completed.CanClaim)
	assertProjectInvariants(t, completed)

	cancelled := env.reload(t, short.ID)
	assert.Equal(t, models.ProjectCancelled, cancelled.Status)
	assert.False(t, cancelled.CanClaim)

	assert.Equal(t, models.ProjectOngoing, env.reload(t, running.ID).Status)

	// Nothing left to do on the next tick.
	res, err = env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.sweepOutcomes.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.sweepOutcomes.WithLabelValues("cancelled")))
}

func TestSweepMatchesOnDemandRead(t *testing.T) {
	for _, months := range [][]int{{1, 2}, {1, 2, 3}} {
		swept := newTestEnv(t)
		read := newTestEnv(t)
		ctx := context.Background()

		a := swept.createProject(t, owner)
		swept.verifiedCheckpoints(t, owner, a.ID, months...)
		b := read.createProject(t, owner)
		read.verifiedCheckpoints(t, owner, b.ID, months...)

		swept.clock.Advance(91 * 24 * time.Hour)
		read.clock.Advance(91 * 24 * time.Hour)

		_, err := swept.sweeper.Sweep(ctx)
		require.NoError(t, err)
		detail, err := read.projects.Get(ctx, owner, b.ID)
		require.NoError(t, err)

		assert.Equal(t, detail.State(), swept.reload(t, a.ID).State())
	}
}

func TestSweepSkipsProjectsClosedConcurrently(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, owner)
	env.verifiedCheckpoints(t, owner, p.ID, 1, 2, 3)
	env.clock.Advance(91 * 24 * time.Hour)

	_, err := env.claims.Claim(ctx, owner, p.ID)
	require.NoError(t, err)

	res, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)

	stored := env.reload(t, p.ID)
	assert.True(t, stored.IsClaimed)
	assertProjectInvariants(t, stored)
}

func TestExpiryScheduler(t *testing.T) {
	env := newTestEnv(t)

	sched, err := env.sweeper.StartExpiryScheduler(context.Background(), time.Minute)
	require.NoError(t, err)
	defer func() { _ = sched.Shutdown() }()

	require.Len(t, sched.Jobs(), 1)
	assert.Equal(t, "expiry-sweep", sched.Jobs()[0].Name())
}
