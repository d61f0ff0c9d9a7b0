package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"ecoenzim-service/models"
	"ecoenzim-service/store"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = Actor{ID: "user-1", Role: "user"}
	stranger = Actor{ID: "user-2", Role: "user"}
	admin    = Actor{ID: "admin-1", Role: RoleAdmin}
)

type fakePhotos struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (f *fakePhotos) Save(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = data
	return "https://cdn.test/" + key, nil
}

type testEnv struct {
	store   *store.MemoryStore
	clock   *clockwork.FakeClock
	metrics *Metrics
	photos  *fakePhotos

	projects *ProjectService
	uploads  *UploadService
	claims   *ClaimService
	rewards  *RewardService
	users    *UserService
	ledger   *LedgerService
	sweeper  *ExpirySweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		store:   store.NewMemoryStore(),
		clock:   clockwork.NewFakeClockAt(time.Date(2025, 1, 6, 3, 0, 0, 0, time.UTC)),
		metrics: NewMetrics(prometheus.NewRegistry()),
		photos:  &fakePhotos{},
	}
	deps := Deps{Store: env.store, Clock: env.clock, Logger: logger, Metrics: env.metrics}

	env.projects = NewProjectService(deps)
	env.uploads = NewUploadService(deps, env.photos)
	env.claims = NewClaimService(deps)
	env.rewards = NewRewardService(deps)
	env.users = NewUserService(deps)
	env.ledger = NewLedgerService(deps)
	env.sweeper = NewExpirySweeper(deps)
	return env
}

func requireCode(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	de, ok := AsError(err)
	require.True(t, ok, "expected domain error, got %v", err)
	assert.Equal(t, kind, de.Kind)
	assert.Equal(t, code, de.Code)
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool { return &v }
func int64Ptr(v int64) *int64 { return &v }
func photoBody() *bytes.Reader { return bytes.NewReader([]byte("jpeg")) }
func (e *testEnv) now() time.Time { return e.clock.Now() }

// createProject makes a 90-day ongoing project for actor.
func (e *testEnv) createProject(t *testing.T, actor Actor) *models.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), actor, CreateProjectInput{
		OrganicWasteWeight: 2.5,
		StartDate:          e.now(),
		EndDate:            e.now().Add(90 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return p
}

// verifiedCheckpoints submits and verifies a checkpoint photo per month.
func (e *testEnv) verifiedCheckpoints(t *testing.T, actor Actor, projectID string, months ...int) {
	t.Helper()
	ctx := context.Background()
	for _, m := range months {
		u, err := e.uploads.Submit(ctx, actor, SubmitUploadInput{
			ProjectID:   projectID,
			MonthNumber: intPtr(m),
			PhotoURL:    strPtr("https://cdn.test/month.jpg"),
		})
		require.NoError(t, err)
		_, err = e.uploads.Verify(ctx, admin, u.ID)
		require.NoError(t, err)
	}
}

func (e *testEnv) reload(t *testing.T, id string) *models.Project {
	t.Helper()
	p, err := e.store.FindProject(context.Background(), id)
	require.NoError(t, err)
	return p
}

func assertProjectInvariants(t *testing.T, p *models.Project) {
	t.Helper()
	if p.CanClaim {
		assert.Equal(t, models.ProjectCompleted, p.Status)
		assert.False(t, p.IsClaimed)
	}
	if p.IsClaimed {
		assert.Equal(t, models.ProjectCompleted, p.Status)
		assert.False(t, p.CanClaim)
		assert.Nil(t, p.PrePointsEarned)
		require.NotNil(t, p.Points)
		assert.GreaterOrEqual(t, *p.Points, int64(0))
	}
}
