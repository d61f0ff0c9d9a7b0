package workers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecoenzim-service/models"
	"ecoenzim-service/services"
	"ecoenzim-service/store"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSyncOnceMirrorsUsers(t *testing.T) {
	updated := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var seenSince []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/profiles", r.URL.Path)
		assert.Equal(t, "svc-token", r.Header.Get("X-Service-Token"))
		seenSince = append(seenSince, r.URL.Query().Get("since"))

		users := []RemoteUser{}
		if len(seenSince) == 1 {
			users = []RemoteUser{
				{ExternalID: "u1", Username: "sari", Email: "sari@example.com", Role: "Admin", UpdatedAt: updated},
				{ExternalID: "", Username: "ghost"},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"users": users})
	}))
	defer srv.Close()

	st := store.NewMemoryStore()
	ctx := context.Background()
	// Existing balances survive a profile sync.
	_, err := st.EnsureUser(ctx, &models.User{ID: "u1"})
	require.NoError(t, err)
	require.NoError(t, st.AddUserPoints(ctx, "u1", 150))

	users := services.NewUserService(services.Deps{Store: st, Clock: clockwork.NewFakeClock(), Logger: quietLogger()})
	w := NewUserSyncWorker(users, srv.URL, "/api/v1/public/profiles", "svc-token", time.Minute, quietLogger())

	require.NoError(t, w.SyncOnce(ctx))
	assert.Equal(t, updated, w.Since())

	u, err := st.FindUserByUsername(ctx, "sari")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "admin", u.Role)
	assert.Equal(t, int64(150), u.TotalPoints)

	require.NoError(t, w.SyncOnce(ctx))
	require.Len(t, seenSince, 2)
	assert.Equal(t, time.Time{}.UTC().Format(time.RFC3339), seenSince[0])
	assert.Equal(t, updated.Format(time.RFC3339), seenSince[1])
	assert.Equal(t, updated, w.Since())
}

func TestSyncOnceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	users := services.NewUserService(services.Deps{Store: store.NewMemoryStore(), Logger: quietLogger()})
	w := NewUserSyncWorker(users, srv.URL, "/profiles", "svc-token", 0, quietLogger())

	err := w.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.True(t, w.Since().IsZero())
}
