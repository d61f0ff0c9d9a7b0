// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ecoenzim-service/models"
	"ecoenzim-service/utils"

	"github.com/sirupsen/logrus"
)

// RemoteUser matches one entry of the sync service's profile feed.
type RemoteUser struct {
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type userChangesResponse struct {
	Users []RemoteUser `json:"users"`
}

// UserSyncer receives mirrored profiles. services.UserService satisfies it.
type UserSyncer interface {
	Sync(ctx context.Context, users []models.User) error
}

type UserSyncWorker struct {
	users        UserSyncer
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	log          logrus.FieldLogger

	mu    sync.Mutex
	since time.Time
}

func NewUserSyncWorker(users UserSyncer, baseURL, endpointPath, serviceToken string, interval time.Duration, log logrus.FieldLogger) *UserSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &UserSyncWorker{
		users:        users,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
		log:          log.WithField("worker", "user_sync"),
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 Starting user sync worker")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Initial pass backfills everything.
	if err := w.SyncOnce(ctx); err != nil {
		w.log.WithError(err).Warn("⚠️ initial user sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.SyncOnce(ctx); err != nil {
				w.log.WithError(err).Error("❌ user sync batch failed")
			}
		case <-ctx.Done():
			w.log.Info("⏹️ user sync worker stopped")
			return
		}
	}
}

// Since is the watermark the next batch will ask for.
func (w *UserSyncWorker) Since() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.since
}

// SyncOnce fetches profile changes newer than the watermark and mirrors them locally.
func (w *UserSyncWorker) SyncOnce(ctx context.Context) error {
	since := w.Since()

	remote, err := w.fetch(ctx, since)
	if err != nil {
		return err
	}
	if len(remote) == 0 {
		w.log.WithField("since", since.UTC().Format(time.RFC3339)).Debug("no user changes")
		return nil
	}

	users := make([]models.User, 0, len(remote))
	latest := since
	for _, r := range remote {
		if strings.TrimSpace(r.ExternalID) == "" {
			w.log.WithField("username", r.Username).Warn("skipping remote user without external_id")
			continue
		}
		users = append(users, models.User{
			ID:       r.ExternalID,
			Username: r.Username,
			Email:    r.Email,
			Role:     strings.ToLower(r.Role),
		})
		if r.UpdatedAt.After(latest) {
			latest = r.UpdatedAt
		}
	}
	if len(users) > 0 {
		if err := w.users.Sync(ctx, users); err != nil {
			return fmt.Errorf("failed to upsert synced users: %w", err)
		}
	}

	w.mu.Lock()
	w.since = latest
	w.mu.Unlock()

	w.log.WithFields(logrus.Fields{
		"received": len(remote),
		"upserted": len(users),
		"latest":   latest.UTC().Format(time.RFC3339),
	}).Info("✅ users synced")
	return nil
}

func (w *UserSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteUser, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, string(body))
	}

	var out userChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return out.Users, nil
}
