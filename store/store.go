// Package store holds the persistence boundary. Services receive a Store and
// decide their own transaction boundaries through Store.Transaction.
package store

import (
	"context"
	"errors"
	"time"

	"ecoenzim-service/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("store: duplicate record")
)

// Page is an offset window.
type Page struct {
	Limit  int
	Offset int
}

// RewardFilter narrows ListRewards.
type RewardFilter struct {
	IsActive *bool
	Search   string
}

// ProjectStore covers eco-enzyme projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	FindProject(ctx context.Context, id string) (*models.Project, error)
	// LockProject loads a project and holds a row lock until the surrounding transaction ends.
	LockProject(ctx context.Context, id string) (*models.Project, error)
	ListProjectsByUser(ctx context.Context, userID string, page Page) ([]models.Project, int64, error)
	CountActiveProjects(ctx context.Context, userID string, now time.Time) (int64, error)
	ListExpiredOngoing(ctx context.Context, now time.Time) ([]models.Project, error)
	SaveProject(ctx context.Context, p *models.Project) error
	// UpdateProjectState writes next only if the row still holds from and is unclaimed.
	UpdateProjectState(ctx context.Context, id string, from, next models.ProjectState) (bool, error)
	// SetProjectPrePoints writes the accrued points of an unclaimed project.
	SetProjectPrePoints(ctx context.Context, id string, points int64) (bool, error)
	// DeleteProject removes the project and its uploads.
	DeleteProject(ctx context.Context, id string) error
}

// UploadStore covers evidence submissions.
type UploadStore interface {
	CreateUpload(ctx context.Context, u *models.Upload) error
	FindUpload(ctx context.Context, id string) (*models.Upload, error)
	LockUpload(ctx context.Context, id string) (*models.Upload, error)
	FindCheckpointUpload(ctx context.Context, projectID string, month int) (*models.Upload, error)
	ListUploadsByProject(ctx context.Context, projectID string) ([]models.Upload, error)
	ListUploads(ctx context.Context, page Page) ([]models.Upload, int64, error)
	SaveUpload(ctx context.Context, u *models.Upload) error
	CountVerifiedCheckpoints(ctx context.Context, projectID string) (int64, error)
	SumVerifiedPrePoints(ctx context.Context, projectID string) (int64, error)
}

// UserStore covers the local user aggregate.
type UserStore interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	LockUser(ctx context.Context, id string) (*models.User, error)
	// EnsureUser inserts u when no row with u.ID exists and returns the stored row.
	EnsureUser(ctx context.Context, u *models.User) (*models.User, error)
	// UpsertUsers mirrors profile fields; it never touches TotalPoints.
	UpsertUsers(ctx context.Context, users []models.User) error
	AddUserPoints(ctx context.Context, id string, delta int64) error
}

// LedgerStore is append-only.
type LedgerStore interface {
	AppendPoints(ctx context.Context, e *models.PointsHistory) error
	ListPointsHistory(ctx context.Context, userID string, page Page) ([]models.PointsHistory, int64, error)
	// ListPointsSince returns entries created strictly after t, oldest first.
	ListPointsSince(ctx context.Context, userID string, t time.Time) ([]models.PointsHistory, error)
}

// RewardStore covers reward definitions and per-user milestone claims.
type RewardStore interface {
	CreateReward(ctx context.Context, r *models.Reward) error
	FindReward(ctx context.Context, id string) (*models.Reward, error)
	FindRewardByCode(ctx context.Context, code string) (*models.Reward, error)
	ListRewards(ctx context.Context, filter RewardFilter, page Page) ([]models.Reward, int64, error)
	SaveReward(ctx context.Context, r *models.Reward) error
	DeleteReward(ctx context.Context, id string) error

	FindMilestoneClaim(ctx context.Context, userID, rewardID string) (*models.MilestoneClaim, error)
	CreateMilestoneClaim(ctx context.Context, c *models.MilestoneClaim) error
	SaveMilestoneClaim(ctx context.Context, c *models.MilestoneClaim) error
	ListMilestoneClaims(ctx context.Context, userID string, page Page) ([]models.MilestoneClaim, int64, error)
}

// Repository is everything readable and writable inside or outside a transaction.
type Repository interface {
	ProjectStore
	UploadStore
	UserStore
	LedgerStore
	RewardStore
}

// Store is a Repository that can open transactions. fn's writes commit only
// when fn returns nil. Transactions must not be nested.
type Store interface {
	Repository
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}
