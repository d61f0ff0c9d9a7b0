package services

import (
	"context"
	"time"

	"ecoenzim-service/models"
	"ecoenzim-service/store"

	"github.com/google/uuid"
)

// creditPoints applies a balance change and its ledger line. It must run on
// a transaction handle so both writes commit together.
func creditPoints(ctx context.Context, tx store.Repository, userID string, amount int64, source models.PointsSource, ref string, at time.Time) (*models.PointsHistory, error) {
	if err := tx.AddUserPoints(ctx, userID, amount); err != nil {
		if isNotFound(err) {
			return nil, NotFound(CodeUserNotFound, "user not found")
		}
		return nil, err
	}

	entry := &models.PointsHistory{
		ID:           uuid.NewString(),
		UserID:       userID,
		PointsAmount: amount,
		Source:       source,
		CreatedAt:    at,
	}
	if ref != "" {
		entry.ReferenceID = &ref
	}
	if err := tx.AppendPoints(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// LedgerService reads the points history.
type LedgerService struct {
	deps Deps
}

func NewLedgerService(deps Deps) *LedgerService {
	return &LedgerService{deps: deps.withDefaults()}
}

// History lists a user's ledger lines, newest first.
func (s *LedgerService) History(ctx context.Context, userID string, page PageParams) (PageResult[models.PointsHistory], error) {
	entries, total, err := s.deps.Store.ListPointsHistory(ctx, userID, page.window())
	if err != nil {
		return PageResult[models.PointsHistory]{}, err
	}
	return newPageResult(entries, total, page), nil
}

// Since returns ledger lines newer than t, oldest first.
func (s *LedgerService) Since(ctx context.Context, userID string, t time.Time) ([]models.PointsHistory, error) {
	return s.deps.Store.ListPointsSince(ctx, userID, t)
}

// Now is the service clock, used as the initial stream cursor.
func (s *LedgerService) Now() time.Time {
	return s.deps.Clock.Now()
}
