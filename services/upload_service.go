package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"ecoenzim-service/models"
	"ecoenzim-service/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CheckpointPoints is the fixed value of a verified checkpoint photo.
const CheckpointPoints int64 = 50

// PhotoStore persists an uploaded photo and returns its public URL.
type PhotoStore interface {
	Save(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

type PhotoInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type SubmitUploadInput struct {
	ProjectID    string
	MonthNumber  *int
	PhotoURL     *string
	Photo        *PhotoInput
	UploadedDate time.Time
}

type UploadService struct {
	deps   Deps
	photos PhotoStore
}

func NewUploadService(deps Deps, photos PhotoStore) *UploadService {
	return &UploadService{deps: deps.withDefaults(), photos: photos}
}

// ParseMonthNumber reads a raw month field. Empty and "null" mean a routine check-in.
func ParseMonthNumber(raw string) (*int, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, Validation(CodeInvalidMonthNumber, "month number must be 1, 2 or 3")
	}
	return &n, nil
}

func (s *UploadService) Submit(ctx context.Context, actor Actor, in SubmitUploadInput) (*models.Upload, error) {
	if _, err := loadOwned(ctx, s.deps.Store, actor, in.ProjectID, false); err != nil {
		return nil, err
	}

	if in.PhotoURL != nil && strings.TrimSpace(*in.PhotoURL) == "" {
		in.PhotoURL = nil
	}

	checkpoint := in.MonthNumber != nil
	if checkpoint {
		if !models.IsCheckpointMonth(*in.MonthNumber) {
			return nil, Validation(CodeInvalidMonthNumber, "month number must be 1, 2 or 3")
		}
		if in.PhotoURL == nil && in.Photo == nil {
			return nil, Validation(CodePhotoRequired, "a photo is required for checkpoint uploads")
		}
		if _, err := s.deps.Store.FindCheckpointUpload(ctx, in.ProjectID, *in.MonthNumber); err == nil {
			return nil, duplicateCheckpoint(*in.MonthNumber)
		} else if !isNotFound(err) {
			return nil, err
		}
	}

	now := s.deps.Clock.Now()
	if in.UploadedDate.IsZero() {
		in.UploadedDate = now
	}

	u := &models.Upload{
		ID:           uuid.NewString(),
		ProjectID:    in.ProjectID,
		UserID:       actor.ID,
		MonthNumber:  in.MonthNumber,
		UploadedDate: in.UploadedDate,
	}
	if checkpoint {
		u.PrePointsEarned = CheckpointPoints
		u.Status = models.UploadPending
		u.PhotoURL = in.PhotoURL
		if u.PhotoURL == nil {
			url, err := s.storePhoto(ctx, u, in.Photo)
			if err != nil {
				return nil, err
			}
			u.PhotoURL = &url
		}
	} else {
		u.Status = models.UploadVerified
		u.ReviewedAt = &now
	}

	err := s.deps.Store.Transaction(ctx, func(tx store.Repository) error {
		p, err := loadOwned(ctx, tx, actor, in.ProjectID, true)
		if err != nil {
			return err
		}
		if p.IsClaimed {
			return Validation(CodeProjectAlreadyClaimed, "project is already claimed")
		}
		if checkpoint {
			if _, err := tx.FindCheckpointUpload(ctx, p.ID, *u.MonthNumber); err == nil {
				return duplicateCheckpoint(*u.MonthNumber)
			} else if !isNotFound(err) {
				return err
			}
		}
		if err := tx.CreateUpload(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicate) && checkpoint {
				return duplicateCheckpoint(*u.MonthNumber)
			}
			return err
		}
		if u.Status == models.UploadVerified {
			return recountPrePoints(ctx, tx, p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := "check_in"
	if checkpoint {
		kind = "checkpoint"
	}
	s.deps.Metrics.uploadSubmitted(kind)
	s.deps.Logger.WithFields(logrus.Fields{
		"upload_id":  u.ID,
		"project_id": u.ProjectID,
		"kind":       kind,
	}).Info("upload submitted")
	return u, nil
}

func duplicateCheckpoint(month int) error {
	return Conflict(CodeDuplicateCheckpoint, fmt.Sprintf("month %d checkpoint already submitted", month))
}

func (s *UploadService) storePhoto(ctx context.Context, u *models.Upload, photo *PhotoInput) (string, error) {
	if s.photos == nil {
		return "", errors.New("photo storage is not configured")
	}
	key := fmt.Sprintf("projects/%s/month-%d-%s%s", u.ProjectID, *u.MonthNumber, u.ID, strings.ToLower(path.Ext(photo.Filename)))
	url, err := s.photos.Save(ctx, key, photo.ContentType, photo.Body)
	if err != nil {
		return "", fmt.Errorf("failed to store photo: %w", err)
	}
	return url, nil
}

// recountPrePoints rewrites the project's accrued points from its verified uploads.
func recountPrePoints(ctx context.Context, tx store.Repository, projectID string) error {
	total, err := tx.SumVerifiedPrePoints(ctx, projectID)
	if err != nil {
		return err
	}
	_, err = tx.SetProjectPrePoints(ctx, projectID, total)
	return err
}

func (s *UploadService) Verify(ctx context.Context, actor Actor, uploadID string) (*models.Upload, error) {
	return s.review(ctx, actor, uploadID, models.UploadVerified, "")
}

// Reject marks an upload rejected. The checkpoint slot stays taken.
func (s *UploadService) Reject(ctx context.Context, actor Actor, uploadID, reason string) (*models.Upload, error) {
	return s.review(ctx, actor, uploadID, models.UploadRejected, reason)
}

func (s *UploadService) review(ctx context.Context, actor Actor, uploadID string, to models.UploadStatus, reason string) (*models.Upload, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var u *models.Upload
	err := s.deps.Store.Transaction(ctx, func(tx store.Repository) error {
		found, err := tx.FindUpload(ctx, uploadID)
		if err != nil {
			if isNotFound(err) {
				return NotFound(CodeUploadNotFound, "upload not found")
			}
			return err
		}
		// Project before upload, the same order Submit takes its locks in.
		if _, err := tx.LockProject(ctx, found.ProjectID); err != nil {
			return err
		}
		u, err = tx.LockUpload(ctx, found.ID)
		if err != nil {
			return err
		}
		if u.Status == models.UploadVerified {
			return Conflict(CodeUploadAlreadyVerified, "upload is already verified")
		}

		now := s.deps.Clock.Now()
		u.Status = to
		u.ReviewedAt = &now
		u.RejectionReason = nil
		if to == models.UploadRejected {
			if r := strings.TrimSpace(reason); r != "" {
				u.RejectionReason = &r
			}
		}
		if err := tx.SaveUpload(ctx, u); err != nil {
			return err
		}
		return recountPrePoints(ctx, tx, u.ProjectID)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.WithFields(logrus.Fields{
		"upload_id":  u.ID,
		"project_id": u.ProjectID,
		"status":     u.Status,
		"reviewer":   actor.ID,
	}).Info("upload reviewed")
	return u, nil
}

// ListByProject returns a project's uploads to its owner or an admin.
func (s *UploadService) ListByProject(ctx context.Context, actor Actor, projectID string) ([]models.Upload, error) {
	p, err := s.deps.Store.FindProject(ctx, projectID)
	if err != nil {
		if isNotFound(err) {
			return nil, NotFound(CodeProjectNotFound, "project not found")
		}
		return nil, err
	}
	if p.UserID != actor.ID && !actor.IsAdmin() {
		return nil, Forbidden(CodeForbidden, "project belongs to another user")
	}
	uploads, err := s.deps.Store.ListUploadsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if uploads == nil {
		uploads = []models.Upload{}
	}
	return uploads, nil
}

func (s *UploadService) ListAll(ctx context.Context, actor Actor, page PageParams) (PageResult[models.Upload], error) {
	if err := requireAdmin(actor); err != nil {
		return PageResult[models.Upload]{}, err
	}
	uploads, total, err := s.deps.Store.ListUploads(ctx, page.window())
	if err != nil {
		return PageResult[models.Upload]{}, err
	}
	return newPageResult(uploads, total, page), nil
}
