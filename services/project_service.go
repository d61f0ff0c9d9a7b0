package services

import (
	"context"
	"time"

	"ecoenzim-service/models"
	"ecoenzim-service/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ProjectService struct {
	deps Deps
}

func NewProjectService(deps Deps) *ProjectService {
	return &ProjectService{deps: deps.withDefaults()}
}

type CreateProjectInput struct {
	OrganicWasteWeight float64
	StartDate          time.Time
	EndDate            time.Time
	// Started defaults to true.
	Started *bool
}

// ProjectProgress summarises evidence collected so far.
type ProjectProgress struct {
	VerifiedCheckpoints int64 `json:"verified_checkpoints"`
	RequiredCheckpoints int   `json:"required_checkpoints"`
	CheckInDays         int   `json:"check_in_days"`
	TotalDays           int   `json:"total_days"`
	DaysElapsed         int   `json:"days_elapsed"`
	DaysRemaining       int   `json:"days_remaining"`
}

type ProjectDetail struct {
	models.Project
	Progress ProjectProgress `json:"progress"`
}

func (s *ProjectService) Create(ctx context.Context, actor Actor, in CreateProjectInput) (*models.Project, error) {
	if in.OrganicWasteWeight <= 0 {
		return nil, Validation(CodeInvalidWeight, "organic waste weight must be positive")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || !in.EndDate.After(in.StartDate) {
		return nil, Validation(CodeInvalidDates, "end date must be after start date")
	}

	started := true
	if in.Started != nil {
		started = *in.Started
	}
	now := s.deps.Clock.Now()
	zero := int64(0)

	p := &models.Project{
		ID:                 uuid.NewString(),
		UserID:             actor.ID,
		OrganicWasteWeight: in.OrganicWasteWeight,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		Started:            started,
		Status:             models.ProjectNotStarted,
		PrePointsEarned:    &zero,
	}
	if started {
		p.Status = models.ProjectOngoing
		p.StartedAt = &now
	}

	err := s.deps.Store.Transaction(ctx, func(tx store.Repository) error {
		// The user row lock serialises concurrent creates for one user.
		if _, err := tx.EnsureUser(ctx, &models.User{ID: actor.ID, Role: actor.Role}); err != nil {
			return err
		}
		if _, err := tx.LockUser(ctx, actor.ID); err != nil {
			return err
		}
		active, err := tx.CountActiveProjects(ctx, actor.ID, now)
		if err != nil {
			return err
		}
		if active > 0 {
			return Validation(CodeActiveProjectExists, "an active project already exists")
		}
		return tx.CreateProject(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.WithFields(logrus.Fields{
		"project_id": p.ID,
		"user_id":    actor.ID,
		"status":     p.Status,
	}).Info("project created")
	return p, nil
}

// loadOwned fetches a project and checks that actor owns it.
func loadOwned(ctx context.Context, repo store.Repository, actor Actor, id string, lock bool) (*models.Project, error) {
	var (
		p   *models.Project
		err error
	)
	if lock {
		p, err = repo.LockProject(ctx, id)
	} else {
		p, err = repo.FindProject(ctx, id)
	}
	if err != nil {
		if isNotFound(err) {
			return nil, NotFound(CodeProjectNotFound, "project not found")
		}
		return nil, err
	}
	if p.UserID != actor.ID {
		return nil, Forbidden(CodeForbidden, "project belongs to another user")
	}
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, actor Actor, page PageParams) (PageResult[models.Project], error) {
	projects, total, err := s.deps.Store.ListProjectsByUser(ctx, actor.ID, page.window())
	if err != nil {
		return PageResult[models.Project]{}, err
	}
	now := s.deps.Clock.Now()
	for i := range projects {
		if _, err := reconcileProject(ctx, s.deps.Store, &projects[i], now); err != nil {
			return PageResult[models.Project]{}, err
		}
	}
	return newPageResult(projects, total, page), nil
}

func (s *ProjectService) Get(ctx context.Context, actor Actor, id string) (*ProjectDetail, error) {
	p, err := loadOwned(ctx, s.deps.Store, actor, id, false)
	if err != nil {
		return nil, err
	}
	now := s.deps.Clock.Now()
	if _, err := reconcileProject(ctx, s.deps.Store, p, now); err != nil {
		return nil, err
	}

	uploads, err := s.deps.Store.ListUploadsByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectDetail{Project: *p, Progress: buildProgress(*p, uploads, now)}, nil
}

func buildProgress(p models.Project, uploads []models.Upload, now time.Time) ProjectProgress {
	prog := ProjectProgress{RequiredCheckpoints: RequiredCheckpoints}

	days := make(map[string]struct{})
	for _, u := range uploads {
		if u.Status != models.UploadVerified {
			continue
		}
		if u.IsCheckpoint() {
			if models.IsCheckpointMonth(*u.MonthNumber) {
				prog.VerifiedCheckpoints++
			}
			continue
		}
		days[DayKey(u.UploadedDate)] = struct{}{}
	}
	prog.CheckInDays = len(days)

	prog.TotalDays = DaysBetween(p.StartDate, p.EndDate)
	prog.DaysElapsed = clamp(DaysBetween(p.StartDate, now), 0, prog.TotalDays)
	prog.DaysRemaining = clamp(DaysBetween(now, p.EndDate), 0, prog.TotalDays)
	return prog
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *ProjectService) Start(ctx context.Context, actor Actor, id string) (*models.Project, error) {
	var (
		p      *models.Project
		closed bool
	)
	err := s.deps.Store.Transaction(ctx, func(tx store.Repository) error {
		var err error
		p, err = loadOwned(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		if p.Started {
			return Validation(CodeAlreadyStarted, "project already started")
		}
		now := s.deps.Clock.Now()
		if _, err := reconcileProject(ctx, tx, p, now); err != nil {
			return err
		}
		if p.Status.Terminal() {
			// Commit the derived status; the start is refused after the tx.
			closed = true
			return nil
		}
		p.Started = true
		p.StartedAt = &now
		p.Status = models.ProjectOngoing
		p.CanClaim = false
		return tx.SaveProject(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, Validation(CodeProjectClosed, "project is already "+string(p.Status))
	}
	s.deps.Logger.WithField("project_id", p.ID).Info("project started")
	return p, nil
}

func (s *ProjectService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.deps.Store.Transaction(ctx, func(tx store.Repository) error {
		p, err := loadOwned(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		if p.IsClaimed {
			return Validation(CodeProjectAlreadyClaimed, "claimed projects cannot be deleted")
		}
		if err := tx.DeleteProject(ctx, p.ID); err != nil {
			return err
		}
		s.deps.Logger.WithField("project_id", p.ID).Info("project deleted")
		return nil
	})
}
