// store/gorm.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecoenzim-service/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the PostgreSQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenPostgres connects with duplicate-key translation enabled so unique
// index violations surface as ErrDuplicate.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates every table the service owns.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Upload{},
		&models.PointsHistory{},
		&models.Reward{},
		&models.MilestoneClaim{},
	)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (s *GormStore) locked(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// --- Projects ---

func (s *GormStore) CreateProject(ctx context.Context, p *models.Project) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) FindProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) LockProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.locked(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) ListProjectsByUser(ctx context.Context, userID string, page Page) ([]models.Project, int64, error) {
	var total int64
	base := s.db.WithContext(ctx).Model(&models.Project{}).Where("user_id = ?", userID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&projects).Error
	return projects, total, err
}

func (s *GormStore) CountActiveProjects(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("user_id = ? AND status IN ? AND end_date >= ?", userID,
			[]models.ProjectStatus{models.ProjectNotStarted, models.ProjectOngoing}, now).
		Count(&n).Error
	return n, err
}

func (s *GormStore) ListExpiredOngoing(ctx context.Context, now time.Time) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", models.ProjectOngoing, now).
		Order("end_date ASC").
		Find(&projects).Error
	return projects, err
}

func (s *GormStore) SaveProject(ctx context.Context, p *models.Project) error {
	return translate(s.db.WithContext(ctx).Save(p).Error)
}

func (s *GormStore) UpdateProjectState(ctx context.Context, id string, from, next models.ProjectState) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND status = ? AND can_claim = ? AND is_claimed = ?", id, from.Status, from.CanClaim, false).
		Updates(map[string]interface{}{
			"status":    next.Status,
			"can_claim": next.CanClaim,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) SetProjectPrePoints(ctx context.Context, id string, points int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND is_claimed = ?", id, false).
		Update("pre_points_earned", points)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) DeleteProject(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Upload{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- Uploads ---

func (s *GormStore) CreateUpload(ctx context.Context, u *models.Upload) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) FindUpload(ctx context.Context, id string) (*models.Upload, error) {
	var u models.Upload
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) LockUpload(ctx context.Context, id string) (*models.Upload, error) {
	var u models.Upload
	if err := s.locked(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) FindCheckpointUpload(ctx context.Context, projectID string, month int) (*models.Upload, error) {
	var u models.Upload
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND month_number = ?", projectID, month).
		First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) ListUploadsByProject(ctx context.Context, projectID string) ([]models.Upload, error) {
	var uploads []models.Upload
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("uploaded_date DESC").
		Find(&uploads).Error
	return uploads, err
}

func (s *GormStore) ListUploads(ctx context.Context, page Page) ([]models.Upload, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Upload{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var uploads []models.Upload
	err := s.db.WithContext(ctx).
		Order("uploaded_date DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&uploads).Error
	return uploads, total, err
}

func (s *GormStore) SaveUpload(ctx context.Context, u *models.Upload) error {
	return translate(s.db.WithContext(ctx).Save(u).Error)
}

func (s *GormStore) CountVerifiedCheckpoints(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Upload{}).
		Where("project_id = ? AND status = ? AND month_number IN ?", projectID, models.UploadVerified, models.CheckpointMonths).
		Count(&n).Error
	return n, err
}

func (s *GormStore) SumVerifiedPrePoints(ctx context.Context, projectID string) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Upload{}).
		Select("COALESCE(SUM(pre_points_earned), 0)").
		Where("project_id = ? AND status = ?", projectID, models.UploadVerified).
		Scan(&total).Error
	return total, err
}

// --- Users ---

func (s *GormStore) FindUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) LockUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.locked(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) EnsureUser(ctx context.Context, u *models.User) (*models.User, error) {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(u).Error; err != nil {
		return nil, translate(err)
	}
	return s.FindUser(ctx, u.ID)
}

func (s *GormStore) UpsertUsers(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "email", "role", "updated_at"}),
		},
	).Create(&users).Error
}

func (s *GormStore) AddUserPoints(ctx context.Context, id string, delta int64) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Ledger ---

func (s *GormStore) AppendPoints(ctx context.Context, e *models.PointsHistory) error {
	return translate(s.db.WithContext(ctx).Create(e).Error)
}

func (s *GormStore) ListPointsHistory(ctx context.Context, userID string, page Page) ([]models.PointsHistory, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.PointsHistory{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []models.PointsHistory
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&entries).Error
	return entries, total, err
}

func (s *GormStore) ListPointsSince(ctx context.Context, userID string, t time.Time) ([]models.PointsHistory, error) {
	var entries []models.PointsHistory
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at > ?", userID, t).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// --- Rewards ---

func (s *GormStore) CreateReward(ctx context.Context, r *models.Reward) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) FindReward(ctx context.Context, id string) (*models.Reward, error) {
	var r models.Reward
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) FindRewardByCode(ctx context.Context, code string) (*models.Reward, error) {
	var r models.Reward
	if err := s.db.WithContext(ctx).First(&r, "code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) ListRewards(ctx context.Context, filter RewardFilter, page Page) ([]models.Reward, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Reward{})
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rewards []models.Reward
	err := query.Order("target_days ASC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&rewards).Error
	return rewards, total, err
}

func (s *GormStore) SaveReward(ctx context.Context, r *models.Reward) error {
	return translate(s.db.WithContext(ctx).Save(r).Error)
}

func (s *GormStore) DeleteReward(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Reward{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) FindMilestoneClaim(ctx context.Context, userID, rewardID string) (*models.MilestoneClaim, error) {
	var c models.MilestoneClaim
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND reward_id = ?", userID, rewardID).
		First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) CreateMilestoneClaim(ctx context.Context, c *models.MilestoneClaim) error {
	return translate(s.db.WithContext(ctx).Create(c).Error)
}

func (s *GormStore) SaveMilestoneClaim(ctx context.Context, c *models.MilestoneClaim) error {
	return translate(s.db.WithContext(ctx).Save(c).Error)
}

func (s *GormStore) ListMilestoneClaims(ctx context.Context, userID string, page Page) ([]models.MilestoneClaim, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.MilestoneClaim{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var claims []models.MilestoneClaim
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&claims).Error
	return claims, total, err
}
