package models

import "time"

// Reward is a milestone definition: reach TargetDays of progress, receive PointsReward once.
type Reward struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Code         string    `gorm:"uniqueIndex;not null" json:"code"` // e.g. "STREAK_7"
	Name         string    `gorm:"not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	PointsReward int64     `gorm:"not null" json:"points_reward"`
	TargetDays   int       `gorm:"not null;index" json:"target_days"`
	IsActive     bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MilestoneStatus indicates whether a milestone claim has paid out.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
)

// MilestoneClaim tracks one user's progress against one reward.
type MilestoneClaim struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string          `gorm:"not null;uniqueIndex:idx_claim_user_reward,priority:1" json:"user_id"`
	RewardID      string          `gorm:"type:uuid;not null;uniqueIndex:idx_claim_user_reward,priority:2" json:"reward_id"`
	Code          string          `gorm:"not null;index" json:"code"`
	ProgressDays  int             `gorm:"not null" json:"progress_days"`
	PointsAwarded int64           `gorm:"not null" json:"points_awarded"`
	Status        MilestoneStatus `gorm:"type:varchar(16);not null" json:"status"`
	ClaimedAt     *time.Time      `json:"claimed_at"`

	Timestamps
}
