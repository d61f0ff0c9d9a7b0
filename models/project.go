// models/project.go
package models

import (
	"time"
)

// ProjectStatus is the derived lifecycle state of a fermentation batch.
type ProjectStatus string

const (
	ProjectNotStarted ProjectStatus = "not_started"
	ProjectOngoing    ProjectStatus = "ongoing"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// Valid reports whether s is one of the known project states.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectNotStarted, ProjectOngoing, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// Terminal states are never rewritten back to ongoing.
func (s ProjectStatus) Terminal() bool {
	return s == ProjectCompleted || s == ProjectCancelled
}

// ProjectState is the pair persisted by status reconciliation.
type ProjectState struct {
	Status   ProjectStatus `json:"status"`
	CanClaim bool          `json:"can_claim"`
}

// Project is a user-submitted, time-boxed eco-enzyme batch.
type Project struct {
	ID                 string        `gorm:"primaryKey;type:uuid" json:"id"`
	UserID             string        `gorm:"index;not null" json:"user_id"`
	OrganicWasteWeight float64       `gorm:"not null" json:"organic_waste_weight"`
	StartDate          time.Time     `gorm:"not null" json:"start_date"`
	EndDate            time.Time     `gorm:"not null;index" json:"end_date"`
	Started            bool          `gorm:"not null" json:"started"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	Status             ProjectStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CanClaim           bool          `gorm:"not null" json:"can_claim"`

	// PrePointsEarned accrues from verified uploads and becomes nil once claimed.
	PrePointsEarned *int64     `json:"pre_points_earned"`
	Points          *int64     `json:"points"` // set only on claim
	IsClaimed       bool       `gorm:"not null;index" json:"is_claimed"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`

	Timestamps
}

// State returns the persisted status pair.
func (p Project) State() ProjectState {
	return ProjectState{Status: p.Status, CanClaim: p.CanClaim}
}

// PrePoints returns the accrued, unclaimed points (0 when nil).
func (p Project) PrePoints() int64 {
	if p.PrePointsEarned == nil {
		return 0
	}
	return *p.PrePointsEarned
}
