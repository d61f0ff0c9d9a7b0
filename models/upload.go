// models/upload.go
package models

import "time"

type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadVerified UploadStatus = "verified"
	UploadRejected UploadStatus = "rejected"
)

// Checkpoint months a project must collect verified photos for.
var CheckpointMonths = []int{1, 2, 3}

// IsCheckpointMonth reports whether n names a checkpoint slot.
func IsCheckpointMonth(n int) bool {
	for _, m := range CheckpointMonths {
		if m == n {
			return true
		}
	}
	return false
}

// Upload is evidence submitted for a project: a checkpoint photo when
// MonthNumber is set, a routine check-in otherwise.
type Upload struct {
	ID              string       `gorm:"primaryKey;type:uuid" json:"id"`
	ProjectID       string       `gorm:"type:uuid;not null;uniqueIndex:idx_upload_project_month,priority:1" json:"project_id"`
	UserID          string       `gorm:"index;not null" json:"user_id"`
	MonthNumber     *int         `gorm:"uniqueIndex:idx_upload_project_month,priority:2" json:"month_number"`
	PhotoURL        *string      `gorm:"type:text" json:"photo_url"`
	UploadedDate    time.Time    `gorm:"not null;index" json:"uploaded_date"`
	PrePointsEarned int64        `gorm:"not null" json:"pre_points_earned"`
	Status          UploadStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	RejectionReason *string      `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty"`

	Timestamps
}

// IsCheckpoint reports whether the upload occupies a checkpoint slot.
func (u Upload) IsCheckpoint() bool {
	return u.MonthNumber != nil
}
