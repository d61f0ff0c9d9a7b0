// models/points_history.go
package models

import "time"

// PointsSource tags where a ledger line came from.
type PointsSource string

const (
	PointsSourceEcoenzim PointsSource = "ecoenzim"
	PointsSourceReward   PointsSource = "reward"
	PointsSourceVoucher  PointsSource = "voucher"
)

// PointsHistory is one append-only ledger line. Rows are never updated or deleted.
type PointsHistory struct {
	ID           string       `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string       `gorm:"index;not null" json:"user_id"`
	PointsAmount int64        `gorm:"not null" json:"points_amount"`
	Source       PointsSource `gorm:"type:varchar(32);not null;index" json:"source"`
	ReferenceID  *string      `gorm:"index" json:"reference_id"`
	CreatedAt    time.Time    `gorm:"not null;index" json:"created_at"`
}

func (PointsHistory) TableName() string {
	return "points_history"
}
