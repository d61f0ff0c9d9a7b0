package models

// User is the local points-holder record. Identity itself is owned by the
// auth/profile service; ID is the external user id forwarded by the gateway.
type User struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Username string `gorm:"index" json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `gorm:"type:varchar(32)" json:"role,omitempty"`

	// TotalPoints is only changed together with a PointsHistory append.
	TotalPoints int64 `gorm:"not null" json:"total_points"`

	Timestamps
}
