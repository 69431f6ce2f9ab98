package models

import "time"

// School is the root aggregate owning classes, subjects and staff
// assignments.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	City      string    `db:"city" json:"city"`
	Phone     string    `db:"phone" json:"phone"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SchoolManager binds a manager login identity to a school it may
// administer. A manager can hold several schools.
type SchoolManager struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SchoolFilter captures criteria for listing schools.
type SchoolFilter struct {
	Search    string
	City      string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
