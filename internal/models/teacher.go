package models

import "time"

// Teacher represents a professor profile bound 1:1 to a login
// identity. SchoolID is the administrative home school; class work is
// tracked through TeacherClassLink rows instead.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	SchoolID  *string   `db:"school_id" json:"school_id,omitempty"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherDetail enriches Teacher with login and school info.
type TeacherDetail struct {
	Teacher
	Email      string  `db:"email" json:"email"`
	SchoolName *string `db:"school_name" json:"school_name,omitempty"`
}

// TeacherFilter captures criteria for listing teachers.
type TeacherFilter struct {
	SchoolID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
