package models

import "time"

// StudentStatus represents the lifecycle of a student record.
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "ACTIVE"
	StudentStatusInactive    StudentStatus = "INACTIVE"
	StudentStatusTransferred StudentStatus = "TRANSFERRED"
	StudentStatusWithdrawn   StudentStatus = "WITHDRAWN"
)

// Valid returns true when the status is a supported value.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentStatusActive, StudentStatusInactive, StudentStatusTransferred, StudentStatusWithdrawn:
		return true
	default:
		return false
	}
}

// Student represents an aluno profile bound 1:1 to a login identity.
// Matricula is the generated enrollment number; its uniqueness is
// enforced by a storage constraint, never by in-process state.
type Student struct {
	ID            string        `db:"id" json:"id"`
	UserID        string        `db:"user_id" json:"user_id"`
	SchoolID      string        `db:"school_id" json:"school_id"`
	Matricula     string        `db:"matricula" json:"matricula"`
	FullName      string        `db:"full_name" json:"full_name"`
	BirthDate     time.Time     `db:"birth_date" json:"birth_date"`
	GuardianName  string        `db:"guardian_name" json:"guardian_name"`
	GuardianPhone string        `db:"guardian_phone" json:"guardian_phone"`
	Status        StudentStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with login and current class info.
type StudentDetail struct {
	Student
	Email     string  `db:"email" json:"email"`
	ClassID   *string `db:"class_id" json:"class_id,omitempty"`
	ClassName *string `db:"class_name" json:"class_name,omitempty"`
}

// StudentFilter captures criteria for listing students.
type StudentFilter struct {
	SchoolID  string
	ClassID   string
	Status    StudentStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
