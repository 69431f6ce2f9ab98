package models

import "time"

// ClassShift represents the period of the day a class meets.
type ClassShift string

const (
	ShiftMorning   ClassShift = "MORNING"
	ShiftAfternoon ClassShift = "AFTERNOON"
	ShiftEvening   ClassShift = "EVENING"
)

// Valid returns true when the shift is a supported value.
func (s ClassShift) Valid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftEvening:
		return true
	default:
		return false
	}
}

// Class represents a turma: one cohort, one school, one shift.
type Class struct {
	ID        string     `db:"id" json:"id"`
	SchoolID  string     `db:"school_id" json:"school_id"`
	Name      string     `db:"name" json:"name"`
	Code      string     `db:"code" json:"code"`
	Shift     ClassShift `db:"shift" json:"shift"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ClassDetail enriches Class with the school name.
type ClassDetail struct {
	Class
	SchoolName string `db:"school_name" json:"school_name"`
}

// ClassUsage carries the child counts consulted before deletion.
// Deletion is refused while any of them is nonzero.
type ClassUsage struct {
	Students int `db:"students" json:"students"`
	Teachers int `db:"teachers" json:"teachers"`
	Subjects int `db:"subjects" json:"subjects"`
}

// Empty reports whether the class has no dependents left.
func (u ClassUsage) Empty() bool {
	return u.Students == 0 && u.Teachers == 0 && u.Subjects == 0
}

// ClassFilter captures criteria for listing classes.
type ClassFilter struct {
	SchoolID  string
	Shift     ClassShift
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
