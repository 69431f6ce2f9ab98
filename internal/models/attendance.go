package models

import "time"

// AttendanceRecord stores presence for one enrollment on one calendar
// date. The (enrollment_id, date) pair is unique; re-submission
// overwrites the present flag instead of inserting a second row.
type AttendanceRecord struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Date         time.Time `db:"date" json:"date"`
	Present      bool      `db:"present" json:"present"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceEntry is one line of a submitted attendance sheet.
type AttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Present   bool   `json:"present"`
}

// AttendanceSheetRow is one roster line of a queried sheet. Recorded
// distinguishes "no record yet" from "recorded absent"; Present
// defaults to false for unrecorded students but statistics must check
// Recorded before counting.
type AttendanceSheetRow struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	Matricula   string `db:"matricula" json:"matricula"`
	Present     bool   `db:"present" json:"present"`
	Recorded    bool   `db:"recorded" json:"recorded"`
}

// BatchResult reports the outcome of an attendance or grade batch.
// Skipped lists student IDs dropped because they hold no active
// enrollment in the target class; the rest of the batch persisted.
type BatchResult struct {
	Persisted int      `json:"persisted"`
	Skipped   []string `json:"skipped,omitempty"`
}
