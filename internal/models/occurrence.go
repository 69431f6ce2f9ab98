package models

import "time"

// OccurrenceKind classifies an ocorrência entry.
type OccurrenceKind string

const (
	OccurrenceDisciplinary OccurrenceKind = "DISCIPLINARY"
	OccurrenceCommendation OccurrenceKind = "COMMENDATION"
)

// Valid returns true when the kind is a supported value.
func (k OccurrenceKind) Valid() bool {
	switch k {
	case OccurrenceDisciplinary, OccurrenceCommendation:
		return true
	default:
		return false
	}
}

// Occurrence is a free-form note on a student record authored by a
// teacher or manager. It shares the scope rules of the roster but is
// not on the consistency-critical path.
type Occurrence struct {
	ID          string         `db:"id" json:"id"`
	StudentID   string         `db:"student_id" json:"student_id"`
	AuthorID    string         `db:"author_id" json:"author_id"`
	Kind        OccurrenceKind `db:"kind" json:"kind"`
	Description string         `db:"description" json:"description"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// OccurrenceDetail enriches an occurrence with author info.
type OccurrenceDetail struct {
	Occurrence
	AuthorName string `db:"author_name" json:"author_name"`
}
