package models

import "time"

// TeacherClassLink binds a teacher to a class. It must exist before
// any subject can be attached to that teacher within the class.
type TeacherClassLink struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassSubjectOffer marks a subject as offered in a class, whether or
// not a teacher has been assigned yet.
type ClassSubjectOffer struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassSubjectOfferDetail enriches the offer with subject info and the
// currently assigned teacher, when one exists.
type ClassSubjectOfferDetail struct {
	ClassSubjectOffer
	SubjectName string  `db:"subject_name" json:"subject_name"`
	SubjectCode string  `db:"subject_code" json:"subject_code"`
	TeacherID   *string `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}

// TeacherSubjectAssignment is the authoritative triple answering "who
// teaches what, in which class". At most one row is active per
// (class, subject) pair; assigning a new teacher replaces the old row.
type TeacherSubjectAssignment struct {
	ID        string    `db:"id" json:"id"`
	LinkID    string    `db:"link_id" json:"link_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeacherSubjectAssignmentDetail enriches the triple with names.
type TeacherSubjectAssignmentDetail struct {
	TeacherSubjectAssignment
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	ClassName   string `db:"class_name" json:"class_name"`
}
