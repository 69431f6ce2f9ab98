package models

import "time"

// AssessmentType classifies a grade entry.
type AssessmentType string

const (
	AssessmentExam     AssessmentType = "EXAM"
	AssessmentHomework AssessmentType = "HOMEWORK"
	AssessmentProject  AssessmentType = "PROJECT"
	AssessmentRecovery AssessmentType = "RECOVERY"
)

// Valid returns true when the type is a supported value.
func (t AssessmentType) Valid() bool {
	switch t {
	case AssessmentExam, AssessmentHomework, AssessmentProject, AssessmentRecovery:
		return true
	default:
		return false
	}
}

// GradeRecord stores one nota. The full key tuple
// (enrollment_id, subject_id, assessment_type, period, assessed_on)
// is unique; re-submission overwrites the value.
type GradeRecord struct {
	ID             string         `db:"id" json:"id"`
	EnrollmentID   string         `db:"enrollment_id" json:"enrollment_id"`
	SubjectID      string         `db:"subject_id" json:"subject_id"`
	AssessmentType AssessmentType `db:"assessment_type" json:"assessment_type"`
	Period         string         `db:"period" json:"period"`
	AssessedOn     time.Time      `db:"assessed_on" json:"assessed_on"`
	Value          float64        `db:"value" json:"value"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// GradeRecordDetail enriches a grade with the subject name for
// gradebook rendering.
type GradeRecordDetail struct {
	GradeRecord
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// GradeEntry is one line of a submitted grade batch.
type GradeEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Value     float64 `json:"value"`
}

// GradebookStudent is one roster line with that student's grades.
type GradebookStudent struct {
	StudentID    string              `json:"student_id"`
	EnrollmentID string              `json:"enrollment_id"`
	StudentName  string              `json:"student_name"`
	Matricula    string              `json:"matricula"`
	Grades       []GradeRecordDetail `json:"grades"`
}

// Gradebook is the full class view: roster with nested grade lists,
// assembled without per-student round trips.
type Gradebook struct {
	ClassID   string             `json:"class_id"`
	ClassName string             `json:"class_name"`
	Students  []GradebookStudent `json:"students"`
}
