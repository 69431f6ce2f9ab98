package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gestao-escolar/escola-api/internal/models"
)

// GradeRepository handles grade record persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// BulkUpsert writes a grade batch as one unit of work, upserting on
// the full key tuple so re-submission overwrites the value.
func (r *GradeRepository) BulkUpsert(ctx context.Context, grades []models.GradeRecord) (int, error) {
	if len(grades) == 0 {
		return 0, nil
	}
	// Rows are written in key order so two overlapping batches cannot
	// deadlock on row locks taken in opposite orders.
	sort.Slice(grades, func(i, j int) bool {
		a, b := grades[i], grades[j]
		if a.EnrollmentID != b.EnrollmentID {
			return a.EnrollmentID < b.EnrollmentID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.AssessmentType != b.AssessmentType {
			return a.AssessmentType < b.AssessmentType
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.AssessedOn.Before(b.AssessedOn)
	})
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin grade batch: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	const query = `INSERT INTO grades (id, enrollment_id, subject_id, assessment_type, period, assessed_on, value, created_at, updated_at)
        VALUES (:id, :enrollment_id, :subject_id, :assessment_type, :period, :assessed_on, :value, :created_at, :updated_at)
        ON CONFLICT (enrollment_id, subject_id, assessment_type, period, assessed_on)
        DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range grades {
		if grades[i].ID == "" {
			grades[i].ID = uuid.NewString()
		}
		if grades[i].CreatedAt.IsZero() {
			grades[i].CreatedAt = now
		}
		grades[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, grades[i]); err != nil {
			return 0, fmt.Errorf("upsert grade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit grade batch: %w", err)
	}
	commit = true
	return len(grades), nil
}

// GradebookRoster returns the active roster of a class in gradebook
// order, one row per enrollment.
func (r *GradeRepository) GradebookRoster(ctx context.Context, classID string) ([]models.GradebookStudent, error) {
	const query = `
SELECT st.id AS student_id, e.id AS enrollment_id, st.full_name AS student_name, st.matricula
FROM enrollments e
JOIN students st ON st.id = e.student_id
WHERE e.class_id = $1 AND e.status = $2
ORDER BY st.full_name ASC`
	rows, err := r.db.QueryxContext(ctx, query, classID, models.EnrollmentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("gradebook roster: %w", err)
	}
	defer rows.Close()
	var students []models.GradebookStudent
	for rows.Next() {
		var s models.GradebookStudent
		if err := rows.Scan(&s.StudentID, &s.EnrollmentID, &s.StudentName, &s.Matricula); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		students = append(students, s)
	}
	return students, nil
}

// FetchByEnrollments returns grades keyed by enrollment ID so the
// gradebook can be assembled in two queries instead of N round trips.
func (r *GradeRepository) FetchByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]models.GradeRecordDetail, error) {
	if len(enrollmentIDs) == 0 {
		return map[string][]models.GradeRecordDetail{}, nil
	}
	placeholders := make([]string, len(enrollmentIDs))
	args := make([]interface{}, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT g.id, g.enrollment_id, g.subject_id, g.assessment_type, g.period, g.assessed_on, g.value, g.created_at, g.updated_at,
        s.name AS subject_name
        FROM grades g
        JOIN subjects s ON s.id = g.subject_id
        WHERE g.enrollment_id IN (%s)
        ORDER BY g.assessed_on ASC`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch grades: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.GradeRecordDetail, len(enrollmentIDs))
	for rows.Next() {
		var grade models.GradeRecordDetail
		if err := rows.StructScan(&grade); err != nil {
			return nil, fmt.Errorf("scan grade: %w", err)
		}
		result[grade.EnrollmentID] = append(result[grade.EnrollmentID], grade)
	}
	return result, nil
}

// ListByEnrollmentAndSubject returns the grades one student holds for
// one subject.
func (r *GradeRepository) ListByEnrollmentAndSubject(ctx context.Context, enrollmentID, subjectID string) ([]models.GradeRecord, error) {
	const query = `SELECT id, enrollment_id, subject_id, assessment_type, period, assessed_on, value, created_at, updated_at
        FROM grades WHERE enrollment_id = $1 AND subject_id = $2 ORDER BY assessed_on ASC`
	var grades []models.GradeRecord
	if err := r.db.SelectContext(ctx, &grades, query, enrollmentID, subjectID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}
