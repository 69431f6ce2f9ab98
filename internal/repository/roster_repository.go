package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gestao-escolar/escola-api/internal/models"
)

// RosterRepository persists the class↔subject↔teacher association
// graph: teacher-class links, subject offers and the authoritative
// teacher-subject triples.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// EnsureOffer marks the subject as offered in the class. Offering an
// already-offered subject is a no-op.
func (r *RosterRepository) EnsureOffer(ctx context.Context, classID, subjectID string) (*models.ClassSubjectOffer, error) {
	offer := &models.ClassSubjectOffer{
		ID:        uuid.NewString(),
		ClassID:   classID,
		SubjectID: subjectID,
		CreatedAt: time.Now().UTC(),
	}
	const insert = `INSERT INTO class_subjects (id, class_id, subject_id, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (class_id, subject_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, offer.ID, offer.ClassID, offer.SubjectID, offer.CreatedAt); err != nil {
		return nil, fmt.Errorf("offer subject: %w", err)
	}
	const query = `SELECT id, class_id, subject_id, created_at FROM class_subjects WHERE class_id = $1 AND subject_id = $2`
	var stored models.ClassSubjectOffer
	if err := r.db.GetContext(ctx, &stored, query, classID, subjectID); err != nil {
		return nil, fmt.Errorf("load subject offer: %w", err)
	}
	return &stored, nil
}

// OfferExists reports whether the subject is offered in the class.
func (r *RosterRepository) OfferExists(ctx context.Context, classID, subjectID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM class_subjects WHERE class_id = $1 AND subject_id = $2 LIMIT 1`, classID, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check subject offer: %w", err)
	}
	return true, nil
}

// ListOffersByClass returns the subjects offered in a class together
// with the currently assigned teacher, when one exists.
func (r *RosterRepository) ListOffersByClass(ctx context.Context, classID string) ([]models.ClassSubjectOfferDetail, error) {
	const query = `
SELECT cs.id, cs.class_id, cs.subject_id, cs.created_at,
       s.name AS subject_name, s.code AS subject_code,
       tsa.teacher_id, t.full_name AS teacher_name
FROM class_subjects cs
JOIN subjects s ON s.id = cs.subject_id
LEFT JOIN teacher_subject_assignments tsa ON tsa.class_id = cs.class_id AND tsa.subject_id = cs.subject_id
LEFT JOIN teachers t ON t.id = tsa.teacher_id
WHERE cs.class_id = $1
ORDER BY s.name ASC`
	var offers []models.ClassSubjectOfferDetail
	if err := r.db.SelectContext(ctx, &offers, query, classID); err != nil {
		return nil, fmt.Errorf("list class offers: %w", err)
	}
	return offers, nil
}

// FindTeacherClassLink returns the link row, or sql.ErrNoRows.
func (r *RosterRepository) FindTeacherClassLink(ctx context.Context, teacherID, classID string) (*models.TeacherClassLink, error) {
	const query = `SELECT id, teacher_id, class_id, created_at FROM teacher_class_links WHERE teacher_id = $1 AND class_id = $2`
	var link models.TeacherClassLink
	if err := r.db.GetContext(ctx, &link, query, teacherID, classID); err != nil {
		return nil, err
	}
	return &link, nil
}

// AssignTeacherToSubject executes the replacement protocol in a single
// transaction: ensure the teacher-class link, ensure the subject offer,
// remove any previous teacher's triple for the (class, subject) pair,
// insert the new triple. Last writer wins.
func (r *RosterRepository) AssignTeacherToSubject(ctx context.Context, teacherID, subjectID, classID string) (*models.TeacherSubjectAssignment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assignment: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `INSERT INTO teacher_class_links (id, teacher_id, class_id, created_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (teacher_id, class_id) DO NOTHING`,
		uuid.NewString(), teacherID, classID, now); err != nil {
		return nil, fmt.Errorf("ensure teacher class link: %w", err)
	}
	var link models.TeacherClassLink
	if err := tx.GetContext(ctx, &link, `SELECT id, teacher_id, class_id, created_at FROM teacher_class_links WHERE teacher_id = $1 AND class_id = $2`, teacherID, classID); err != nil {
		return nil, fmt.Errorf("load teacher class link: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO class_subjects (id, class_id, subject_id, created_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (class_id, subject_id) DO NOTHING`,
		uuid.NewString(), classID, subjectID, now); err != nil {
		return nil, fmt.Errorf("ensure subject offer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_subject_assignments WHERE class_id = $1 AND subject_id = $2`, classID, subjectID); err != nil {
		return nil, fmt.Errorf("supersede previous teacher: %w", err)
	}

	assignment := &models.TeacherSubjectAssignment{
		ID:        uuid.NewString(),
		LinkID:    link.ID,
		TeacherID: teacherID,
		ClassID:   classID,
		SubjectID: subjectID,
		CreatedAt: now,
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO teacher_subject_assignments (id, link_id, teacher_id, class_id, subject_id, created_at)
        VALUES (:id, :link_id, :teacher_id, :class_id, :subject_id, :created_at)`, assignment); err != nil {
		return nil, fmt.Errorf("create teacher subject assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assignment: %w", err)
	}
	commit = true
	return assignment, nil
}

// FindAssignmentByClassSubject returns the active triple for a
// (class, subject) pair, or sql.ErrNoRows.
func (r *RosterRepository) FindAssignmentByClassSubject(ctx context.Context, classID, subjectID string) (*models.TeacherSubjectAssignmentDetail, error) {
	const query = `
SELECT tsa.id, tsa.link_id, tsa.teacher_id, tsa.class_id, tsa.subject_id, tsa.created_at,
       t.full_name AS teacher_name, s.name AS subject_name, c.name AS class_name
FROM teacher_subject_assignments tsa
JOIN teachers t ON t.id = tsa.teacher_id
JOIN subjects s ON s.id = tsa.subject_id
JOIN classes c ON c.id = tsa.class_id
WHERE tsa.class_id = $1 AND tsa.subject_id = $2`
	var detail models.TeacherSubjectAssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, classID, subjectID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListAssignmentsByTeacher returns the triples a teacher holds.
func (r *RosterRepository) ListAssignmentsByTeacher(ctx context.Context, teacherID string) ([]models.TeacherSubjectAssignmentDetail, error) {
	const query = `
SELECT tsa.id, tsa.link_id, tsa.teacher_id, tsa.class_id, tsa.subject_id, tsa.created_at,
       t.full_name AS teacher_name, s.name AS subject_name, c.name AS class_name
FROM teacher_subject_assignments tsa
JOIN teachers t ON t.id = tsa.teacher_id
JOIN subjects s ON s.id = tsa.subject_id
JOIN classes c ON c.id = tsa.class_id
WHERE tsa.teacher_id = $1
ORDER BY c.name ASC, s.name ASC`
	var assignments []models.TeacherSubjectAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	return assignments, nil
}

// CountTeacherSubjectsInClass returns how many subject triples the
// teacher still holds in the class. Unlinking is refused while nonzero.
func (r *RosterRepository) CountTeacherSubjectsInClass(ctx context.Context, teacherID, classID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM teacher_subject_assignments WHERE teacher_id = $1 AND class_id = $2`, teacherID, classID); err != nil {
		return 0, fmt.Errorf("count teacher subjects: %w", err)
	}
	return count, nil
}

// DeleteTeacherClassLink removes the teacher-class link.
func (r *RosterRepository) DeleteTeacherClassLink(ctx context.Context, teacherID, classID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teacher_class_links WHERE teacher_id = $1 AND class_id = $2`, teacherID, classID)
	if err != nil {
		return fmt.Errorf("delete teacher class link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted link rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountGradesForOffer reports whether grade records exist against a
// (class, subject) pair. An offer with recorded grades must not regress
// to unoffered.
func (r *RosterRepository) CountGradesForOffer(ctx context.Context, classID, subjectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM grades g
JOIN enrollments e ON e.id = g.enrollment_id
WHERE e.class_id = $1 AND g.subject_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, subjectID); err != nil {
		return 0, fmt.Errorf("count offer grades: %w", err)
	}
	return count, nil
}

// DeleteOffer withdraws a subject offer from a class.
func (r *RosterRepository) DeleteOffer(ctx context.Context, classID, subjectID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM class_subjects WHERE class_id = $1 AND subject_id = $2`, classID, subjectID)
	if err != nil {
		return fmt.Errorf("delete subject offer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted offer rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
