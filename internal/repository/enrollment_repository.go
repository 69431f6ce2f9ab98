package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gestao-escolar/escola-api/internal/models"
)

// EnrollmentRepository handles persistence of class enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN students st ON st.id = e.student_id
JOIN classes c ON c.id = e.class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"joined_at":    "e.joined_at",
		"student_name": "st.full_name",
		"class_name":   "c.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.joined_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.class_id, e.joined_at, e.left_at, e.status,
        st.full_name AS student_name, st.matricula AS student_matricula, c.name AS class_name, c.school_id
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, joined_at, left_at, status FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.joined_at, e.left_at, e.status,
        st.full_name AS student_name, st.matricula AS student_matricula, c.name AS class_name, c.school_id
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindActiveByStudent returns the student's current enrollment, or
// sql.ErrNoRows when none exists. The partial unique index on
// (student_id) WHERE status = 'ACTIVE' guarantees at most one row.
func (r *EnrollmentRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, joined_at, left_at, status FROM enrollments WHERE student_id = $1 AND status = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment record. A second concurrent ACTIVE
// enrollment for the same student violates the partial unique index
// and surfaces as ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.JoinedAt.IsZero() {
		enrollment.JoinedAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, student_id, class_id, joined_at, left_at, status)
        VALUES (:id, :student_id, :class_id, :joined_at, :left_at, :status)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create enrollment: %w", ErrDuplicate)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Transfer closes the current enrollment and opens a new one in the
// target class inside a single transaction, keeping the transition
// auditable instead of overwriting the class reference in place.
func (r *EnrollmentRepository) Transfer(ctx context.Context, enrollmentID, targetClassID string) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transfer: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	now := time.Now().UTC()
	var current models.Enrollment
	if err := tx.GetContext(ctx, &current, `SELECT id, student_id, class_id, joined_at, left_at, status FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentID); err != nil {
		return nil, fmt.Errorf("load enrollment for transfer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE enrollments SET status = $2, left_at = $3 WHERE id = $1`, enrollmentID, models.EnrollmentStatusTransferred, now); err != nil {
		return nil, fmt.Errorf("close enrollment: %w", err)
	}

	next := models.Enrollment{
		ID:        uuid.NewString(),
		StudentID: current.StudentID,
		ClassID:   targetClassID,
		JoinedAt:  now,
		Status:    models.EnrollmentStatusActive,
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO enrollments (id, student_id, class_id, joined_at, left_at, status)
        VALUES (:id, :student_id, :class_id, :joined_at, :left_at, :status)`, &next); err != nil {
		return nil, fmt.Errorf("open enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}
	commit = true
	return &next, nil
}

// UpdateStatus updates status and left_at for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, left_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, leftAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ResolveActiveByClass maps student IDs to their active enrollment IDs
// within the class. Students without an active enrollment in the class
// are simply absent from the result.
func (r *EnrollmentRepository) ResolveActiveByClass(ctx context.Context, classID string, studentIDs []string) (map[string]string, error) {
	if len(studentIDs) == 0 {
		return map[string]string{}, nil
	}
	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, 0, len(studentIDs)+2)
	args = append(args, classID, models.EnrollmentStatusActive)
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT student_id, id FROM enrollments WHERE class_id = $1 AND status = $2 AND student_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve enrollments: %w", err)
	}
	defer rows.Close()
	resolved := make(map[string]string, len(studentIDs))
	for rows.Next() {
		var studentID, enrollmentID string
		if err := rows.Scan(&studentID, &enrollmentID); err != nil {
			return nil, fmt.Errorf("scan enrollment mapping: %w", err)
		}
		resolved[studentID] = enrollmentID
	}
	return resolved, nil
}

// CountActiveByClass returns the number of active enrollments.
func (r *EnrollmentRepository) CountActiveByClass(ctx context.Context, classID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND status = $2`, classID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("count class enrollments: %w", err)
	}
	return count, nil
}
