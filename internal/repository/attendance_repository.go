package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gestao-escolar/escola-api/internal/models"
)

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// BulkUpsert writes a full attendance batch as one unit of work. Every
// record is upserted on (enrollment_id, date) so a re-submitted sheet
// overwrites instead of duplicating, and a failure rolls the whole
// batch back.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	// Rows are written in key order so two overlapping batches cannot
	// deadlock on row locks taken in opposite orders.
	sort.Slice(records, func(i, j int) bool {
		if records[i].EnrollmentID != records[j].EnrollmentID {
			return records[i].EnrollmentID < records[j].EnrollmentID
		}
		return records[i].Date.Before(records[j].Date)
	})
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin attendance batch: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	const query = `INSERT INTO attendance (id, enrollment_id, date, present, created_at, updated_at)
        VALUES (:id, :enrollment_id, :date, :present, :created_at, :updated_at)
        ON CONFLICT (enrollment_id, date)
        DO UPDATE SET present = EXCLUDED.present, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, records[i]); err != nil {
			return 0, fmt.Errorf("upsert attendance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit attendance batch: %w", err)
	}
	commit = true
	return len(records), nil
}

// Sheet returns the full active roster of a class for a date, with
// recorded flags. Students without a record appear with present =
// false and recorded = false so callers can distinguish "no record"
// from "recorded absent".
func (r *AttendanceRepository) Sheet(ctx context.Context, classID string, date time.Time) ([]models.AttendanceSheetRow, error) {
	const query = `
SELECT st.id AS student_id, st.full_name AS student_name, st.matricula,
       COALESCE(a.present, FALSE) AS present,
       (a.id IS NOT NULL) AS recorded
FROM enrollments e
JOIN students st ON st.id = e.student_id
LEFT JOIN attendance a ON a.enrollment_id = e.id AND a.date = $2
WHERE e.class_id = $1 AND e.status = $3
ORDER BY st.full_name ASC`
	var rows []models.AttendanceSheetRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, date, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("attendance sheet: %w", err)
	}
	return rows, nil
}

// HistoryByEnrollment returns recorded attendance for one enrollment
// in a date range.
func (r *AttendanceRepository) HistoryByEnrollment(ctx context.Context, enrollmentID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	query := `SELECT id, enrollment_id, date, present, created_at, updated_at FROM attendance WHERE enrollment_id = $1`
	args := []interface{}{enrollmentID}
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *to)
	}
	query += " ORDER BY date DESC"
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return records, nil
}
