package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gestao-escolar/escola-api/internal/models"
)

// OccurrenceRepository persists ocorrência notes on student records.
type OccurrenceRepository struct {
	db *sqlx.DB
}

// NewOccurrenceRepository constructs the repository.
func NewOccurrenceRepository(db *sqlx.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// Create persists an occurrence.
func (r *OccurrenceRepository) Create(ctx context.Context, occurrence *models.Occurrence) error {
	if occurrence.ID == "" {
		occurrence.ID = uuid.NewString()
	}
	if occurrence.CreatedAt.IsZero() {
		occurrence.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO occurrences (id, student_id, author_id, kind, description, created_at)
        VALUES (:id, :student_id, :author_id, :kind, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, occurrence); err != nil {
		return fmt.Errorf("create occurrence: %w", err)
	}
	return nil
}

// ListByStudent returns occurrences for one student, newest first.
func (r *OccurrenceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.OccurrenceDetail, error) {
	const query = `
SELECT o.id, o.student_id, o.author_id, o.kind, o.description, o.created_at,
       u.full_name AS author_name
FROM occurrences o
JOIN users u ON u.id = o.author_id
WHERE o.student_id = $1
ORDER BY o.created_at DESC`
	var occurrences []models.OccurrenceDetail
	if err := r.db.SelectContext(ctx, &occurrences, query, studentID); err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return occurrences, nil
}
