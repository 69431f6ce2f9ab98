package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ScopeRepository loads the data behind scope resolution: which
// schools a manager administers and which classes a teacher works in.
type ScopeRepository struct {
	db *sqlx.DB
}

// NewScopeRepository constructs the repository.
func NewScopeRepository(db *sqlx.DB) *ScopeRepository {
	return &ScopeRepository{db: db}
}

// SchoolIDsForManager returns the schools a manager login administers.
func (r *ScopeRepository) SchoolIDsForManager(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT school_id FROM school_managers WHERE user_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("manager schools: %w", err)
	}
	return ids, nil
}

// ClassIDsForTeacher returns the classes a teacher profile is linked to.
func (r *ScopeRepository) ClassIDsForTeacher(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT class_id FROM teacher_class_links WHERE teacher_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("teacher classes: %w", err)
	}
	return ids, nil
}

// SchoolIDsForClasses maps class IDs to their owning schools.
func (r *ScopeRepository) SchoolIDsForClasses(ctx context.Context, classIDs []string) ([]string, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT DISTINCT school_id FROM classes WHERE id IN (?)`, classIDs)
	if err != nil {
		return nil, fmt.Errorf("build class schools query: %w", err)
	}
	query = r.db.Rebind(query)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("class schools: %w", err)
	}
	return ids, nil
}
