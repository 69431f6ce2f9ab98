package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/internal/models"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type occurrenceRepository interface {
	Create(ctx context.Context, occurrence *models.Occurrence) error
	ListByStudent(ctx context.Context, studentID string) ([]models.OccurrenceDetail, error)
}

type occurrenceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateOccurrenceRequest describes an occurrence note payload.
type CreateOccurrenceRequest struct {
	Kind        models.OccurrenceKind `json:"kind" validate:"required"`
	Description string                `json:"description" validate:"required,min=5,max=2000"`
}

// OccurrenceService manages free-form notes on student records.
type OccurrenceService struct {
	occurrences occurrenceRepository
	students    occurrenceStudentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewOccurrenceService constructs the service.
func NewOccurrenceService(occurrences occurrenceRepository, students occurrenceStudentReader, validate *validator.Validate, logger *zap.Logger) *OccurrenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccurrenceService{occurrences: occurrences, students: students, validator: validate, logger: logger}
}

func (s *OccurrenceService) studentInScope(ctx context.Context, studentID string, scope models.ActingScope) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !scope.AllowsSchool(student.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "student not found")
	}
	return student, nil
}

// Create records a note on a student, authored by the acting user.
func (s *OccurrenceService) Create(ctx context.Context, studentID string, req CreateOccurrenceRequest, scope models.ActingScope) (*models.Occurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid occurrence payload")
	}
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown occurrence kind")
	}
	student, err := s.studentInScope(ctx, studentID, scope)
	if err != nil {
		return nil, err
	}

	occurrence := &models.Occurrence{
		StudentID:   student.ID,
		AuthorID:    scope.UserID,
		Kind:        req.Kind,
		Description: req.Description,
	}
	if err := s.occurrences.Create(ctx, occurrence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create occurrence")
	}
	return occurrence, nil
}

// ListByStudent returns a student's occurrence history, newest first.
func (s *OccurrenceService) ListByStudent(ctx context.Context, studentID string, scope models.ActingScope) ([]models.OccurrenceDetail, error) {
	student, err := s.studentInScope(ctx, studentID, scope)
	if err != nil {
		return nil, err
	}
	occurrences, err := s.occurrences.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list occurrences")
	}
	return occurrences, nil
}
