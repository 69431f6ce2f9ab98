package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/internal/models"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByName(ctx context.Context, schoolID, name, excludeID string) (bool, error)
	CountBySchool(ctx context.Context, schoolID string) (int, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	CountOffers(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

type subjectSchoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// CreateSubjectRequest describes subject creation payload.
type CreateSubjectRequest struct {
	SchoolID string `json:"school_id" validate:"required"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
}

// UpdateSubjectRequest describes mutable subject fields.
type UpdateSubjectRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// SubjectService manages disciplina records. Codes are generated as
// DIS-{school ordinal}; names are unique per school.
type SubjectService struct {
	subjects  subjectRepository
	schools   subjectSchoolReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs the service.
func NewSubjectService(subjects subjectRepository, schools subjectSchoolReader, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{subjects: subjects, schools: schools, validator: validate, logger: logger}
}

// List returns subjects matching the filter, narrowed to the caller's
// schools.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter, scope models.ActingScope) ([]models.Subject, *models.Pagination, error) {
	if !scope.AllSchools {
		if filter.SchoolID == "" && len(scope.SchoolIDs) == 1 {
			filter.SchoolID = scope.SchoolIDs[0]
		}
		if filter.SchoolID != "" && !scope.AllowsSchool(filter.SchoolID) {
			return nil, nil, appErrors.Clone(appErrors.ErrOutOfScope, "school not found")
		}
	}
	subjects, total, err := s.subjects.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return subjects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one subject.
func (s *SubjectService) Get(ctx context.Context, id string, scope models.ActingScope) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if !scope.AllowsSchool(subject.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "subject not found")
	}
	return subject, nil
}

// Create persists a new subject with a generated code.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest, scope models.ActingScope) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if !scope.AllowsSchool(req.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "school not found")
	}
	if _, err := s.schools.FindByID(ctx, req.SchoolID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	taken, err := s.subjects.ExistsByName(ctx, req.SchoolID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject name already in use in this school")
	}

	count, err := s.subjects.CountBySchool(ctx, req.SchoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subjects")
	}
	subject := &models.Subject{
		SchoolID: req.SchoolID,
		Name:     req.Name,
		Code:     fmt.Sprintf("DIS-%04d", count+1),
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	s.logger.Info("subject created", zap.String("subject_id", subject.ID), zap.String("code", subject.Code))
	return subject, nil
}

// Update modifies mutable subject fields.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest, scope models.ActingScope) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	subject, err := s.Get(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	taken, err := s.subjects.ExistsByName(ctx, subject.SchoolID, req.Name, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject name already in use in this school")
	}

	subject.Name = req.Name
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a subject. Refused while any class still offers it.
func (s *SubjectService) Delete(ctx context.Context, id string, scope models.ActingScope) error {
	subject, err := s.Get(ctx, id, scope)
	if err != nil {
		return err
	}
	offers, err := s.subjects.CountOffers(ctx, subject.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count offers")
	}
	if offers > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "subject is still offered in classes")
	}
	if err := s.subjects.Delete(ctx, subject.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}
