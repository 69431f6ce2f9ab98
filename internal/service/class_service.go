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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	ExistsByName(ctx context.Context, schoolID, name, excludeID string) (bool, error)
	CountBySchool(ctx context.Context, schoolID string) (int, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
}

type classSchoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// CreateClassRequest describes class creation payload.
type CreateClassRequest struct {
	SchoolID string            `json:"school_id" validate:"required"`
	Name     string            `json:"name" validate:"required,min=2,max=100"`
	Shift    models.ClassShift `json:"shift" validate:"required"`
}

// UpdateClassRequest describes mutable class fields.
type UpdateClassRequest struct {
	Name  string            `json:"name" validate:"required,min=2,max=100"`
	Shift models.ClassShift `json:"shift" validate:"required"`
}

// ClassService manages turma records. Codes are generated as
// TUR-{school ordinal}; names are unique per school. Deletion lives in
// RosterService because it consults the association graph.
type ClassService struct {
	classes   classRepository
	schools   classSchoolReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the service.
func NewClassService(classes classRepository, schools classSchoolReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{classes: classes, schools: schools, validator: validate, logger: logger}
}

// List returns classes matching the filter, narrowed to the caller's
// schools.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter, scope models.ActingScope) ([]models.Class, *models.Pagination, error) {
	if !scope.AllSchools {
		if filter.SchoolID == "" && len(scope.SchoolIDs) == 1 {
			filter.SchoolID = scope.SchoolIDs[0]
		}
		if filter.SchoolID != "" && !scope.AllowsSchool(filter.SchoolID) {
			return nil, nil, appErrors.Clone(appErrors.ErrOutOfScope, "school not found")
		}
	}
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one class with its school name.
func (s *ClassService) Get(ctx context.Context, id string, scope models.ActingScope) (*models.ClassDetail, error) {
	detail, err := s.classes.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !scope.AllowsClass(detail.ID, detail.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "class not found")
	}
	return detail, nil
}

// Create persists a new class with a generated code.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest, scope models.ActingScope) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if !req.Shift.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown shift")
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
	taken, err := s.classes.ExistsByName(ctx, req.SchoolID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class name already in use in this school")
	}

	count, err := s.classes.CountBySchool(ctx, req.SchoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	class := &models.Class{
		SchoolID: req.SchoolID,
		Name:     req.Name,
		Code:     fmt.Sprintf("TUR-%04d", count+1),
		Shift:    req.Shift,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("code", class.Code))
	return class, nil
}

// Update modifies mutable class fields.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest, scope models.ActingScope) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if !req.Shift.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown shift")
	}
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !scope.AllowsClass(class.ID, class.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "class not found")
	}
	taken, err := s.classes.ExistsByName(ctx, class.SchoolID, req.Name, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class name already in use in this school")
	}

	class.Name = req.Name
	class.Shift = req.Shift
	if err := s.classes.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}
