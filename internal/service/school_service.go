package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/internal/models"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	CountChildren(ctx context.Context, id string) (int, int, error)
	Delete(ctx context.Context, id string) error
}

// CreateSchoolRequest describes school creation payload.
type CreateSchoolRequest struct {
	Name    string `json:"name" validate:"required,min=3,max=255"`
	Address string `json:"address" validate:"required,min=5,max=255"`
	City    string `json:"city" validate:"required,min=2,max=100"`
	Phone   string `json:"phone" validate:"required,min=8,max=20"`
	Email   string `json:"email" validate:"required,email"`
}

// UpdateSchoolRequest describes mutable school fields.
type UpdateSchoolRequest struct {
	Name    string `json:"name" validate:"required,min=3,max=255"`
	Address string `json:"address" validate:"required,min=5,max=255"`
	City    string `json:"city" validate:"required,min=2,max=100"`
	Phone   string `json:"phone" validate:"required,min=8,max=20"`
	Email   string `json:"email" validate:"required,email"`
}

// SchoolService manages the root school aggregate. Creation and
// deletion are admin-only operations; managers read and update the
// schools they hold.
type SchoolService struct {
	schools   schoolRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs the service.
func NewSchoolService(schools schoolRepository, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{schools: schools, validator: validate, logger: logger}
}

// List returns schools matching the filter. Non-admin callers only see
// the schools in their scope.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter, scope models.ActingScope) ([]models.School, *models.Pagination, error) {
	schools, total, err := s.schools.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	if !scope.AllSchools {
		visible := schools[:0]
		for _, school := range schools {
			if scope.AllowsSchool(school.ID) {
				visible = append(visible, school)
			}
		}
		schools = visible
		total = len(schools)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return schools, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one school.
func (s *SchoolService) Get(ctx context.Context, id string, scope models.ActingScope) (*models.School, error) {
	if !scope.AllowsSchool(id) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "school not found")
	}
	school, err := s.schools.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// Create persists a new school.
func (s *SchoolService) Create(ctx context.Context, req CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	school := &models.School{
		Name:    req.Name,
		Address: req.Address,
		City:    req.City,
		Phone:   req.Phone,
		Email:   req.Email,
	}
	if err := s.schools.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	s.logger.Info("school created", zap.String("school_id", school.ID))
	return school, nil
}

// Update modifies mutable school fields.
func (s *SchoolService) Update(ctx context.Context, id string, req UpdateSchoolRequest, scope models.ActingScope) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	school, err := s.Get(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	school.Name = req.Name
	school.Address = req.Address
	school.City = req.City
	school.Phone = req.Phone
	school.Email = req.Email
	if err := s.schools.Update(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	return school, nil
}

// Delete removes a school. Refused while classes or subjects still
// reference it.
func (s *SchoolService) Delete(ctx context.Context, id string, scope models.ActingScope) error {
	school, err := s.Get(ctx, id, scope)
	if err != nil {
		return err
	}
	classes, subjects, err := s.schools.CountChildren(ctx, school.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count school children")
	}
	if classes > 0 || subjects > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "school still has classes or subjects")
	}
	if err := s.schools.Delete(ctx, school.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete school")
	}
	return nil
}
