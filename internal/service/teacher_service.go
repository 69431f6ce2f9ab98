package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/internal/repository"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	CountClassLinks(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

type teacherUserRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

// CreateTeacherRequest describes teacher creation payload.
type CreateTeacherRequest struct {
	SchoolID string `json:"school_id" validate:"omitempty,uuid"`
	FullName string `json:"full_name" validate:"required,min=3,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=8,max=20"`
}

// UpdateTeacherRequest describes mutable teacher fields.
type UpdateTeacherRequest struct {
	SchoolID string `json:"school_id" validate:"omitempty,uuid"`
	FullName string `json:"full_name" validate:"required,min=3,max=255"`
	Phone    string `json:"phone" validate:"required,min=8,max=20"`
}

// TeacherService manages professor profiles. Creation provisions the
// login identity; deletion removes only the profile and is refused
// while class links remain.
type TeacherService struct {
	teachers  teacherRepository
	users     teacherUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs the service.
func NewTeacherService(teachers teacherRepository, users teacherUserRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{teachers: teachers, users: users, validator: validate, logger: logger}
}

// List returns teachers matching the filter, narrowed to the caller's
// schools.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter, scope models.ActingScope) ([]models.TeacherDetail, *models.Pagination, error) {
	if !scope.AllSchools {
		if filter.SchoolID == "" && len(scope.SchoolIDs) == 1 {
			filter.SchoolID = scope.SchoolIDs[0]
		}
		if filter.SchoolID != "" && !scope.AllowsSchool(filter.SchoolID) {
			return nil, nil, appErrors.Clone(appErrors.ErrOutOfScope, "school not found")
		}
	}
	teachers, total, err := s.teachers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return teachers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one teacher profile.
func (s *TeacherService) Get(ctx context.Context, id string, scope models.ActingScope) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.SchoolID != nil && !scope.AllowsSchool(*teacher.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "teacher not found")
	}
	return teacher, nil
}

// Create provisions the login identity and the teacher profile.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest, scope models.ActingScope) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	if req.SchoolID != "" && !scope.AllowsSchool(req.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "school not found")
	}
	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credentials")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash credentials")
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleTeacher,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision identity")
	}

	teacher := &models.Teacher{UserID: user.ID, FullName: req.FullName, Phone: req.Phone}
	if req.SchoolID != "" {
		teacher.SchoolID = &req.SchoolID
	}
	if err := s.teachers.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID))
	return teacher, nil
}

// Update modifies mutable profile fields.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest, scope models.ActingScope) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	if req.SchoolID != "" && !scope.AllowsSchool(req.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "school not found")
	}

	teacher.FullName = req.FullName
	teacher.Phone = req.Phone
	if req.SchoolID != "" {
		teacher.SchoolID = &req.SchoolID
	}
	if err := s.teachers.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Delete removes a teacher profile. Refused while the teacher is still
// linked to classes; the login identity is never cascaded.
func (s *TeacherService) Delete(ctx context.Context, id string, scope models.ActingScope) error {
	teacher, err := s.Get(ctx, id, scope)
	if err != nil {
		return err
	}
	links, err := s.teachers.CountClassLinks(ctx, teacher.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count class links")
	}
	if links > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "teacher is still linked to classes")
	}
	if err := s.teachers.Delete(ctx, teacher.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	return nil
}
