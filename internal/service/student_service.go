package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/internal/repository"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
}

type studentUserRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

type studentEnrollmentReader interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
}

type studentSchoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type matriculaGenerator interface {
	Next(ctx context.Context, schoolID string, year int) (string, error)
	MaxRetries() int
}

// CreateStudentRequest describes student creation payload.
type CreateStudentRequest struct {
	SchoolID      string    `json:"school_id" validate:"required"`
	FullName      string    `json:"full_name" validate:"required,min=3,max=255"`
	Email         string    `json:"email" validate:"required,email"`
	BirthDate     time.Time `json:"birth_date" validate:"required"`
	GuardianName  string    `json:"guardian_name" validate:"required,min=3,max=255"`
	GuardianPhone string    `json:"guardian_phone" validate:"required,min=8,max=20"`
}

// UpdateStudentRequest describes mutable student fields.
type UpdateStudentRequest struct {
	FullName      string    `json:"full_name" validate:"required,min=3,max=255"`
	BirthDate     time.Time `json:"birth_date" validate:"required"`
	GuardianName  string    `json:"guardian_name" validate:"required,min=3,max=255"`
	GuardianPhone string    `json:"guardian_phone" validate:"required,min=8,max=20"`
}

// StudentService manages aluno profiles. Creation provisions the login
// identity and generates the matrícula; a collision with a concurrent
// writer regenerates and retries within a bounded budget.
type StudentService struct {
	students    studentRepository
	users       studentUserRepository
	enrollments studentEnrollmentReader
	schools     studentSchoolReader
	matriculas  matriculaGenerator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the service. metrics may be nil.
func NewStudentService(
	students studentRepository,
	users studentUserRepository,
	enrollments studentEnrollmentReader,
	schools studentSchoolReader,
	matriculas matriculaGenerator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		students:    students,
		users:       users,
		enrollments: enrollments,
		schools:     schools,
		matriculas:  matriculas,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns students matching the filter, narrowed to the caller's
// schools.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter, scope models.ActingScope) ([]models.StudentDetail, *models.Pagination, error) {
	if !scope.AllSchools {
		if filter.SchoolID == "" && len(scope.SchoolIDs) == 1 {
			filter.SchoolID = scope.SchoolIDs[0]
		}
		if filter.SchoolID != "" && !scope.AllowsSchool(filter.SchoolID) {
			return nil, nil, appErrors.Clone(appErrors.ErrOutOfScope, "school not found")
		}
	}
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student with login and class detail.
func (s *StudentService) Get(ctx context.Context, id string, scope models.ActingScope) (*models.StudentDetail, error) {
	detail, err := s.students.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !scope.AllowsSchool(detail.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "student not found")
	}
	return detail, nil
}

// Create provisions the login identity and the student profile with a
// freshly generated matrícula. A unique-constraint collision on the
// matrícula regenerates and retries up to the configured budget before
// giving up.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, scope models.ActingScope) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
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
	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	user, err := s.provisionIdentity(ctx, req.Email, req.FullName, models.RoleStudent)
	if err != nil {
		return nil, err
	}

	year := time.Now().UTC().Year()
	student := &models.Student{
		UserID:        user.ID,
		SchoolID:      req.SchoolID,
		FullName:      req.FullName,
		BirthDate:     req.BirthDate,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		Status:        models.StudentStatusActive,
	}

	retries := s.matriculas.MaxRetries()
	for attempt := 1; ; attempt++ {
		matricula, err := s.matriculas.Next(ctx, req.SchoolID, year)
		if err != nil {
			return nil, err
		}
		student.Matricula = matricula
		student.ID = ""

		err = s.students.Create(ctx, student)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
		}
		s.metrics.ObserveMatriculaRetry()
		if attempt >= retries {
			return nil, appErrors.Clone(appErrors.ErrIdentifierExhausted, "could not allocate an enrollment number")
		}
		s.logger.Warn("matricula collision, retrying",
			zap.String("matricula", matricula),
			zap.Int("attempt", attempt))
	}

	s.logger.Info("student created",
		zap.String("student_id", student.ID),
		zap.String("matricula", student.Matricula),
		zap.String("school_id", student.SchoolID))
	return s.students.FindDetailByID(ctx, student.ID)
}

// Update modifies mutable profile fields.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest, scope models.ActingScope) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !scope.AllowsSchool(student.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "student not found")
	}

	student.FullName = req.FullName
	student.BirthDate = req.BirthDate
	student.GuardianName = req.GuardianName
	student.GuardianPhone = req.GuardianPhone
	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return s.students.FindDetailByID(ctx, student.ID)
}

// Withdraw marks a student as withdrawn. Refused while an active
// enrollment exists; the roster must release the student first.
func (s *StudentService) Withdraw(ctx context.Context, id string, scope models.ActingScope) error {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !scope.AllowsSchool(student.SchoolID) {
		return appErrors.Clone(appErrors.ErrOutOfScope, "student not found")
	}
	if student.Status == models.StudentStatusWithdrawn {
		return nil
	}
	if _, err := s.enrollments.FindActiveByStudent(ctx, id); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "student still has an active enrollment")
	} else if err != sql.ErrNoRows {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if err := s.students.UpdateStatus(ctx, id, models.StudentStatusWithdrawn); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw student")
	}
	return nil
}

// provisionIdentity creates the login row with a random temporary
// password. Credential reset and session handling belong to the auth
// subsystem.
func (s *StudentService) provisionIdentity(ctx context.Context, email, fullName string, role models.UserRole) (*models.User, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credentials")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash credentials")
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision identity")
	}
	return user, nil
}
