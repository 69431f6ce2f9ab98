package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/internal/repository"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type rosterEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Transfer(ctx context.Context, enrollmentID, targetClassID string) (*models.Enrollment, error)
}

type rosterRepository interface {
	EnsureOffer(ctx context.Context, classID, subjectID string) (*models.ClassSubjectOffer, error)
	ListOffersByClass(ctx context.Context, classID string) ([]models.ClassSubjectOfferDetail, error)
	AssignTeacherToSubject(ctx context.Context, teacherID, subjectID, classID string) (*models.TeacherSubjectAssignment, error)
	FindAssignmentByClassSubject(ctx context.Context, classID, subjectID string) (*models.TeacherSubjectAssignmentDetail, error)
	CountTeacherSubjectsInClass(ctx context.Context, teacherID, classID string) (int, error)
	DeleteTeacherClassLink(ctx context.Context, teacherID, classID string) error
	CountGradesForOffer(ctx context.Context, classID, subjectID string) (int, error)
	DeleteOffer(ctx context.Context, classID, subjectID string) error
}

type rosterClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Usage(ctx context.Context, id string) (*models.ClassUsage, error)
	Delete(ctx context.Context, id string) error
}

type rosterSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type rosterTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type rosterStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EnrollStudentRequest describes enrollment creation payload.
type EnrollStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
}

// TransferEnrollmentRequest describes transfer payload.
type TransferEnrollmentRequest struct {
	TargetClassID string `json:"target_class_id" validate:"required"`
}

// OfferSubjectRequest describes a subject offer payload.
type OfferSubjectRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

// AssignTeacherRequest describes the teacher-subject assignment payload.
type AssignTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
}

// RosterService maintains the class↔subject↔teacher↔student graph and
// its uniqueness rules. Every operation resolves the target class
// first and rejects out-of-scope callers before touching associations.
type RosterService struct {
	enrollments rosterEnrollmentRepository
	roster      rosterRepository
	classes     rosterClassRepository
	subjects    rosterSubjectReader
	teachers    rosterTeacherReader
	students    rosterStudentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRosterService constructs the service.
func NewRosterService(
	enrollments rosterEnrollmentRepository,
	roster rosterRepository,
	classes rosterClassRepository,
	subjects rosterSubjectReader,
	teachers rosterTeacherReader,
	students rosterStudentReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		enrollments: enrollments,
		roster:      roster,
		classes:     classes,
		subjects:    subjects,
		teachers:    teachers,
		students:    students,
		validator:   validate,
		logger:      logger,
	}
}

// classInScope loads a class and verifies the scope covers its school.
// Out-of-scope classes are reported exactly like missing ones.
func (s *RosterService) classInScope(ctx context.Context, classID string, scope models.ActingScope) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !scope.AllowsClass(class.ID, class.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "class not found")
	}
	return class, nil
}

// Enroll registers a student into a class. Enrolling into the class
// the student is already active in is an idempotent success; an active
// enrollment elsewhere is refused, never silently reassigned.
func (s *RosterService) Enroll(ctx context.Context, req EnrollStudentRequest, scope models.ActingScope) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	class, err := s.classInScope(ctx, req.ClassID, scope)
	if err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is not active")
	}

	current, err := s.enrollments.FindActiveByStudent(ctx, req.StudentID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check current enrollment")
	}
	if current != nil {
		if current.ClassID == class.ID {
			return s.enrollmentDetail(ctx, current.ID)
		}
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student already enrolled in another class")
	}

	enrollment := &models.Enrollment{StudentID: req.StudentID, ClassID: class.ID, Status: models.EnrollmentStatusActive}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent writer won the single-active-enrollment
			// constraint between our check and insert.
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student already enrolled in another class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return s.enrollmentDetail(ctx, enrollment.ID)
}

// Transfer moves an enrollment into another class as an explicit
// auditable transition: the old row closes, a new one opens.
func (s *RosterService) Transfer(ctx context.Context, enrollmentID string, req TransferEnrollmentRequest, scope models.ActingScope) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if _, err := s.classInScope(ctx, enrollment.ClassID, scope); err != nil {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "enrollment not found")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}
	if enrollment.ClassID == req.TargetClassID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already in target class")
	}
	if _, err := s.classInScope(ctx, req.TargetClassID, scope); err != nil {
		return nil, err
	}

	next, err := s.enrollments.Transfer(ctx, enrollmentID, req.TargetClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer enrollment")
	}
	return s.enrollmentDetail(ctx, next.ID)
}

// OfferSubject marks a subject as offered in a class. Re-offering is a
// no-op success.
func (s *RosterService) OfferSubject(ctx context.Context, classID string, req OfferSubjectRequest, scope models.ActingScope) (*models.ClassSubjectOffer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offer payload")
	}
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.SchoolID != class.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}

	offer, err := s.roster.EnsureOffer(ctx, class.ID, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to offer subject")
	}
	return offer, nil
}

// ListOffers returns the subjects offered in a class with the current
// teacher for each.
func (s *RosterService) ListOffers(ctx context.Context, classID string, scope models.ActingScope) ([]models.ClassSubjectOfferDetail, error) {
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return nil, err
	}
	offers, err := s.roster.ListOffersByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offers")
	}
	return offers, nil
}

// AssignTeacher binds a teacher to a subject within a class, replacing
// any previous teacher for the (class, subject) pair.
func (s *RosterService) AssignTeacher(ctx context.Context, classID string, req AssignTeacherRequest, scope models.ActingScope) (*models.TeacherSubjectAssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.SchoolID != class.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	if _, err := s.roster.AssignTeacherToSubject(ctx, req.TeacherID, subject.ID, class.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign teacher")
	}
	detail, err := s.roster.FindAssignmentByClassSubject(ctx, class.ID, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return detail, nil
}

// RemoveTeacherFromClass unlinks a teacher from a class. Refused while
// the teacher still holds subject assignments there; callers must
// detach subjects first.
func (s *RosterService) RemoveTeacherFromClass(ctx context.Context, teacherID, classID string, scope models.ActingScope) error {
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return err
	}
	count, err := s.roster.CountTeacherSubjectsInClass(ctx, teacherID, class.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teacher subjects")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "teacher still teaches subjects in this class")
	}
	if err := s.roster.DeleteTeacherClassLink(ctx, teacherID, class.ID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher is not linked to this class")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink teacher")
	}
	return nil
}

// WithdrawOffer removes a subject offer from a class. Refused while
// grade records exist against the pair so a graded offer never
// regresses to unoffered.
func (s *RosterService) WithdrawOffer(ctx context.Context, classID, subjectID string, scope models.ActingScope) error {
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return err
	}
	grades, err := s.roster.CountGradesForOffer(ctx, class.ID, subjectID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count offer grades")
	}
	if grades > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "subject has recorded grades in this class")
	}
	if _, err := s.roster.FindAssignmentByClassSubject(ctx, class.ID, subjectID); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "subject still has an assigned teacher")
	} else if err != sql.ErrNoRows {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if err := s.roster.DeleteOffer(ctx, class.ID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject is not offered in this class")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw offer")
	}
	return nil
}

// DeleteClass removes an empty class. Refused while any student,
// teacher or subject still references it; no cascading cleanup.
func (s *RosterService) DeleteClass(ctx context.Context, classID string, scope models.ActingScope) error {
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return err
	}
	usage, err := s.classes.Usage(ctx, class.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class usage")
	}
	if !usage.Empty() {
		return appErrors.Clone(appErrors.ErrConflict, "class still has students, teachers or subjects")
	}
	if err := s.classes.Delete(ctx, class.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

func (s *RosterService) enrollmentDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}
