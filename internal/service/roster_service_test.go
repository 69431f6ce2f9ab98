package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/internal/repository"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	byID        map[string]*models.Enrollment
	activeBy    map[string]*models.Enrollment
	createErr   error
	created     *models.Enrollment
	transferred *models.Enrollment
}

func (f *fakeEnrollmentRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	if e, ok := f.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) FindDetailByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id}}, nil
}

func (f *fakeEnrollmentRepo) FindActiveByStudent(_ context.Context, studentID string) (*models.Enrollment, error) {
	if e, ok := f.activeBy[studentID]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) Create(_ context.Context, enrollment *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	enrollment.ID = "enrollment-new"
	f.created = enrollment
	return nil
}

func (f *fakeEnrollmentRepo) Transfer(_ context.Context, enrollmentID, targetClassID string) (*models.Enrollment, error) {
	next := &models.Enrollment{ID: "enrollment-next", ClassID: targetClassID, Status: models.EnrollmentStatusActive}
	f.transferred = next
	return next, nil
}

type fakeRosterRepo struct {
	offers        map[string]bool
	assignment    *models.TeacherSubjectAssignmentDetail
	subjectCount  int
	gradeCount    int
	deletedLink   bool
	deletedOffer  bool
	linkDeleteErr error
}

func (f *fakeRosterRepo) EnsureOffer(_ context.Context, classID, subjectID string) (*models.ClassSubjectOffer, error) {
	return &models.ClassSubjectOffer{ID: "offer-1", ClassID: classID, SubjectID: subjectID}, nil
}

func (f *fakeRosterRepo) ListOffersByClass(_ context.Context, classID string) ([]models.ClassSubjectOfferDetail, error) {
	return nil, nil
}

func (f *fakeRosterRepo) AssignTeacherToSubject(_ context.Context, teacherID, subjectID, classID string) (*models.TeacherSubjectAssignment, error) {
	f.assignment = &models.TeacherSubjectAssignmentDetail{
		TeacherSubjectAssignment: models.TeacherSubjectAssignment{
			ID: "assignment-1", TeacherID: teacherID, SubjectID: subjectID, ClassID: classID,
		},
	}
	return &f.assignment.TeacherSubjectAssignment, nil
}

func (f *fakeRosterRepo) FindAssignmentByClassSubject(_ context.Context, classID, subjectID string) (*models.TeacherSubjectAssignmentDetail, error) {
	if f.assignment == nil {
		return nil, sql.ErrNoRows
	}
	return f.assignment, nil
}

func (f *fakeRosterRepo) CountTeacherSubjectsInClass(_ context.Context, teacherID, classID string) (int, error) {
	return f.subjectCount, nil
}

func (f *fakeRosterRepo) DeleteTeacherClassLink(_ context.Context, teacherID, classID string) error {
	if f.linkDeleteErr != nil {
		return f.linkDeleteErr
	}
	f.deletedLink = true
	return nil
}

func (f *fakeRosterRepo) CountGradesForOffer(_ context.Context, classID, subjectID string) (int, error) {
	return f.gradeCount, nil
}

func (f *fakeRosterRepo) DeleteOffer(_ context.Context, classID, subjectID string) error {
	f.deletedOffer = true
	return nil
}

type fakeClassRepo struct {
	classes map[string]*models.Class
	usage   models.ClassUsage
	deleted bool
}

func (f *fakeClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	if c, ok := f.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassRepo) Usage(_ context.Context, id string) (*models.ClassUsage, error) {
	return &f.usage, nil
}

func (f *fakeClassRepo) Delete(_ context.Context, id string) error {
	f.deleted = true
	return nil
}

type fakeSubjectReader struct {
	subjects map[string]*models.Subject
}

func (f *fakeSubjectReader) FindByID(_ context.Context, id string) (*models.Subject, error) {
	if s, ok := f.subjects[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeTeacherReader struct {
	teachers map[string]*models.Teacher
}

func (f *fakeTeacherReader) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	if te, ok := f.teachers[id]; ok {
		return te, nil
	}
	return nil, sql.ErrNoRows
}

type fakeStudentReader struct {
	students map[string]*models.Student
}

func (f *fakeStudentReader) FindByID(_ context.Context, id string) (*models.Student, error) {
	if st, ok := f.students[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func newRosterFixture() (*RosterService, *fakeEnrollmentRepo, *fakeRosterRepo, *fakeClassRepo) {
	enrollments := &fakeEnrollmentRepo{byID: map[string]*models.Enrollment{}, activeBy: map[string]*models.Enrollment{}}
	roster := &fakeRosterRepo{}
	classes := &fakeClassRepo{classes: map[string]*models.Class{
		"class-1": {ID: "class-1", SchoolID: "school-1", Name: "6A"},
		"class-2": {ID: "class-2", SchoolID: "school-1", Name: "6B"},
		"class-9": {ID: "class-9", SchoolID: "school-9", Name: "9Z"},
	}}
	subjects := &fakeSubjectReader{subjects: map[string]*models.Subject{
		"subject-1": {ID: "subject-1", SchoolID: "school-1", Name: "Matemática"},
		"subject-9": {ID: "subject-9", SchoolID: "school-9", Name: "História"},
	}}
	teachers := &fakeTeacherReader{teachers: map[string]*models.Teacher{
		"teacher-1": {ID: "teacher-1", FullName: "Carla Dias"},
	}}
	students := &fakeStudentReader{students: map[string]*models.Student{
		"student-1": {ID: "student-1", SchoolID: "school-1", Status: models.StudentStatusActive},
		"student-2": {ID: "student-2", SchoolID: "school-1", Status: models.StudentStatusWithdrawn},
	}}
	svc := NewRosterService(enrollments, roster, classes, subjects, teachers, students, nil, nil)
	return svc, enrollments, roster, classes
}

func managerScope(schoolIDs ...string) models.ActingScope {
	return models.ActingScope{UserID: "user-1", Role: models.RoleManager, SchoolIDs: schoolIDs}
}

func TestRosterServiceEnroll(t *testing.T) {
	svc, enrollments, _, _ := newRosterFixture()

	detail, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "student-1", ClassID: "class-1"}, managerScope("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "enrollment-new", detail.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollments.created.Status)
}

func TestRosterServiceEnrollSameClassIsIdempotent(t *testing.T) {
	svc, enrollments, _, _ := newRosterFixture()
	enrollments.activeBy["student-1"] = &models.Enrollment{ID: "enrollment-1", StudentID: "student-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}

	detail, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "student-1", ClassID: "class-1"}, managerScope("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "enrollment-1", detail.ID)
	assert.Nil(t, enrollments.created, "no new enrollment row")
}

func TestRosterServiceEnrollRefusedWhileActiveElsewhere(t *testing.T) {
	svc, enrollments, _, _ := newRosterFixture()
	enrollments.activeBy["student-1"] = &models.Enrollment{ID: "enrollment-1", StudentID: "student-1", ClassID: "class-2", Status: models.EnrollmentStatusActive}

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "student-1", ClassID: "class-1"}, managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceEnrollLosingRaceSurfacesAlreadyEnrolled(t *testing.T) {
	svc, enrollments, _, _ := newRosterFixture()
	enrollments.createErr = repository.ErrDuplicate

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "student-1", ClassID: "class-1"}, managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceEnrollInactiveStudentRefused(t *testing.T) {
	svc, _, _, _ := newRosterFixture()

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "student-2", ClassID: "class-1"}, managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceOutOfScopeClassLooksMissing(t *testing.T) {
	svc, _, _, _ := newRosterFixture()

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "student-1", ClassID: "class-9"}, managerScope("school-1"))
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, "NOT_FOUND", typed.Code)
	assert.Equal(t, 404, typed.Status)
}

func TestRosterServiceTransfer(t *testing.T) {
	svc, enrollments, _, _ := newRosterFixture()
	enrollments.byID["enrollment-1"] = &models.Enrollment{ID: "enrollment-1", StudentID: "student-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}

	detail, err := svc.Transfer(context.Background(), "enrollment-1", TransferEnrollmentRequest{TargetClassID: "class-2"}, managerScope("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "enrollment-next", detail.ID)
	assert.Equal(t, "class-2", enrollments.transferred.ClassID)
}

func TestRosterServiceTransferIntoSameClassRefused(t *testing.T) {
	svc, enrollments, _, _ := newRosterFixture()
	enrollments.byID["enrollment-1"] = &models.Enrollment{ID: "enrollment-1", StudentID: "student-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}

	_, err := svc.Transfer(context.Background(), "enrollment-1", TransferEnrollmentRequest{TargetClassID: "class-1"}, managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceTransferTargetOutOfScope(t *testing.T) {
	svc, enrollments, _, _ := newRosterFixture()
	enrollments.byID["enrollment-1"] = &models.Enrollment{ID: "enrollment-1", StudentID: "student-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}

	_, err := svc.Transfer(context.Background(), "enrollment-1", TransferEnrollmentRequest{TargetClassID: "class-9"}, managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestRosterServiceOfferSubjectFromAnotherSchoolRefused(t *testing.T) {
	svc, _, _, _ := newRosterFixture()

	_, err := svc.OfferSubject(context.Background(), "class-1", OfferSubjectRequest{SubjectID: "subject-9"}, managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestRosterServiceAssignTeacher(t *testing.T) {
	svc, _, roster, _ := newRosterFixture()

	detail, err := svc.AssignTeacher(context.Background(), "class-1", AssignTeacherRequest{TeacherID: "teacher-1", SubjectID: "subject-1"}, managerScope("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", detail.TeacherID)
	assert.NotNil(t, roster.assignment)
}

func TestRosterServiceRemoveTeacherStillTeachingRefused(t *testing.T) {
	svc, _, roster, _ := newRosterFixture()
	roster.subjectCount = 2

	err := svc.RemoveTeacherFromClass(context.Background(), "teacher-1", "class-1", managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.False(t, roster.deletedLink)
}

func TestRosterServiceRemoveTeacherNotLinked(t *testing.T) {
	svc, _, roster, _ := newRosterFixture()
	roster.linkDeleteErr = sql.ErrNoRows

	err := svc.RemoveTeacherFromClass(context.Background(), "teacher-1", "class-1", managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestRosterServiceWithdrawOfferWithGradesRefused(t *testing.T) {
	svc, _, roster, _ := newRosterFixture()
	roster.gradeCount = 1

	err := svc.WithdrawOffer(context.Background(), "class-1", "subject-1", managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.False(t, roster.deletedOffer)
}

func TestRosterServiceWithdrawOfferWithTeacherRefused(t *testing.T) {
	svc, _, roster, _ := newRosterFixture()
	roster.assignment = &models.TeacherSubjectAssignmentDetail{}

	err := svc.WithdrawOffer(context.Background(), "class-1", "subject-1", managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceWithdrawOffer(t *testing.T) {
	svc, _, roster, _ := newRosterFixture()

	require.NoError(t, svc.WithdrawOffer(context.Background(), "class-1", "subject-1", managerScope("school-1")))
	assert.True(t, roster.deletedOffer)
}

func TestRosterServiceDeleteClassInUseRefused(t *testing.T) {
	svc, _, _, classes := newRosterFixture()
	classes.usage = models.ClassUsage{Students: 3}

	err := svc.DeleteClass(context.Background(), "class-1", managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.False(t, classes.deleted)
}

func TestRosterServiceDeleteEmptyClass(t *testing.T) {
	svc, _, _, classes := newRosterFixture()

	require.NoError(t, svc.DeleteClass(context.Background(), "class-1", managerScope("school-1")))
	assert.True(t, classes.deleted)
}
