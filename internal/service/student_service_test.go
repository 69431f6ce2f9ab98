package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/internal/repository"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type fakeStudentRepo struct {
	students     map[string]*models.Student
	createErrs   []error
	created      []*models.Student
	statusUpdate models.StudentStatus
}

func (f *fakeStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	if st, ok := f.students[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) FindDetailByID(_ context.Context, id string) (*models.StudentDetail, error) {
	return &models.StudentDetail{Student: models.Student{ID: id, SchoolID: "school-1"}}, nil
}

func (f *fakeStudentRepo) Create(_ context.Context, student *models.Student) error {
	copied := *student
	f.created = append(f.created, &copied)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return err
	}
	student.ID = "student-new"
	return nil
}

func (f *fakeStudentRepo) Update(_ context.Context, student *models.Student) error { return nil }

func (f *fakeStudentRepo) UpdateStatus(_ context.Context, id string, status models.StudentStatus) error {
	f.statusUpdate = status
	return nil
}

type fakeUserRepo struct {
	emailTaken bool
	created    *models.User
}

func (f *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	return f.emailTaken, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	user.ID = "user-new"
	f.created = user
	return nil
}

type fakeActiveEnrollmentReader struct {
	active map[string]*models.Enrollment
}

func (f *fakeActiveEnrollmentReader) FindActiveByStudent(_ context.Context, studentID string) (*models.Enrollment, error) {
	if e, ok := f.active[studentID]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

type fakeSchoolReader struct{}

func (f *fakeSchoolReader) FindByID(_ context.Context, id string) (*models.School, error) {
	if id == "school-1" {
		return &models.School{ID: id, Name: "EM Central"}, nil
	}
	return nil, sql.ErrNoRows
}

type fakeMatriculaGen struct {
	sequence []string
	retries  int
	calls    int
}

func (f *fakeMatriculaGen) Next(_ context.Context, schoolID string, year int) (string, error) {
	m := f.sequence[f.calls%len(f.sequence)]
	f.calls++
	return m, nil
}

func (f *fakeMatriculaGen) MaxRetries() int { return f.retries }

func newStudentFixture(students *fakeStudentRepo, users *fakeUserRepo, gen *fakeMatriculaGen) *StudentService {
	if students.students == nil {
		students.students = map[string]*models.Student{}
	}
	return NewStudentService(students, users, &fakeActiveEnrollmentReader{}, &fakeSchoolReader{}, gen, nil, nil, nil)
}

func createStudentRequest() CreateStudentRequest {
	return CreateStudentRequest{
		SchoolID:      "school-1",
		FullName:      "Ana Souza",
		Email:         "ana@example.com",
		BirthDate:     time.Date(2012, 3, 14, 0, 0, 0, 0, time.UTC),
		GuardianName:  "Paula Souza",
		GuardianPhone: "11999990000",
	}
}

func TestStudentServiceCreateProvisionsIdentity(t *testing.T) {
	students := &fakeStudentRepo{}
	users := &fakeUserRepo{}
	svc := newStudentFixture(students, users, &fakeMatriculaGen{sequence: []string{"20260001"}, retries: 3})

	detail, err := svc.Create(context.Background(), createStudentRequest(), managerScope("school-1"))
	require.NoError(t, err)
	assert.NotNil(t, detail)
	require.NotNil(t, users.created)
	assert.Equal(t, models.RoleStudent, users.created.Role)
	assert.NotEmpty(t, users.created.PasswordHash)
	require.Len(t, students.created, 1)
	assert.Equal(t, "20260001", students.created[0].Matricula)
	assert.Equal(t, "user-new", students.created[0].UserID)
}

func TestStudentServiceCreateRetriesOnMatriculaCollision(t *testing.T) {
	students := &fakeStudentRepo{createErrs: []error{repository.ErrDuplicate}}
	svc := newStudentFixture(students, &fakeUserRepo{}, &fakeMatriculaGen{sequence: []string{"20260001", "20260002"}, retries: 3})

	_, err := svc.Create(context.Background(), createStudentRequest(), managerScope("school-1"))
	require.NoError(t, err)
	require.Len(t, students.created, 2)
	assert.Equal(t, "20260002", students.created[1].Matricula)
}

func TestStudentServiceCreateExhaustsRetryBudget(t *testing.T) {
	students := &fakeStudentRepo{createErrs: []error{
		repository.ErrDuplicate, repository.ErrDuplicate, repository.ErrDuplicate,
	}}
	svc := newStudentFixture(students, &fakeUserRepo{}, &fakeMatriculaGen{sequence: []string{"20260001"}, retries: 3})

	_, err := svc.Create(context.Background(), createStudentRequest(), managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIdentifierExhausted.Code, appErrors.FromError(err).Code)
	assert.Len(t, students.created, 3)
}

func TestStudentServiceCreateEmailTaken(t *testing.T) {
	svc := newStudentFixture(&fakeStudentRepo{}, &fakeUserRepo{emailTaken: true}, &fakeMatriculaGen{sequence: []string{"20260001"}, retries: 3})

	_, err := svc.Create(context.Background(), createStudentRequest(), managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateOutOfScopeSchool(t *testing.T) {
	svc := newStudentFixture(&fakeStudentRepo{}, &fakeUserRepo{}, &fakeMatriculaGen{sequence: []string{"20260001"}, retries: 3})

	_, err := svc.Create(context.Background(), createStudentRequest(), managerScope("school-other"))
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestStudentServiceWithdrawIdempotent(t *testing.T) {
	students := &fakeStudentRepo{students: map[string]*models.Student{
		"student-1": {ID: "student-1", SchoolID: "school-1", Status: models.StudentStatusWithdrawn},
	}}
	svc := newStudentFixture(students, &fakeUserRepo{}, &fakeMatriculaGen{sequence: []string{"20260001"}, retries: 3})

	require.NoError(t, svc.Withdraw(context.Background(), "student-1", managerScope("school-1")))
	assert.Empty(t, students.statusUpdate, "no second status write")
}

func TestStudentServiceWithdrawRefusedWhileEnrolled(t *testing.T) {
	students := &fakeStudentRepo{students: map[string]*models.Student{
		"student-1": {ID: "student-1", SchoolID: "school-1", Status: models.StudentStatusActive},
	}}
	enrollments := &fakeActiveEnrollmentReader{active: map[string]*models.Enrollment{
		"student-1": {ID: "enrollment-1", Status: models.EnrollmentStatusActive},
	}}
	svc := NewStudentService(students, &fakeUserRepo{}, enrollments, &fakeSchoolReader{}, &fakeMatriculaGen{sequence: []string{"20260001"}, retries: 3}, nil, nil, nil)

	err := svc.Withdraw(context.Background(), "student-1", managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

// concurrentStudentStore enforces matrícula uniqueness under a lock,
// standing in for the unique constraint on the students table.
type concurrentStudentStore struct {
	mu         sync.Mutex
	matriculas map[string]bool
}

func (s *concurrentStudentStore) List(_ context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return nil, 0, nil
}

func (s *concurrentStudentStore) FindByID(_ context.Context, id string) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func (s *concurrentStudentStore) FindDetailByID(_ context.Context, id string) (*models.StudentDetail, error) {
	return &models.StudentDetail{Student: models.Student{ID: id}}, nil
}

func (s *concurrentStudentStore) Create(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matriculas[student.Matricula] {
		return repository.ErrDuplicate
	}
	s.matriculas[student.Matricula] = true
	student.ID = "student-" + student.Matricula
	return nil
}

func (s *concurrentStudentStore) Update(_ context.Context, student *models.Student) error { return nil }

func (s *concurrentStudentStore) UpdateStatus(_ context.Context, id string, status models.StudentStatus) error {
	return nil
}

// scanningMatriculaGen derives the next number from the shared store
// the way the real generator scans storage. The read and the later
// insert are deliberately not atomic, so concurrent callers collide
// and exercise the retry loop.
type scanningMatriculaGen struct {
	store *concurrentStudentStore
}

func (g *scanningMatriculaGen) Next(_ context.Context, schoolID string, year int) (string, error) {
	g.store.mu.Lock()
	n := len(g.store.matriculas)
	g.store.mu.Unlock()
	return fmt.Sprintf("%d%04d", year, n+1), nil
}

func (g *scanningMatriculaGen) MaxRetries() int { return 100 }

type concurrentUserRepo struct {
	mu sync.Mutex
	n  int
}

func (f *concurrentUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	return false, nil
}

func (f *concurrentUserRepo) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	user.ID = fmt.Sprintf("user-%d", f.n)
	return nil
}

func TestStudentServiceConcurrentCreatesAllocateDistinctMatriculas(t *testing.T) {
	store := &concurrentStudentStore{matriculas: map[string]bool{}}
	svc := NewStudentService(store, &concurrentUserRepo{}, &fakeActiveEnrollmentReader{}, &fakeSchoolReader{}, &scanningMatriculaGen{store: store}, nil, nil, nil)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := createStudentRequest()
			req.Email = fmt.Sprintf("aluno%d@example.com", i)
			_, err := svc.Create(context.Background(), req, managerScope("school-1"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, store.matriculas, writers, "every writer holds its own number")
}

func TestStudentServiceWithdraw(t *testing.T) {
	students := &fakeStudentRepo{students: map[string]*models.Student{
		"student-1": {ID: "student-1", SchoolID: "school-1", Status: models.StudentStatusActive},
	}}
	svc := newStudentFixture(students, &fakeUserRepo{}, &fakeMatriculaGen{sequence: []string{"20260001"}, retries: 3})

	require.NoError(t, svc.Withdraw(context.Background(), "student-1", managerScope("school-1")))
	assert.Equal(t, models.StudentStatusWithdrawn, students.statusUpdate)
}
