package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/internal/models"
)

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "student-1", ClassID: "class-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.False(t, enrollment.JoinedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateSecondActiveIsDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "student-1", ClassID: "class-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransfer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, class_id, joined_at, left_at, status FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enrollment-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "status"}).
			AddRow("enrollment-1", "student-1", "class-1", models.EnrollmentStatusActive))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, left_at = $3 WHERE id = $1")).
		WithArgs("enrollment-1", models.EnrollmentStatusTransferred, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	next, err := repo.Transfer(context.Background(), "enrollment-1", "class-2")
	require.NoError(t, err)
	assert.Equal(t, "student-1", next.StudentID)
	assert.Equal(t, "class-2", next.ClassID)
	assert.Equal(t, models.EnrollmentStatusActive, next.Status)
	assert.NotEqual(t, "enrollment-1", next.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransferRollsBackOnCloseFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, class_id, joined_at, left_at, status FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enrollment-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "status"}).
			AddRow("enrollment-1", "student-1", "class-1", models.EnrollmentStatusActive))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, left_at = $3 WHERE id = $1")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Transfer(context.Background(), "enrollment-1", "class-2")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryResolveActiveByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT student_id, id FROM enrollments").
		WithArgs("class-1", models.EnrollmentStatusActive, "student-1", "student-2").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "id"}).
			AddRow("student-1", "enrollment-1"))

	resolved, err := repo.ResolveActiveByClass(context.Background(), "class-1", []string{"student-1", "student-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"student-1": "enrollment-1"}, resolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryResolveActiveByClassEmptyInput(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	resolved, err := repo.ResolveActiveByClass(context.Background(), "class-1", nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindActiveByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, class_id, joined_at, left_at, status FROM enrollments WHERE student_id = $1 AND status = $2")).
		WithArgs("student-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "status"}).
			AddRow("enrollment-1", "student-1", "class-1", models.EnrollmentStatusActive))

	enrollment, err := repo.FindActiveByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, "class-1", enrollment.ClassID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
