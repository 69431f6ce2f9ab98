package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryMaxMatricula(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(matricula), '') FROM students WHERE matricula LIKE $1")).
		WithArgs("2024%").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("20240041"))

	max, err := repo.MaxMatricula(context.Background(), "2024", "")
	require.NoError(t, err)
	assert.Equal(t, "20240041", max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryMaxMatriculaScopedToSchool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(matricula), '') FROM students WHERE matricula LIKE $1 AND school_id = $2")).
		WithArgs("2024%", "school-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(""))

	max, err := repo.MaxMatricula(context.Background(), "2024", "school-1")
	require.NoError(t, err)
	assert.Empty(t, max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		UserID:    "user-1",
		SchoolID:  "school-1",
		Matricula: "20240001",
		FullName:  "Ana Souza",
		BirthDate: time.Date(2012, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, models.StudentStatusActive, student.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateMatriculaCollision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Student{Matricula: "20240001"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}
