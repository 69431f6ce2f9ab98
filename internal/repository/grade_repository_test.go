package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/internal/models"
)

func TestGradeRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grades").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	grades := []models.GradeRecord{{
		EnrollmentID:   "enrollment-1",
		SubjectID:      "subject-1",
		AssessmentType: models.AssessmentExam,
		Period:         "2026-1",
		AssessedOn:     time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		Value:          8.5,
	}}
	persisted, err := repo.BulkUpsert(context.Background(), grades)
	require.NoError(t, err)
	assert.Equal(t, 1, persisted)
	assert.NotEmpty(t, grades[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkUpsertWritesInKeyOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grades").
		WithArgs(sqlmock.AnyArg(), "enrollment-1", "subject-a", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO grades").
		WithArgs(sqlmock.AnyArg(), "enrollment-1", "subject-b", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assessed := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	_, err := repo.BulkUpsert(context.Background(), []models.GradeRecord{
		{EnrollmentID: "enrollment-1", SubjectID: "subject-b", AssessmentType: models.AssessmentExam, Period: "2026-1", AssessedOn: assessed, Value: 7},
		{EnrollmentID: "enrollment-1", SubjectID: "subject-a", AssessmentType: models.AssessmentExam, Period: "2026-1", AssessedOn: assessed, Value: 8},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grades").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.BulkUpsert(context.Background(), []models.GradeRecord{{
		EnrollmentID: "enrollment-1",
		SubjectID:    "subject-1",
	}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryGradebookRoster(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery("SELECT st.id AS student_id, e.id AS enrollment_id").
		WithArgs("class-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "enrollment_id", "student_name", "matricula"}).
			AddRow("student-1", "enrollment-1", "Ana Souza", "20260001").
			AddRow("student-2", "enrollment-2", "Bruno Lima", "20260002"))

	roster, err := repo.GradebookRoster(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "enrollment-1", roster[0].EnrollmentID)
	assert.Equal(t, "Bruno Lima", roster[1].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryFetchByEnrollmentsGroupsByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	assessed := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT g.id, g.enrollment_id, g.subject_id").
		WithArgs("enrollment-1", "enrollment-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "enrollment_id", "subject_id", "assessment_type", "period", "assessed_on", "value", "subject_name"}).
			AddRow("grade-1", "enrollment-1", "subject-1", models.AssessmentExam, "2026-1", assessed, 8.5, "Matemática").
			AddRow("grade-2", "enrollment-1", "subject-1", models.AssessmentHomework, "2026-1", assessed, 7.0, "Matemática"))

	grades, err := repo.FetchByEnrollments(context.Background(), []string{"enrollment-1", "enrollment-2"})
	require.NoError(t, err)
	assert.Len(t, grades["enrollment-1"], 2)
	assert.Empty(t, grades["enrollment-2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryFetchByEnrollmentsEmptyInput(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	grades, err := repo.FetchByEnrollments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, grades)
	assert.NoError(t, mock.ExpectationsWereMet())
}
