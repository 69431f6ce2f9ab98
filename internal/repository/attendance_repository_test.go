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

func TestAttendanceRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{EnrollmentID: "enrollment-1", Date: date, Present: true},
		{EnrollmentID: "enrollment-2", Date: date, Present: false},
	}
	persisted, err := repo.BulkUpsert(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, persisted)
	assert.NotEmpty(t, records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertWritesInKeyOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance").
		WithArgs(sqlmock.AnyArg(), "enrollment-1", sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance").
		WithArgs(sqlmock.AnyArg(), "enrollment-2", sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := repo.BulkUpsert(context.Background(), []models.AttendanceRecord{
		{EnrollmentID: "enrollment-2", Date: date, Present: false},
		{EnrollmentID: "enrollment-1", Date: date, Present: true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertEmptyBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	persisted, err := repo.BulkUpsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, persisted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := repo.BulkUpsert(context.Background(), []models.AttendanceRecord{
		{EnrollmentID: "enrollment-1", Date: date, Present: true},
		{EnrollmentID: "enrollment-2", Date: date, Present: true},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySheetDistinguishesUnrecorded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT st.id AS student_id").
		WithArgs("class-1", date, models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "matricula", "present", "recorded"}).
			AddRow("student-1", "Ana Souza", "20260001", true, true).
			AddRow("student-2", "Bruno Lima", "20260002", false, false))

	rows, err := repo.Sheet(context.Background(), "class-1", date)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Recorded)
	assert.False(t, rows[1].Recorded)
	assert.False(t, rows[1].Present)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryHistoryByEnrollmentRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, enrollment_id, date, present, created_at, updated_at FROM attendance").
		WithArgs("enrollment-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "enrollment_id", "present"}).
			AddRow("attendance-1", "enrollment-1", true))

	records, err := repo.HistoryByEnrollment(context.Background(), "enrollment-1", &from, &to)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Present)
	assert.NoError(t, mock.ExpectationsWereMet())
}
