package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterRepositoryEnsureOfferIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectExec("INSERT INTO class_subjects").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, subject_id, created_at FROM class_subjects WHERE class_id = $1 AND subject_id = $2")).
		WithArgs("class-1", "subject-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "subject_id"}).
			AddRow("offer-1", "class-1", "subject-1"))

	offer, err := repo.EnsureOffer(context.Background(), "class-1", "subject-1")
	require.NoError(t, err)
	assert.Equal(t, "offer-1", offer.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryOfferExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery("SELECT 1 FROM class_subjects").
		WithArgs("class-1", "subject-1").
		WillReturnError(sql.ErrNoRows)

	offered, err := repo.OfferExists(context.Background(), "class-1", "subject-1")
	require.NoError(t, err)
	assert.False(t, offered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryAssignTeacherReplacesPreviousHolder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO teacher_class_links").
		WithArgs(sqlmock.AnyArg(), "teacher-2", "class-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, teacher_id, class_id, created_at FROM teacher_class_links").
		WithArgs("teacher-2", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "teacher_id", "class_id"}).
			AddRow("link-1", "teacher-2", "class-1"))
	mock.ExpectExec("INSERT INTO class_subjects").
		WithArgs(sqlmock.AnyArg(), "class-1", "subject-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_subject_assignments WHERE class_id = $1 AND subject_id = $2")).
		WithArgs("class-1", "subject-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO teacher_subject_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assignment, err := repo.AssignTeacherToSubject(context.Background(), "teacher-2", "subject-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "teacher-2", assignment.TeacherID)
	assert.Equal(t, "link-1", assignment.LinkID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryDeleteTeacherClassLinkMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectExec("DELETE FROM teacher_class_links").
		WithArgs("teacher-1", "class-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteTeacherClassLink(context.Background(), "teacher-1", "class-1")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryCountGradesForOffer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM grades g").
		WithArgs("class-1", "subject-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountGradesForOffer(context.Background(), "class-1", "subject-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryDeleteOffer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectExec("DELETE FROM class_subjects").
		WithArgs("class-1", "subject-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteOffer(context.Background(), "class-1", "subject-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
