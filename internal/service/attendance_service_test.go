package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/internal/models"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	upserted []models.AttendanceRecord
	sheet    []models.AttendanceSheetRow
	history  []models.AttendanceRecord
}

func (f *fakeAttendanceRepo) BulkUpsert(_ context.Context, records []models.AttendanceRecord) (int, error) {
	f.upserted = records
	return len(records), nil
}

func (f *fakeAttendanceRepo) Sheet(_ context.Context, classID string, date time.Time) ([]models.AttendanceSheetRow, error) {
	return f.sheet, nil
}

func (f *fakeAttendanceRepo) HistoryByEnrollment(_ context.Context, enrollmentID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	return f.history, nil
}

type fakeEnrollmentResolver struct {
	active map[string]string
}

func (f *fakeEnrollmentResolver) ResolveActiveByClass(_ context.Context, classID string, studentIDs []string) (map[string]string, error) {
	return f.active, nil
}

type fakeClassReader struct {
	classes map[string]*models.Class
}

func (f *fakeClassReader) FindByID(_ context.Context, id string) (*models.Class, error) {
	if c, ok := f.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func newAttendanceFixture(active map[string]string) (*AttendanceService, *fakeAttendanceRepo) {
	repo := &fakeAttendanceRepo{}
	classes := &fakeClassReader{classes: map[string]*models.Class{
		"class-1": {ID: "class-1", SchoolID: "school-1", Name: "6A"},
		"class-2": {ID: "class-2", SchoolID: "school-1", Name: "6B"},
	}}
	svc := NewAttendanceService(repo, &fakeEnrollmentResolver{active: active}, classes, nil, nil, nil)
	return svc, repo
}

func teacherScope(classIDs, schoolIDs []string) models.ActingScope {
	return models.ActingScope{UserID: "user-1", Role: models.RoleTeacher, SchoolIDs: schoolIDs, ClassIDs: classIDs}
}

func TestAttendanceServiceRecordSkipsUnenrolledStudents(t *testing.T) {
	svc, repo := newAttendanceFixture(map[string]string{"student-1": "enrollment-1"})

	result, err := svc.Record(context.Background(), "class-1", RecordAttendanceRequest{
		Date: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		Entries: []models.AttendanceEntry{
			{StudentID: "student-1", Present: true},
			{StudentID: "student-ghost", Present: false},
		},
	}, managerScope("school-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Persisted)
	assert.Equal(t, []string{"student-ghost"}, result.Skipped)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "enrollment-1", repo.upserted[0].EnrollmentID)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), repo.upserted[0].Date, "date normalised to midnight")
}

func TestAttendanceServiceRecordLastEntryWinsOnDuplicate(t *testing.T) {
	svc, repo := newAttendanceFixture(map[string]string{"student-1": "enrollment-1"})

	result, err := svc.Record(context.Background(), "class-1", RecordAttendanceRequest{
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Entries: []models.AttendanceEntry{
			{StudentID: "student-1", Present: true},
			{StudentID: "student-1", Present: false},
		},
	}, managerScope("school-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Persisted)
	require.Len(t, repo.upserted, 1)
	assert.False(t, repo.upserted[0].Present)
}

func TestAttendanceServiceRecordOutOfScopeClass(t *testing.T) {
	svc, _ := newAttendanceFixture(nil)

	_, err := svc.Record(context.Background(), "class-1", RecordAttendanceRequest{
		Date:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Entries: []models.AttendanceEntry{{StudentID: "student-1", Present: true}},
	}, managerScope("school-other"))
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestAttendanceServiceRecordTeacherBoundToLinkedClasses(t *testing.T) {
	svc, repo := newAttendanceFixture(map[string]string{"student-1": "enrollment-1"})
	scope := teacherScope([]string{"class-1"}, []string{"school-1"})
	req := RecordAttendanceRequest{
		Date:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Entries: []models.AttendanceEntry{{StudentID: "student-1", Present: true}},
	}

	_, err := svc.Record(context.Background(), "class-2", req, scope)
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status, "sibling class in the same school stays out of reach")
	assert.Empty(t, repo.upserted)

	result, err := svc.Record(context.Background(), "class-1", req, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Persisted)
}

func TestAttendanceServiceRecordEmptyBatchRejected(t *testing.T) {
	svc, _ := newAttendanceFixture(nil)

	_, err := svc.Record(context.Background(), "class-1", RecordAttendanceRequest{
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}, managerScope("school-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSheet(t *testing.T) {
	svc, repo := newAttendanceFixture(nil)
	repo.sheet = []models.AttendanceSheetRow{
		{StudentID: "student-1", Present: true, Recorded: true},
		{StudentID: "student-2", Present: false, Recorded: false},
	}

	rows, err := svc.Sheet(context.Background(), "class-1", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), managerScope("school-1"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
