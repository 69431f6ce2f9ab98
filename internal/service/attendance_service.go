package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/internal/models"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type attendanceRepository interface {
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) (int, error)
	Sheet(ctx context.Context, classID string, date time.Time) ([]models.AttendanceSheetRow, error)
	HistoryByEnrollment(ctx context.Context, enrollmentID string, from, to *time.Time) ([]models.AttendanceRecord, error)
}

type attendanceEnrollmentResolver interface {
	ResolveActiveByClass(ctx context.Context, classID string, studentIDs []string) (map[string]string, error)
}

type attendanceClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// RecordAttendanceRequest is a submitted attendance sheet for one
// class and date.
type RecordAttendanceRequest struct {
	Date    time.Time                `json:"date" validate:"required"`
	Entries []models.AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService keeps the per-day presence ledger for class
// rosters. Records attach to enrollments, not students, so history
// survives transfers.
type AttendanceService struct {
	attendance  attendanceRepository
	enrollments attendanceEnrollmentResolver
	classes     attendanceClassReader
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the service. metrics may be nil.
func NewAttendanceService(
	attendance attendanceRepository,
	enrollments attendanceEnrollmentResolver,
	classes attendanceClassReader,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		attendance:  attendance,
		enrollments: enrollments,
		classes:     classes,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

func (s *AttendanceService) classInScope(ctx context.Context, classID string, scope models.ActingScope) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !scope.AllowsClass(class.ID, class.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "class not found")
	}
	return class, nil
}

// Record persists an attendance sheet for one class and date. Entries
// for students without an active enrollment in the class are skipped
// and reported back; the rest of the batch commits atomically. When a
// student appears twice the last entry wins, matching the upsert
// semantics of re-submitted sheets.
func (s *AttendanceService) Record(ctx context.Context, classID string, req RecordAttendanceRequest, scope models.ActingScope) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return nil, err
	}

	studentIDs := make([]string, 0, len(req.Entries))
	for _, entry := range req.Entries {
		studentIDs = append(studentIDs, entry.StudentID)
	}
	active, err := s.enrollments.ResolveActiveByClass(ctx, class.ID, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrollments")
	}

	date := req.Date.Truncate(24 * time.Hour)
	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	byEnrollment := make(map[string]int, len(req.Entries))
	var skipped []string
	for _, entry := range req.Entries {
		enrollmentID, ok := active[entry.StudentID]
		if !ok {
			skipped = append(skipped, entry.StudentID)
			continue
		}
		record := models.AttendanceRecord{EnrollmentID: enrollmentID, Date: date, Present: entry.Present}
		if idx, seen := byEnrollment[enrollmentID]; seen {
			records[idx] = record
			continue
		}
		byEnrollment[enrollmentID] = len(records)
		records = append(records, record)
	}

	persisted, err := s.attendance.BulkUpsert(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist attendance")
	}
	s.metrics.ObserveBatch("attendance", persisted, len(skipped))
	if len(skipped) > 0 {
		s.logger.Warn("attendance entries skipped",
			zap.String("class_id", class.ID),
			zap.Time("date", date),
			zap.Strings("student_ids", skipped))
	}
	return &models.BatchResult{Persisted: persisted, Skipped: skipped}, nil
}

// Sheet returns the class roster for a date with per-student presence
// and recorded flags.
func (s *AttendanceService) Sheet(ctx context.Context, classID string, date time.Time, scope models.ActingScope) ([]models.AttendanceSheetRow, error) {
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.attendance.Sheet(ctx, class.ID, date.Truncate(24*time.Hour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance sheet")
	}
	return rows, nil
}

// History returns recorded attendance for one enrollment, optionally
// bounded by a date range.
func (s *AttendanceService) History(ctx context.Context, enrollmentID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	records, err := s.attendance.HistoryByEnrollment(ctx, enrollmentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return records, nil
}
