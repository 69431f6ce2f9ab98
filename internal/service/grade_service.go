package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/pkg/config"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type gradeRepository interface {
	BulkUpsert(ctx context.Context, grades []models.GradeRecord) (int, error)
	GradebookRoster(ctx context.Context, classID string) ([]models.GradebookStudent, error)
	FetchByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]models.GradeRecordDetail, error)
	ListByEnrollmentAndSubject(ctx context.Context, enrollmentID, subjectID string) ([]models.GradeRecord, error)
}

type gradeEnrollmentResolver interface {
	ResolveActiveByClass(ctx context.Context, classID string, studentIDs []string) (map[string]string, error)
}

type gradeClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type gradeOfferChecker interface {
	OfferExists(ctx context.Context, classID, subjectID string) (bool, error)
}

type gradebookCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RecordGradesRequest is a submitted grade batch: one subject, one
// assessment, many students.
type RecordGradesRequest struct {
	SubjectID      string                `json:"subject_id" validate:"required"`
	AssessmentType models.AssessmentType `json:"assessment_type" validate:"required"`
	Period         string                `json:"period" validate:"required"`
	AssessedOn     time.Time             `json:"assessed_on" validate:"required"`
	Entries        []models.GradeEntry   `json:"entries" validate:"required,min=1,dive"`
}

// GradeService keeps the per-assessment grade ledger. Values are
// bounds-checked before any row is written so one bad entry rejects
// the whole batch instead of persisting half of it.
type GradeService struct {
	grades      gradeRepository
	enrollments gradeEnrollmentResolver
	classes     gradeClassReader
	roster      gradeOfferChecker
	cache       gradebookCache
	metrics     *MetricsService
	policy      config.GradePolicyConfig
	gradebook   config.GradebookConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs the service. cache and metrics may be nil.
func NewGradeService(
	grades gradeRepository,
	enrollments gradeEnrollmentResolver,
	classes gradeClassReader,
	roster gradeOfferChecker,
	cache gradebookCache,
	metrics *MetricsService,
	policy config.GradePolicyConfig,
	gradebook config.GradebookConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:      grades,
		enrollments: enrollments,
		classes:     classes,
		roster:      roster,
		cache:       cache,
		metrics:     metrics,
		policy:      policy,
		gradebook:   gradebook,
		validator:   validate,
		logger:      logger,
	}
}

func (s *GradeService) classInScope(ctx context.Context, classID string, scope models.ActingScope) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !scope.AllowsClass(class.ID, class.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrOutOfScope, "class not found")
	}
	return class, nil
}

func gradebookCacheKey(classID string) string {
	return fmt.Sprintf("gradebook:%s", classID)
}

// Record persists a grade batch for one class, subject and assessment.
// The subject must be offered in the class, every value must sit within
// the configured bounds, and students without an active enrollment are
// skipped and reported back.
func (s *GradeService) Record(ctx context.Context, classID string, req RecordGradesRequest, scope models.ActingScope) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !req.AssessmentType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown assessment type")
	}
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return nil, err
	}
	offered, err := s.roster.OfferExists(ctx, class.ID, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject offer")
	}
	if !offered {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject is not offered in this class")
	}

	for _, entry := range req.Entries {
		if entry.Value < s.policy.MinValue || entry.Value > s.policy.MaxValue {
			return nil, appErrors.Clone(appErrors.ErrOutOfRange,
				fmt.Sprintf("grade %.2f for student %s outside [%.2f, %.2f]", entry.Value, entry.StudentID, s.policy.MinValue, s.policy.MaxValue))
		}
	}

	studentIDs := make([]string, 0, len(req.Entries))
	for _, entry := range req.Entries {
		studentIDs = append(studentIDs, entry.StudentID)
	}
	active, err := s.enrollments.ResolveActiveByClass(ctx, class.ID, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrollments")
	}

	assessedOn := req.AssessedOn.Truncate(24 * time.Hour)
	records := make([]models.GradeRecord, 0, len(req.Entries))
	byEnrollment := make(map[string]int, len(req.Entries))
	var skipped []string
	for _, entry := range req.Entries {
		enrollmentID, ok := active[entry.StudentID]
		if !ok {
			skipped = append(skipped, entry.StudentID)
			continue
		}
		record := models.GradeRecord{
			EnrollmentID:   enrollmentID,
			SubjectID:      req.SubjectID,
			AssessmentType: req.AssessmentType,
			Period:         req.Period,
			AssessedOn:     assessedOn,
			Value:          entry.Value,
		}
		if idx, seen := byEnrollment[enrollmentID]; seen {
			records[idx] = record
			continue
		}
		byEnrollment[enrollmentID] = len(records)
		records = append(records, record)
	}

	persisted, err := s.grades.BulkUpsert(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist grades")
	}
	s.invalidateGradebook(ctx, class.ID)
	s.metrics.ObserveBatch("grades", persisted, len(skipped))
	if len(skipped) > 0 {
		s.logger.Warn("grade entries skipped",
			zap.String("class_id", class.ID),
			zap.String("subject_id", req.SubjectID),
			zap.Strings("student_ids", skipped))
	}
	return &models.BatchResult{Persisted: persisted, Skipped: skipped}, nil
}

// Gradebook assembles the full class view: the active roster with each
// student's grades nested, built from two queries. Results are cached
// per class when caching is enabled and invalidated on every write.
func (s *GradeService) Gradebook(ctx context.Context, classID string, scope models.ActingScope) (*models.Gradebook, error) {
	class, err := s.classInScope(ctx, classID, scope)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled() {
		var cached models.Gradebook
		if err := s.cache.Get(ctx, gradebookCacheKey(class.ID), &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	roster, err := s.grades.GradebookRoster(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gradebook roster")
	}
	enrollmentIDs := make([]string, 0, len(roster))
	for _, student := range roster {
		enrollmentIDs = append(enrollmentIDs, student.EnrollmentID)
	}
	grades, err := s.grades.FetchByEnrollments(ctx, enrollmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	for i := range roster {
		roster[i].Grades = grades[roster[i].EnrollmentID]
	}

	book := &models.Gradebook{ClassID: class.ID, ClassName: class.Name, Students: roster}
	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, gradebookCacheKey(class.ID), book, s.gradebook.CacheTTL); err != nil {
			s.logger.Warn("failed to cache gradebook", zap.String("class_id", class.ID), zap.Error(err))
		}
	}
	return book, nil
}

// StudentSubjectGrades returns the grades one enrollment holds for one
// subject, oldest first.
func (s *GradeService) StudentSubjectGrades(ctx context.Context, enrollmentID, subjectID string) ([]models.GradeRecord, error) {
	grades, err := s.grades.ListByEnrollmentAndSubject(ctx, enrollmentID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

func (s *GradeService) cacheEnabled() bool {
	return s.cache != nil && s.gradebook.CacheEnabled
}

func (s *GradeService) invalidateGradebook(ctx context.Context, classID string) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, gradebookCacheKey(classID)); err != nil {
		s.logger.Warn("failed to invalidate gradebook cache", zap.String("class_id", classID), zap.Error(err))
	}
}
