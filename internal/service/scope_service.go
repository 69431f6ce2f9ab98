package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/internal/models"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type scopeRepository interface {
	SchoolIDsForManager(ctx context.Context, userID string) ([]string, error)
	ClassIDsForTeacher(ctx context.Context, teacherID string) ([]string, error)
	SchoolIDsForClasses(ctx context.Context, classIDs []string) ([]string, error)
}

type scopeTeacherReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

// ScopeResolver narrows an acting user to the schools and classes it
// may touch. It is the only place that inspects the raw role; the rest
// of the system consumes the resolved ActingScope.
type ScopeResolver interface {
	ScopeFor(ctx context.Context, claims *models.JWTClaims) (models.ActingScope, error)
}

// ScopeService is the storage-backed ScopeResolver.
type ScopeService struct {
	repo     scopeRepository
	teachers scopeTeacherReader
	logger   *zap.Logger
}

// NewScopeService constructs the resolver.
func NewScopeService(repo scopeRepository, teachers scopeTeacherReader, logger *zap.Logger) *ScopeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeService{repo: repo, teachers: teachers, logger: logger}
}

// ScopeFor resolves the acting scope for the authenticated claims.
// Admins see every school; managers see the schools they administer;
// teachers see their linked classes and the schools those classes
// belong to. Any other role gets an empty scope.
func (s *ScopeService) ScopeFor(ctx context.Context, claims *models.JWTClaims) (models.ActingScope, error) {
	if claims == nil {
		return models.ActingScope{}, appErrors.ErrUnauthorized
	}

	scope := models.ActingScope{UserID: claims.UserID, Role: claims.Role}

	switch claims.Role {
	case models.RoleAdmin:
		scope.AllSchools = true
	case models.RoleManager:
		schoolIDs, err := s.repo.SchoolIDsForManager(ctx, claims.UserID)
		if err != nil {
			return models.ActingScope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve manager scope")
		}
		scope.SchoolIDs = schoolIDs
	case models.RoleTeacher:
		teacher, err := s.teachers.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if err == sql.ErrNoRows {
				return scope, nil
			}
			return models.ActingScope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
		}
		classIDs, err := s.repo.ClassIDsForTeacher(ctx, teacher.ID)
		if err != nil {
			return models.ActingScope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher classes")
		}
		scope.ClassIDs = classIDs
		schoolIDs, err := s.repo.SchoolIDsForClasses(ctx, classIDs)
		if err != nil {
			return models.ActingScope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher schools")
		}
		scope.SchoolIDs = schoolIDs
	}

	return scope, nil
}
