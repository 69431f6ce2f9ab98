package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/pkg/config"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type matriculaReader interface {
	MaxMatricula(ctx context.Context, prefix, schoolID string) (string, error)
}

// MatriculaService generates enrollment numbers of the form
// {year}{NNNN}. The next value is always derived from storage, never
// held in process memory; uniqueness is guaranteed by the matrícula
// constraint on the students table plus bounded retry at the caller.
type MatriculaService struct {
	repo   matriculaReader
	policy config.MatriculaConfig
	logger *zap.Logger
}

// NewMatriculaService constructs the generator.
func NewMatriculaService(repo matriculaReader, policy config.MatriculaConfig, logger *zap.Logger) *MatriculaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatriculaService{repo: repo, policy: policy, logger: logger}
}

// MaxRetries exposes the configured retry budget for callers that
// insert with this generator.
func (s *MatriculaService) MaxRetries() int {
	if s.policy.MaxRetries > 0 {
		return s.policy.MaxRetries
	}
	return 5
}

// Next computes the next enrollment number for the year. Under the
// school_year policy the sequence restarts per school; under the year
// policy schoolID does not narrow the scan.
func (s *MatriculaService) Next(ctx context.Context, schoolID string, year int) (string, error) {
	prefix := strconv.Itoa(year)
	scopeSchool := ""
	if s.policy.Policy == config.MatriculaPolicySchoolYear {
		scopeSchool = schoolID
	}

	max, err := s.repo.MaxMatricula(ctx, prefix, scopeSchool)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan enrollment numbers")
	}

	next := 1
	if max != "" {
		suffix := strings.TrimPrefix(max, prefix)
		parsed, err := strconv.Atoi(suffix)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed enrollment number in storage")
		}
		next = parsed + 1
	}
	if next > 9999 {
		return "", appErrors.Clone(appErrors.ErrIdentifierExhausted, fmt.Sprintf("enrollment numbers exhausted for %d", year))
	}

	return fmt.Sprintf("%s%04d", prefix, next), nil
}
