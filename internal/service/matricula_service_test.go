package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/pkg/config"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

type fakeMatriculaReader struct {
	max       string
	err       error
	gotPrefix string
	gotSchool string
	calls     int
}

func (f *fakeMatriculaReader) MaxMatricula(_ context.Context, prefix, schoolID string) (string, error) {
	f.calls++
	f.gotPrefix = prefix
	f.gotSchool = schoolID
	return f.max, f.err
}

func TestMatriculaServiceFirstOfYear(t *testing.T) {
	reader := &fakeMatriculaReader{max: ""}
	svc := NewMatriculaService(reader, config.MatriculaConfig{Policy: config.MatriculaPolicyYear}, nil)

	matricula, err := svc.Next(context.Background(), "school-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, "20260001", matricula)
	assert.Equal(t, "2026", reader.gotPrefix)
	assert.Empty(t, reader.gotSchool, "year policy must not narrow by school")
}

func TestMatriculaServiceIncrementsHighest(t *testing.T) {
	reader := &fakeMatriculaReader{max: "20260041"}
	svc := NewMatriculaService(reader, config.MatriculaConfig{Policy: config.MatriculaPolicyYear}, nil)

	matricula, err := svc.Next(context.Background(), "school-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, "20260042", matricula)
}

func TestMatriculaServiceSchoolYearPolicyNarrowsScan(t *testing.T) {
	reader := &fakeMatriculaReader{max: "20260003"}
	svc := NewMatriculaService(reader, config.MatriculaConfig{Policy: config.MatriculaPolicySchoolYear}, nil)

	matricula, err := svc.Next(context.Background(), "school-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, "20260004", matricula)
	assert.Equal(t, "school-1", reader.gotSchool)
}

func TestMatriculaServiceExhaustedSequence(t *testing.T) {
	reader := &fakeMatriculaReader{max: "20269999"}
	svc := NewMatriculaService(reader, config.MatriculaConfig{Policy: config.MatriculaPolicyYear}, nil)

	_, err := svc.Next(context.Background(), "school-1", 2026)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIdentifierExhausted.Code, appErrors.FromError(err).Code)
}

func TestMatriculaServiceMalformedStoredValue(t *testing.T) {
	reader := &fakeMatriculaReader{max: "2026XYZW"}
	svc := NewMatriculaService(reader, config.MatriculaConfig{Policy: config.MatriculaPolicyYear}, nil)

	_, err := svc.Next(context.Background(), "school-1", 2026)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestMatriculaServiceMaxRetriesDefault(t *testing.T) {
	svc := NewMatriculaService(&fakeMatriculaReader{}, config.MatriculaConfig{}, nil)
	assert.Equal(t, 5, svc.MaxRetries())

	svc = NewMatriculaService(&fakeMatriculaReader{}, config.MatriculaConfig{MaxRetries: 3}, nil)
	assert.Equal(t, 3, svc.MaxRetries())
}
