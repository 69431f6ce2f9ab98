package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/internal/models"
)

type fakeScopeRepo struct {
	managerSchools []string
	teacherClasses []string
	classSchools   []string
}

func (f *fakeScopeRepo) SchoolIDsForManager(_ context.Context, userID string) ([]string, error) {
	return f.managerSchools, nil
}

func (f *fakeScopeRepo) ClassIDsForTeacher(_ context.Context, teacherID string) ([]string, error) {
	return f.teacherClasses, nil
}

func (f *fakeScopeRepo) SchoolIDsForClasses(_ context.Context, classIDs []string) ([]string, error) {
	return f.classSchools, nil
}

type fakeScopeTeacherReader struct {
	teacher *models.Teacher
}

func (f *fakeScopeTeacherReader) FindByUserID(_ context.Context, userID string) (*models.Teacher, error) {
	if f.teacher == nil {
		return nil, sql.ErrNoRows
	}
	return f.teacher, nil
}

func TestScopeServiceAdminSeesAllSchools(t *testing.T) {
	svc := NewScopeService(&fakeScopeRepo{}, &fakeScopeTeacherReader{}, nil)

	scope, err := svc.ScopeFor(context.Background(), &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, scope.AllSchools)
	assert.True(t, scope.AllowsSchool("any-school"))
}

func TestScopeServiceManagerScopedToSchools(t *testing.T) {
	svc := NewScopeService(&fakeScopeRepo{managerSchools: []string{"school-1", "school-2"}}, &fakeScopeTeacherReader{}, nil)

	scope, err := svc.ScopeFor(context.Background(), &models.JWTClaims{UserID: "user-1", Role: models.RoleManager})
	require.NoError(t, err)
	assert.False(t, scope.AllSchools)
	assert.True(t, scope.AllowsSchool("school-1"))
	assert.False(t, scope.AllowsSchool("school-9"))
}

func TestScopeServiceTeacherScopedToClasses(t *testing.T) {
	repo := &fakeScopeRepo{teacherClasses: []string{"class-1"}, classSchools: []string{"school-1"}}
	teachers := &fakeScopeTeacherReader{teacher: &models.Teacher{ID: "teacher-1"}}
	svc := NewScopeService(repo, teachers, nil)

	scope, err := svc.ScopeFor(context.Background(), &models.JWTClaims{UserID: "user-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.True(t, scope.AllowsClass("class-1", "school-1"))
	assert.False(t, scope.AllowsClass("class-2", "school-1"), "linked classes bind, sibling classes stay out of reach")
	assert.False(t, scope.AllowsClass("class-9", "school-9"))
	assert.True(t, scope.AllowsSchool("school-1"), "school authority survives for school-level reads")
}

func TestScopeServiceManagerCoversEveryClassInSchool(t *testing.T) {
	svc := NewScopeService(&fakeScopeRepo{managerSchools: []string{"school-1"}}, &fakeScopeTeacherReader{}, nil)

	scope, err := svc.ScopeFor(context.Background(), &models.JWTClaims{UserID: "user-1", Role: models.RoleManager})
	require.NoError(t, err)
	assert.True(t, scope.AllowsClass("class-1", "school-1"))
	assert.True(t, scope.AllowsClass("class-2", "school-1"))
	assert.False(t, scope.AllowsClass("class-9", "school-9"))
}

func TestScopeServiceTeacherWithoutProfileGetsEmptyScope(t *testing.T) {
	svc := NewScopeService(&fakeScopeRepo{}, &fakeScopeTeacherReader{}, nil)

	scope, err := svc.ScopeFor(context.Background(), &models.JWTClaims{UserID: "user-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Empty(t, scope.SchoolIDs)
	assert.Empty(t, scope.ClassIDs)
	assert.False(t, scope.AllowsSchool("school-1"))
}

func TestScopeServiceNilClaims(t *testing.T) {
	svc := NewScopeService(&fakeScopeRepo{}, &fakeScopeTeacherReader{}, nil)

	_, err := svc.ScopeFor(context.Background(), nil)
	assert.Error(t, err)
}

func TestScopeServiceStudentGetsEmptyScope(t *testing.T) {
	svc := NewScopeService(&fakeScopeRepo{}, &fakeScopeTeacherReader{}, nil)

	scope, err := svc.ScopeFor(context.Background(), &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.False(t, scope.AllSchools)
	assert.Empty(t, scope.SchoolIDs)
}
