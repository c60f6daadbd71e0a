package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-review-api/internal/models"
	appErrors "github.com/noah-isme/project-review-api/pkg/errors"
)

type mockProjectRepo struct {
	projects map[string]models.Project
	updated  []models.Project
}

func (m *mockProjectRepo) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error) {
	var result []models.ProjectDetail
	for _, p := range m.projects {
		if filter.StudentID != "" && filter.StudentID != p.StudentID {
			continue
		}
		if filter.State != "" && filter.State != p.State {
			continue
		}
		result = append(result, models.ProjectDetail{Project: p})
	}
	return result, len(result), nil
}

func (m *mockProjectRepo) FindByID(ctx context.Context, id string) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m *mockProjectRepo) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ProjectDetail{Project: p}, nil
}

func (m *mockProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if m.projects == nil {
		m.projects = make(map[string]models.Project)
	}
	if project.ID == "" {
		project.ID = "generated-id"
	}
	m.projects[project.ID] = *project
	return nil
}

func (m *mockProjectRepo) Update(ctx context.Context, project *models.Project) error {
	m.projects[project.ID] = *project
	m.updated = append(m.updated, *project)
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, id string) error {
	delete(m.projects, id)
	return nil
}

type mockInvalidator struct {
	invalidated []string
}

func (m *mockInvalidator) InvalidateStudent(ctx context.Context, studentID string) error {
	m.invalidated = append(m.invalidated, studentID)
	return nil
}

func gradePtr(v float64) *float64 { return &v }

func seedProject(state models.ProjectState, grade *float64) models.Project {
	return models.Project{
		ID:           "p1",
		Title:        "Sistema de riego",
		StudentID:    "student-1",
		DocumentPath: "uploads/riego.pdf",
		State:        state,
		Grade:        grade,
		SubmittedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

var (
	teacherActor = models.Actor{ID: "teacher-1", Role: models.RoleTeacher}
	ownerActor   = models.Actor{ID: "student-1", Role: models.RoleStudent}
	otherActor   = models.Actor{ID: "student-2", Role: models.RoleStudent}
)

func newProjectService(repo *mockProjectRepo, inv *mockInvalidator) *ProjectService {
	return NewProjectService(repo, inv, nil, nil, nil)
}

func TestCanEdit(t *testing.T) {
	svc := newProjectService(&mockProjectRepo{}, nil)

	submitted := seedProject(models.StateSubmitted, nil)
	approved := seedProject(models.StateApproved, gradePtr(4.5))

	assert.True(t, svc.CanEdit(teacherActor, &submitted))
	assert.True(t, svc.CanEdit(teacherActor, &approved), "teachers edit regardless of state")
	assert.True(t, svc.CanEdit(ownerActor, &submitted))
	assert.False(t, svc.CanEdit(ownerActor, &approved), "approval locks the owner out")
	assert.False(t, svc.CanEdit(otherActor, &submitted))
}

func TestCanDelete(t *testing.T) {
	svc := newProjectService(&mockProjectRepo{}, nil)

	submitted := seedProject(models.StateSubmitted, nil)
	approved := seedProject(models.StateApproved, gradePtr(4.5))

	assert.True(t, svc.CanDelete(ownerActor, &submitted))
	assert.False(t, svc.CanDelete(ownerActor, &approved))
	assert.False(t, svc.CanDelete(teacherActor, &submitted), "deletion is owner-only")
	assert.False(t, svc.CanDelete(otherActor, &submitted))
}

func TestCreateProject(t *testing.T) {
	repo := &mockProjectRepo{}
	svc := newProjectService(repo, nil)

	project, err := svc.Create(context.Background(), ownerActor, CreateProjectRequest{
		Title:        "Sistema de riego",
		Description:  "Riego automatizado",
		DocumentPath: "uploads/riego.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StateSubmitted, project.State)
	assert.Nil(t, project.Grade)
	assert.Equal(t, "student-1", project.StudentID)
	assert.False(t, project.SubmittedAt.IsZero())
}

func TestCreateProjectRejectsTeacher(t *testing.T) {
	svc := newProjectService(&mockProjectRepo{}, nil)

	_, err := svc.Create(context.Background(), teacherActor, CreateProjectRequest{
		Title:        "Proyecto",
		DocumentPath: "uploads/doc.pdf",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCreateProjectRejectsBadExtension(t *testing.T) {
	svc := newProjectService(&mockProjectRepo{}, nil)

	_, err := svc.Create(context.Background(), ownerActor, CreateProjectRequest{
		Title:        "Proyecto",
		DocumentPath: "uploads/malware.exe",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestChangeStateRequiresTeacher(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateSubmitted, nil)}}
	svc := newProjectService(repo, nil)

	_, err := svc.ChangeState(context.Background(), ownerActor, "p1", ChangeStateRequest{State: models.StateInReview})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestChangeStateRejectsUnknownState(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateSubmitted, nil)}}
	svc := newProjectService(repo, nil)

	_, err := svc.ChangeState(context.Background(), teacherActor, "p1", ChangeStateRequest{State: "ARCHIVED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestChangeStateRejectsGradeOutOfRange(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateSubmitted, nil)}}
	svc := newProjectService(repo, nil)

	for _, grade := range []float64{-0.1, 5.1} {
		_, err := svc.ChangeState(context.Background(), teacherActor, "p1", ChangeStateRequest{
			State: models.StateInReview,
			Grade: gradePtr(grade),
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestChangeStateGradeBoundsInclusive(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateSubmitted, nil)}}
	svc := newProjectService(repo, &mockInvalidator{})

	for _, grade := range []float64{0.0, 5.0} {
		_, err := svc.ChangeState(context.Background(), teacherActor, "p1", ChangeStateRequest{
			State: models.StateInReview,
			Grade: gradePtr(grade),
		})
		require.NoError(t, err)
	}
}

func TestChangeStateApproveWithoutGrade(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateInReview, nil)}}
	svc := newProjectService(repo, nil)

	_, err := svc.ChangeState(context.Background(), teacherActor, "p1", ChangeStateRequest{State: models.StateApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestChangeStateApproveWithStoredGrade(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateInReview, gradePtr(4.0))}}
	inv := &mockInvalidator{}
	svc := newProjectService(repo, inv)

	project, err := svc.ChangeState(context.Background(), teacherActor, "p1", ChangeStateRequest{State: models.StateApproved})
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, project.State)
	assert.Equal(t, 4.0, *project.Grade)
	require.NotNil(t, project.ReviewedAt)
	assert.Equal(t, []string{"student-1"}, inv.invalidated)
}

func TestChangeStateRefreshesReviewedAt(t *testing.T) {
	earlier := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	project := seedProject(models.StateInReview, gradePtr(3.0))
	project.ReviewedAt = &earlier
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": project}}
	svc := newProjectService(repo, &mockInvalidator{})

	updated, err := svc.ChangeState(context.Background(), teacherActor, "p1", ChangeStateRequest{State: models.StateInReview})
	require.NoError(t, err)
	require.NotNil(t, updated.ReviewedAt)
	assert.True(t, updated.ReviewedAt.After(earlier), "review timestamp refreshes on every transition")
}

func TestChangeStateNotFound(t *testing.T) {
	svc := newProjectService(&mockProjectRepo{projects: map[string]models.Project{}}, nil)

	_, err := svc.ChangeState(context.Background(), teacherActor, "missing", ChangeStateRequest{State: models.StateInReview})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateProjectLockedAfterApproval(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateApproved, gradePtr(4.2))}}
	svc := newProjectService(repo, nil)

	_, err := svc.Update(context.Background(), ownerActor, "p1", UpdateProjectRequest{
		Title:        "Nuevo título",
		DocumentPath: "uploads/v2.pdf",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), teacherActor, "p1", UpdateProjectRequest{
		Title:        "Nuevo título",
		DocumentPath: "uploads/v2.pdf",
	})
	require.NoError(t, err, "teachers edit approved projects")
}

func TestDeleteProject(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateSubmitted, nil)}}
	inv := &mockInvalidator{}
	svc := newProjectService(repo, inv)

	require.NoError(t, svc.Delete(context.Background(), ownerActor, "p1"))
	assert.Empty(t, repo.projects)
	assert.Equal(t, []string{"student-1"}, inv.invalidated)
}

func TestDeleteProjectForbidden(t *testing.T) {
	cases := []struct {
		name  string
		actor models.Actor
		state models.ProjectState
	}{
		{"teacher is not the owner", teacherActor, models.StateSubmitted},
		{"other student", otherActor, models.StateSubmitted},
		{"owner after approval", ownerActor, models.StateApproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grade := gradePtr(4.0)
			if tc.state != models.StateApproved {
				grade = nil
			}
			repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(tc.state, grade)}}
			svc := newProjectService(repo, nil)

			err := svc.Delete(context.Background(), tc.actor, "p1")
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
			assert.Len(t, repo.projects, 1)
		})
	}
}

func TestListScopesStudentsToOwnProjects(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{
		"p1": seedProject(models.StateSubmitted, nil),
	}}
	other := seedProject(models.StateSubmitted, nil)
	other.ID = "p2"
	other.StudentID = "student-2"
	repo.projects["p2"] = other
	svc := newProjectService(repo, nil)

	projects, _, err := svc.List(context.Background(), ownerActor, models.ProjectFilter{})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "student-1", projects[0].StudentID)

	projects, _, err = svc.List(context.Background(), teacherActor, models.ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestGetScopesStudents(t *testing.T) {
	repo := &mockProjectRepo{projects: map[string]models.Project{"p1": seedProject(models.StateSubmitted, nil)}}
	svc := newProjectService(repo, nil)

	_, err := svc.Get(context.Background(), otherActor, "p1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	detail, err := svc.Get(context.Background(), ownerActor, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", detail.ID)
}
