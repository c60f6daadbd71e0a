package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-review-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func projectDetailColumns() []string {
	return []string{"id", "title", "description", "student_id", "document_path", "state", "grade",
		"submitted_at", "reviewed_at", "created_at", "updated_at", "student_name", "student_email", "total_comments"}
}

func TestProjectRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(projectDetailColumns()).
		AddRow("p1", "Sistema de riego", "", "s1", "uploads/riego.pdf", "SUBMITTED", nil, now, nil, now, now, "Ana García", "ana@example.com", 2)
	mock.ExpectQuery(`SELECT p\.id, p\.title, .+ FROM projects p\s+JOIN users u ON u\.id = p\.student_id`).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(p\.id\) FROM projects p`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ProjectFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Ana García", list[0].StudentName)
	assert.Equal(t, 2, list[0].TotalComments)
	assert.Nil(t, list[0].Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryListFiltersByState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery(`p\.state = \$1`).
		WithArgs("APPROVED").
		WillReturnRows(sqlmock.NewRows(projectDetailColumns()))
	mock.ExpectQuery(`SELECT COUNT\(p\.id\)`).
		WithArgs("APPROVED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.ProjectFilter{State: models.StateApproved})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectExec("INSERT INTO projects").
		WithArgs(sqlmock.AnyArg(), "Sistema de riego", "", "s1", "uploads/riego.pdf", "SUBMITTED",
			nil, sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	project := &models.Project{
		Title:        "Sistema de riego",
		StudentID:    "s1",
		DocumentPath: "uploads/riego.pdf",
		State:        models.StateSubmitted,
	}
	require.NoError(t, repo.Create(context.Background(), project))
	assert.NotEmpty(t, project.ID)
	assert.False(t, project.SubmittedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryUpdatePersistsStateAndGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	grade := 4.5
	reviewed := time.Now().UTC()
	mock.ExpectExec("UPDATE projects SET title").
		WithArgs("Sistema de riego", "", "uploads/riego.pdf", "APPROVED", grade, reviewed, sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Update(context.Background(), &models.Project{
		ID:           "p1",
		Title:        "Sistema de riego",
		DocumentPath: "uploads/riego.pdf",
		State:        models.StateApproved,
		Grade:        &grade,
		ReviewedAt:   &reviewed,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectExec("DELETE FROM projects WHERE id").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery("SELECT id, title").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "missing")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
