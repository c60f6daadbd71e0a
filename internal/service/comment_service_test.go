package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-review-api/internal/models"
	appErrors "github.com/noah-isme/project-review-api/pkg/errors"
	"github.com/noah-isme/project-review-api/pkg/jobs"
	"github.com/noah-isme/project-review-api/pkg/mailer"
)

type mockCommentRepo struct {
	comments []models.Comment
}

func (m *mockCommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	comment.ID = "c1"
	comment.CreatedAt = time.Now().UTC()
	m.comments = append(m.comments, *comment)
	return nil
}

func (m *mockCommentRepo) ListByProject(ctx context.Context, projectID string) ([]models.CommentDetail, error) {
	var result []models.CommentDetail
	for _, c := range m.comments {
		if c.ProjectID == projectID {
			result = append(result, models.CommentDetail{Comment: c})
		}
	}
	return result, nil
}

func (m *mockCommentRepo) Recent(ctx context.Context, limit int) ([]models.CommentDetail, error) {
	var result []models.CommentDetail
	for _, c := range m.comments {
		result = append(result, models.CommentDetail{Comment: c})
	}
	return result, nil
}

type mockDetailRepo struct {
	details map[string]models.ProjectDetail
}

func (m *mockDetailRepo) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	detail, ok := m.details[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &detail, nil
}

type mockUserFinder struct {
	users map[string]models.User
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

type mockNotifier struct {
	sent []mailer.CommentNotification
	err  error
}

func (m *mockNotifier) NotifyCommentCreated(ctx context.Context, n mailer.CommentNotification) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

type mockQueue struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

func commentFixture(state models.ProjectState) *mockDetailRepo {
	project := seedProject(state, nil)
	if state == models.StateApproved {
		project.Grade = gradePtr(4.0)
	}
	return &mockDetailRepo{details: map[string]models.ProjectDetail{
		"p1": {
			Project:      project,
			StudentName:  "Ana García",
			StudentEmail: "ana@example.com",
		},
	}}
}

func newCommentService(comments *mockCommentRepo, projects *mockDetailRepo, notifier mailer.Notifier, queue notificationQueue) *CommentService {
	users := &mockUserFinder{users: map[string]models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Prof. Díaz"},
		"student-1": {ID: "student-1", FullName: "Ana García"},
		"student-2": {ID: "student-2", FullName: "Luis Pérez"},
	}}
	return NewCommentService(comments, projects, users, notifier, queue, nil, nil, nil)
}

func TestCreateCommentNotifiesOwner(t *testing.T) {
	comments := &mockCommentRepo{}
	notifier := &mockNotifier{}
	svc := newCommentService(comments, commentFixture(models.StateSubmitted), notifier, nil)

	comment, err := svc.Create(context.Background(), teacherActor, "p1", CreateCommentRequest{Text: "Revisar la sección 2"})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", comment.AuthorID)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "ana@example.com", notifier.sent[0].StudentEmail)
	assert.Equal(t, "Prof. Díaz", notifier.sent[0].AuthorName)
}

func TestCreateCommentSkipsSelfNotification(t *testing.T) {
	comments := &mockCommentRepo{}
	notifier := &mockNotifier{}
	svc := newCommentService(comments, commentFixture(models.StateSubmitted), notifier, nil)

	_, err := svc.Create(context.Background(), ownerActor, "p1", CreateCommentRequest{Text: "Subí la corrección"})
	require.NoError(t, err)
	assert.Empty(t, notifier.sent, "authors are not notified about their own comments")
}

func TestCreateCommentSurvivesNotifierFailure(t *testing.T) {
	comments := &mockCommentRepo{}
	notifier := &mockNotifier{err: errors.New("smtp down")}
	svc := newCommentService(comments, commentFixture(models.StateSubmitted), notifier, nil)

	comment, err := svc.Create(context.Background(), teacherActor, "p1", CreateCommentRequest{Text: "Revisar"})
	require.NoError(t, err, "notification failure never fails the comment")
	assert.NotEmpty(t, comment.ID)
	assert.Len(t, comments.comments, 1)
}

func TestCreateCommentEnqueuesNotification(t *testing.T) {
	comments := &mockCommentRepo{}
	notifier := &mockNotifier{}
	queue := &mockQueue{}
	svc := newCommentService(comments, commentFixture(models.StateSubmitted), notifier, queue)

	_, err := svc.Create(context.Background(), teacherActor, "p1", CreateCommentRequest{Text: "Revisar"})
	require.NoError(t, err)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "comment_notification", queue.enqueued[0].Type)
	assert.Empty(t, notifier.sent, "queued notifications are not delivered inline")
}

func TestCreateCommentFallsBackWhenQueueDown(t *testing.T) {
	comments := &mockCommentRepo{}
	notifier := &mockNotifier{}
	queue := &mockQueue{err: errors.New("queue not started")}
	svc := newCommentService(comments, commentFixture(models.StateSubmitted), notifier, queue)

	_, err := svc.Create(context.Background(), teacherActor, "p1", CreateCommentRequest{Text: "Revisar"})
	require.NoError(t, err)
	assert.Len(t, notifier.sent, 1)
}

func TestStudentCannotCommentApprovedProject(t *testing.T) {
	comments := &mockCommentRepo{}
	svc := newCommentService(comments, commentFixture(models.StateApproved), &mockNotifier{}, nil)

	_, err := svc.Create(context.Background(), ownerActor, "p1", CreateCommentRequest{Text: "Gracias"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, comments.comments)
}

func TestApprovalLocksCommentsForEveryone(t *testing.T) {
	comments := &mockCommentRepo{}
	svc := newCommentService(comments, commentFixture(models.StateApproved), &mockNotifier{}, nil)

	for _, actor := range []models.Actor{teacherActor, ownerActor, otherActor} {
		_, err := svc.Create(context.Background(), actor, "p1", CreateCommentRequest{Text: "Felicitaciones"})
		require.Error(t, err, "role %s", actor.Role)
		assert.Equal(t, appErrors.ErrPolicyViolation.Code, appErrors.FromError(err).Code)
	}
	assert.Empty(t, comments.comments)
}

func TestAnyActorCommentsWhileUnlocked(t *testing.T) {
	comments := &mockCommentRepo{}
	notifier := &mockNotifier{}
	svc := newCommentService(comments, commentFixture(models.StateSubmitted), notifier, nil)

	comment, err := svc.Create(context.Background(), otherActor, "p1", CreateCommentRequest{Text: "Hola"})
	require.NoError(t, err, "commenting is not restricted to the owner or teachers")
	assert.Equal(t, "student-2", comment.AuthorID)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "ana@example.com", notifier.sent[0].StudentEmail)
}

func TestCreateCommentValidatesText(t *testing.T) {
	svc := newCommentService(&mockCommentRepo{}, commentFixture(models.StateSubmitted), &mockNotifier{}, nil)

	_, err := svc.Create(context.Background(), teacherActor, "p1", CreateCommentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateCommentProjectNotFound(t *testing.T) {
	svc := newCommentService(&mockCommentRepo{}, &mockDetailRepo{}, &mockNotifier{}, nil)

	_, err := svc.Create(context.Background(), teacherActor, "missing", CreateCommentRequest{Text: "Hola"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestListForProjectScopesStudents(t *testing.T) {
	comments := &mockCommentRepo{comments: []models.Comment{{ID: "c1", ProjectID: "p1", AuthorID: "teacher-1", Text: "Hola"}}}
	svc := newCommentService(comments, commentFixture(models.StateSubmitted), &mockNotifier{}, nil)

	_, err := svc.ListForProject(context.Background(), otherActor, "p1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	listed, err := svc.ListForProject(context.Background(), ownerActor, "p1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRecentCommentsTeacherOnly(t *testing.T) {
	svc := newCommentService(&mockCommentRepo{}, commentFixture(models.StateSubmitted), &mockNotifier{}, nil)

	_, err := svc.Recent(context.Background(), ownerActor, 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Recent(context.Background(), teacherActor, 10)
	require.NoError(t, err)
}
