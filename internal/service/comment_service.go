package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/project-review-api/internal/models"
	appErrors "github.com/noah-isme/project-review-api/pkg/errors"
	"github.com/noah-isme/project-review-api/pkg/jobs"
	"github.com/noah-isme/project-review-api/pkg/mailer"
)

type commentRepo interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByProject(ctx context.Context, projectID string) ([]models.CommentDetail, error)
	Recent(ctx context.Context, limit int) ([]models.CommentDetail, error)
}

type commentProjectRepo interface {
	FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type notificationQueue interface {
	Enqueue(job jobs.Job) error
}

// CreateCommentRequest is the payload for posting a comment on a project.
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// CommentService manages the append-only comment thread on projects and the
// best-effort notification to the project owner.
type CommentService struct {
	comments  commentRepo
	projects  commentProjectRepo
	users     userFinder
	notifier  mailer.Notifier
	queue     notificationQueue
	telemetry *TelemetryService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs a CommentService. The queue is optional; when
// absent, notifications are delivered synchronously but remain best-effort.
func NewCommentService(comments commentRepo, projects commentProjectRepo, users userFinder, notifier mailer.Notifier, queue notificationQueue, telemetry *TelemetryService, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		comments:  comments,
		projects:  projects,
		users:     users,
		notifier:  notifier,
		queue:     queue,
		telemetry: telemetry,
		validator: validate,
		logger:    logger,
	}
}

// CanComment reports whether the project still accepts comments. The rule
// is role-agnostic: approval locks the thread for everyone, teachers
// included.
func (s *CommentService) CanComment(project *models.ProjectDetail) bool {
	return project.AcceptsComments()
}

// Create appends a comment to a project's thread and notifies the project
// owner. Notification failure never fails the comment.
func (s *CommentService) Create(ctx context.Context, actor models.Actor, projectID string, req CreateCommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	project, err := s.projects.FindDetailByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	if !s.CanComment(project) {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "approved projects no longer accept comments")
	}

	comment := &models.Comment{
		ProjectID: projectID,
		AuthorID:  actor.ID,
		Text:      req.Text,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}

	s.notifyOwner(ctx, actor, project, comment)
	return comment, nil
}

// ListForProject returns a project's thread oldest first. Students only read
// threads on their own projects.
func (s *CommentService) ListForProject(ctx context.Context, actor models.Actor, projectID string) ([]models.CommentDetail, error) {
	project, err := s.projects.FindDetailByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if actor.IsStudent() && project.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "project belongs to another student")
	}
	comments, err := s.comments.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

// Recent returns the newest comments across all projects. Teacher only.
func (s *CommentService) Recent(ctx context.Context, actor models.Actor, limit int) ([]models.CommentDetail, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers view recent activity")
	}
	comments, err := s.comments.Recent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent comments")
	}
	return comments, nil
}

// notifyOwner dispatches the comment notification to the project's student.
// Self-comments are skipped, and delivery failures are logged and swallowed.
func (s *CommentService) notifyOwner(ctx context.Context, actor models.Actor, project *models.ProjectDetail, comment *models.Comment) {
	if s.notifier == nil {
		return
	}
	if actor.ID == project.StudentID {
		return
	}

	authorName := actor.ID
	if s.users != nil {
		if author, err := s.users.FindByID(ctx, actor.ID); err == nil {
			authorName = author.FullName
		}
	}

	notification := mailer.CommentNotification{
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		StudentName:  project.StudentName,
		StudentEmail: project.StudentEmail,
		AuthorName:   authorName,
		Text:         comment.Text,
	}

	if s.queue != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: "comment_notification", Payload: notification}
		if err := s.queue.Enqueue(job); err == nil {
			return
		}
		s.logger.Warn("notification queue unavailable, delivering inline",
			zap.String("project_id", project.ID))
	}

	if err := s.notifier.NotifyCommentCreated(ctx, notification); err != nil {
		if s.telemetry != nil {
			s.telemetry.RecordNotification(false)
		}
		s.logger.Warn("comment notification failed",
			zap.String("project_id", project.ID),
			zap.String("student_email", project.StudentEmail),
			zap.Error(err))
		return
	}
	if s.telemetry != nil {
		s.telemetry.RecordNotification(true)
	}
}
