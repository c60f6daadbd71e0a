package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/project-review-api/internal/models"
	appErrors "github.com/noah-isme/project-review-api/pkg/errors"
	"github.com/noah-isme/project-review-api/pkg/storage"
)

type projectRepo interface {
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
}

type metricsInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string) error
}

// CreateProjectRequest is the payload for a student submitting a project.
type CreateProjectRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description"`
	DocumentPath string `json:"document_path" validate:"required"`
}

// UpdateProjectRequest edits the descriptive fields of a project.
type UpdateProjectRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description"`
	DocumentPath string `json:"document_path" validate:"required"`
}

// ChangeStateRequest moves a project through the review workflow. Grade is
// optional except when approving.
type ChangeStateRequest struct {
	State models.ProjectState `json:"state" validate:"required"`
	Grade *float64            `json:"grade"`
}

// ProjectService owns the project review workflow: state transitions, grading
// and the permission predicates gating edits and deletes.
type ProjectService struct {
	projects  projectRepo
	metrics   metricsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	docExts   []string
	now       func() time.Time
}

// NewProjectService constructs ProjectService.
func NewProjectService(projects projectRepo, metrics metricsInvalidator, validate *validator.Validate, logger *zap.Logger, docExts []string) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(docExts) == 0 {
		docExts = []string{"pdf", "doc", "docx"}
	}
	return &ProjectService{
		projects:  projects,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		docExts:   docExts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CanEdit reports whether the actor may modify the project. Teachers may
// always edit; the owning student only while the project is not approved.
func (s *ProjectService) CanEdit(actor models.Actor, project *models.Project) bool {
	if actor.IsTeacher() {
		return true
	}
	if project.StudentID != actor.ID {
		return false
	}
	return project.Editable()
}

// CanDelete reports whether the actor may delete the project. Only the owning
// student may delete, and only while the project is not approved.
func (s *ProjectService) CanDelete(actor models.Actor, project *models.Project) bool {
	return project.StudentID == actor.ID && project.Editable()
}

// Create registers a new project for the submitting student. Projects always
// start in SUBMITTED state with no grade.
func (s *ProjectService) Create(ctx context.Context, actor models.Actor, req CreateProjectRequest) (*models.Project, error) {
	if !actor.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students submit projects")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	if !storage.AllowedExtension(req.DocumentPath, s.docExts) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document must be a PDF, DOC or DOCX file")
	}

	project := &models.Project{
		Title:        req.Title,
		Description:  req.Description,
		StudentID:    actor.ID,
		DocumentPath: req.DocumentPath,
		State:        models.StateSubmitted,
		SubmittedAt:  s.now(),
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}
	s.logger.Info("project submitted", zap.String("project_id", project.ID), zap.String("student_id", actor.ID))
	return project, nil
}

// Update edits title, description and document of a project, gated by CanEdit.
func (s *ProjectService) Update(ctx context.Context, actor models.Actor, projectID string, req UpdateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	if !storage.AllowedExtension(req.DocumentPath, s.docExts) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document must be a PDF, DOC or DOCX file")
	}
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !s.CanEdit(actor, project) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "project cannot be edited by this user")
	}

	project.Title = req.Title
	project.Description = req.Description
	project.DocumentPath = req.DocumentPath
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project")
	}
	return project, nil
}

// ChangeState validates and applies a workflow transition, optionally
// assigning a grade. The teacher-role check is part of the operation itself
// rather than being delegated to the transport layer.
func (s *ProjectService) ChangeState(ctx context.Context, actor models.Actor, projectID string, req ChangeStateRequest) (*models.Project, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers change project state")
	}
	if !models.ValidProjectState(req.State) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown project state")
	}
	if req.Grade != nil && (*req.Grade < models.GradeMin || *req.Grade > models.GradeMax) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade must be between 0.0 and 5.0")
	}

	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// An approved project must carry a grade: either supplied now or
	// already stored from an earlier review round.
	if req.State == models.StateApproved && req.Grade == nil && project.Grade == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a grade is required to approve a project")
	}

	project.State = req.State
	if req.Grade != nil {
		project.Grade = req.Grade
	}
	reviewedAt := s.now()
	project.ReviewedAt = &reviewedAt

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist state change")
	}

	if s.metrics != nil {
		if err := s.metrics.InvalidateStudent(ctx, project.StudentID); err != nil {
			s.logger.Warn("failed to invalidate student metrics cache",
				zap.String("student_id", project.StudentID), zap.Error(err))
		}
	}

	s.logger.Info("project state changed",
		zap.String("project_id", project.ID),
		zap.String("state", string(project.State)),
		zap.String("reviewer_id", actor.ID),
	)
	return project, nil
}

// Delete removes a project, gated by CanDelete.
func (s *ProjectService) Delete(ctx context.Context, actor models.Actor, projectID string) error {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return err
	}
	if !s.CanDelete(actor, project) {
		return appErrors.Clone(appErrors.ErrForbidden, "project cannot be deleted by this user")
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete project")
	}
	if s.metrics != nil {
		if err := s.metrics.InvalidateStudent(ctx, project.StudentID); err != nil {
			s.logger.Warn("failed to invalidate student metrics cache",
				zap.String("student_id", project.StudentID), zap.Error(err))
		}
	}
	return nil
}

// Get returns a project with owner context. Students may only read their own
// projects; teachers read any.
func (s *ProjectService) Get(ctx context.Context, actor models.Actor, projectID string) (*models.ProjectDetail, error) {
	detail, err := s.projects.FindDetailByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if actor.IsStudent() && detail.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "project belongs to another student")
	}
	return detail, nil
}

// List returns projects visible to the actor. Students always see only their
// own submissions; teachers see everything with optional filters.
func (s *ProjectService) List(ctx context.Context, actor models.Actor, filter models.ProjectFilter) ([]models.ProjectDetail, *models.Pagination, error) {
	if actor.IsStudent() {
		filter.StudentID = actor.ID
	}
	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return projects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ProjectService) load(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}
