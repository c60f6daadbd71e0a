package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/project-review-api/internal/models"
)

// ProjectRepository manages persistence for project records.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs a ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// List returns project details matching the provided filters.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error) {
	base := `FROM projects p
        JOIN users u ON u.id = p.student_id
        LEFT JOIN LATERAL (SELECT COUNT(*) AS total_comments FROM comments c WHERE c.project_id = p.id) cc ON true`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("p.state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.title) LIKE $%d OR LOWER(p.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"title":        "p.title",
		"state":        "p.state",
		"grade":        "p.grade",
		"submitted_at": "p.submitted_at",
	}
	if sortBy == "" {
		sortBy = "submitted_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "p.submitted_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.title, p.description, p.student_id, p.document_path, p.state, p.grade,
        p.submitted_at, p.reviewed_at, p.created_at, p.updated_at,
        u.full_name AS student_name, u.email AS student_email, cc.total_comments
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var projects []models.ProjectDetail
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(p.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}
	return projects, total, nil
}

// FindByID fetches a single project by ID.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	const query = `SELECT id, title, description, student_id, document_path, state, grade,
        submitted_at, reviewed_at, created_at, updated_at
        FROM projects WHERE id = $1`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindDetailByID fetches a project with owner and comment context.
func (r *ProjectRepository) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	const query = `SELECT p.id, p.title, p.description, p.student_id, p.document_path, p.state, p.grade,
        p.submitted_at, p.reviewed_at, p.created_at, p.updated_at,
        u.full_name AS student_name, u.email AS student_email,
        (SELECT COUNT(*) FROM comments c WHERE c.project_id = p.id) AS total_comments
        FROM projects p JOIN users u ON u.id = p.student_id
        WHERE p.id = $1`
	var detail models.ProjectDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new project record.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if project.SubmittedAt.IsZero() {
		project.SubmittedAt = now
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	const query = `INSERT INTO projects (id, title, description, student_id, document_path, state, grade, submitted_at, reviewed_at, created_at, updated_at)
        VALUES (:id, :title, :description, :student_id, :document_path, :state, :grade, :submitted_at, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// Update persists state, grade and descriptive fields in a single statement.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	const query = `UPDATE projects SET title = :title, description = :description, document_path = :document_path,
        state = :state, grade = :grade, reviewed_at = :reviewed_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// Delete hard-deletes a project and its comments (cascade via FK).
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
