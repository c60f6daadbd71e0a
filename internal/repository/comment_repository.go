package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/project-review-api/internal/models"
)

// CommentRepository manages persistence for comment records. Comments are
// append-only: there is deliberately no update or delete statement here.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs a CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a new comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO comments (id, project_id, author_id, text, created_at)
        VALUES (:id, :project_id, :author_id, :text, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListByProject returns a project's comments ordered oldest first.
func (r *CommentRepository) ListByProject(ctx context.Context, projectID string) ([]models.CommentDetail, error) {
	const query = `SELECT c.id, c.project_id, c.author_id, c.text, c.created_at,
        u.full_name AS author_name, u.role AS author_role
        FROM comments c JOIN users u ON u.id = c.author_id
        WHERE c.project_id = $1
        ORDER BY c.created_at ASC`
	var comments []models.CommentDetail
	if err := r.db.SelectContext(ctx, &comments, query, projectID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Recent returns the newest comments across all projects.
func (r *CommentRepository) Recent(ctx context.Context, limit int) ([]models.CommentDetail, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT c.id, c.project_id, c.author_id, c.text, c.created_at,
        u.full_name AS author_name, u.role AS author_role
        FROM comments c JOIN users u ON u.id = c.author_id
        ORDER BY c.created_at DESC LIMIT %d`, limit)
	var comments []models.CommentDetail
	if err := r.db.SelectContext(ctx, &comments, query); err != nil {
		return nil, fmt.Errorf("recent comments: %w", err)
	}
	return comments, nil
}

// CountByProject returns the comment total for a project.
func (r *CommentRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM comments WHERE project_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, projectID); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return total, nil
}
