package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/project-review-api/internal/models"
)

// MetricsRepository runs the aggregate queries behind student and global
// statistics. All aggregates are single queries over current persisted state.
type MetricsRepository struct {
	db *sqlx.DB
}

// NewMetricsRepository constructs a MetricsRepository.
func NewMetricsRepository(db *sqlx.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// StudentAverage returns the mean of present grades for a student, or nil
// when the student has no graded projects.
func (r *MetricsRepository) StudentAverage(ctx context.Context, studentID string) (*float64, error) {
	const query = `SELECT AVG(grade) FROM projects WHERE student_id = $1 AND grade IS NOT NULL`
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, query, studentID); err != nil {
		return nil, fmt.Errorf("student average: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// StudentMetrics computes the per-student counts and average in one pass.
func (r *MetricsRepository) StudentMetrics(ctx context.Context, studentID string) (*models.StudentMetrics, error) {
	const query = `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE grade IS NOT NULL) AS graded,
        COUNT(*) FILTER (WHERE state = 'APPROVED') AS approved,
        COUNT(*) FILTER (WHERE state = 'IN_REVIEW') AS in_review,
        COUNT(*) FILTER (WHERE state = 'SUBMITTED') AS submitted,
        AVG(grade) FILTER (WHERE grade IS NOT NULL) AS average
        FROM projects WHERE student_id = $1`
	var metrics models.StudentMetrics
	if err := r.db.GetContext(ctx, &metrics, query, studentID); err != nil {
		return nil, fmt.Errorf("student metrics: %w", err)
	}
	return &metrics, nil
}

// RankedStudents lists students holding at least one project, ordered by
// average grade descending. Students without any graded project sort last;
// ties and absent averages break deterministically on student id.
func (r *MetricsRepository) RankedStudents(ctx context.Context) ([]models.StudentRankingRow, error) {
	const query = `SELECT u.id AS student_id, u.full_name, u.email,
        AVG(p.grade) FILTER (WHERE p.grade IS NOT NULL) AS average,
        COUNT(p.id) AS total_projects,
        COUNT(p.id) FILTER (WHERE p.grade IS NOT NULL) AS total_graded,
        COUNT(p.id) FILTER (WHERE p.state = 'APPROVED') AS total_approved
        FROM users u
        JOIN projects p ON p.student_id = u.id
        WHERE u.role = 'STUDENT'
        GROUP BY u.id, u.full_name, u.email
        HAVING COUNT(p.id) > 0
        ORDER BY average DESC NULLS LAST, u.id ASC`
	var rows []models.StudentRankingRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("ranked students: %w", err)
	}
	return rows, nil
}

// GlobalStatistics aggregates the whole project collection in one query.
func (r *MetricsRepository) GlobalStatistics(ctx context.Context) (*models.GlobalStatistics, error) {
	const query = `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE state = 'SUBMITTED') AS submitted,
        COUNT(*) FILTER (WHERE state = 'IN_REVIEW') AS in_review,
        COUNT(*) FILTER (WHERE state = 'APPROVED') AS approved,
        AVG(grade) FILTER (WHERE grade IS NOT NULL) AS overall_average
        FROM projects`
	var stats models.GlobalStatistics
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("global statistics: %w", err)
	}
	return &stats, nil
}
