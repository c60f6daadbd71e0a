package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/project-review-api/internal/models"
	appErrors "github.com/noah-isme/project-review-api/pkg/errors"
)

type metricsRepo interface {
	StudentAverage(ctx context.Context, studentID string) (*float64, error)
	StudentMetrics(ctx context.Context, studentID string) (*models.StudentMetrics, error)
	RankedStudents(ctx context.Context) ([]models.StudentRankingRow, error)
	GlobalStatistics(ctx context.Context) (*models.GlobalStatistics, error)
}

type cachedAverage struct {
	Average *float64 `json:"average"`
}

// StudentMetricsService computes grade aggregates over projects, with a
// read-through cache in front of the average query. Invalidation happens on
// every grade or state write via InvalidateStudent.
type StudentMetricsService struct {
	repo   metricsRepo
	cache  *CacheService
	logger *zap.Logger
}

// NewStudentMetricsService constructs a StudentMetricsService.
func NewStudentMetricsService(repo metricsRepo, cache *CacheService, logger *zap.Logger) *StudentMetricsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentMetricsService{repo: repo, cache: cache, logger: logger}
}

func averageCacheKey(studentID string) string {
	return fmt.Sprintf("student_avg:%s", studentID)
}

// StudentAverage returns a student's mean grade over graded projects, nil when
// none are graded. With useCache the value is served from the cache when
// present and written back on a miss. Students may only read their own
// average.
func (s *StudentMetricsService) StudentAverage(ctx context.Context, actor models.Actor, studentID string, useCache bool) (*float64, error) {
	if actor.IsStudent() && actor.ID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "metrics belong to another student")
	}

	key := averageCacheKey(studentID)
	if useCache && s.cache.Enabled() {
		var cached cachedAverage
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return cached.Average, nil
		}
	}

	avg, err := s.repo.StudentAverage(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute student average")
	}

	// Only computed averages are cached; a student without graded projects
	// is recomputed until a grade appears.
	if useCache && s.cache.Enabled() && avg != nil {
		if err := s.cache.Set(ctx, key, cachedAverage{Average: avg}, 0); err != nil {
			s.logger.Warn("failed to cache student average", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return avg, nil
}

// StudentMetrics returns the per-student counts and average. Students may
// only read their own metrics.
func (s *StudentMetricsService) StudentMetrics(ctx context.Context, actor models.Actor, studentID string) (*models.StudentMetrics, error) {
	if actor.IsStudent() && actor.ID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "metrics belong to another student")
	}
	metrics, err := s.repo.StudentMetrics(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute student metrics")
	}
	return metrics, nil
}

// RankedStudents lists students with at least one project ordered by average
// grade descending. Teacher only.
func (s *StudentMetricsService) RankedStudents(ctx context.Context, actor models.Actor) ([]models.StudentRankingRow, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers view the ranking")
	}
	rows, err := s.repo.RankedStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank students")
	}
	return rows, nil
}

// GlobalStatistics aggregates all projects. Teacher only.
func (s *StudentMetricsService) GlobalStatistics(ctx context.Context, actor models.Actor) (*models.GlobalStatistics, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers view global statistics")
	}
	stats, err := s.repo.GlobalStatistics(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute global statistics")
	}
	return stats, nil
}

// InvalidateStudent drops the cached average for a student. Safe to call when
// caching is disabled.
func (s *StudentMetricsService) InvalidateStudent(ctx context.Context, studentID string) error {
	return s.cache.Invalidate(ctx, averageCacheKey(studentID))
}
