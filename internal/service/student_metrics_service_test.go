package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-review-api/internal/models"
	appErrors "github.com/noah-isme/project-review-api/pkg/errors"
)

type mockMetricsRepo struct {
	average      *float64
	averageCalls int
	metrics      models.StudentMetrics
	ranking      []models.StudentRankingRow
	stats        models.GlobalStatistics
}

func (m *mockMetricsRepo) StudentAverage(ctx context.Context, studentID string) (*float64, error) {
	m.averageCalls++
	return m.average, nil
}

func (m *mockMetricsRepo) StudentMetrics(ctx context.Context, studentID string) (*models.StudentMetrics, error) {
	return &m.metrics, nil
}

func (m *mockMetricsRepo) RankedStudents(ctx context.Context) ([]models.StudentRankingRow, error) {
	return m.ranking, nil
}

func (m *mockMetricsRepo) GlobalStatistics(ctx context.Context) (*models.GlobalStatistics, error) {
	return &m.stats, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func newMetricsFixture(average *float64) (*StudentMetricsService, *mockMetricsRepo, *memoryCacheRepo) {
	repo := &mockMetricsRepo{average: average}
	cacheRepo := &memoryCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, 5*time.Minute, nil, true)
	return NewStudentMetricsService(repo, cache, nil), repo, cacheRepo
}

func TestStudentAverageCachesResult(t *testing.T) {
	svc, repo, cacheRepo := newMetricsFixture(gradePtr(4.25))

	avg, err := svc.StudentAverage(context.Background(), teacherActor, "student-1", true)
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.Equal(t, 4.25, *avg)
	assert.Equal(t, 1, repo.averageCalls)
	assert.Contains(t, cacheRepo.entries, "student_avg:student-1")

	avg, err = svc.StudentAverage(context.Background(), teacherActor, "student-1", true)
	require.NoError(t, err)
	assert.Equal(t, 4.25, *avg)
	assert.Equal(t, 1, repo.averageCalls, "second read is served from cache")
}

func TestStudentAverageBypassesCacheOnDemand(t *testing.T) {
	svc, repo, _ := newMetricsFixture(gradePtr(3.5))

	_, err := svc.StudentAverage(context.Background(), teacherActor, "student-1", false)
	require.NoError(t, err)
	_, err = svc.StudentAverage(context.Background(), teacherActor, "student-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.averageCalls)
}

func TestStudentAverageNilWhenUngraded(t *testing.T) {
	svc, repo, cacheRepo := newMetricsFixture(nil)

	avg, err := svc.StudentAverage(context.Background(), teacherActor, "student-1", true)
	require.NoError(t, err)
	assert.Nil(t, avg, "no graded projects yields no average, never zero")
	assert.NotContains(t, cacheRepo.entries, "student_avg:student-1", "absent averages are not cached")

	avg, err = svc.StudentAverage(context.Background(), teacherActor, "student-1", true)
	require.NoError(t, err)
	assert.Nil(t, avg)
	assert.Equal(t, 2, repo.averageCalls, "absent averages are recomputed on each read")
}

func TestStudentAverageScopedToOwner(t *testing.T) {
	svc, _, _ := newMetricsFixture(gradePtr(4.0))

	_, err := svc.StudentAverage(context.Background(), otherActor, "student-1", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentAverage(context.Background(), ownerActor, "student-1", true)
	require.NoError(t, err)
}

func TestInvalidateStudentDropsCachedAverage(t *testing.T) {
	svc, repo, cacheRepo := newMetricsFixture(gradePtr(4.0))

	_, err := svc.StudentAverage(context.Background(), teacherActor, "student-1", true)
	require.NoError(t, err)
	require.Contains(t, cacheRepo.entries, "student_avg:student-1")

	require.NoError(t, svc.InvalidateStudent(context.Background(), "student-1"))
	assert.NotContains(t, cacheRepo.entries, "student_avg:student-1")

	_, err = svc.StudentAverage(context.Background(), teacherActor, "student-1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.averageCalls, "invalidation forces a recompute")
}

func TestStudentAverageWithCacheDisabled(t *testing.T) {
	repo := &mockMetricsRepo{average: gradePtr(2.5)}
	cache := NewCacheService(nil, nil, 0, nil, false)
	svc := NewStudentMetricsService(repo, cache, nil)

	avg, err := svc.StudentAverage(context.Background(), teacherActor, "student-1", true)
	require.NoError(t, err)
	assert.Equal(t, 2.5, *avg)
	require.NoError(t, svc.InvalidateStudent(context.Background(), "student-1"))
}

func TestRankedStudentsTeacherOnly(t *testing.T) {
	svc, repo, _ := newMetricsFixture(nil)
	repo.ranking = []models.StudentRankingRow{
		{StudentID: "student-1", FullName: "Ana García", Average: gradePtr(4.5), TotalProjects: 2},
		{StudentID: "student-2", FullName: "Luis Pérez", TotalProjects: 1},
	}

	_, err := svc.RankedStudents(context.Background(), ownerActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	rows, err := svc.RankedStudents(context.Background(), teacherActor)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1].Average, "ungraded students keep a nil average")
}

func TestGlobalStatisticsTeacherOnly(t *testing.T) {
	svc, repo, _ := newMetricsFixture(nil)
	repo.stats = models.GlobalStatistics{Total: 3, Approved: 1, OverallAverage: gradePtr(3.8)}

	_, err := svc.GlobalStatistics(context.Background(), ownerActor)
	require.Error(t, err)

	stats, err := svc.GlobalStatistics(context.Background(), teacherActor)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
}

func TestStudentMetricsScopedToOwner(t *testing.T) {
	svc, repo, _ := newMetricsFixture(nil)
	repo.metrics = models.StudentMetrics{Total: 2, Graded: 1, Approved: 1, Average: gradePtr(4.0)}

	_, err := svc.StudentMetrics(context.Background(), otherActor, "student-1")
	require.Error(t, err)

	metrics, err := svc.StudentMetrics(context.Background(), ownerActor, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.Total)
}
