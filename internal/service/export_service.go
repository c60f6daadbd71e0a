package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/project-review-api/internal/models"
	appErrors "github.com/noah-isme/project-review-api/pkg/errors"
	"github.com/noah-isme/project-review-api/pkg/export"
)

type exportProjectRepo interface {
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error)
}

type exportMetricsRepo interface {
	RankedStudents(ctx context.Context) ([]models.StudentRankingRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered export ready to be sent as a download.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders project and ranking listings as CSV or PDF downloads.
// A copy of each export lands in local storage for later retrieval.
type ExportService struct {
	projects  exportProjectRepo
	metrics   exportMetricsRepo
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
	resultTTL time.Duration
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(projects exportProjectRepo, metrics exportMetricsRepo, store fileStorage, resultTTL time.Duration, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		projects:  projects,
		metrics:   metrics,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		logger:    logger,
		resultTTL: resultTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExportProjectsCSV renders the filtered project listing as CSV. Teacher only.
func (s *ExportService) ExportProjectsCSV(ctx context.Context, actor models.Actor, filter models.ProjectFilter) (*ExportResult, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers export project listings")
	}

	filter.Page = 1
	filter.PageSize = 10000
	projects, _, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load projects for export")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Título", "Estudiante", "Estado", "Fecha Envío", "Fecha Revisión", "Calificación", "Total Comentarios"},
	}
	for _, p := range projects {
		dataset.Rows = append(dataset.Rows, []string{
			p.ID,
			p.Title,
			p.StudentName,
			p.State.Label(),
			p.SubmittedAt.Format("2006-01-02 15:04"),
			formatReviewedAt(p.ReviewedAt),
			formatGrade(p.Grade),
			fmt.Sprintf("%d", p.TotalComments),
		})
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render projects csv")
	}
	return s.finish("proyectos", "csv", "text/csv; charset=utf-8", payload), nil
}

// ExportRankingCSV renders the student ranking as CSV. Teacher only.
func (s *ExportService) ExportRankingCSV(ctx context.Context, actor models.Actor) (*ExportResult, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers export the ranking")
	}
	dataset, err := s.rankingDataset(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := s.csv.Render(*dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ranking csv")
	}
	return s.finish("ranking_estudiantes", "csv", "text/csv; charset=utf-8", payload), nil
}

// ExportRankingPDF renders the student ranking as a PDF table. Teacher only.
func (s *ExportService) ExportRankingPDF(ctx context.Context, actor models.Actor) (*ExportResult, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers export the ranking")
	}
	dataset, err := s.rankingDataset(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := s.pdf.Render(*dataset, "Ranking de estudiantes")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ranking pdf")
	}
	return s.finish("ranking_estudiantes", "pdf", "application/pdf", payload), nil
}

// CleanupExpired removes stored export copies older than the configured TTL.
func (s *ExportService) CleanupExpired() ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	return s.storage.CleanupOlderThan(s.resultTTL)
}

func (s *ExportService) rankingDataset(ctx context.Context) (*export.Dataset, error) {
	rows, err := s.metrics.RankedStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ranking for export")
	}
	dataset := export.Dataset{
		Headers: []string{"Estudiante", "Email", "Total Proyectos", "Proyectos Calificados", "Proyectos Aprobados", "Promedio"},
	}
	for _, r := range rows {
		dataset.Rows = append(dataset.Rows, []string{
			r.FullName,
			formatEmail(r.Email),
			fmt.Sprintf("%d", r.TotalProjects),
			fmt.Sprintf("%d", r.TotalGraded),
			fmt.Sprintf("%d", r.TotalApproved),
			formatGrade(r.Average),
		})
	}
	return &dataset, nil
}

// finish names the download and keeps an archive copy in storage. Archival
// failure is logged, never surfaced.
func (s *ExportService) finish(base, ext, contentType string, payload []byte) *ExportResult {
	filename := fmt.Sprintf("%s_%s.%s", base, s.now().Format("20060102_150405"), ext)
	if s.storage != nil {
		if _, err := s.storage.Save(filename, payload); err != nil {
			s.logger.Warn("failed to archive export", zap.String("filename", filename), zap.Error(err))
		}
	}
	return &ExportResult{Filename: filename, ContentType: contentType, Payload: payload}
}

func formatGrade(grade *float64) string {
	if grade == nil {
		return "Sin calificar"
	}
	return fmt.Sprintf("%.2f", *grade)
}

func formatEmail(email string) string {
	if email == "" {
		return "Sin email"
	}
	return email
}

func formatReviewedAt(ts *time.Time) string {
	if ts == nil {
		return "N/A"
	}
	return ts.Format("2006-01-02 15:04")
}
