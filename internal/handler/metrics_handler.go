package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/project-review-api/internal/service"
	appErrors "github.com/noah-isme/project-review-api/pkg/errors"
	"github.com/noah-isme/project-review-api/pkg/response"
)

// MetricsHandler exposes student metrics, ranking and export endpoints.
type MetricsHandler struct {
	metrics   *service.StudentMetricsService
	exports   *service.ExportService
	telemetry *service.TelemetryService
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metrics *service.StudentMetricsService, exports *service.ExportService, telemetry *service.TelemetryService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, exports: exports, telemetry: telemetry}
}

// StudentAverage godoc
// @Summary Average grade for a student
// @Tags Metrics
// @Produce json
// @Param id path string true "Student ID"
// @Param noCache query bool false "Skip the cache for this read"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/average [get]
func (h *MetricsHandler) StudentAverage(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	noCache, _ := strconv.ParseBool(c.Query("noCache"))
	avg, err := h.metrics.StudentAverage(c.Request.Context(), actor, c.Param("id"), !noCache)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": c.Param("id"), "average": avg}, nil)
}

// StudentMetrics godoc
// @Summary Project counts and average for a student
// @Tags Metrics
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/metrics [get]
func (h *MetricsHandler) StudentMetrics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	metrics, err := h.metrics.StudentMetrics(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, metrics, nil)
}

// Ranking godoc
// @Summary Students ranked by average grade
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /metrics/ranking [get]
func (h *MetricsHandler) Ranking(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.metrics.RankedStudents(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// GlobalStatistics godoc
// @Summary Aggregate statistics over all projects
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /metrics/statistics [get]
func (h *MetricsHandler) GlobalStatistics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.metrics.GlobalStatistics(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportRanking godoc
// @Summary Export the ranking as CSV or PDF
// @Tags Metrics
// @Produce text/csv
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Security BearerAuth
// @Router /metrics/ranking/export [get]
func (h *MetricsHandler) ExportRanking(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var (
		result *service.ExportResult
		err    error
	)
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		result, err = h.exports.ExportRankingCSV(c.Request.Context(), actor)
	case "pdf":
		result, err = h.exports.ExportRankingPDF(c.Request.Context(), actor)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Payload)
}

// Telemetry godoc
// @Summary Runtime telemetry snapshot
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /metrics/system [get]
func (h *MetricsHandler) Telemetry(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.telemetry.Snapshot(), nil)
}
