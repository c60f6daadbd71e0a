package models

import "time"

// StudentMetrics aggregates a single student's project counts partitioned by
// state. Average is nil when the student has no graded projects.
type StudentMetrics struct {
	Total     int      `db:"total" json:"total"`
	Graded    int      `db:"graded" json:"graded"`
	Approved  int      `db:"approved" json:"approved"`
	InReview  int      `db:"in_review" json:"in_review"`
	Submitted int      `db:"submitted" json:"submitted"`
	Average   *float64 `db:"average" json:"average,omitempty"`
}

// StudentRankingRow is one entry of the ranked students listing. Students
// without projects are excluded; an absent average sorts last.
type StudentRankingRow struct {
	StudentID     string   `db:"student_id" json:"student_id"`
	FullName      string   `db:"full_name" json:"full_name"`
	Email         string   `db:"email" json:"email"`
	Average       *float64 `db:"average" json:"average,omitempty"`
	TotalProjects int      `db:"total_projects" json:"total_projects"`
	TotalGraded   int      `db:"total_graded" json:"total_graded"`
	TotalApproved int      `db:"total_approved" json:"total_approved"`
}

// SystemTelemetry is a lightweight snapshot of runtime counters.
type SystemTelemetry struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// GlobalStatistics is a single aggregate over the whole project collection.
type GlobalStatistics struct {
	Total          int      `db:"total" json:"total"`
	Submitted      int      `db:"submitted" json:"submitted"`
	InReview       int      `db:"in_review" json:"in_review"`
	Approved       int      `db:"approved" json:"approved"`
	OverallAverage *float64 `db:"overall_average" json:"overall_average,omitempty"`
}
