package models

import "time"

// ProjectState describes where a project sits in the review workflow.
type ProjectState string

const (
	// StateSubmitted is the initial state of every new project.
	StateSubmitted ProjectState = "SUBMITTED"
	// StateInReview marks a project a teacher is actively reviewing.
	StateInReview ProjectState = "IN_REVIEW"
	// StateApproved locks the project against student edits and new comments.
	StateApproved ProjectState = "APPROVED"
)

// Label returns the Spanish display name used in exports and the UI.
func (s ProjectState) Label() string {
	switch s {
	case StateSubmitted:
		return "Enviado"
	case StateInReview:
		return "En Revisión"
	case StateApproved:
		return "Aprobado"
	}
	return string(s)
}

// ValidProjectState reports whether the value is a known workflow state.
func ValidProjectState(s ProjectState) bool {
	switch s {
	case StateSubmitted, StateInReview, StateApproved:
		return true
	}
	return false
}

// GradeMin and GradeMax bound the accepted grading scale.
const (
	GradeMin = 0.0
	GradeMax = 5.0
)

// Project represents an academic project submitted by a student.
type Project struct {
	ID           string       `db:"id" json:"id"`
	Title        string       `db:"title" json:"title"`
	Description  string       `db:"description" json:"description"`
	StudentID    string       `db:"student_id" json:"student_id"`
	DocumentPath string       `db:"document_path" json:"document_path"`
	State        ProjectState `db:"state" json:"state"`
	Grade        *float64     `db:"grade" json:"grade,omitempty"`
	SubmittedAt  time.Time    `db:"submitted_at" json:"submitted_at"`
	ReviewedAt   *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// IsApproved reports whether the project reached its final state.
func (p *Project) IsApproved() bool { return p.State == StateApproved }

// Editable reports whether the owning student may still modify the project.
func (p *Project) Editable() bool { return p.State != StateApproved }

// AcceptsComments reports whether new comments may be attached.
func (p *Project) AcceptsComments() bool { return p.State != StateApproved }

// ProjectDetail joins the owning student onto the project row for listings
// and exports.
type ProjectDetail struct {
	Project
	StudentName   string `db:"student_name" json:"student_name"`
	StudentEmail  string `db:"student_email" json:"student_email"`
	TotalComments int    `db:"total_comments" json:"total_comments"`
}

// ProjectFilter encapsulates allowed search parameters for listing projects.
type ProjectFilter struct {
	State     ProjectState
	StudentID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
