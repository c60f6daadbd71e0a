package models

import "time"

// Comment is an append-only feedback entry on a project. Comments are never
// updated or deleted once written.
type Comment struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CommentDetail joins author context for rendering comment threads.
type CommentDetail struct {
	Comment
	AuthorName string   `db:"author_name" json:"author_name"`
	AuthorRole UserRole `db:"author_role" json:"author_role"`
}
