package model

import "time"

// Post is a blog article. Drafts (Published == false) are only visible to
// administrators.
type Post struct {
	ID         uint64    `json:"id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Excerpt    string    `json:"excerpt"`
	Content    string    `json:"content"`
	CoverImage string    `json:"cover_image"`
	Published  bool      `json:"published"`
	AuthorID   string    `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
