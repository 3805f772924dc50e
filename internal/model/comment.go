package model

import "time"

// Comment is a reader comment on a post. PasswordHash is the bcrypt hash of
// the password the author chose for deleting it later. IPAddress is stored
// masked. Comments removed by an admin keep their row with DeletedAt set
// until the cleanup job purges them.
type Comment struct {
	ID             uint64     `json:"id"`
	PostID         uint64     `json:"post_id"`
	ReplyTo        *uint64    `json:"reply_to,omitempty"`
	AuthorName     string     `json:"author_name"`
	AuthorEmail    string     `json:"author_email,omitempty"`
	Content        string     `json:"content"`
	IPAddress      string     `json:"ip_address,omitempty"`
	PasswordHash   string     `json:"-"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedByAdmin bool       `json:"deleted_by_admin"`
	CreatedAt      time.Time  `json:"created_at"`
}
