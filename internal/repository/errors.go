// Package repository holds the SQL data access for posts, comments and
// inquiries. Queries use ? placeholders and only portable SQL so the same
// code runs on MySQL and SQLite.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrInquiryNotFound = errors.New("inquiry not found")
	// ErrSlugExists is returned when a post slug is already taken.
	ErrSlugExists = errors.New("slug already exists")
	// ErrInvalidReply is returned when a reply points at a comment that does
	// not exist or belongs to another post.
	ErrInvalidReply = errors.New("reply target not found on this post")
)

// isDuplicate reports whether err is a unique-key violation on either
// backend.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
