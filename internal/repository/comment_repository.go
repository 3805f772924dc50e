package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/myblog/internal/model"
)

// CommentRepo encapsulates queries on the comments table.
type CommentRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewCommentRepo(db *sql.DB) *CommentRepo {
	return &CommentRepo{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Second) }}
}

const commentColumns = "id, post_id, reply_to, author_name, author_email, content, ip_address, password_hash, deleted_at, deleted_by_admin, created_at"

func scanComment(row interface{ Scan(...any) error }) (*model.Comment, error) {
	var (
		c       model.Comment
		replyTo sql.NullInt64
		deleted sql.NullTime
	)
	err := row.Scan(&c.ID, &c.PostID, &replyTo, &c.AuthorName, &c.AuthorEmail, &c.Content,
		&c.IPAddress, &c.PasswordHash, &deleted, &c.DeletedByAdmin, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if replyTo.Valid {
		v := uint64(replyTo.Int64)
		c.ReplyTo = &v
	}
	if deleted.Valid {
		t := deleted.Time
		c.DeletedAt = &t
	}
	return &c, nil
}

// Create stores c. The post must be published; otherwise ErrPostNotFound.
// A reply must point at a comment on the same post; otherwise ErrInvalidReply.
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM posts WHERE id = ? AND published = 1", c.PostID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPostNotFound
	}
	if err != nil {
		return err
	}

	var replyTo any
	if c.ReplyTo != nil {
		err := r.db.QueryRowContext(ctx, "SELECT 1 FROM comments WHERE id = ? AND post_id = ?", *c.ReplyTo, c.PostID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidReply
		}
		if err != nil {
			return err
		}
		replyTo = *c.ReplyTo
	}

	const q = `INSERT INTO comments (post_id, reply_to, author_name, author_email, content, ip_address, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := r.now()
	res, err := r.db.ExecContext(ctx, q, c.PostID, replyTo, c.AuthorName, c.AuthorEmail, c.Content, c.IPAddress, c.PasswordHash, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.CreatedAt = now
	return nil
}

// GetByID includes the password hash so callers can check delete rights.
func (r *CommentRepo) GetByID(ctx context.Context, id uint64) (*model.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, "SELECT "+commentColumns+" FROM comments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByPost returns a post's comments oldest first. Soft-deleted comments
// stay in the list so reply threads keep their shape.
func (r *CommentRepo) ListByPost(ctx context.Context, postID uint64) ([]model.Comment, error) {
	q := "SELECT " + commentColumns + " FROM comments WHERE post_id = ? ORDER BY created_at ASC, id ASC"
	rows, err := r.db.QueryContext(ctx, q, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		c.PasswordHash = ""
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CommentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// SoftDelete marks a comment as removed by an admin and returns the updated
// row. Marking an already deleted comment keeps its first deleted_at.
func (r *CommentRepo) SoftDelete(ctx context.Context, id uint64) (*model.Comment, error) {
	const q = "UPDATE comments SET deleted_at = COALESCE(deleted_at, ?), deleted_by_admin = 1 WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, r.now(), id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrCommentNotFound
	}
	return r.GetByID(ctx, id)
}

// PurgeDeleted hard-deletes comments soft-deleted at or before the cutoff
// and reports how many rows went.
func (r *CommentRepo) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM comments WHERE deleted_at IS NOT NULL AND deleted_at <= ?", before.UTC().Truncate(time.Second))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
