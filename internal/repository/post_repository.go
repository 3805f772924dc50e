package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/myblog/internal/model"
)

const postColumns = "id, title, slug, excerpt, content, cover_image, published, author_id, created_at, updated_at"

// PostRepo encapsulates queries on the posts table.
type PostRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostRepo(db *sql.DB) *PostRepo {
	return &PostRepo{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Second) }}
}

func scanPost(row interface{ Scan(...any) error }) (*model.Post, error) {
	var p model.Post
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Content, &p.CoverImage,
		&p.Published, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts p and fills in ID and timestamps.
func (r *PostRepo) Create(ctx context.Context, p *model.Post) error {
	const q = `INSERT INTO posts (title, slug, excerpt, content, cover_image, published, author_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := r.now()
	res, err := r.db.ExecContext(ctx, q, p.Title, p.Slug, p.Excerpt, p.Content, p.CoverImage,
		p.Published, p.AuthorID, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrSlugExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// GetByID returns ErrPostNotFound when no row matches.
func (r *PostRepo) GetByID(ctx context.Context, id uint64) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return p, err
}

func (r *PostRepo) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE slug = ?", slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return p, err
}

// List returns posts newest first. Drafts are included only when asked.
func (r *PostRepo) List(ctx context.Context, includeDrafts bool, limit, offset int) ([]model.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	q := "SELECT " + postColumns + " FROM posts"
	if !includeDrafts {
		q += " WHERE published = 1"
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"

	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Update overwrites every editable column of p and bumps updated_at.
func (r *PostRepo) Update(ctx context.Context, p *model.Post) error {
	const q = `UPDATE posts SET title = ?, slug = ?, excerpt = ?, content = ?, cover_image = ?, published = ?, updated_at = ?
		WHERE id = ?`
	now := r.now()
	res, err := r.db.ExecContext(ctx, q, p.Title, p.Slug, p.Excerpt, p.Content, p.CoverImage, p.Published, now, p.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrSlugExists
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPostNotFound
	}
	p.UpdatedAt = now
	return nil
}

// Delete removes a post; its comments go with it.
func (r *PostRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}
