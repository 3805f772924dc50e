package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/myblog/internal/model"
)

// PostSearchQuery defines filters & pagination for searching posts.
type PostSearchQuery struct {
	Text          string // matched against title, excerpt and content
	IncludeDrafts bool
	Page          int
	PageSize      int
}

// likeEscaper makes user text match literally inside LIKE ... ESCAPE '!'.
// '!' is used instead of a backslash, which MySQL string literals consume.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Search returns one page of matching posts, newest first, and the total
// number of matches.
func (r *PostRepo) Search(ctx context.Context, q PostSearchQuery) ([]model.Post, int64, error) {
	where := []string{}
	args := []any{}

	if !q.IncludeDrafts {
		where = append(where, "published = 1")
	}
	if t := strings.ToLower(strings.TrimSpace(q.Text)); t != "" {
		like := "%" + likeEscaper.Replace(t) + "%"
		where = append(where, "(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(excerpt) LIKE ? ESCAPE '!' OR LOWER(content) LIKE ? ESCAPE '!')")
		args = append(args, like, like, like)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	dataSQL := "SELECT " + postColumns + " FROM posts WHERE " + cond +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Post, 0, q.PageSize)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
