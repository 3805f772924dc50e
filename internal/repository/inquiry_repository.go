package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/myblog/internal/model"
)

// InquiryRepo encapsulates queries on the inquiries table.
type InquiryRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewInquiryRepo(db *sql.DB) *InquiryRepo {
	return &InquiryRepo{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Second) }}
}

func (r *InquiryRepo) Create(ctx context.Context, in *model.Inquiry) error {
	const q = `INSERT INTO inquiries (name, email, subject, message, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if in.Status == "" {
		in.Status = model.InquiryNew
	}
	now := r.now()
	res, err := r.db.ExecContext(ctx, q, in.Name, in.Email, in.Subject, in.Message, in.Status, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	in.ID = uint64(id)
	in.CreatedAt, in.UpdatedAt = now, now
	return nil
}

func (r *InquiryRepo) GetByID(ctx context.Context, id uint64) (*model.Inquiry, error) {
	const q = "SELECT id, name, email, subject, message, status, created_at, updated_at FROM inquiries WHERE id = ?"
	var in model.Inquiry
	err := r.db.QueryRowContext(ctx, q, id).Scan(&in.ID, &in.Name, &in.Email, &in.Subject, &in.Message,
		&in.Status, &in.CreatedAt, &in.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInquiryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// List returns inquiries newest first, optionally filtered by status.
func (r *InquiryRepo) List(ctx context.Context, status string) ([]model.Inquiry, error) {
	q := "SELECT id, name, email, subject, message, status, created_at, updated_at FROM inquiries"
	var args []any
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Inquiry{}
	for rows.Next() {
		var in model.Inquiry
		if err := rows.Scan(&in.ID, &in.Name, &in.Email, &in.Subject, &in.Message,
			&in.Status, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *InquiryRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE inquiries SET status = ?, updated_at = ? WHERE id = ?", status, r.now(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrInquiryNotFound
	}
	return nil
}

func (r *InquiryRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM inquiries WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInquiryNotFound
	}
	return nil
}
