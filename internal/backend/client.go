package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/model"
	"github.com/iliyamo/myblog/internal/repository"
	"github.com/iliyamo/myblog/internal/utils"
)

// Client performs data operations on behalf of one principal.
type Client struct {
	principal  Principal
	repos      Repos
	bcryptCost int
}

func (c *Client) Principal() Principal { return c.principal }

func (c *Client) requirePrivileged(action string) error {
	if c.principal.Privileged() {
		return nil
	}
	if c.principal.Anonymous() {
		return apperr.Unauthorized("sign in to " + action)
	}
	return apperr.Forbidden("admin role required to " + action)
}

// translate maps repository sentinels onto error kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrPostNotFound),
		errors.Is(err, repository.ErrCommentNotFound),
		errors.Is(err, repository.ErrInquiryNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Msg: err.Error(), Err: err}
	case errors.Is(err, repository.ErrSlugExists):
		return &apperr.Error{Kind: apperr.KindConflict, Msg: err.Error(), Err: err}
	case errors.Is(err, repository.ErrInvalidReply):
		return &apperr.Error{Kind: apperr.KindValidation, Msg: err.Error(), Err: err}
	}
	return err
}

// ----- posts -----

// PostInput is the editable part of a post. Nil fields are left unchanged
// by UpdatePost.
type PostInput struct {
	Title      *string
	Slug       *string
	Excerpt    *string
	Content    *string
	CoverImage *string
	Published  *bool
}

func (c *Client) ListPosts(ctx context.Context, limit, offset int) ([]model.Post, error) {
	posts, err := c.repos.Posts.List(ctx, c.principal.Privileged(), limit, offset)
	return posts, translate(err)
}

// SearchPosts runs a text search. Drafts only match for privileged callers.
func (c *Client) SearchPosts(ctx context.Context, text string, page, pageSize int) ([]model.Post, int64, error) {
	posts, total, err := c.repos.Posts.Search(ctx, repository.PostSearchQuery{
		Text:          text,
		IncludeDrafts: c.principal.Privileged(),
		Page:          page,
		PageSize:      pageSize,
	})
	return posts, total, translate(err)
}

// GetPost looks a post up by slug. Drafts are not found unless privileged.
func (c *Client) GetPost(ctx context.Context, slug string) (*model.Post, error) {
	p, err := c.repos.Posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, translate(err)
	}
	if !p.Published && !c.principal.Privileged() {
		return nil, translate(repository.ErrPostNotFound)
	}
	return p, nil
}

func (c *Client) CreatePost(ctx context.Context, in PostInput) (*model.Post, error) {
	if err := c.requirePrivileged("create posts"); err != nil {
		return nil, err
	}
	p := &model.Post{AuthorID: c.principal.UserID}
	applyPost(p, in)
	if p.Slug == "" {
		p.Slug = utils.Slugify(p.Title)
	}
	if err := validatePost(p); err != nil {
		return nil, err
	}
	if err := c.repos.Posts.Create(ctx, p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (c *Client) UpdatePost(ctx context.Context, id uint64, in PostInput) (*model.Post, error) {
	if err := c.requirePrivileged("edit posts"); err != nil {
		return nil, err
	}
	p, err := c.repos.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	applyPost(p, in)
	if err := validatePost(p); err != nil {
		return nil, err
	}
	if err := c.repos.Posts.Update(ctx, p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (c *Client) DeletePost(ctx context.Context, id uint64) error {
	if err := c.requirePrivileged("delete posts"); err != nil {
		return err
	}
	return translate(c.repos.Posts.Delete(ctx, id))
}

func applyPost(p *model.Post, in PostInput) {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Slug != nil {
		p.Slug = utils.Slugify(*in.Slug)
	}
	if in.Excerpt != nil {
		p.Excerpt = strings.TrimSpace(*in.Excerpt)
	}
	if in.Content != nil {
		p.Content = *in.Content
	}
	if in.CoverImage != nil {
		p.CoverImage = strings.TrimSpace(*in.CoverImage)
	}
	if in.Published != nil {
		p.Published = *in.Published
	}
}

func validatePost(p *model.Post) error {
	switch {
	case p.Title == "":
		return apperr.Validation("title is required")
	case p.Slug == "":
		return apperr.Validation("slug is required")
	case strings.TrimSpace(p.Content) == "":
		return apperr.Validation("content is required")
	}
	return nil
}

// ----- comments -----

// ListComments returns the comments of a post visible to the principal.
// Author emails are only shown to privileged callers and the text of
// comments removed by an admin is blanked.
func (c *Client) ListComments(ctx context.Context, slug string) ([]model.Comment, error) {
	p, err := c.GetPost(ctx, slug)
	if err != nil {
		return nil, err
	}
	list, err := c.repos.Comments.ListByPost(ctx, p.ID)
	if err != nil {
		return nil, translate(err)
	}
	if c.principal.Privileged() {
		return list, nil
	}
	for i := range list {
		list[i].AuthorEmail = ""
		list[i].IPAddress = ""
		if list[i].DeletedAt != nil {
			list[i].Content = ""
		}
	}
	return list, nil
}

// CommentInput carries a new comment. IP is the raw client address; only a
// masked form is stored.
type CommentInput struct {
	PostID      uint64
	ReplyTo     *uint64
	AuthorName  string
	AuthorEmail string
	Content     string
	Password    string
	IP          string
}

// CreateComment is open to everyone. The password, when given, is stored as
// a bcrypt hash and later allows the author to delete the comment.
func (c *Client) CreateComment(ctx context.Context, in CommentInput) (*model.Comment, error) {
	author, content := strings.TrimSpace(in.AuthorName), strings.TrimSpace(in.Content)
	if in.PostID == 0 || author == "" || content == "" {
		return nil, apperr.Validation("post_id, author_name and content are required")
	}
	if in.ReplyTo != nil && *in.ReplyTo == 0 {
		in.ReplyTo = nil
	}
	hash, err := utils.HashPassword(in.Password, c.bcryptCost)
	if err != nil {
		return nil, apperr.Wrapf(err, "hash comment password")
	}
	cm := &model.Comment{
		PostID:       in.PostID,
		ReplyTo:      in.ReplyTo,
		AuthorName:   author,
		AuthorEmail:  strings.TrimSpace(in.AuthorEmail),
		Content:      content,
		IPAddress:    utils.MaskIP(in.IP),
		PasswordHash: hash,
	}
	if err := c.repos.Comments.Create(ctx, cm); err != nil {
		return nil, translate(err)
	}
	return cm, nil
}

// DeleteComment removes a comment. Privileged callers soft-delete it and get
// the marked comment back; the cleanup job purges it later. Everyone else
// must present the password the comment was created with and the row is
// removed at once, in which case the returned comment is nil.
func (c *Client) DeleteComment(ctx context.Context, id uint64, password string) (*model.Comment, error) {
	if c.principal.Privileged() {
		cm, err := c.repos.Comments.SoftDelete(ctx, id)
		return cm, translate(err)
	}
	if password == "" {
		return nil, apperr.Validation("password is required")
	}
	cm, err := c.repos.Comments.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !utils.VerifyPassword(cm.PasswordHash, password) {
		return nil, apperr.Unauthorized("wrong password")
	}
	return nil, translate(c.repos.Comments.Delete(ctx, id))
}

// PurgeDeletedComments hard-deletes comments soft-deleted longer than
// olderThan ago.
func (c *Client) PurgeDeletedComments(ctx context.Context, olderThan time.Duration) (int64, error) {
	if err := c.requirePrivileged("purge comments"); err != nil {
		return 0, err
	}
	n, err := c.repos.Comments.PurgeDeleted(ctx, time.Now().Add(-olderThan))
	return n, translate(err)
}

// ----- inquiries -----

func (c *Client) CreateInquiry(ctx context.Context, in *model.Inquiry) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if in.Name == "" || in.Email == "" || in.Message == "" {
		return apperr.Validation("name, email and message are required")
	}
	if !strings.Contains(in.Email, "@") {
		return apperr.Validation("email is invalid")
	}
	in.Status = model.InquiryNew
	return translate(c.repos.Inquiries.Create(ctx, in))
}

func (c *Client) ListInquiries(ctx context.Context, status string) ([]model.Inquiry, error) {
	if err := c.requirePrivileged("read inquiries"); err != nil {
		return nil, err
	}
	if status != "" && !model.ValidInquiryStatus(status) {
		return nil, apperr.Validation("unknown status")
	}
	list, err := c.repos.Inquiries.List(ctx, status)
	return list, translate(err)
}

func (c *Client) UpdateInquiryStatus(ctx context.Context, id uint64, status string) (*model.Inquiry, error) {
	if err := c.requirePrivileged("update inquiries"); err != nil {
		return nil, err
	}
	if !model.ValidInquiryStatus(status) {
		return nil, apperr.Validation("unknown status")
	}
	if err := c.repos.Inquiries.UpdateStatus(ctx, id, status); err != nil {
		return nil, translate(err)
	}
	in, err := c.repos.Inquiries.GetByID(ctx, id)
	return in, translate(err)
}

func (c *Client) DeleteInquiry(ctx context.Context, id uint64) error {
	if err := c.requirePrivileged("delete inquiries"); err != nil {
		return err
	}
	return translate(c.repos.Inquiries.Delete(ctx, id))
}
