package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/audit"
	"github.com/iliyamo/myblog/internal/backend"
)

// CleanupSecretHeader carries the shared secret of the comment cleanup job.
const CleanupSecretHeader = "X-Cleanup-Secret"

// purgeAfter is how long an admin-deleted comment is kept before cleanup
// removes it.
const purgeAfter = time.Hour

// CommentHandler serves reader comments. Deleting a comment never uses the
// service-role fallback: without an admin session the comment's password
// is the only credential.
type CommentHandler struct {
	Clients    Clients
	Production bool
	// CleanupSecret guards the cleanup endpoint. Empty disables it.
	CleanupSecret string
}

func NewCommentHandler(clients Clients, production bool, cleanupSecret string) *CommentHandler {
	return &CommentHandler{Clients: clients, Production: production, CleanupSecret: cleanupSecret}
}

type createCommentReq struct {
	PostID      uint64  `json:"post_id"`
	ReplyTo     *uint64 `json:"reply_to"`
	AuthorName  string  `json:"author_name"`
	AuthorEmail string  `json:"author_email"`
	Content     string  `json:"content"`
	Password    string  `json:"password"`
}

type deleteCommentReq struct {
	Password string `json:"password"`
}

// ListByPost: GET /api/posts/:slug/comments
func (h *CommentHandler) ListByPost(c echo.Context) error {
	client, err := h.Clients.ForRead(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := client.ListComments(ctx, c.Param("slug"))
	if err != nil {
		return respond(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": list})
}

// Create: POST /api/comments
func (h *CommentHandler) Create(c echo.Context) error {
	var req createCommentReq
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), h.Production)
	}
	client, err := h.Clients.ForRead(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	cm, err := client.CreateComment(ctx, backend.CommentInput{
		PostID:      req.PostID,
		ReplyTo:     req.ReplyTo,
		AuthorName:  req.AuthorName,
		AuthorEmail: req.AuthorEmail,
		Content:     req.Content,
		Password:    req.Password,
		IP:          c.RealIP(),
	})
	if err != nil {
		return respond(c, err, h.Production)
	}
	return c.JSON(http.StatusCreated, cm)
}

// Delete: DELETE /api/comments/:id with {"password": "..."}. Admins
// soft-delete and get the marked comment back.
func (h *CommentHandler) Delete(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return respond(c, err, h.Production)
	}
	var req deleteCommentReq
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), h.Production)
	}
	client, err := h.Clients.ForRead(c)
	if err != nil {
		return respond(c, err, h.Production)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	cm, err := client.DeleteComment(ctx, id, req.Password)
	if err != nil {
		return respond(c, err, h.Production)
	}
	if cm != nil {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "comment": cm})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Cleanup: POST /api/comments/cleanup. Called by a scheduler with the
// shared secret in X-Cleanup-Secret; purges comments soft-deleted over an
// hour ago using the service-role client.
func (h *CommentHandler) Cleanup(c echo.Context) error {
	got := c.Request().Header.Get(CleanupSecretHeader)
	if h.CleanupSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.CleanupSecret)) != 1 {
		return respond(c, apperr.Unauthorized("unauthorized"), h.Production)
	}
	client, err := h.Clients.Factory.ServiceRole()
	if err != nil {
		return respond(c, err, h.Production)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	n, err := client.PurgeDeletedComments(ctx, purgeAfter)
	if err != nil {
		return respond(c, err, h.Production)
	}
	h.Clients.Audit.Record(ctx, audit.Entry{
		Route:    c.Path(),
		Method:   c.Request().Method,
		Action:   "purge",
		Resource: "comments",
		Reason:   "comment_cleanup",
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true, "purged": n})
}
