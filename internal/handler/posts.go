package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/myblog/internal/backend"
)

// CachePurger drops cached public responses after content changes.
type CachePurger interface {
	Purge(ctx context.Context)
}

// PostHandler serves the public post pages and the admin post editor.
type PostHandler struct {
	Clients    Clients
	Purger     CachePurger // may be nil
	Production bool
}

func NewPostHandler(clients Clients, purger CachePurger, production bool) *PostHandler {
	return &PostHandler{Clients: clients, Purger: purger, Production: production}
}

type postReq struct {
	ID         uint64  `json:"id"`
	Title      *string `json:"title"`
	Slug       *string `json:"slug"`
	Excerpt    *string `json:"excerpt"`
	Content    *string `json:"content"`
	CoverImage *string `json:"cover_image"`
	Published  *bool   `json:"published"`
}

func (r postReq) input() backend.PostInput {
	return backend.PostInput{
		Title:      r.Title,
		Slug:       r.Slug,
		Excerpt:    r.Excerpt,
		Content:    r.Content,
		CoverImage: r.CoverImage,
		Published:  r.Published,
	}
}

func (h *PostHandler) purge(ctx context.Context) {
	if h.Purger != nil {
		h.Purger.Purge(ctx)
	}
}

// List: GET /api/posts?limit=&offset=. Admins also see drafts.
func (h *PostHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	client, err := h.Clients.ForRead(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	posts, err := client.ListPosts(ctx, limit, offset)
	if err != nil {
		return respond(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, echo.Map{"posts": posts})
}

// Search: GET /api/posts/search?q=&page=&page_size=
func (h *PostHandler) Search(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	if ps < 1 {
		ps = 20
	}
	if ps > 100 {
		ps = 100
	}

	client, err := h.Clients.ForRead(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, total, err := client.SearchPosts(ctx, c.QueryParam("q"), page, ps)
	if err != nil {
		return respond(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      items,
		"total":     total,
		"page":      page,
		"page_size": ps,
	})
}

// Get: GET /api/posts/:slug
func (h *PostHandler) Get(c echo.Context) error {
	client, err := h.Clients.ForRead(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := client.GetPost(ctx, c.Param("slug"))
	if err != nil {
		return respond(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, p)
}

// Create: POST /api/admin/posts
func (h *PostHandler) Create(c echo.Context) error {
	var req postReq
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), h.Production)
	}
	client, err := h.Clients.ForWrite(c)
	if err != nil {
		return respond(c, err, h.Production)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := client.CreatePost(ctx, req.input())
	if err != nil {
		return respond(c, err, h.Production)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, p)
}

// Update: PUT /api/admin/posts with the id in the body. Omitted fields keep
// their value.
func (h *PostHandler) Update(c echo.Context) error {
	var req postReq
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), h.Production)
	}
	if req.ID == 0 {
		return respond(c, badID(), h.Production)
	}
	client, err := h.Clients.ForWrite(c)
	if err != nil {
		return respond(c, err, h.Production)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := client.UpdatePost(ctx, req.ID, req.input())
	if err != nil {
		return respond(c, err, h.Production)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, p)
}

// Delete: DELETE /api/admin/posts?id=
func (h *PostHandler) Delete(c echo.Context) error {
	id, err := parseID(c.QueryParam("id"))
	if err != nil {
		return respond(c, err, h.Production)
	}
	client, err := h.Clients.ForWrite(c)
	if err != nil {
		return respond(c, err, h.Production)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := client.DeletePost(ctx, id); err != nil {
		return respond(c, err, h.Production)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
