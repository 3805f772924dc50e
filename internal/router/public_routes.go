package router

import (
	"github.com/labstack/echo/v4"
)

// registerPublic mounts the reader-facing API. Anonymous writes (comments,
// inquiries) and login are rate limited; post reads are cached for
// anonymous readers.
func registerPublic(api *echo.Group, h handlers, limit, cache echo.MiddlewareFunc) {
	api.GET("/posts", h.posts.List, cache)
	api.GET("/posts/search", h.posts.Search, cache)
	api.GET("/posts/:slug", h.posts.Get, cache)
	api.GET("/posts/:slug/comments", h.comments.ListByPost)

	api.POST("/comments", h.comments.Create, limit)
	api.DELETE("/comments/:id", h.comments.Delete)
	api.POST("/comments/cleanup", h.comments.Cleanup, limit)

	api.POST("/inquiries", h.inquiries.Create, limit)

	api.GET("/theme", h.theme.Get)
	api.PUT("/theme", h.theme.Set)

	api.POST("/admin/login", h.auth.Login, limit)
	api.POST("/admin/logout", h.auth.Logout)
	api.GET("/admin/session", h.auth.Session)
}
