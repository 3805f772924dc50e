package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/myblog/internal/adminsession"
	"github.com/iliyamo/myblog/internal/middleware"
)

const adminLoginPath = "/admin/login"

// registerAdmin mounts the content management API. Writes go through
// handler.Clients.ForWrite, which decides between the caller's session and
// the service-role fallback; the row rules in backend do the rest.
func registerAdmin(api *echo.Group, h handlers) {
	api.GET("/admin/posts", h.posts.List, middleware.RequireRole(adminsession.RoleAdmin))
	api.POST("/admin/posts", h.posts.Create)
	api.PUT("/admin/posts", h.posts.Update)
	api.DELETE("/admin/posts", h.posts.Delete)

	api.GET("/inquiries", h.inquiries.List)
	api.PATCH("/inquiries", h.inquiries.UpdateStatus)
	api.DELETE("/inquiries", h.inquiries.Delete)

	api.POST("/upload", h.upload.Upload)
}

// registerAdminPages guards the admin console under /admin. When dir is set
// the console's static build is served from it.
func registerAdminPages(e *echo.Echo, dir string, sessionMW echo.MiddlewareFunc) {
	g := e.Group("/admin", sessionMW, middleware.AdminPages(adminLoginPath))
	if dir != "" {
		g.Use(echomw.StaticWithConfig(echomw.StaticConfig{Root: dir, HTML5: true}))
		return
	}
	notInstalled := func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "admin console not installed"})
	}
	g.GET("", notInstalled)
	g.GET("/*", notInstalled)
}
