package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AdminHeader marks every response under /admin.
const AdminHeader = "x-myblog"

// AdminPages guards the admin console pages. Every response gets the
// x-myblog marker; requests without a session are redirected to loginPath,
// except the login page itself.
func AdminPages(loginPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(AdminHeader, "1")
			path := strings.TrimRight(c.Request().URL.Path, "/")
			if path == loginPath || strings.HasPrefix(path, loginPath+"/") {
				return next(c)
			}
			if IdentityFrom(c) == nil {
				return c.Redirect(http.StatusFound, loginPath)
			}
			return next(c)
		}
	}
}
