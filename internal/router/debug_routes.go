package router

import "github.com/labstack/echo/v4"

// registerDebug mounts developer helpers. Callers only do so outside
// production.
func registerDebug(api *echo.Group, h handlers) {
	d := api.Group("/debug")
	d.POST("/session", h.debug.Session)
	d.POST("/verify", h.debug.Verify)
	d.GET("/env", h.debug.Env)
}
