package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/middleware"
	"github.com/iliyamo/myblog/internal/session"
)

var themes = map[string]bool{"light": true, "dark": true, "system": true}

// ThemeHandler stores the reader's colour scheme preference in a cookie.
type ThemeHandler struct {
	Cookies session.CookieOptions
}

func (h ThemeHandler) Get(c echo.Context) error {
	theme, ok := middleware.CookiesFrom(c).Get(session.ThemeCookieName)
	if !ok || !themes[theme] {
		theme = "system"
	}
	return c.JSON(http.StatusOK, echo.Map{"theme": theme})
}

// Set: PUT /api/theme with {"theme": "light"|"dark"|"system"}
func (h ThemeHandler) Set(c echo.Context) error {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := c.Bind(&req); err != nil || !themes[req.Theme] {
		return respond(c, apperr.Validation("theme must be light, dark or system"), false)
	}
	middleware.CookiesFrom(c).SetAll([]*http.Cookie{h.Cookies.ThemeCookie(req.Theme)})
	return c.JSON(http.StatusOK, echo.Map{"theme": req.Theme})
}
