package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/myblog/internal/adminsession"
	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/config"
	"github.com/iliyamo/myblog/internal/middleware"
	"github.com/iliyamo/myblog/internal/provider"
	"github.com/iliyamo/myblog/internal/session"
)

// DebugHandler serves developer helpers. The router only mounts it outside
// production and when ENABLE_DEBUG_ROUTES is on.
type DebugHandler struct {
	Cfg     config.Config
	Signer  *adminsession.Signer
	Cookies session.CookieOptions
}

type debugSessionReq struct {
	Email string `json:"email"`
	ID    string `json:"id"`
}

// devEmail is the identity a debug session gets when none is named.
const devEmail = "dev@example.local"

// devTokenTTL is the lifetime written into the placeholder token pair.
const devTokenTTL = time.Hour

// devToken returns "dev.<kind>.<64 hex chars>".
func devToken(kind string) string {
	return "dev." + kind + "." + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// Session: POST /api/debug/session issues an admin-session token for email
// (dev@example.local when empty) and sets it as a cookie next to a
// placeholder token pair, so pages that only look for the pair cookies
// render as signed in. The admin token is signed when a secret is
// configured; otherwise an unsigned token is issued only in devsession
// builds with ALLOW_UNSIGNED_ADMIN_SESSION set.
func (h *DebugHandler) Session(c echo.Context) error {
	var req debugSessionReq
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), false)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		req.Email = devEmail
	}
	if req.ID == "" {
		req.ID = "dev-" + req.Email
	}
	claims := adminsession.Claims{UserID: req.ID, Email: req.Email, Role: adminsession.RoleAdmin}
	ttl := h.Cfg.AdminSessionTTL

	var (
		tok    string
		err    error
		signed = h.Signer.HasSecret()
	)
	switch {
	case signed:
		tok, err = h.Signer.Sign(claims, ttl)
	case h.Cfg.AllowUnsignedAdminSession && adminsession.UnsignedCompiled:
		tok, err = h.Signer.SignUnsigned(claims, ttl)
		log.Ctx(c.Request().Context()).Warn().Str("email", req.Email).Msg("debug: issued UNSIGNED admin-session token")
	default:
		err = apperr.Configuration("ADMIN_SESSION_SECRET is not set")
	}
	if err != nil {
		return respond(c, err, false)
	}

	pair := provider.TokenPair{
		AccessToken:  devToken("access"),
		RefreshToken: devToken("refresh"),
		ExpiresAt:    time.Now().Add(devTokenTTL),
	}
	cookies := append(h.Cookies.PairCookies(pair), h.Cookies.AdminCookie(tok, ttl))
	middleware.CookiesFrom(c).SetAll(cookies)
	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"email":        req.Email,
		"adminSession": tok,
		"signed":       signed,
		"cookie":       session.AdminCookieName,
		"expiresAt":    time.Now().Add(ttl).UTC(),
	})
}

// Verify: POST /api/debug/verify echoes what Verify makes of a token.
func (h *DebugHandler) Verify(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), false)
	}
	if req.Token == "" {
		if v, ok := middleware.CookiesFrom(c).Get(session.AdminCookieName); ok {
			req.Token = v
		}
	}
	claims, err := h.Signer.Verify(req.Token)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"valid": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "claims": claims})
}

// Env: GET /api/debug/env reports which secrets are present, never their
// values.
func (h *DebugHandler) Env(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"env":                          h.Cfg.Env,
		"hasAdminSessionSecret":        h.Cfg.AdminSessionSecret != "",
		"hasProviderURL":               h.Cfg.ProviderURL != "",
		"hasAnonKey":                   h.Cfg.AnonKey != "",
		"hasServiceRoleKey":            h.Cfg.ServiceRoleKey != "",
		"allowServiceRoleFallback":     h.Cfg.AllowServiceRoleFallback,
		"allowUnsignedAdminSession":    h.Cfg.AllowUnsignedAdminSession,
		"unsignedAdminSessionCompiled": adminsession.UnsignedCompiled,
	})
}
