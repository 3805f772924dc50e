package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/myblog/internal/adminsession"
	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/config"
	"github.com/iliyamo/myblog/internal/middleware"
	"github.com/iliyamo/myblog/internal/provider"
	"github.com/iliyamo/myblog/internal/session"
)

// AuthProvider is the part of provider.Gateway the login flow needs.
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*provider.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AuthHandler serves login, logout and the session check.
type AuthHandler struct {
	Cfg     config.Config
	Auth    AuthProvider
	Signer  *adminsession.Signer
	Cookies session.CookieOptions
}

func NewAuthHandler(cfg config.Config, auth AuthProvider, signer *adminsession.Signer, cookies session.CookieOptions) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: auth, Signer: signer, Cookies: cookies}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResp struct {
	User      userPart  `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     bool      `json:"admin"`
}

type sessionResp struct {
	HasSession bool       `json:"hasSession"`
	User       *userPart  `json:"user,omitempty"`
	Source     string     `json:"source,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Login signs in with the provider and stores the token pair in cookies.
// Admins additionally receive a signed admin-session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), h.Cfg.IsProduction())
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return respond(c, apperr.Validation("email/password required"), h.Cfg.IsProduction())
	}

	s, err := h.Auth.SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respond(c, err, h.Cfg.IsProduction())
	}

	store := middleware.CookiesFrom(c)
	cookies := h.Cookies.PairCookies(s.TokenPair)

	role := session.RoleAuthenticated
	admin := s.User.IsAdmin(h.Cfg.AdminEmails)
	issued := false
	if admin {
		role = adminsession.RoleAdmin
		tok, err := h.Signer.Sign(adminsession.Claims{UserID: s.User.ID, Email: s.User.Email, Role: role}, h.Cfg.AdminSessionTTL)
		if err != nil {
			// the token pair alone still resolves the admin
			log.Ctx(c.Request().Context()).Warn().Err(err).Msg("login: admin-session cookie not issued")
		} else {
			cookies = append(cookies, h.Cookies.AdminCookie(tok, h.Cfg.AdminSessionTTL))
			issued = true
		}
	}
	if !issued {
		// a leftover admin cookie from an earlier login would outrank the new pair
		cookies = append(cookies, h.Cookies.Expire(session.AdminCookieName)...)
	}
	store.SetAll(cookies)

	return c.JSON(http.StatusOK, loginResp{
		User:      userPart{ID: s.User.ID, Email: s.User.Email, Role: role},
		ExpiresAt: s.ExpiresAt,
		Admin:     admin,
	})
}

// Logout revokes the provider session (best effort) and clears every
// session cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	store := middleware.CookiesFrom(c)
	access := ""
	if id := middleware.IdentityFrom(c); id != nil {
		access = id.AccessToken
	}
	if access == "" {
		access, _ = store.Get(session.AccessCookie)
	}
	if err := h.Auth.SignOut(c.Request().Context(), access); err != nil {
		log.Ctx(c.Request().Context()).Warn().Err(err).Msg("logout: provider sign-out failed")
	}
	store.SetAll(h.Cookies.ClearCookies(store))
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Session reports the identity resolved for this request. Having no session
// is a normal answer, not an error.
func (h *AuthHandler) Session(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return c.JSON(http.StatusOK, sessionResp{HasSession: false})
	}
	resp := sessionResp{
		HasSession: true,
		User:       &userPart{ID: id.UserID, Email: id.Email, Role: id.Role},
		Source:     id.Source,
	}
	if !id.ExpiresAt.IsZero() {
		exp := id.ExpiresAt.UTC()
		resp.ExpiresAt = &exp
	}
	return c.JSON(http.StatusOK, resp)
}
