// Package handler contains the HTTP handlers. Every error response is JSON
// of the form {"error": "..."}.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/audit"
	"github.com/iliyamo/myblog/internal/backend"
	"github.com/iliyamo/myblog/internal/middleware"
)

// requestTimeout bounds database work done inside one handler.
const requestTimeout = 5 * time.Second

// Clients picks the data client for a request. It is the one place where
// the service-role fallback is decided.
type Clients struct {
	Factory *backend.Factory
	// AllowFallback lets writes without a session run with the service-role
	// client. It is an explicit setting and never implied by the environment.
	AllowFallback bool
	// Audit receives one entry per fallback use. May be nil.
	Audit *audit.Logger
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(c echo.Context) string {
	scheme, tok, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// fromRequest returns a client for the cookie session or, failing that, for
// a bearer access token. ok is false when the request carries neither.
func (cl Clients) fromRequest(c echo.Context) (client *backend.Client, ok bool, err error) {
	if id := middleware.IdentityFrom(c); id != nil {
		return cl.Factory.ForIdentity(id), true, nil
	}
	if tok := bearerToken(c); tok != "" {
		client, err := cl.Factory.WithAccess(c.Request().Context(), tok)
		if err != nil {
			return nil, true, err
		}
		return client, true, nil
	}
	return nil, false, nil
}

// ForRead returns a client for the resolved identity or bearer token, or an
// anonymous one. A bearer token that does not verify is an error.
func (cl Clients) ForRead(c echo.Context) (*backend.Client, error) {
	client, ok, err := cl.fromRequest(c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return cl.Factory.Anonymous(), nil
	}
	return client, nil
}

// ForWrite is ForRead for writes. Without credentials it falls back to the
// service role when allowed, and fails with 401 otherwise.
func (cl Clients) ForWrite(c echo.Context) (*backend.Client, error) {
	client, ok, err := cl.fromRequest(c)
	if ok || err != nil {
		return client, err
	}
	if !cl.AllowFallback {
		return nil, apperr.Unauthorized("unauthorized")
	}
	client, err = cl.Factory.ServiceRole()
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	log.Ctx(ctx).Warn().
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Msg("no session: request served with the service-role client")
	cl.Audit.Record(ctx, audit.Entry{
		Route:    c.Path(),
		Method:   c.Request().Method,
		Action:   actionOf(c.Request().Method),
		Resource: resourceOf(c.Path()),
		ID:       c.Param("id"),
		Reason:   "service_role_fallback",
	})
	return client, nil
}

func actionOf(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return "write"
}

// resourceOf names the table a route works on: "/api/admin/posts/:id" is
// "posts".
func resourceOf(route string) string {
	for _, seg := range strings.Split(route, "/") {
		switch seg {
		case "posts", "comments", "inquiries", "upload":
			return seg
		}
	}
	return ""
}

// respond writes err as {"error": msg} with the status its kind maps to.
// Internal errors are logged; their text is only shown outside production.
func respond(c echo.Context, err error, production bool) error {
	status := apperr.Status(err)
	msg := apperr.Message(err)
	if status == http.StatusInternalServerError {
		log.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		if production {
			msg = "internal server error"
		}
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// ErrorHandler is the echo.HTTPErrorHandler of last resort.
func ErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			_ = c.JSON(he.Code, echo.Map{"error": msg})
			return
		}
		_ = respond(c, err, production)
	}
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// parseID reads a positive integer id.
func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

func badBody() error { return apperr.Validation("invalid body") }

func badID() error { return apperr.Validation("id is required") }
