// Package middleware provides shared request processing for handlers.
package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/myblog/internal/session"
)

const (
	identityKey = "identity"
	cookiesKey  = "cookies"
)

// Session resolves the request's identity once and stores it, together with
// the cookie store used to resolve it, on the echo context. A request
// without a session continues anonymously; route handlers decide whether
// that is acceptable.
func Session(r *session.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			store := session.NewEchoCookies(c)
			c.Set(cookiesKey, store)

			req := c.Request()
			id, err := r.Resolve(req.Context(), store)
			if err == nil {
				c.Set(identityKey, id)
				c.SetRequest(req.WithContext(session.WithIdentity(req.Context(), id)))
			}
			return next(c)
		}
	}
}

// IdentityFrom returns the identity resolved by Session, or nil.
func IdentityFrom(c echo.Context) *session.Identity {
	id, _ := c.Get(identityKey).(*session.Identity)
	return id
}

// CookiesFrom returns the request's cookie store, creating one when Session
// did not run.
func CookiesFrom(c echo.Context) session.CookieStore {
	if s, ok := c.Get(cookiesKey).(session.CookieStore); ok {
		return s
	}
	s := session.NewEchoCookies(c)
	c.Set(cookiesKey, s)
	return s
}
