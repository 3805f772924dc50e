// Package session resolves the identity behind a request from its cookies.
package session

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/myblog/internal/provider"
)

// Cookie names.
const (
	AccessCookie    = "sb-access-token"
	RefreshCookie   = "sb-refresh-token"
	ExpiresCookie   = "sb-expires-at"
	AdminCookieName = "admin-session"
	ThemeCookieName = "theme"
)

// refreshCookieTTL bounds how long the pair cookies live in the browser. The
// provider decides whether the refresh token inside is still good.
const refreshCookieTTL = 30 * 24 * time.Hour

// CookieStore is the request's cookie jar. Reads see writes made earlier in
// the same request.
type CookieStore interface {
	Get(name string) (string, bool)
	All() []*http.Cookie
	SetAll(cookies []*http.Cookie)
}

// CookieOptions carries the attributes shared by every session cookie.
type CookieOptions struct {
	Secure bool
	Domain string
}

func (o CookieOptions) base(name, value string, maxAge time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	} else {
		ck.MaxAge = int(maxAge / time.Second)
	}
	return ck
}

// PairCookies returns the access, refresh and expiry-hint cookies for p.
func (o CookieOptions) PairCookies(p provider.TokenPair) []*http.Cookie {
	out := []*http.Cookie{
		o.base(AccessCookie, p.AccessToken, refreshCookieTTL),
		o.base(RefreshCookie, p.RefreshToken, refreshCookieTTL),
	}
	if !p.ExpiresAt.IsZero() {
		out = append(out, o.base(ExpiresCookie, strconv.FormatInt(p.ExpiresAt.Unix(), 10), refreshCookieTTL))
	}
	return out
}

// AdminCookie wraps an admin-session token.
func (o CookieOptions) AdminCookie(token string, ttl time.Duration) *http.Cookie {
	return o.base(AdminCookieName, token, ttl)
}

// ThemeCookie is readable by scripts so the page can apply it before paint.
func (o CookieOptions) ThemeCookie(theme string) *http.Cookie {
	ck := o.base(ThemeCookieName, theme, 365*24*time.Hour)
	ck.HttpOnly = false
	return ck
}

// Expire returns deletion cookies for names.
func (o CookieOptions) Expire(names ...string) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(names))
	for _, n := range names {
		out = append(out, o.base(n, "", -1))
	}
	return out
}

// ClearCookies expires every session cookie, including any provider helper
// cookies present in store.
func (o CookieOptions) ClearCookies(store CookieStore) []*http.Cookie {
	names := []string{AccessCookie, RefreshCookie, ExpiresCookie, AdminCookieName}
	if store != nil {
		for _, ck := range store.All() {
			if isHelperCookie(ck.Name) {
				names = append(names, ck.Name)
			}
		}
	}
	return o.Expire(names...)
}

// EchoCookies adapts an echo.Context to CookieStore.
type EchoCookies struct {
	c       echo.Context
	written map[string]*http.Cookie
	order   []string
}

func NewEchoCookies(c echo.Context) *EchoCookies {
	return &EchoCookies{c: c, written: map[string]*http.Cookie{}}
}

func (e *EchoCookies) Get(name string) (string, bool) {
	if ck, ok := e.written[name]; ok {
		if ck.MaxAge < 0 || ck.Value == "" {
			return "", false
		}
		return ck.Value, true
	}
	ck, err := e.c.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (e *EchoCookies) All() []*http.Cookie {
	var out []*http.Cookie
	for _, ck := range e.c.Cookies() {
		if _, ok := e.written[ck.Name]; !ok {
			out = append(out, ck)
		}
	}
	for _, name := range e.order {
		if ck := e.written[name]; ck.MaxAge >= 0 && ck.Value != "" {
			out = append(out, ck)
		}
	}
	return out
}

func (e *EchoCookies) SetAll(cookies []*http.Cookie) {
	for _, ck := range cookies {
		e.c.SetCookie(ck)
		if _, seen := e.written[ck.Name]; !seen {
			e.order = append(e.order, ck.Name)
		}
		e.written[ck.Name] = ck
	}
}

// MemoryCookies is a CookieStore backed by a map. Written records every
// cookie passed to SetAll.
type MemoryCookies struct {
	values  map[string]string
	order   []string
	Written []*http.Cookie
}

func NewMemoryCookies(kv ...string) *MemoryCookies {
	m := &MemoryCookies{values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		m.set(kv[i], kv[i+1])
	}
	return m
}

func (m *MemoryCookies) set(name, value string) {
	if !slices.Contains(m.order, name) {
		m.order = append(m.order, name)
	}
	m.values[name] = value
}

func (m *MemoryCookies) Get(name string) (string, bool) {
	v, ok := m.values[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (m *MemoryCookies) All() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(m.order))
	for _, n := range m.order {
		if v, ok := m.values[n]; ok {
			out = append(out, &http.Cookie{Name: n, Value: v})
		}
	}
	return out
}

func (m *MemoryCookies) SetAll(cookies []*http.Cookie) {
	for _, ck := range cookies {
		m.Written = append(m.Written, ck)
		if ck.MaxAge < 0 {
			delete(m.values, ck.Name)
			continue
		}
		m.set(ck.Name, ck.Value)
	}
}
