package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/myblog/internal/adminsession"
	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/config"
	"github.com/iliyamo/myblog/internal/provider"
	"github.com/iliyamo/myblog/internal/session"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type staticAuth struct{ users map[string]*provider.User }

func (s staticAuth) FetchUserFromAccess(_ context.Context, tok string) (*provider.User, error) {
	if u, ok := s.users[tok]; ok {
		return u, nil
	}
	return nil, apperr.Unauthorized("access token rejected")
}

func (staticAuth) RefreshAuthTokens(context.Context, string) (*provider.TokenPair, error) {
	return nil, apperr.Upstream("refresh tokens", nil)
}

func newServer(t *testing.T, mws ...echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	auth := staticAuth{users: map[string]*provider.User{
		"reader": {ID: "u-1", Email: "reader@example.com"},
		"owner":  {ID: "u-2", Email: "owner@example.com", AppMetadata: provider.AppMetadata{Role: "admin"}},
	}}
	resolver := session.NewResolver(auth, adminsession.NewSigner("s3cret"), session.Options{})

	e := echo.New()
	e.Use(Session(resolver))
	handler := func(c echo.Context) error {
		uid := ""
		if id := IdentityFrom(c); id != nil {
			uid = id.UserID
		}
		if fromCtx, ok := session.FromContext(c.Request().Context()); ok {
			require.Equal(t, uid, fromCtx.UserID)
		}
		return c.JSON(http.StatusOK, echo.Map{"user": uid, "path": c.Request().URL.Path})
	}
	g := e.Group("", mws...)
	g.GET("/api/posts", handler)
	g.GET("/api/posts/:slug", handler)
	g.POST("/api/comments", handler)
	g.GET("/admin", handler)
	g.GET("/admin/*", handler)
	return e
}

func do(e *echo.Echo, method, target, access string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if access != "" {
		req.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: access})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSessionMiddleware(t *testing.T) {
	e := newServer(t)
	rec := do(e, http.MethodGet, "/api/posts", "reader")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user":"u-1"`)

	rec = do(e, http.MethodGet, "/api/posts", "bogus")
	require.Equal(t, http.StatusOK, rec.Code, "no session is not an error here")
	require.Contains(t, rec.Body.String(), `"user":""`)
}

func TestRequireRole(t *testing.T) {
	e := newServer(t, RequireRole(adminsession.RoleAdmin))
	require.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/posts", "").Code)
	require.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/api/posts", "reader").Code)
	require.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/posts", "owner").Code)
}

func TestAdminPages(t *testing.T) {
	e := newServer(t, AdminPages("/admin/login"))

	rec := do(e, http.MethodGet, "/admin/posts", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin/login", rec.Header().Get("Location"))
	require.Equal(t, "1", rec.Header().Get(AdminHeader))

	rec = do(e, http.MethodGet, "/admin/login", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get(AdminHeader))

	rec = do(e, http.MethodGet, "/admin/posts", "reader")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute,
		TTL: 10 * time.Minute, KeyStrategy: "ip_route", Prefix: "rl",
	}
	e := newServer(t, NewTokenBucket(cfg, rdb))

	for i := 0; i < 2; i++ {
		rec := do(e, http.MethodPost, "/api/comments", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(e, http.MethodPost, "/api/comments", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// a different route has its own bucket
	require.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/posts", "").Code)
}

func TestTokenBucketWithoutRedis(t *testing.T) {
	e := newServer(t, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/comments", "").Code)
	}
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour, Prefix: "rl"}
	e := newServer(t, NewTokenBucket(cfg, rdb))
	mr.Close()
	require.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/comments", "").Code)
}

func TestRedisCache(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}
	e := newServer(t, NewRedisCache(cfg, rdb))

	rec := do(e, http.MethodGet, "/api/posts/hello", "")
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = do(e, http.MethodGet, "/api/posts/hello", "")
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	require.Contains(t, rec.Body.String(), `"path":"/api/posts/hello"`)

	rec = do(e, http.MethodGet, "/api/posts/other", "")
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"), "different slug, different key")

	rec = do(e, http.MethodGet, "/api/posts/hello", "owner")
	require.Empty(t, rec.Header().Get("X-Cache"), "sessions bypass the cache")

	NewCachePurger(cfg, rdb).Purge(context.Background())
	require.Empty(t, mr.Keys())
	rec = do(e, http.MethodGet, "/api/posts/hello", "")
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestNilCachePurger(t *testing.T) {
	var p *CachePurger
	require.NotPanics(t, func() { p.Purge(context.Background()) })
	require.Nil(t, NewCachePurger(config.CacheConfig{Enabled: true}, nil))
}
