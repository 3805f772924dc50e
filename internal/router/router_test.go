package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/myblog/internal/audit"
	"github.com/iliyamo/myblog/internal/config"
	"github.com/iliyamo/myblog/internal/database"
	"github.com/iliyamo/myblog/internal/middleware"
	"github.com/iliyamo/myblog/internal/provider"
	"github.com/iliyamo/myblog/internal/queue"
	"github.com/iliyamo/myblog/internal/session"
)

const password = "pw"

// fakeAuth is a tiny GoTrue stand-in. Access tokens are "token-<email>".
func fakeAuth(t *testing.T) *httptest.Server {
	t.Helper()
	user := func(email string) map[string]any {
		return map[string]any{"id": "id-" + email, "email": email}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/user":
			email, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer token-")
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(user(email))
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
			var body struct{ Email, Password string }
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Password != password {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "token-" + body.Email,
				"refresh_token": strings.Repeat("r", 64),
				"expires_in":    3600,
				"user":          user(body.Email),
			})
		case r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.InquiryReceivedEvent
}

func (p *recordingPublisher) PublishInquiryReceived(_ context.Context, ev queue.InquiryReceivedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type testServer struct {
	e   *echo.Echo
	pub *recordingPublisher
}

func newServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Config{
		Env:                "test",
		DBDriver:           "sqlite",
		DBPath:             ":memory:",
		AdminSessionSecret: "test-secret",
		AdminSessionTTL:    time.Hour,
		AdminEmails:        []string{"owner@example.com"},
		RefreshGrace:       time.Minute,
		DebugRoutes:        true,
		BcryptCost:         bcrypt.MinCost,
		UploadDir:          t.TempDir(),
		UploadMaxBytes:     1 << 20,
		UploadPublicPrefix: "/uploads",
		ServiceRoleKey:     "service",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	db, err := database.Open(cfg.DBDriver, cfg.DSN())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var trail *audit.Logger
	if cfg.AuditLogDir != "" {
		trail, err = audit.Open(cfg.AuditLogDir, cfg.Env)
		require.NoError(t, err)
		t.Cleanup(func() { trail.Close() })
	}

	auth := fakeAuth(t)
	pub := &recordingPublisher{}
	e := New(cfg, Services{
		DB:        db,
		Gateway:   provider.NewGateway(auth.URL, "anon", cfg.ServiceRoleKey, time.Second),
		Publisher: pub,
		Logger:    zerolog.Nop(),
		Audit:     trail,
	})
	return &testServer{e: e, pub: pub}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// send serves a hand-built request, for cases that need extra headers.
func (s *testServer) send(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func (s *testServer) login(t *testing.T, email string) []*http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/admin/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Result().Cookies()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginThenSession(t *testing.T) {
	s := newServer(t, nil)

	cookies := s.login(t, "owner@example.com")
	access := cookieNamed(cookies, session.AccessCookie)
	require.NotNil(t, access)
	require.Equal(t, "token-owner@example.com", access.Value)
	require.True(t, access.HttpOnly)
	require.NotNil(t, cookieNamed(cookies, session.RefreshCookie))
	require.NotNil(t, cookieNamed(cookies, session.AdminCookieName), "admins get an admin-session cookie")

	rec := s.do(t, http.MethodGet, "/api/admin/session", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, true, body["hasSession"])
	require.Equal(t, session.SourceTokenPair, body["source"])
	require.Equal(t, "owner@example.com", body["user"].(map[string]any)["email"])
	require.Equal(t, "admin", body["user"].(map[string]any)["role"])

	rec = s.do(t, http.MethodGet, "/api/admin/session", nil, cookieNamed(cookies, session.AdminCookieName))
	require.Equal(t, session.SourceAdminSession, decode(t, rec)["source"])
}

func TestSessionWithoutCookies(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/admin/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decode(t, rec)["hasSession"])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/admin/login", map[string]string{"email": "owner@example.com", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestLogoutClearsCookies(t *testing.T) {
	s := newServer(t, nil)
	cookies := s.login(t, "owner@example.com")

	rec := s.do(t, http.MethodPost, "/api/admin/logout", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode(t, rec)["success"])
	for _, name := range []string{session.AccessCookie, session.RefreshCookie, session.AdminCookieName} {
		c := cookieNamed(rec.Result().Cookies(), name)
		require.NotNil(t, c, name)
		require.Negative(t, c.MaxAge, name)
	}
}

func TestCreatePostFallback(t *testing.T) {
	post := map[string]any{"title": "Hello", "content": "body", "published": true}

	t.Run("fallback enabled", func(t *testing.T) {
		s := newServer(t, func(c *config.Config) { c.AllowServiceRoleFallback = true })
		rec := s.do(t, http.MethodPost, "/api/admin/posts", post)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.Equal(t, "hello", decode(t, rec)["slug"])
	})

	t.Run("fallback disabled", func(t *testing.T) {
		s := newServer(t, nil)
		rec := s.do(t, http.MethodPost, "/api/admin/posts", post)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("fallback without service key", func(t *testing.T) {
		s := newServer(t, func(c *config.Config) {
			c.AllowServiceRoleFallback = true
			c.ServiceRoleKey = ""
		})
		rec := s.do(t, http.MethodPost, "/api/admin/posts", post)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("admin session", func(t *testing.T) {
		s := newServer(t, nil)
		cookies := s.login(t, "owner@example.com")
		rec := s.do(t, http.MethodPost, "/api/admin/posts", post, cookies...)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("non-admin session", func(t *testing.T) {
		s := newServer(t, func(c *config.Config) { c.AllowServiceRoleFallback = true })
		cookies := s.login(t, "reader@example.com")
		rec := s.do(t, http.MethodPost, "/api/admin/posts", post, cookies...)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestDraftsHiddenFromReaders(t *testing.T) {
	s := newServer(t, nil)
	admin := s.login(t, "owner@example.com")
	rec := s.do(t, http.MethodPost, "/api/admin/posts", map[string]any{"title": "Draft", "content": "wip"}, admin...)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/posts/draft", nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/posts/draft", nil, admin...).Code)

	rec = s.do(t, http.MethodGet, "/api/admin/posts", nil, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["posts"], 1)

	require.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/admin/posts", nil).Code)
	reader := s.login(t, "reader@example.com")
	require.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/admin/posts", nil, reader...).Code)
}

func TestCommentDeleteNeedsPassword(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.AllowServiceRoleFallback = true })
	rec := s.do(t, http.MethodPost, "/api/admin/posts", map[string]any{"title": "Open", "content": "x", "published": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decode(t, rec)["id"]

	rec = s.do(t, http.MethodPost, "/api/comments", map[string]any{
		"post_id": postID, "author_name": "ann", "content": "nice", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	require.NotContains(t, created, "password_hash")
	path := fmt.Sprintf("/api/comments/%v", created["id"])

	rec = s.do(t, http.MethodDelete, path, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/comments/9999", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing password is checked before the lookup")

	// the service-role fallback does not apply to comment deletion
	rec = s.do(t, http.MethodDelete, path, map[string]string{"password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodDelete, path, map[string]string{"password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode(t, rec)["success"])

	rec = s.do(t, http.MethodGet, "/api/posts/open/comments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode(t, rec)["comments"])
}

func TestInquiryPublishesEvent(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/inquiries", map[string]string{
		"name": "Bob", "email": "bob@example.com", "subject": "Hi", "message": "hello there",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Eventually(t, func() bool { return s.pub.count() == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/inquiries", nil).Code)
	admin := s.login(t, "owner@example.com")
	rec = s.do(t, http.MethodGet, "/api/inquiries", nil, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInquiryInboxIgnoresFallback(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.AllowServiceRoleFallback = true })
	rec := s.do(t, http.MethodPost, "/api/inquiries", map[string]string{
		"name": "Bob", "email": "bob@example.com", "subject": "Hi", "message": "hello there",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/inquiries", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "reading the inbox never uses the service role")
	require.NotContains(t, rec.Body.String(), "bob@example.com")
}

func TestInquiryHoneypot(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/inquiries", map[string]string{
		"name": "Bot", "email": "bot@example.com", "subject": "Buy", "message": "cheap pills", "website": "http://spam.example",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotContains(t, decode(t, rec), "id")
	require.Never(t, func() bool { return s.pub.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	admin := s.login(t, "owner@example.com")
	rec = s.do(t, http.MethodGet, "/api/inquiries", nil, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode(t, rec)["inquiries"])
}

func TestLoginReplacesAdminCookie(t *testing.T) {
	s := newServer(t, nil)
	admin := s.login(t, "owner@example.com")
	require.NotNil(t, cookieNamed(admin, session.AdminCookieName))

	rec := s.do(t, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "reader@example.com", "password": password}, admin...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	stale := cookieNamed(cookies, session.AdminCookieName)
	require.NotNil(t, stale, "the previous admin cookie is expired")
	require.Negative(t, stale.MaxAge)

	var live []*http.Cookie
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			live = append(live, c)
		}
	}
	body := decode(t, s.do(t, http.MethodGet, "/api/admin/session", nil, live...))
	user := body["user"].(map[string]any)
	require.Equal(t, "reader@example.com", user["email"])
	require.Equal(t, session.RoleAuthenticated, user["role"])
}

func TestBearerToken(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.AllowServiceRoleFallback = true })
	post := map[string]any{"title": "Via token", "content": "x", "published": true}

	req := jsonRequest(t, http.MethodPost, "/api/admin/posts", post)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token-owner@example.com")
	rec := s.send(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "id-owner@example.com", decode(t, rec)["author_id"])

	req = jsonRequest(t, http.MethodPost, "/api/admin/posts", post)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token-reader@example.com")
	require.Equal(t, http.StatusForbidden, s.send(req).Code)

	req = jsonRequest(t, http.MethodPost, "/api/admin/posts", post)
	req.Header.Set(echo.HeaderAuthorization, "Bearer forged")
	require.Equal(t, http.StatusUnauthorized, s.send(req).Code, "a rejected token does not fall back")

	req = httptest.NewRequest(http.MethodGet, "/api/inquiries", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token-owner@example.com")
	require.Equal(t, http.StatusOK, s.send(req).Code)
}

func TestFallbackIsAudited(t *testing.T) {
	dir := t.TempDir()
	s := newServer(t, func(c *config.Config) {
		c.AllowServiceRoleFallback = true
		c.AuditLogDir = dir
	})
	rec := s.do(t, http.MethodPost, "/api/admin/posts", map[string]any{"title": "Hello", "content": "body"})
	require.Equal(t, http.StatusCreated, rec.Code)

	admin := s.login(t, "owner@example.com")
	rec = s.do(t, http.MethodPost, "/api/admin/posts", map[string]any{"title": "Second", "content": "body"}, admin...)
	require.Equal(t, http.StatusCreated, rec.Code)

	raw, err := os.ReadFile(filepath.Join(dir, audit.FileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1, "only the session-less write is recorded")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "/api/admin/posts", entry["route"])
	require.Equal(t, "create", entry["action"])
	require.Equal(t, "posts", entry["resource"])
	require.Equal(t, "service_role_fallback", entry["reason"])
	require.Equal(t, "test", entry["env"])
}

func TestAdminCommentModeration(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.CommentCleanupSecret = "sweep" })
	admin := s.login(t, "owner@example.com")
	rec := s.do(t, http.MethodPost, "/api/admin/posts", map[string]any{"title": "Open", "content": "x", "published": true}, admin...)
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decode(t, rec)["id"]

	req := jsonRequest(t, http.MethodPost, "/api/comments", map[string]any{
		"post_id": postID, "author_name": "ann", "author_email": "ann@example.com", "content": "spam",
	})
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.23")
	rec = s.send(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	root := decode(t, rec)
	require.Equal(t, "198.51.100.***", root["ip_address"])

	rec = s.do(t, http.MethodPost, "/api/comments", map[string]any{
		"post_id": postID, "reply_to": root["id"], "author_name": "bob", "content": "agreed",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, root["id"], decode(t, rec)["reply_to"])

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/comments/%v", root["id"]), map[string]string{}, admin...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	marked := decode(t, rec)["comment"].(map[string]any)
	require.Equal(t, true, marked["deleted_by_admin"])
	require.NotEmpty(t, marked["deleted_at"])

	list := decode(t, s.do(t, http.MethodGet, "/api/posts/open/comments", nil))["comments"].([]any)
	require.Len(t, list, 2, "the reply keeps its parent in the thread")
	first := list[0].(map[string]any)
	require.Empty(t, first["content"])
	require.NotContains(t, first, "author_email")
	require.NotContains(t, first, "ip_address")

	cleanup := func(secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/comments/cleanup", nil)
		if secret != "" {
			req.Header.Set("X-Cleanup-Secret", secret)
		}
		return s.send(req)
	}
	require.Equal(t, http.StatusUnauthorized, cleanup("").Code)
	require.Equal(t, http.StatusUnauthorized, cleanup("guess").Code)
	rec = cleanup("sweep")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, true, body["success"])
	require.EqualValues(t, 0, body["purged"], "deleted less than an hour ago")
}

func TestCommentCleanupDisabledWithoutSecret(t *testing.T) {
	s := newServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/comments/cleanup", nil)
	req.Header.Set("X-Cleanup-Secret", "")
	require.Equal(t, http.StatusUnauthorized, s.send(req).Code)
}

func TestThemeCookie(t *testing.T) {
	s := newServer(t, nil)
	require.Equal(t, "system", decode(t, s.do(t, http.MethodGet, "/api/theme", nil))["theme"])

	rec := s.do(t, http.MethodPut, "/api/theme", map[string]string{"theme": "dark"})
	require.Equal(t, http.StatusOK, rec.Code)
	c := cookieNamed(rec.Result().Cookies(), session.ThemeCookieName)
	require.NotNil(t, c)
	require.Equal(t, "dark", decode(t, s.do(t, http.MethodGet, "/api/theme", nil, c))["theme"])

	require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/theme", map[string]string{"theme": "neon"}).Code)
}

func TestDebugRoutesHiddenInProduction(t *testing.T) {
	dev := newServer(t, nil)
	rec := dev.do(t, http.MethodPost, "/api/debug/session", map[string]string{"email": "owner@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	admin := cookieNamed(rec.Result().Cookies(), session.AdminCookieName)
	require.NotNil(t, admin)
	body := decode(t, dev.do(t, http.MethodGet, "/api/admin/session", nil, admin))
	require.Equal(t, true, body["hasSession"])

	prod := newServer(t, func(c *config.Config) { c.Env = "production" })
	rec = prod.do(t, http.MethodPost, "/api/debug/session", map[string]string{"email": "owner@example.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugSessionDefaults(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/debug/session", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, "dev@example.local", body["email"])
	require.NotEmpty(t, body["adminSession"])

	cookies := rec.Result().Cookies()
	access := cookieNamed(cookies, session.AccessCookie)
	require.NotNil(t, access)
	require.Regexp(t, `^dev\.access\.[0-9a-f]{64}$`, access.Value)
	require.NotNil(t, cookieNamed(cookies, session.RefreshCookie))
	require.NotNil(t, cookieNamed(cookies, session.ExpiresCookie))

	admin := cookieNamed(cookies, session.AdminCookieName)
	require.NotNil(t, admin)
	user := decode(t, s.do(t, http.MethodGet, "/api/admin/session", nil, admin))["user"].(map[string]any)
	require.Equal(t, "dev@example.local", user["email"])
	require.Equal(t, "admin", user["role"])
}

func TestAdminPagesRedirect(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodGet, "/admin/posts", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, adminLoginPath, rec.Header().Get(echo.HeaderLocation))
	require.Equal(t, "1", rec.Header().Get(middleware.AdminHeader))

	rec = s.do(t, http.MethodGet, "/admin/login", nil)
	require.NotEqual(t, http.StatusFound, rec.Code)
	require.Equal(t, "1", rec.Header().Get(middleware.AdminHeader))

	cookies := s.login(t, "owner@example.com")
	rec = s.do(t, http.MethodGet, "/admin/posts", nil, cookies...)
	require.NotEqual(t, http.StatusFound, rec.Code)
}

func TestUploadRequiresAdmin(t *testing.T) {
	s := newServer(t, nil)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	upload := func(cookies []*http.Cookie) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "cover.png")
		require.NoError(t, err)
		_, err = fw.Write(png)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
		req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, upload(nil).Code)

	rec := upload(s.login(t, "owner@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	url, _ := decode(t, rec)["url"].(string)
	require.True(t, strings.HasPrefix(url, "/uploads/"), url)
	require.True(t, strings.HasSuffix(url, ".png"), url)

	got := s.do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, got.Code)
	require.Equal(t, png, got.Body.Bytes())
}

func TestHealthz(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchPosts(t *testing.T) {
	s := newServer(t, nil)
	admin := s.login(t, "owner@example.com")
	for _, p := range []map[string]any{
		{"title": "Echo tips", "content": "middleware", "published": true},
		{"title": "Echo drafts", "content": "later"},
	} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/admin/posts", p, admin...).Code)
	}

	body := decode(t, s.do(t, http.MethodGet, "/api/posts/search?q=echo", nil))
	require.EqualValues(t, 1, body["total"])

	body = decode(t, s.do(t, http.MethodGet, "/api/posts/search?q=echo", nil, admin...))
	require.EqualValues(t, 2, body["total"])

	body = decode(t, s.do(t, http.MethodGet, "/api/posts/search?q=%25", nil))
	require.EqualValues(t, 0, body["total"], "a percent sign is matched literally")
}
