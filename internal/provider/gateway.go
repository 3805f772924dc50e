// Package provider talks to the hosted auth provider's REST endpoints
// (GoTrue-style /auth/v1/*). It holds no state besides its HTTP client;
// every call is a single round trip.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/myblog/internal/apperr"
)

var (
	// ErrImplausibleToken is returned without a network call when a refresh
	// token cannot possibly be valid.
	ErrImplausibleToken = apperr.Unauthorized("refresh token is not plausible")
	// ErrInvalidCredentials is returned by SignInWithPassword on 400/401.
	ErrInvalidCredentials = apperr.Unauthorized("invalid email or password")
	// ErrNotConfigured is returned when the gateway has no base URL.
	ErrNotConfigured = apperr.Configuration("auth provider URL is not configured")
)

// Gateway is a thin client for the auth provider.
type Gateway struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	http           *http.Client
	now            func() time.Time
}

// NewGateway builds a Gateway. timeout bounds every outbound call on top of
// the caller's context; zero means 10s.
func NewGateway(baseURL, anonKey, serviceRoleKey string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		baseURL:        strings.TrimRight(baseURL, "/"),
		anonKey:        anonKey,
		serviceRoleKey: serviceRoleKey,
		http:           &http.Client{Timeout: timeout},
		now:            time.Now,
	}
}

// Configured reports whether a base URL was given.
func (g *Gateway) Configured() bool { return g != nil && g.baseURL != "" }

// HasServiceRoleKey reports whether privileged calls are possible.
func (g *Gateway) HasServiceRoleKey() bool { return g != nil && g.serviceRoleKey != "" }

// FetchUserFromAccess exchanges an access token for the user it belongs to.
// Any failure, network or non-2xx, is an error; nothing is cached.
func (g *Gateway) FetchUserFromAccess(ctx context.Context, accessToken string) (*User, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperr.Unauthorized("missing access token")
	}
	req, err := g.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var u User
	status, body, err := g.do(req, &u)
	if err != nil {
		return nil, apperr.Upstream("fetch user", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, apperr.Unauthorized("access token rejected")
	}
	if status/100 != 2 {
		return nil, apperr.Upstream("fetch user", fmt.Errorf("status %d: %s", status, body.message()))
	}
	if u.ID == "" {
		return nil, apperr.Upstream("fetch user", errors.New("response has no user id"))
	}
	return &u, nil
}

// RefreshAuthTokens trades a refresh token for a new pair. The request is
// form-encoded; when the provider (or a proxy in front of it) answers
// bad_json the call is retried once with a JSON body.
func (g *Gateway) RefreshAuthTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !PlausibleRefreshToken(refreshToken) {
		return nil, ErrImplausibleToken
	}
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	refreshToken = strings.TrimSpace(refreshToken)
	path := "/auth/v1/token?grant_type=refresh_token"

	form := url.Values{"refresh_token": {refreshToken}}
	req, err := g.newRequest(ctx, http.MethodPost, path,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	status, body, err := g.do(req, &tr)
	if err != nil {
		return nil, apperr.Upstream("refresh tokens", err)
	}

	if status/100 != 2 && body.isBadJSON() {
		log.Debug().Msg("provider: refresh answered bad_json, retrying with JSON body")
		payload, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})
		req, err = g.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json")
		if err != nil {
			return nil, err
		}
		tr = tokenResponse{}
		status, body, err = g.do(req, &tr)
		if err != nil {
			return nil, apperr.Upstream("refresh tokens", err)
		}
	}

	if status/100 != 2 {
		return nil, apperr.Upstream("refresh tokens", fmt.Errorf("status %d: %s", status, body.message()))
	}
	if tr.AccessToken == "" {
		return nil, apperr.Upstream("refresh tokens", errors.New("response has no access token"))
	}
	pair := tr.pair(g.now())
	if pair.RefreshToken == "" {
		// some providers do not rotate; keep the one we have
		pair.RefreshToken = refreshToken
	}
	return &pair, nil
}

// SignInWithPassword runs the password grant.
func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := g.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type=password",
		bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	status, body, err := g.do(req, &tr)
	if err != nil {
		return nil, apperr.Upstream("sign in", err)
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case status/100 != 2:
		return nil, apperr.Upstream("sign in", fmt.Errorf("status %d: %s", status, body.message()))
	case tr.AccessToken == "" || tr.User == nil:
		return nil, apperr.Upstream("sign in", errors.New("incomplete token response"))
	}
	return &Session{TokenPair: tr.pair(g.now()), User: tr.User}, nil
}

// SignOut revokes the session behind accessToken. Callers treat failures as
// non-fatal; the cookies are cleared either way.
func (g *Gateway) SignOut(ctx context.Context, accessToken string) error {
	if !g.Configured() || accessToken == "" {
		return nil
	}
	req, err := g.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, "")
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	status, body, err := g.do(req, nil)
	if err != nil {
		return apperr.Upstream("sign out", err)
	}
	if status/100 != 2 && status != http.StatusUnauthorized {
		return apperr.Upstream("sign out", fmt.Errorf("status %d: %s", status, body.message()))
	}
	return nil
}

func (g *Gateway) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, apperr.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("apikey", g.anonKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// do sends req and decodes a 2xx body into out (when non-nil). Non-2xx
// bodies are decoded into the returned errorResponse.
func (g *Gateway) do(req *http.Request, out any) (int, errorResponse, error) {
	var eb errorResponse
	resp, err := g.http.Do(req)
	if err != nil {
		return 0, eb, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, eb, err
	}
	if resp.StatusCode/100 != 2 {
		if json.Unmarshal(raw, &eb) != nil {
			eb.Msg = strings.TrimSpace(string(raw))
		}
		return resp.StatusCode, eb, nil
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, eb, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, eb, nil
}

func (e errorResponse) isBadJSON() bool {
	return e.ErrorCode == "bad_json" || e.Error == "bad_json" ||
		strings.Contains(strings.ToLower(e.Msg), "bad_json")
}
