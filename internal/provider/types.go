package provider

import (
	"strings"
	"time"
)

// User is the subset of the provider's user record this server reads.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	AppMetadata  AppMetadata  `json:"app_metadata"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

type UserMetadata struct {
	IsAdmin bool `json:"is_admin,omitempty"`
}

// IsAdmin reports whether u should be treated as a blog administrator.
func (u *User) IsAdmin(adminEmails []string) bool {
	if u == nil {
		return false
	}
	if strings.EqualFold(u.AppMetadata.Role, "admin") || u.UserMetadata.IsAdmin {
		return true
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, e := range adminEmails {
		if email != "" && email == e {
			return true
		}
	}
	return false
}

// TokenPair is the provider-issued credential pair. ExpiresAt is the access
// token's expiry.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Session is a token pair together with the user it belongs to.
type Session struct {
	TokenPair
	User *User
}

// tokenResponse mirrors the provider's /token response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

func (r tokenResponse) pair(now time.Time) TokenPair {
	exp := time.Unix(r.ExpiresAt, 0)
	if r.ExpiresAt == 0 {
		exp = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return TokenPair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken, ExpiresAt: exp.UTC()}
}

// errorResponse covers both error body shapes the provider has used.
type errorResponse struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e errorResponse) message() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Error, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}
