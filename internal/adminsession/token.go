// Package adminsession issues and verifies the server's own admin-session
// token: a compact HS256 JWT carrying {id, email, role, iat, exp}. It is
// independent of the auth provider's tokens and is verified without any
// database or network round trip.
package adminsession

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role the server currently issues.
const RoleAdmin = "admin"

var (
	ErrNoSecret      = errors.New("admin session secret not configured")
	ErrInvalidFormat = errors.New("admin session token: invalid format")
	ErrBadSignature  = errors.New("admin session token: bad signature")
	ErrExpired       = errors.New("admin session token: expired")
)

// Claims is the token body. UserID serialises as "id".
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Signer signs and verifies tokens with one server-held secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of s that reads time from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	cp := *s
	cp.now = now
	return &cp
}

// HasSecret reports whether signing is possible.
func (s *Signer) HasSecret() bool { return len(s.secret) > 0 }

// Sign stamps iat/exp onto c and returns header.body.signature. It fails
// closed with ErrNoSecret when no secret is configured.
func (s *Signer) Sign(c Claims, ttl time.Duration) (string, error) {
	if !s.HasSecret() {
		return "", ErrNoSecret
	}
	stamp(&c, s.now(), ttl)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// Verify checks structure, HS256 signature (constant-time) and expiry, in
// that order, and returns the payload.
func (s *Signer) Verify(token string) (*Claims, error) {
	if !s.HasSecret() {
		return nil, ErrNoSecret
	}
	if strings.Count(token, ".") != 2 {
		return nil, ErrInvalidFormat
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSignature
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

func stamp(c *Claims, now time.Time, ttl time.Duration) {
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrInvalidFormat
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrInvalidFormat
	}
}
