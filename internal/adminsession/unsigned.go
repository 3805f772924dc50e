package adminsession

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnsignedDisabled is returned by the unsigned helpers in builds without
// the devsession tag.
var ErrUnsignedDisabled = errors.New("unsigned admin sessions are not compiled into this build")

// SignUnsigned emits an alg "none" token for local debugging.
func (s *Signer) SignUnsigned(c Claims, ttl time.Duration) (string, error) {
	if !UnsignedCompiled {
		return "", ErrUnsignedDisabled
	}
	stamp(&c, s.now(), ttl)
	return jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
}

// DecodeUnverified reads the payload of any well-formed token without
// checking its signature. Expiry is still enforced.
func (s *Signer) DecodeUnverified(token string) (*Claims, error) {
	if !UnsignedCompiled {
		return nil, ErrUnsignedDisabled
	}
	if strings.Count(token, ".") != 2 {
		return nil, ErrInvalidFormat
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidFormat
	}
	if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}
	return claims, nil
}
