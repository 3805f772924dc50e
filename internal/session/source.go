package session

import (
	"strconv"
	"strings"
	"time"
)

// Candidate is a token pair read from cookies, not yet checked with the
// provider.
type Candidate struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time // zero when no hint was present
	Source    string
	// Superseded names cookies to expire once the pair has been refreshed
	// and rewritten in the standard cookies.
	Superseded []string
}

// TokenSource reads one candidate token pair from the jar.
type TokenSource interface {
	Name() string
	Candidate(store CookieStore) (Candidate, bool)
}

// PairSource reads sb-access-token, sb-refresh-token and sb-expires-at.
type PairSource struct{}

func (PairSource) Name() string { return SourceTokenPair }

func (PairSource) Candidate(store CookieStore) (Candidate, bool) {
	access, _ := store.Get(AccessCookie)
	refresh, _ := store.Get(RefreshCookie)
	if access == "" && refresh == "" {
		return Candidate{}, false
	}
	c := Candidate{Access: access, Refresh: refresh, Source: SourceTokenPair}
	if raw, ok := store.Get(ExpiresCookie); ok {
		c.ExpiresAt = parseExpiry(raw)
	}
	return c, true
}

// parseExpiry accepts unix seconds, unix milliseconds or RFC 3339.
func parseExpiry(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		return time.Unix(n, 0)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Time{}
}
