package session

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HelperCookieSource reads the session cookie written by the provider's own
// server-side helper: sb-<project-ref>-auth-token, split into .0, .1, ...
// chunks when large. The value is a JSON session object, the same object
// prefixed with "base64-" and base64url encoded, or a legacy JSON array
// [access, refresh, ...].
type HelperCookieSource struct{}

func (HelperCookieSource) Name() string { return SourceHelperCookie }

func (HelperCookieSource) Candidate(store CookieStore) (Candidate, bool) {
	groups := map[string][]chunk{}
	for _, ck := range store.All() {
		if !isHelperCookie(ck.Name) {
			continue
		}
		base, idx := splitChunk(ck.Name)
		groups[base] = append(groups[base], chunk{name: ck.Name, idx: idx, value: ck.Value})
	}

	bases := make([]string, 0, len(groups))
	for b := range groups {
		bases = append(bases, b)
	}
	sort.Strings(bases)

	for _, b := range bases {
		parts := groups[b]
		sort.Slice(parts, func(i, j int) bool { return parts[i].idx < parts[j].idx })
		var sb strings.Builder
		names := make([]string, 0, len(parts))
		for _, p := range parts {
			sb.WriteString(p.value)
			names = append(names, p.name)
		}
		c, ok := decodeHelperValue(sb.String())
		if !ok {
			continue
		}
		c.Source = SourceHelperCookie
		c.Superseded = names
		return c, true
	}
	return Candidate{}, false
}

type chunk struct {
	name  string
	idx   int
	value string
}

func isHelperCookie(name string) bool {
	if !strings.HasPrefix(name, "sb-") {
		return false
	}
	base, _ := splitChunk(name)
	return strings.HasSuffix(base, "-auth-token")
}

// splitChunk turns "sb-x-auth-token.2" into ("sb-x-auth-token", 2). Unchunked
// names get index -1 so they sort first.
func splitChunk(name string) (string, int) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, -1
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return name, -1
	}
	return name[:i], n
}

type helperSession struct {
	AccessToken    string         `json:"access_token"`
	RefreshToken   string         `json:"refresh_token"`
	ExpiresAt      int64          `json:"expires_at"`
	CurrentSession *helperSession `json:"currentSession"`
}

func decodeHelperValue(v string) (Candidate, bool) {
	if u, err := url.PathUnescape(v); err == nil {
		v = u
	}
	v = strings.TrimSpace(v)
	if rest, ok := strings.CutPrefix(v, "base64-"); ok {
		b, err := decodeBase64(rest)
		if err != nil {
			return Candidate{}, false
		}
		v = strings.TrimSpace(string(b))
	}

	switch {
	case strings.HasPrefix(v, "["):
		var arr []*string
		if err := json.Unmarshal([]byte(v), &arr); err != nil || len(arr) < 2 {
			return Candidate{}, false
		}
		c := Candidate{}
		if arr[0] != nil {
			c.Access = *arr[0]
		}
		if arr[1] != nil {
			c.Refresh = *arr[1]
		}
		return c, c.Access != "" || c.Refresh != ""
	case strings.HasPrefix(v, "{"):
		var s helperSession
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			return Candidate{}, false
		}
		if s.AccessToken == "" && s.CurrentSession != nil {
			s = *s.CurrentSession
		}
		c := Candidate{Access: s.AccessToken, Refresh: s.RefreshToken}
		if s.ExpiresAt > 0 {
			c.ExpiresAt = time.Unix(s.ExpiresAt, 0)
		}
		return c, c.Access != "" || c.Refresh != ""
	}
	return Candidate{}, false
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
