package provider

import "strings"

// PlausibleRefreshToken filters out values that cannot be refresh tokens
// (placeholders, truncated cookies) before spending a round trip on them.
// A token is plausible when it is JWT-shaped, base64url-opaque and at least
// 40 characters, or at least 64 characters of any shape.
func PlausibleRefreshToken(tok string) bool {
	tok = strings.TrimSpace(tok)
	switch {
	case tok == "":
		return false
	case isJWTShaped(tok):
		return true
	case len(tok) >= 40 && isBase64URL(tok):
		return true
	default:
		return len(tok) >= 64
	}
}

func isJWTShaped(tok string) bool {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" || !isBase64URL(p) {
			return false
		}
	}
	return true
}

func isBase64URL(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
