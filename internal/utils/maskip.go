package utils

import "strings"

// MaskIP hides the last group of an address: "203.0.113.7" becomes
// "203.0.113.***" and "2001:db8::1" becomes "2001:db8::***".
func MaskIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	if strings.Contains(ip, ".") {
		if parts := strings.Split(ip, "."); len(parts) >= 4 {
			parts[len(parts)-1] = "***"
			return strings.Join(parts, ".")
		}
	}
	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		parts[len(parts)-1] = "***"
		return strings.Join(parts, ":")
	}
	return ip[:max(0, len(ip)-3)] + "***"
}
