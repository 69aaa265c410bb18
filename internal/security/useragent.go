package security

import "strings"

// SuspiciousUserAgent reports whether the declared user agent looks like a
// non-browser client. An empty user agent is always suspicious; otherwise
// the string is matched case-insensitively against the given token list.
//
// This is a coarse heuristic: false positives and negatives are accepted
// in exchange for simplicity.
func SuspiciousUserAgent(userAgent string, tokens []string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}

	lower := strings.ToLower(userAgent)
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}
