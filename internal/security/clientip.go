// Package security implements the contact-form abuse-mitigation pipeline:
// client identity resolution, sliding-window rate limiting, honeypot and
// bot user-agent detection, challenge freshness checks, spam scoring, and
// the orchestrator that sequences them.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// loopback is the identity used when no address can be resolved at all.
const loopback = "127.0.0.1"

// ClientIP resolves the client identity from request headers. It prefers
// the leftmost X-Forwarded-For hop (the original client behind a chain of
// proxies), then X-Real-IP, then the transport peer address.
//
// Header authenticity is a deployment assumption: the reverse proxy in
// front of this service is expected to strip or overwrite these headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return loopback
	}
	if host == "" {
		return loopback
	}
	return host
}

// Fingerprint derives a short stable client fingerprint from the resolved
// IP and the declared user agent. Used for diagnostics only.
func Fingerprint(clientIP, userAgent string) string {
	sum := sha256.Sum256([]byte(clientIP + ":" + userAgent))
	return hex.EncodeToString(sum[:])[:16]
}
