package httpapi

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/doorman-auth/doorman/internal/auth"
)

// clientIP extracts the client IP address from the request.
// Checks X-Forwarded-For header first (for proxied requests), then
// X-Real-IP, finally RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the list (comma-separated)
		before, _, _ := strings.Cut(xff, ",")
		return canonicalIP(strings.TrimSpace(before))
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return canonicalIP(xri)
	}

	// Fall back to RemoteAddr, stripping the port. SplitHostPort also
	// removes the brackets around IPv6 literals.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return canonicalIP(host)
}

// canonicalIP parses addr and returns its canonical text form, dropping any
// zone identifier. An address that does not parse becomes "", which the
// stores record as a missing IP; sessions are never refused over an audit
// field.
func canonicalIP(addr string) string {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return ""
	}
	return ip.WithZone("").String()
}

// requestMeta captures the audit fields recorded on new sessions.
func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
