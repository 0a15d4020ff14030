package utils

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the originating client address, preferring the
// forwarding headers set by the edge proxy over the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the client; later hops are proxies.
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CountryCode returns the edge-resolved country for the request, or
// "unknown" when no geo header is present. Click analytics are best-effort;
// a missing country never blocks anything.
func CountryCode(r *http.Request) string {
	for _, header := range []string{"CF-IPCountry", "X-Country-Code"} {
		if cc := r.Header.Get(header); cc != "" && cc != "XX" {
			return strings.ToUpper(cc)
		}
	}
	return "unknown"
}
