package middleware

import (
	"net"
	"net/http"
)

// ClientIP returns the caller's source address, the key for rate limiting
// and banning. It expects chi's RealIP middleware to have already resolved
// X-Forwarded-For / X-Real-IP into RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP leaves bare addresses without a port.
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}
