package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/pkg/logger"
)

// VisitorHeader identifies an anonymous browser session.
const VisitorHeader = "X-Visitor-ID"

// Visitor stores the X-Visitor-ID header in the request context. Requests
// without the header carry no visitor ID; the client IP is shared by every
// browser behind one NAT and never stands in for it.
func Visitor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(VisitorHeader))
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(logger.WithVisitorID(r.Context(), id)))
		})
	}
}

// ClientIP returns the first valid address in X-Forwarded-For, then
// X-Real-IP, then the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
