package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"govbook/pkg/requestcontext"
)

// RequestMetadata captures correlation ID, client IP, and a normalized user
// agent into the context. The audit recorder reads these when appending.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		ctx = requestcontext.WithClientIP(ctx, clientIP(r))
		ctx = requestcontext.WithUserAgent(ctx, normalizeUserAgent(r.UserAgent()))

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// normalizeUserAgent collapses the raw UA string into "browser/version (os)"
// so audit rows stay within the legacy user_agent column width.
func normalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		if len(raw) > 500 {
			return raw[:500]
		}
		return raw
	}
	return fmt.Sprintf("%s/%s (%s)", name, version, ua.OS())
}
