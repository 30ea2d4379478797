// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gacp-certification/internal/common/auth"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/common/metrics"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// withObservability logs the request and records it under the route pattern.
func withObservability(log logger.Logger, route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next(rec, r)

		duration := time.Since(start)
		status := rec.code()
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"remote":      clientIP(r),
		}
		if status >= http.StatusInternalServerError {
			log.Warn("request completed", fields)
			return
		}
		log.Debug("request completed", fields)
	}
}

// withCORS allows the configured origins. An empty list or "*" allows any origin.
func withCORS(origins []string, next http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey int

const staffKey ctxKey = iota

// requireStaff admits requests whose bearer token is active and carries one of roles.
func requireStaff(validator auth.TokenValidator, roles []string, log logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if validator == nil {
			writeError(w, log, r, errors.NewAuthenticationError("staff authentication is not configured"))
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, log, r, errors.NewAuthenticationError("missing bearer token"))
			return
		}
		info, err := validator.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		if !info.HasAnyRole(roles) {
			writeError(w, log, r, errors.NewForbiddenError("staff role required"))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), staffKey, info)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// staffFrom returns the authenticated staff member, if any.
func staffFrom(ctx context.Context) *auth.TokenInfo {
	info, _ := ctx.Value(staffKey).(*auth.TokenInfo)
	return info
}

// actor names the staff member for audit columns.
func actor(ctx context.Context) string {
	info := staffFrom(ctx)
	switch {
	case info == nil:
		return ""
	case info.Username != "":
		return info.Username
	case info.Email != "":
		return info.Email
	default:
		return info.Sub
	}
}

// clientIP prefers X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}
