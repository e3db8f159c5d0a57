package api

import (
	"encoding/json/v2"
	"net/http"
)

// limitMutations rate limits state-changing requests by client IP. Reads pass
// through untouched; a dashboard polling run status never competes with
// whoever is hammering the run endpoints.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Use IP address as the rate limit key.
		key := getClientIP(r)
		if !s.limiter.Allow(key) {
			s.logger.Warn("rate limit exceeded",
				"ip", key,
				"path", r.URL.Path,
			)
			writeAPIError(w, &APIError{
				status:  http.StatusTooManyRequests,
				Code:    "RATE_LIMITED",
				Message: "Too many requests. Please try again later.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeAPIError serializes an error outside huma's pipeline, for middleware
// that rejects a request before any operation handler runs.
func writeAPIError(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", apiErr.ContentType(""))
	w.WriteHeader(apiErr.GetStatus())
	_ = json.MarshalWrite(w, apiErr)
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For (may contain multiple IPs, first is client).
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take first IP in the chain.
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	// Check X-Real-IP.
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr (strip port).
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}
