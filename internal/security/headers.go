package security

import (
	"net/http"
	"strconv"
	"time"
)

// Headers sets response hardening headers for a JSON-only API.
type Headers struct {
	// HSTS adds Strict-Transport-Security on TLS requests.
	HSTS       bool
	HSTSMaxAge time.Duration
	// NoStore marks responses uncacheable. Cart views carry per-session prices.
	NoStore bool
}

// Middleware attaches the headers to every response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	static := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	if h.NoStore {
		static["Cache-Control"] = "no-store"
	}
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for k, v := range static {
			headers.Set(k, v)
		}
		if h.HSTS && r.TLS != nil {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
