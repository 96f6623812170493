package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHeadersMiddlewareSetsHardeningHeaders(t *testing.T) {
	handler := Headers{HSTS: true, HSTSMaxAge: 24 * time.Hour, NoStore: true}.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "https://cart.example.com/api/v1/cart", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	want := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Cache-Control":             "no-store",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Strict-Transport-Security": "max-age=86400; includeSubDomains",
	}
	for k, v := range want {
		if got := rr.Header().Get(k); got != v {
			t.Fatalf("%s: expected %q, got %q", k, v, got)
		}
	}
}

func TestHeadersMiddlewareSkipsHSTSWithoutTLS(t *testing.T) {
	handler := Headers{HSTS: true}.Middleware(okHandler(http.StatusOK))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://cart.example.com/api/v1/cart", nil))
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("expected no hsts header without tls")
	}
	if rr.Header().Get("Cache-Control") != "" {
		t.Fatal("expected cacheable response when NoStore is off")
	}
}
