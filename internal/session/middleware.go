package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-cart/internal/common"
)

// HeaderName carries the session token on API requests.
const HeaderName = "X-Cart-Session"

// Middleware resolves the cart session token into the request context.
type Middleware struct {
	Issuer *Issuer
	Cookie string
}

// Resolve attaches the session id when a valid token is present and passes
// the request through otherwise.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.sessionID(r); ok {
			r = r.WithContext(common.WithSessionID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests that carry no valid session.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := m.sessionID(r)
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid cart session", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithSessionID(r.Context(), id)))
	})
}

// FromContext returns the cart session id attached by the middleware.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := common.SessionID(ctx)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

func (m Middleware) sessionID(r *http.Request) (string, bool) {
	if m.Issuer == nil {
		return "", false
	}
	token := m.extractToken(r)
	if token == "" {
		return "", false
	}
	id, err := m.Issuer.Parse(token)
	if err != nil {
		return "", false
	}
	return id, true
}

func (m Middleware) extractToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get(HeaderName)); header != "" {
		return header
	}
	if m.Cookie != "" {
		if cookie, err := r.Cookie(m.Cookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
