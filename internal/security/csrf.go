package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-cart/internal/common"
)

const (
	defaultCSRFHeader = "X-CSRF-Token"
	defaultCSRFCookie = "csrf_token"
)

// CSRF guards cookie-authenticated cart writes with a double-submit token.
// Safe requests receive a script-readable token cookie; unsafe requests must
// echo its value in Header.
type CSRF struct {
	Header string
	Cookie string
	// SessionHeader carries the session token explicitly; such requests are not cookie-authenticated.
	SessionHeader string
	Secure        bool
}

// Middleware enforces the double-submit check.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	header := strings.TrimSpace(c.Header)
	if header == "" {
		header = defaultCSRFHeader
	}
	cookieName := strings.TrimSpace(c.Cookie)
	if cookieName == "" {
		cookieName = defaultCSRFCookie
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, cookieErr := r.Cookie(cookieName)
		hasCookie := cookieErr == nil && strings.TrimSpace(cookie.Value) != ""

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if !hasCookie {
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    uuid.NewString(),
					Path:     "/",
					Secure:   c.Secure,
					SameSite: http.SameSiteStrictMode,
				})
			}
			next.ServeHTTP(w, r)
			return
		}
		if c.SessionHeader != "" && strings.TrimSpace(r.Header.Get(c.SessionHeader)) != "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(header))
		switch {
		case token == "":
			common.JSONError(w, http.StatusForbidden, "CSRF", "missing csrf token", nil)
		case !hasCookie:
			common.JSONError(w, http.StatusForbidden, "CSRF", "missing csrf cookie", nil)
		case subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1:
			common.JSONError(w, http.StatusForbidden, "CSRF", "invalid csrf token", nil)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
