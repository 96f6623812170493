package security

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-cart/internal/common"
)

// BodyLimit caps request payload size.
type BodyLimit struct {
	Max int64
}

// Middleware rejects bodies whose declared length exceeds Max with HTTP 413
// and caps the rest with http.MaxBytesReader; decoders see an
// *http.MaxBytesError once the cap is crossed (see IsTooLarge).
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			WriteTooLarge(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}

// IsTooLarge reports whether err came from reading past the body cap.
func IsTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// WriteTooLarge renders the 413 response.
func WriteTooLarge(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
}
