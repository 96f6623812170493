package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader names the request header carrying the client key.
const IdempotencyHeader = "Idempotency-Key"

// Idem rejects repeated writes that carry the same Idempotency-Key. Keys are
// scoped to the cart session, so two carts may reuse a client key. A key whose
// request ended in a 5xx is released and the client may retry with it.
type Idem struct {
	R   redis.Cmdable
	TTL time.Duration
}

func idemKey(scope, key string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency for write endpoints. Safe methods pass through.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(IdempotencyHeader)
		if header == "" || i.R == nil || isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		scope, _ := SessionID(ctx)
		key := idemKey(scope, header)
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := i.R.SetNX(ctx, key, r.Method+" "+r.URL.Path, ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store unavailable", nil)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		completed := false
		defer func() {
			// Panics and server errors leave the write unapplied; free the key.
			if completed && ww.Status() < http.StatusInternalServerError {
				return
			}
			_ = i.R.Del(context.WithoutCancel(ctx), key).Err()
		}()
		next.ServeHTTP(ww, r)
		completed = true
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
