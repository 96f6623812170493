package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/toko-cart/internal/common"
)

// New builds a Redis-backed limiter from a formatted rate such as "20-M".
func New(client *redis.Client, formatted, prefix string) (*limiter.Limiter, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: redis client not configured")
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", formatted, err)
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: init store: %w", err)
	}
	return limiter.New(store, rate), nil
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	Key     func(*http.Request) string
	OnError func(error)
}

// Middleware implements the http.Handler middleware interface. Store errors fail open.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Key(r)
		lctx, err := h.Limiter.Get(r.Context(), key)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := int(time.Until(time.Unix(lctx.Reset, 0)).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many promotion attempts", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SessionOrIP keys requests by cart session, falling back to the peer address.
// Forwarding headers are ignored here; chi's RealIP rewrites RemoteAddr upstream
// when the service sits behind a trusted proxy.
func SessionOrIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		if sid, ok := common.SessionID(r.Context()); ok && sid != "" {
			return scope + ":session:" + sid
		}
		ip := limiter.GetIP(r)
		if ip == nil {
			return scope + ":ip:unknown"
		}
		return scope + ":ip:" + ip.String()
	}
}
