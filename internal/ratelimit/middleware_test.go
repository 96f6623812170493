package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/toko-cart/internal/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	lim, err := New(client, "1-M", "test")
	require.NoError(t, err)
	counted := Handler{Limiter: lim, Key: func(*http.Request) string { return "static" }}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/cart/voucher", nil)
	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr2.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")
}

func TestNewRejectsBadRate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	_, err = New(client, "lots", "test")
	require.Error(t, err)
}

func TestSessionOrIPKeys(t *testing.T) {
	key := SessionOrIP("promo")
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "promo:ip:10.0.0.1", key(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "promo:ip:10.0.0.1", key(req), "forwarding headers must not pick the bucket")

	req = req.WithContext(common.WithSessionID(req.Context(), "sess-1"))
	require.Equal(t, "promo:session:sess-1", key(req))
}

func TestSessionsAreLimitedIndependently(t *testing.T) {
	rate, err := limiter.NewRateFromFormatted("1-H")
	require.NoError(t, err)
	lim := limiter.New(memory.NewStore(), rate)
	h := Handler{Limiter: lim, Key: SessionOrIP("promo")}.Middleware(okHandler())

	for _, sid := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(common.WithSessionID(req.Context(), sid))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestStoreErrorsFailOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	lim, err := New(client, "5-M", "test")
	require.NoError(t, err)
	mr.Close()

	var seen error
	h := Handler{Limiter: lim, Key: func(*http.Request) string { return "k" }, OnError: func(err error) { seen = err }}.Middleware(okHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Error(t, seen)
}
