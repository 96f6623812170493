package common_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/common"
)

func newIdem(t *testing.T) (common.Idem, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Minute}, mr
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(sid string) int {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
		req.Header.Set(common.IdempotencyHeader, "key-1")
		if sid != "" {
			req = req.WithContext(common.WithSessionID(req.Context(), sid))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("s1"))
	require.Equal(t, http.StatusConflict, send("s1"))
	require.Equal(t, http.StatusOK, send("s2"))
	require.Equal(t, 2, calls)
}

func TestIdempotencySkipsSafeMethods(t *testing.T) {
	idem, mr := newIdem(t)
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set(common.IdempotencyHeader, "key-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Empty(t, mr.Keys())
}

func TestIdempotencyStoreFailure(t *testing.T) {
	idem, mr := newIdem(t)
	mr.Close()
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/cart/voucher", nil)
	req.Header.Set(common.IdempotencyHeader, "key-2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIdempotencyReleasesKeyAfterServerError(t *testing.T) {
	idem, mr := newIdem(t)
	status := http.StatusServiceUnavailable
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
		req.Header.Set(common.IdempotencyHeader, "key-3")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusServiceUnavailable, send())
	require.Empty(t, mr.Keys())

	status = http.StatusOK
	require.Equal(t, http.StatusOK, send())
	require.Len(t, mr.Keys(), 1)
	require.Equal(t, http.StatusConflict, send())
}

func TestIdempotencyReleasesKeyAfterPanic(t *testing.T) {
	idem, mr := newIdem(t)
	h := idem.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest(http.MethodDelete, "/cart/items", nil)
	req.Header.Set(common.IdempotencyHeader, "key-4")
	require.Panics(t, func() { h.ServeHTTP(httptest.NewRecorder(), req) })
	require.Empty(t, mr.Keys())
}

func TestWriteAppError(t *testing.T) {
	base := errors.New("insufficient stock")
	appErr := common.NewAppError("INSUFFICIENT_STOCK", "only 1 left", http.StatusConflict, base).
		WithDetails(map[string]any{"available": 1})
	wrapped := fmt.Errorf("add item: %w", appErr)
	require.ErrorIs(t, wrapped, base)
	require.Equal(t, "add item: only 1 left: insufficient stock", wrapped.Error())

	rec := httptest.NewRecorder()
	require.True(t, common.WriteAppError(rec, wrapped))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.JSONEq(t, `{"error":{"code":"INSUFFICIENT_STOCK","message":"only 1 left","details":{"available":1}}}`, rec.Body.String())

	require.False(t, common.WriteAppError(httptest.NewRecorder(), base))
}

func TestWriteAppErrorRetryAfterRoundsUp(t *testing.T) {
	rec := httptest.NewRecorder()
	err := common.NewAppError("CART_BUSY", "busy", http.StatusConflict, nil).WithRetryAfter(1500 * time.Millisecond)
	require.True(t, common.WriteAppError(rec, err))
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Equal(t, "busy", err.Error())

	rec = httptest.NewRecorder()
	require.True(t, common.WriteAppError(rec, &common.AppError{Message: "bad"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, rec.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error":{"code":"BAD_REQUEST","message":"bad"}}`, rec.Body.String())
}

func TestDataAndErrorEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	common.JSONError(rec, http.StatusNotFound, "NOT_FOUND", "missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"missing"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	common.Data(rec, http.StatusCreated, map[string]int{"totalItems": 2})
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"data":{"totalItems":2}}`, rec.Body.String())
}
