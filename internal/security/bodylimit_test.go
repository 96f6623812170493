package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// decodeHandler mimics the cart handlers: decode JSON and map an overflow to 413.
func decodeHandler(got *map[string]any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			if IsTooLarge(err) {
				WriteTooLarge(w)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestBodyLimit(t *testing.T) {
	cases := []struct {
		name     string
		max      int64
		body     string
		declared int64 // -1 streams the body without Content-Length
		want     int
	}{
		{name: "within cap", max: 32, body: `{"productId":"p1"}`, want: http.StatusNoContent},
		{name: "declared length over cap", max: 8, body: `{"quantity":1000}`, want: http.StatusRequestEntityTooLarge},
		{name: "streamed past cap", max: 8, body: `{"code":"SAVE10SAVE10"}`, declared: -1, want: http.StatusRequestEntityTooLarge},
		{name: "disabled", max: 0, body: `{"code":"SAVE10SAVE10"}`, want: http.StatusNoContent},
		{name: "malformed within cap", max: 32, body: `{"code":`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got map[string]any
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(tc.body))
			if tc.declared != 0 {
				req.ContentLength = tc.declared
			}
			rr := httptest.NewRecorder()
			BodyLimit{Max: tc.max}.Middleware(decodeHandler(&got)).ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rr.Code, rr.Body.String())
			}
			if tc.want == http.StatusRequestEntityTooLarge && !strings.Contains(rr.Body.String(), `"PAYLOAD_TOO_LARGE"`) {
				t.Fatalf("expected json error body, got %q", rr.Body.String())
			}
			if tc.want == http.StatusNoContent && len(got) == 0 {
				t.Fatal("expected decoded payload to reach the handler")
			}
		})
	}
}

func TestBodyLimitRejectsBeforeHandlerRuns(t *testing.T) {
	called := false
	handler := BodyLimit{Max: 4}.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/p1", strings.NewReader("{}"))
	req.ContentLength = 1 << 20
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if called {
		t.Fatal("handler must not run when the declared length exceeds the cap")
	}
}
