package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndParse(t *testing.T) {
	issuer, err := session.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	tok, err := issuer.Issue()
	require.NoError(t, err)
	_, err = uuid.Parse(tok.SessionID)
	require.NoError(t, err)

	id, err := issuer.Parse(tok.Value)
	require.NoError(t, err)
	require.Equal(t, tok.SessionID, id)
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Now()
	issuer, err := session.NewIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	issuer.WithClock(func() time.Time { return now })
	tok, err := issuer.Issue()
	require.NoError(t, err)

	issuer.WithClock(func() time.Time { return now.Add(2 * time.Hour) })
	_, err = issuer.Parse(tok.Value)
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	a, err := session.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	b, err := session.NewIssuer("another-secret-that-is-long-enough", time.Hour)
	require.NoError(t, err)

	tok, err := a.Issue()
	require.NoError(t, err)
	_, err = b.Parse(tok.Value)
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	issuer, err := session.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	raw, err := jwt.NewBuilder().Subject(uuid.NewString()).Issuer("toko-cart").Expiration(time.Now().Add(time.Hour)).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(raw, jwt.WithKey(jwa.HS512, []byte(testSecret)))
	require.NoError(t, err)

	_, err = issuer.Parse(string(signed))
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := session.NewIssuer("short", time.Hour)
	require.Error(t, err)
}

func TestIssueForRejectsNonUUID(t *testing.T) {
	issuer, err := session.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	_, err = issuer.IssueFor("not-a-uuid")
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestMiddlewareResolvesHeaderAndCookie(t *testing.T) {
	issuer, err := session.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	tok, err := issuer.Issue()
	require.NoError(t, err)

	mw := session.Middleware{Issuer: issuer, Cookie: "cart_session"}
	var seen string
	h := mw.Resolve(mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(session.HeaderName, tok.Value)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, tok.SessionID, seen)

	seen = ""
	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: "cart_session", Value: tok.Value})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, tok.SessionID, seen)
}

func TestRequireRejectsMissingSession(t *testing.T) {
	issuer, err := session.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	mw := session.Middleware{Issuer: issuer}
	h := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(session.HeaderName, "garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}
