package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("session: invalid token")

const defaultIssuer = "toko-cart"

// Token is a signed cart session handle.
type Token struct {
	Value     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issuer signs and verifies HS256 cart session tokens. The subject claim
// carries the cart slot id.
type Issuer struct {
	secret    []byte
	ttl       time.Duration
	issuer    string
	clockSkew time.Duration
	now       func() time.Time
}

// NewIssuer builds an issuer. Secrets shorter than 16 bytes are refused.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(strings.TrimSpace(secret)) < 16 {
		return nil, errors.New("session: secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Issuer{
		secret:    []byte(secret),
		ttl:       ttl,
		issuer:    defaultIssuer,
		clockSkew: 30 * time.Second,
		now:       time.Now,
	}, nil
}

// WithClock overrides the time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	if now != nil {
		i.now = now
	}
	return i
}

// Issue creates a token for a fresh cart session.
func (i *Issuer) Issue() (Token, error) {
	return i.IssueFor(uuid.NewString())
}

// IssueFor signs a token for an existing session id, extending its lifetime.
func (i *Issuer) IssueFor(sessionID string) (Token, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return Token{}, fmt.Errorf("session id: %w", ErrInvalidToken)
	}
	now := i.now()
	expiresAt := now.Add(i.ttl)
	tok, err := jwt.NewBuilder().
		Subject(sessionID).
		Issuer(i.issuer).
		IssuedAt(now).
		NotBefore(now.Add(-i.clockSkew)).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return Token{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.secret))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: string(signed), SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

// Parse verifies token and returns the session id it carries.
func (i *Issuer) Parse(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", ErrInvalidToken
	}
	if err := requireHS256(trimmed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(jwa.HS256, i.secret), jwt.WithValidate(false))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	err = jwt.Validate(parsed,
		jwt.WithIssuer(i.issuer),
		jwt.WithAcceptableSkew(i.clockSkew),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(parsed.Subject()); err != nil {
		return "", fmt.Errorf("%w: subject is not a session id", ErrInvalidToken)
	}
	return parsed.Subject(), nil
}

func requireHS256(token string) error {
	message, err := jws.ParseString(token)
	if err != nil {
		return err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return errors.New("expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return errors.New("missing protected headers")
	}
	if alg := headers.Algorithm(); alg != jwa.HS256 {
		return fmt.Errorf("unexpected algorithm %s", alg)
	}
	return nil
}
