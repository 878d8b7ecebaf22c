package presenter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyBytes is the minimum HMAC key size accepted by NewVerifier.
const MinKeyBytes = 32

const defaultLeeway = 30 * time.Second

// Verifier validates presenter tokens.
type Verifier struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithIssuer requires the iss claim to match.
func WithIssuer(iss string) Option {
	return func(v *Verifier) { v.issuer = strings.TrimSpace(iss) }
}

// WithLeeway sets the clock-skew tolerance for exp/nbf/iat.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// WithClock overrides the clock (tests).
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier constructs a Verifier for an HS256 key.
func NewVerifier(key []byte, opts ...Option) (*Verifier, error) {
	if len(key) == 0 {
		return nil, ErrKeyMissing
	}
	if len(key) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	v := &Verifier{
		key:    append([]byte(nil), key...),
		leeway: defaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Verify returns the presenter id carried by token.
func (v *Verifier) Verify(token string) (string, error) {
	if v == nil {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}

	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		popts = append(popts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, popts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}

// Sign issues a token for presenterID valid for ttl.
func (v *Verifier) Sign(presenterID string, ttl time.Duration) (string, error) {
	if v == nil {
		return "", errors.New("nil verifier")
	}
	presenterID = strings.TrimSpace(presenterID)
	if presenterID == "" || ttl <= 0 {
		return "", errors.New("presenter id and positive ttl required")
	}
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   presenterID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}
