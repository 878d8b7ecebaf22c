package accesscode

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const defaultMaxAttempts = 10

// Checker reports whether a code is already held by a non-expired presentation.
type Checker interface {
	ExistsByAccessCode(ctx context.Context, code string) (bool, error)
}

// Issuer generates codes that do not collide with live ones.
type Issuer struct {
	checker     Checker
	maxAttempts int
	validFor    time.Duration
	random      io.Reader
}

// Option configures the Issuer.
type Option func(*Issuer) error

// WithMaxAttempts bounds the number of generation attempts (default 10).
func WithMaxAttempts(n int) Option {
	return func(i *Issuer) error {
		if n <= 0 {
			return ErrInvalidInput
		}
		i.maxAttempts = n
		return nil
	}
}

// WithValidity sets the expiration window applied to issued codes (0 = never expires).
func WithValidity(d time.Duration) Option {
	return func(i *Issuer) error {
		if d < 0 {
			return ErrInvalidInput
		}
		i.validFor = d
		return nil
	}
}

// WithRandom overrides the entropy source (tests).
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) error {
		if r == nil {
			return ErrInvalidInput
		}
		i.random = r
		return nil
	}
}

// NewIssuer constructs an Issuer with safe defaults.
func NewIssuer(checker Checker, opts ...Option) (*Issuer, error) {
	if checker == nil {
		return nil, ErrInvalidInput
	}
	i := &Issuer{
		checker:     checker,
		maxAttempts: defaultMaxAttempts,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Issue returns a fresh code that no live presentation holds.
// It fails with ErrCodeGenerationExhausted when every attempt collides.
func (i *Issuer) Issue(ctx context.Context, now time.Time) (Code, error) {
	if i == nil || i.checker == nil {
		return Code{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Code{}, err
		}

		code, err := generateFrom(i.random, now, i.validFor)
		if err != nil {
			return Code{}, err
		}

		exists, err := i.checker.ExistsByAccessCode(ctx, code.String())
		if err != nil {
			return Code{}, fmt.Errorf("accesscode: uniqueness check: %w", err)
		}
		if !exists {
			return code, nil
		}
	}

	return Code{}, ErrCodeGenerationExhausted
}

// GenerateUnique is a one-shot Issue with default attempts.
func GenerateUnique(ctx context.Context, checker Checker, now time.Time, validFor time.Duration) (Code, error) {
	i, err := NewIssuer(checker, WithValidity(validFor))
	if err != nil {
		return Code{}, err
	}
	return i.Issue(ctx, now)
}
