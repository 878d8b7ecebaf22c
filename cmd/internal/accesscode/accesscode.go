// Package accesscode implements the short numeric credential participants enter
// to join a live presentation.
//
// A Code is an immutable value: generation, parsing, expiry arithmetic and
// display formatting live here. Uniqueness against live presentations is the
// caller's concern (see Issuer).
package accesscode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
	"time"
)

// Length is the number of digits of an access code.
const Length = 6

const displaySeparator = "-"

const codeSpan = 1_000_000

var codeRE = regexp.MustCompile(`^\d{6}$`)

// Code is a validated 6-digit access code with optional expiry.
type Code struct {
	value    string
	issuedAt time.Time
	validFor time.Duration
}

// New validates raw and binds it to an issue time and expiration window.
// A zero validFor means the code never expires.
func New(raw string, issuedAt time.Time, validFor time.Duration) (Code, error) {
	v := Normalize(raw)
	if !codeRE.MatchString(v) {
		return Code{}, ErrInvalidFormat
	}
	if validFor < 0 {
		validFor = 0
	}
	return Code{value: v, issuedAt: issuedAt, validFor: validFor}, nil
}

// Parse validates a candidate string typed by a participant.
// Display separators ("123-456", "123 456") are accepted.
func Parse(raw string) (Code, error) {
	return New(raw, time.Time{}, 0)
}

// Normalize strips display separators and surrounding whitespace.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	return strings.NewReplacer(displaySeparator, "", " ", "").Replace(raw)
}

// Generate returns a uniformly random code (leading zeros allowed).
func Generate(now time.Time, validFor time.Duration) (Code, error) {
	return generateFrom(rand.Reader, now, validFor)
}

// generateFrom draws 20 random bits and rejects values >= 10^6,
// which keeps every code equally likely.
func generateFrom(r io.Reader, now time.Time, validFor time.Duration) (Code, error) {
	var buf [3]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Code{}, fmt.Errorf("accesscode: random: %w", err)
		}
		n := (uint32(buf[0])&0x0f)<<16 | uint32(buf[1])<<8 | uint32(buf[2])
		if n < codeSpan {
			return New(fmt.Sprintf("%0*d", Length, n), now, validFor)
		}
	}
}

// String returns the raw 6-digit value.
func (c Code) String() string { return c.value }

// IsZero reports whether c is the zero Code.
func (c Code) IsZero() bool { return c.value == "" }

// Display renders the code as two 3-digit groups ("123-456").
func (c Code) Display() string {
	if len(c.value) != Length {
		return c.value
	}
	return c.value[:3] + displaySeparator + c.value[3:]
}

// IssuedAt returns the issue time (zero when unknown).
func (c Code) IssuedAt() time.Time { return c.issuedAt }

// ExpiresAt returns the expiry instant; ok is false when the code never expires.
func (c Code) ExpiresAt() (time.Time, bool) {
	if c.validFor <= 0 || c.issuedAt.IsZero() {
		return time.Time{}, false
	}
	return c.issuedAt.Add(c.validFor), true
}

// IsExpired reports whether the code is past its expiration window at now.
func (c Code) IsExpired(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Before(exp)
}

// RemainingValidityMinutes returns the whole minutes left (rounded up, never negative).
// ok is false when the code never expires.
func (c Code) RemainingValidityMinutes(now time.Time) (minutes int, ok bool) {
	exp, ok := c.ExpiresAt()
	if !ok {
		return 0, false
	}
	left := exp.Sub(now)
	if left <= 0 {
		return 0, true
	}
	return int(math.Ceil(left.Minutes())), true
}
