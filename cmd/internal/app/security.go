package app

import (
	"errors"
	"time"

	"livedeck/cmd/internal/auth/presenter"
)

// ValidateSecurityConfig enforces the presenter token policy at startup.
// An unset secret disables presenter features; a set one must be usable.
func ValidateSecurityConfig(cfg Config) error {
	if cfg.PresenterJWTSecret == "" {
		return nil
	}
	if _, err := newVerifier(cfg); err != nil {
		switch {
		case errors.Is(err, presenter.ErrKeyTooShort):
			return errors.New("security policy: PRESENTER_JWT_SECRET is too short (min 32 bytes)")
		default:
			return err
		}
	}
	return nil
}

// newVerifier returns nil, nil when presenter auth is not configured.
func newVerifier(cfg Config) (*presenter.Verifier, error) {
	if cfg.PresenterJWTSecret == "" {
		return nil, nil
	}
	opts := []presenter.Option{presenter.WithLeeway(30 * time.Second)}
	if cfg.PresenterJWTIssuer != "" {
		opts = append(opts, presenter.WithIssuer(cfg.PresenterJWTIssuer))
	}
	return presenter.NewVerifier([]byte(cfg.PresenterJWTSecret), opts...)
}
