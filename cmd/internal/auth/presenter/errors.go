package presenter

import "errors"

var (
	ErrKeyMissing   = errors.New("presenter token key missing")
	ErrKeyTooShort  = errors.New("presenter token key too short")
	ErrInvalidToken = errors.New("invalid presenter token")
)
