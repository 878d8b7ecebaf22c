package join

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidCode  = errors.New("invalid code")
)
