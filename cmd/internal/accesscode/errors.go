package accesscode

import "errors"

var (
	ErrInvalidFormat           = errors.New("invalid access code format")
	ErrCodeGenerationExhausted = errors.New("access code generation exhausted")
	ErrInvalidInput            = errors.New("invalid input")
)
