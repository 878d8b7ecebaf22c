package participant

import "errors"

var ErrInvalidInput = errors.New("invalid input")
