package control

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoSlides     = errors.New("no slides")
	ErrLastSlide    = errors.New("last slide")
	ErrNotStarted   = errors.New("not started")
)
