package control

import (
	"errors"

	"livedeck/cmd/internal/presentation"
)

// User-facing messages. Terse and non-diagnostic.
const (
	MsgNoSlides      = "no slides"
	MsgNotActive     = "not active"
	MsgNotStarted    = "not started"
	MsgAlreadyActive = "already active"
	MsgNotFound      = "presentation not found"
	MsgForbidden     = "forbidden"
	MsgLastSlide     = "last slide"
	MsgSlideNotFound = "slide not found"
	MsgInvalidIndex  = "invalid index"
	MsgInternal      = "internal error"
)

// Result is the uniform outcome of a control operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	// Err is the classified cause of a failure, for errors.Is.
	Err error `json:"-"`

	// Session is the state after the operation (zero when loading failed).
	Session presentation.Session `json:"-"`
	// Slide is the current slide when the operation resolved one.
	Slide *presentation.Slide `json:"-"`
}

// Label returns a stable metrics/log label for the outcome.
func (r Result) Label() string {
	if r.Success {
		return "success"
	}
	switch {
	case errors.Is(r.Err, ErrNoSlides):
		return "no_slides"
	case errors.Is(r.Err, ErrLastSlide):
		return "last_slide"
	case errors.Is(r.Err, ErrNotStarted):
		return "not_started"
	case errors.Is(r.Err, presentation.ErrNotActive):
		return "not_active"
	case errors.Is(r.Err, presentation.ErrAlreadyActive):
		return "already_active"
	case errors.Is(r.Err, presentation.ErrNotFound):
		return "not_found"
	case errors.Is(r.Err, presentation.ErrForbidden):
		return "forbidden"
	case errors.Is(r.Err, presentation.ErrSlideNotFound):
		return "slide_not_found"
	case errors.Is(r.Err, presentation.ErrInvalidIndex):
		return "invalid_index"
	default:
		return "error"
	}
}

func ok(s presentation.Session, sl *presentation.Slide) Result {
	return Result{Success: true, Session: s, Slide: sl}
}

func fail(err error, msg string, s presentation.Session) Result {
	return Result{Success: false, Message: msg, Err: err, Session: s}
}
