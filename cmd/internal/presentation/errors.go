package presentation

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("presentation not found")
	ErrSlideNotFound = errors.New("slide not found")
	ErrNotActive     = errors.New("presentation not active")
	ErrAlreadyActive = errors.New("presentation already active")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidIndex  = errors.New("invalid slide index")
)

// OpError is a typed store failure with a stable Op + Kind contract.
// Kind is one of the sentinels above when applicable; Msg carries context.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
