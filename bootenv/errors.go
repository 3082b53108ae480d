package bootenv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a reference matches no environment.
	ErrNotFound = errors.New("boot environment not found")
	// ErrAmbiguous is returned when a name prefix matches several environments.
	ErrAmbiguous = errors.New("ambiguous boot environment reference")
	// ErrStreamClosed is returned by Watch when the bus stopped delivering signals.
	ErrStreamClosed = errors.New("signal stream closed")

	ErrMissingField = errors.New("missing property")
	ErrTypeMismatch = errors.New("property type mismatch")
)

// DecodeError reports why a property dictionary could not be turned into a
// record. It wraps ErrMissingField or ErrTypeMismatch.
type DecodeError struct {
	ID       string
	Property string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s: %v", e.ID, e.Property, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
