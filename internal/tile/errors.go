package tile

import "fmt"

// ErrorKind is the machine-readable taxonomy of validation failures. Values
// are what clients see in the "error" field of rejection payloads.
type ErrorKind string

const (
	KindInvalidDate       ErrorKind = "invalid_date"
	KindZoomOutOfRange    ErrorKind = "invalid_zoom"
	KindCoordsOutOfBounds ErrorKind = "coordinates_out_of_bounds"
	KindUnsupportedLayer  ErrorKind = "unsupported_layer"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
)

// Error is a validation failure carrying enough context for the caller to
// self-correct. It is always produced before any upstream call.
type Error struct {
	Kind     ErrorKind
	Message  string
	Provided any

	// Kind-specific context rendered verbatim into the rejection payload
	// (valid ranges, matrix shape, supported layer metadata).
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, provided any, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Provided: provided,
	}
}
