package kernel

import "fmt"

// ErrorKind categorizes description errors.
type ErrorKind uint8

const (
	// ErrInvalidName indicates an empty or malformed identifier.
	ErrInvalidName ErrorKind = iota

	// ErrDuplicateBinding indicates two resources share a class and index.
	ErrDuplicateBinding

	// ErrInvalidGroupSize indicates a thread-group size outside device limits.
	ErrInvalidGroupSize

	// ErrUnknownType indicates a captured field type with no known packing.
	ErrUnknownType

	// ErrTooManyConstants indicates the captured values exceed the root
	// constant budget.
	ErrTooManyConstants

	// ErrInvalidKind indicates an unknown kernel kind.
	ErrInvalidKind

	// ErrInvalidClass indicates an unknown resource class.
	ErrInvalidClass

	// ErrDecode indicates a description file could not be decoded.
	ErrDecode
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidName:
		return "InvalidName"
	case ErrDuplicateBinding:
		return "DuplicateBinding"
	case ErrInvalidGroupSize:
		return "InvalidGroupSize"
	case ErrUnknownType:
		return "UnknownType"
	case ErrTooManyConstants:
		return "TooManyConstants"
	case ErrInvalidKind:
		return "InvalidKind"
	case ErrInvalidClass:
		return "InvalidClass"
	case ErrDecode:
		return "Decode"
	default:
		return "Unknown"
	}
}

// Error reports a problem with a kernel description.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("kernel %s: %s", e.Kind, e.Message)
}

// Is reports whether target is an *Error of the same kind, so that callers
// can match with errors.Is(err, &kernel.Error{Kind: kernel.ErrUnknownType}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError creates a new description error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
