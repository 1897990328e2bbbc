package policy

import "fmt"

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrUnknownFragment indicates an unknown policy fragment name.
	ErrUnknownFragment = ErrorKind("ErrUnknownFragment")

	// ErrWrongArity indicates a fragment with the wrong number of
	// arguments.
	ErrWrongArity = ErrorKind("ErrWrongArity")

	// ErrInvalidKey indicates a key the key parser rejected.
	ErrInvalidKey = ErrorKind("ErrInvalidKey")

	// ErrInvalidHash indicates a hash argument that is not hex of the
	// expected length.
	ErrInvalidHash = ErrorKind("ErrInvalidHash")

	// ErrInvalidNumber indicates a malformed or out of range number.
	ErrInvalidNumber = ErrorKind("ErrInvalidNumber")

	// ErrInvalidProbability indicates a malformed or zero branch weight,
	// or a weight outside of an or.
	ErrInvalidProbability = ErrorKind("ErrInvalidProbability")

	// ErrZeroTime indicates an after or older with a lock time of zero.
	ErrZeroTime = ErrorKind("ErrZeroTime")

	// ErrZeroThreshold indicates a thresh with k = 0.
	ErrZeroThreshold = ErrorKind("ErrZeroThreshold")

	// ErrOverThreshold indicates a thresh requiring more branches than
	// it has.
	ErrOverThreshold = ErrorKind("ErrOverThreshold")

	// ErrMixedTimeLocks indicates a branch that can only be satisfied by
	// both a block height and a time based lock of the same kind, which
	// no transaction can do.
	ErrMixedTimeLocks = ErrorKind("ErrMixedTimeLocks")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a policy error.  It has full support for errors.Is and
// errors.As, so the caller can ascertain the specific reason for the error by
// checking the underlying error.
type Error struct {
	Err         error
	Description string

	// Offset is the byte offset into the text input, or -1.
	Offset int
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// policyError creates an Error given a set of arguments.
func policyError(kind ErrorKind, offset int, format string,
	args ...interface{}) Error {

	return Error{
		Err:         kind,
		Description: fmt.Sprintf(format, args...),
		Offset:      offset,
	}
}
