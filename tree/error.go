package tree

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrUnexpected indicates a character that cannot appear at its
	// position, such as a stray separator or an empty name.
	ErrUnexpected = ErrorKind("ErrUnexpected")

	// ErrUnterminated indicates the input ended inside an argument list.
	ErrUnterminated = ErrorKind("ErrUnterminated")

	// ErrMaxDepth indicates the expression is nested deeper than the
	// configured limit.
	ErrMaxDepth = ErrorKind("ErrMaxDepth")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a malformed expression.  It has full support for
// errors.Is and errors.As, so the caller can ascertain the specific reason
// for the error by checking the underlying error.
type Error struct {
	Err         error
	Description string

	// Offset is the byte offset into the input where scanning failed.
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

// treeError creates an Error given a set of arguments.
func treeError(kind ErrorKind, offset int, desc string) Error {
	return Error{Err: kind, Description: desc, Offset: offset}
}
