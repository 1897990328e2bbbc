package miniscript

import (
	"fmt"
)

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// Type errors.  These are raised by the property lattices when a fragment
// composes children of the wrong shape.
const (
	// ErrZeroTime indicates an after or older fragment with a lock time of
	// zero.
	ErrZeroTime = ErrorKind("ErrZeroTime")

	// ErrZeroThreshold indicates a thresh or thresh_m fragment with k = 0.
	ErrZeroThreshold = ErrorKind("ErrZeroThreshold")

	// ErrOverThreshold indicates a thresh or thresh_m fragment with more
	// required than available children.
	ErrOverThreshold = ErrorKind("ErrOverThreshold")

	// ErrNoStrongChild indicates a disjunction whose children can all be
	// satisfied by a third party, which makes it malleable.
	ErrNoStrongChild = ErrorKind("ErrNoStrongChild")

	// ErrThresholdNotStrong indicates a threshold with too few children
	// requiring a signature to be non-malleable.
	ErrThresholdNotStrong = ErrorKind("ErrThresholdNotStrong")

	// ErrChildBase1 indicates a wrapper applied to a child of the wrong
	// base type.
	ErrChildBase1 = ErrorKind("ErrChildBase1")

	// ErrChildBase2 indicates a binary combinator with children of the
	// wrong base types.
	ErrChildBase2 = ErrorKind("ErrChildBase2")

	// ErrChildBase3 indicates andor with children of the wrong base types.
	ErrChildBase3 = ErrorKind("ErrChildBase3")

	// ErrSwapNonOne indicates the s: wrapper applied to a fragment that
	// does not consume exactly one stack element.
	ErrSwapNonOne = ErrorKind("ErrSwapNonOne")

	// ErrNonZeroDupIf indicates the d: wrapper applied to a fragment that
	// consumes stack elements.
	ErrNonZeroDupIf = ErrorKind("ErrNonZeroDupIf")

	// ErrNonZeroZero indicates the j: wrapper applied to a fragment that
	// may be satisfied by an empty input.
	ErrNonZeroZero = ErrorKind("ErrNonZeroZero")

	// ErrLeftNotDissatisfiable indicates a combinator whose left child must
	// be dissatisfiable but is not.
	ErrLeftNotDissatisfiable = ErrorKind("ErrLeftNotDissatisfiable")

	// ErrRightNotDissatisfiable indicates a combinator whose right child
	// must be dissatisfiable but is not.
	ErrRightNotDissatisfiable = ErrorKind("ErrRightNotDissatisfiable")

	// ErrLeftNotUnit indicates a combinator whose left child must leave
	// exactly 1 on the stack when satisfied but does not.
	ErrLeftNotUnit = ErrorKind("ErrLeftNotUnit")

	// ErrThresholdBase indicates a thresh child of the wrong base type.
	// The first child must be B and the others W.
	ErrThresholdBase = ErrorKind("ErrThresholdBase")

	// ErrThresholdDissat indicates a thresh child that cannot be
	// dissatisfied.
	ErrThresholdDissat = ErrorKind("ErrThresholdDissat")

	// ErrThresholdNonUnit indicates a thresh child that is not a unit.
	ErrThresholdNonUnit = ErrorKind("ErrThresholdNonUnit")
)

// Parse errors.  These are raised for malformed text or script input.
const (
	// ErrUnexpected indicates an unexpected character in text input.
	ErrUnexpected = ErrorKind("ErrUnexpected")

	// ErrUnterminated indicates the text ended inside an argument list.
	ErrUnterminated = ErrorKind("ErrUnterminated")

	// ErrUnknownFragment indicates an unknown fragment name.
	ErrUnknownFragment = ErrorKind("ErrUnknownFragment")

	// ErrUnknownWrapper indicates an unknown wrapper letter.
	ErrUnknownWrapper = ErrorKind("ErrUnknownWrapper")

	// ErrMultipleColons indicates more than one ':' in a wrapper prefix.
	ErrMultipleColons = ErrorKind("ErrMultipleColons")

	// ErrNonCanonicalTrue indicates and_v(X,1) spelled out instead of t:X.
	ErrNonCanonicalTrue = ErrorKind("ErrNonCanonicalTrue")

	// ErrWrongArity indicates a fragment with the wrong number of
	// arguments.
	ErrWrongArity = ErrorKind("ErrWrongArity")

	// ErrInvalidKey indicates a key the key parser or decoder rejected.
	ErrInvalidKey = ErrorKind("ErrInvalidKey")

	// ErrInvalidHash indicates a hash argument that is not hex of the
	// expected length.
	ErrInvalidHash = ErrorKind("ErrInvalidHash")

	// ErrInvalidNumber indicates a malformed or out of range number.
	ErrInvalidNumber = ErrorKind("ErrInvalidNumber")

	// ErrTooManyKeys indicates a thresh_m with more than 20 keys.
	ErrTooManyKeys = ErrorKind("ErrTooManyKeys")

	// ErrMaxDepthExceeded indicates input nested deeper than the parser
	// allows.
	ErrMaxDepthExceeded = ErrorKind("ErrMaxDepthExceeded")

	// ErrInvalidOpcode indicates an opcode that no fragment produces.
	ErrInvalidOpcode = ErrorKind("ErrInvalidOpcode")

	// ErrInvalidPush indicates a data push that is neither a key, a hash
	// nor a minimally encoded non-negative number.
	ErrInvalidPush = ErrorKind("ErrInvalidPush")

	// ErrNonMinimalVerify indicates OP_VERIFY following an opcode that has
	// a VERIFY form.
	ErrNonMinimalVerify = ErrorKind("ErrNonMinimalVerify")

	// ErrUnexpectedToken indicates a script token that does not fit the
	// fragment being decoded.
	ErrUnexpectedToken = ErrorKind("ErrUnexpectedToken")

	// ErrTrailingTokens indicates script left over after a complete
	// fragment was decoded.
	ErrTrailingTokens = ErrorKind("ErrTrailingTokens")
)

// Script and analysis errors.
const (
	// ErrMissingKeyMaterial indicates a key without a serialization, such
	// as a NamedKey, reached the compiler.
	ErrMissingKeyMaterial = ErrorKind("ErrMissingKeyMaterial")

	// ErrNotTopLevel indicates a fragment used as a whole script that is
	// not of base type B.
	ErrNotTopLevel = ErrorKind("ErrNotTopLevel")

	// ErrScriptTooLarge indicates a script over the standard P2WSH size.
	ErrScriptTooLarge = ErrorKind("ErrScriptTooLarge")

	// ErrTooManyOps indicates a script over the consensus op limit.
	ErrTooManyOps = ErrorKind("ErrTooManyOps")

	// ErrMalleable indicates a script without a guaranteed non-malleable
	// satisfaction.
	ErrMalleable = ErrorKind("ErrMalleable")

	// ErrNoSignature indicates a script that can be satisfied without any
	// signature.
	ErrNoSignature = ErrorKind("ErrNoSignature")

	// ErrTypeMismatch indicates a cached type that differs from the one
	// recomputed by Reverify.
	ErrTypeMismatch = ErrorKind("ErrTypeMismatch")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a miniscript error.  It has full support for errors.Is and
// errors.As, so the caller can ascertain the specific reason for the error by
// checking the underlying error.
type Error struct {
	Err         error
	Description string

	// Fragment is the canonical text of the offending fragment, when known.
	Fragment string

	// Offset is the byte offset into the text or script input, or -1.
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

// kindError creates an Error without fragment context.  The lattices return
// these and the type checker attaches the fragment.
func kindError(kind ErrorKind, format string, args ...interface{}) Error {
	return Error{
		Err:         kind,
		Description: fmt.Sprintf(format, args...),
		Offset:      -1,
	}
}

// withFragment attaches the fragment to an error returned by a lattice.
func withFragment(err error, t Terminal) error {
	e, ok := err.(Error)
	if !ok || e.Fragment != "" {
		return err
	}
	e.Fragment = terminalString(t)
	e.Description = fmt.Sprintf("fragment %q %s", e.Fragment,
		e.Description)
	return e
}

// parseError creates an Error for malformed text or script input.
func parseError(kind ErrorKind, offset int, desc string) Error {
	return Error{Err: kind, Description: desc, Offset: offset}
}

// analysisError creates an Error about a well typed fragment.
func analysisError(kind ErrorKind, fragment string, desc string) Error {
	return Error{
		Err:         kind,
		Description: desc,
		Fragment:    fragment,
		Offset:      -1,
	}
}
