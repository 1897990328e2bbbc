package miniscript

import (
	"strings"
)

// Type is the checked type of a fragment: its correctness and malleability
// properties.
type Type struct {
	Corr Correctness
	Mall Malleability
}

// IsSubtype reports whether t can be used where other is expected.
func (t Type) IsSubtype(other Type) bool {
	return t.Corr.IsSubtype(other.Corr) && t.Mall.IsSubtype(other.Mall)
}

// sanityChecks panics if the two lattices disagree with each other.
func (t Type) sanityChecks() {
	if t.Corr.DisSatisfiable && t.Mall.Dissat == DissatNone {
		panic("miniscript: dissatisfiable fragment without " +
			"dissatisfactions")
	}
	if t.Corr.Base == BaseK && !t.Mall.Safe {
		panic("miniscript: K fragment that does not require a signature")
	}
	if t.Corr.Base == BaseV && t.Mall.Dissat != DissatNone {
		panic("miniscript: V fragment with dissatisfactions")
	}
}

// String returns the base type followed by the type properties:
//
//	z: consumes exactly 0 stack elements
//	o: consumes exactly 1 stack element
//	n: the top input is never zero
//	d: can be dissatisfied
//	u: leaves exactly 1 on the stack when satisfied
//	m: a non-malleable satisfaction exists
//	s: every satisfaction requires a signature
//	f: has no dissatisfaction
//	e: has a unique dissatisfaction
func (t Type) String() string {
	s := strings.Builder{}
	s.WriteString(t.Corr.Base.String())

	switch t.Corr.Input {
	case InputZero:
		s.WriteRune('z')
	case InputOne:
		s.WriteRune('o')
	case InputOneNonZero:
		s.WriteString("on")
	case InputAnyNonZero:
		s.WriteRune('n')
	}
	if t.Corr.DisSatisfiable {
		s.WriteRune('d')
	}
	if t.Corr.Unit {
		s.WriteRune('u')
	}
	if t.Mall.NonMalleable {
		s.WriteRune('m')
	}
	if t.Mall.Safe {
		s.WriteRune('s')
	}
	switch t.Mall.Dissat {
	case DissatNone:
		s.WriteRune('f')
	case DissatUnique:
		s.WriteRune('e')
	}
	return s.String()
}
