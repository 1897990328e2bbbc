/*
Package miniscript implements Miniscript, a typed language for a subset of
Bitcoin Script, for P2WSH outputs.

A miniscript is a tree of fragments (see Terminal).  Every node of the tree
carries a type proving that the composition is a valid script and telling
whether it can be satisfied without malleability, plus cost data used for
fee estimation and resource limit checks.  Nodes can only be created by the
type checker, through FromTerminal or one of the parsers:

	m, err := miniscript.Parse("or_d(pk(A),and_v(v:pk(B),older(144)))")
	if err != nil {
		// handle error
	}
	if err := m.IsSane(); err != nil {
		// the miniscript is valid but unsafe to use on its own
	}

Parse reads the text form, FromTree builds from an already scanned
expression tree and DecodeScript reconstructs a miniscript from script bytes.
Script compiles a miniscript back into script bytes.

# Types

The type of a fragment has a base (B, V, K or W) and a number of
properties, rendered the way Type.String does it:

	z: consumes exactly 0 stack elements
	o: consumes exactly 1 stack element
	n: the top input is never zero
	d: can be dissatisfied
	u: leaves exactly 1 on the stack when satisfied
	m: a non-malleable satisfaction exists
	s: every satisfaction requires a signature
	f: has no dissatisfaction
	e: has a unique dissatisfaction

Errors are returned as Error values whose Err field is an ErrorKind, so
callers can use errors.Is to test for a specific kind.
*/
package miniscript
