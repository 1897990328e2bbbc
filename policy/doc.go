/*
Package policy implements spending policies for miniscripts.

A concrete policy is what a user writes to describe who may spend a coin:

	or(99@pk(A),and(pk(B),older(144)))

The numbers before @ weight the branches of an or by how likely they are to
be used.  A semantic policy is the same condition with all structure beyond
keys, lock times, hash locks and thresholds forgotten.  Both a concrete policy
and a miniscript can be lifted to a semantic policy, which allows auditing
that a script enforces what the policy asked for:

	c, _ := policy.ParseConcrete("or(pk(A),pk(B))")
	want, _ := c.Lift()

	m, _ := miniscript.Parse("or_b(c:pk(A),sc:pk(B))")
	got, _ := policy.Lift(m)

	// want.Sorted().String() == got.Sorted().String()
*/
package policy
