package miniscript

// Property is implemented by every property lattice: Correctness,
// Malleability and ExtData.  The type checker is written once against this
// interface and instantiated per lattice.
//
// The From* constructors ignore their receiver; they are called on the zero
// value of T.  Casts and combinators use the receiver as the (left) child.
// Combinators only ever return errors created with kindError; the checker
// attaches the fragment.
type Property[T any] interface {
	FromTrue() T
	FromFalse() T
	FromPk() T
	FromPkH() T
	FromMulti(k, n int) T
	FromSha256() T
	FromHash256() T
	FromRipemd160() T
	FromHash160() T
	FromAfter(lockTime uint32) T
	FromOlder(lockTime uint32) T

	CastAlt() (T, error)
	CastSwap() (T, error)
	CastCheck() (T, error)
	CastDupIf() (T, error)
	CastVerify() (T, error)
	CastNonZero() (T, error)
	CastZeroNotEqual() (T, error)
	CastTrue() (T, error)
	CastOrIFalse() (T, error)
	CastLikely() (T, error)
	CastUnlikely() (T, error)

	AndB(right T) (T, error)
	AndV(right T) (T, error)
	AndN(right T) (T, error)
	OrB(right T) (T, error)
	OrD(right T) (T, error)
	OrC(right T) (T, error)
	OrI(right T) (T, error)
	AndOr(b, c T) (T, error)
	Threshold(k, n int, sub func(i int) (T, error)) (T, error)

	// SanityChecks panics if the value breaks an invariant of its
	// lattice.  A panic here is a bug in the algebra, never bad input.
	SanityChecks()
}

// lookupFunc returns the property of an already checked child, or false to
// make the checker recompute it from the child's fragment.
type lookupFunc[T any] func(sub *Miniscript) (T, bool)

// typeCheck computes the property T of fragment t bottom-up.
func typeCheck[T Property[T]](t Terminal, lookup lookupFunc[T]) (T, error) {
	var zero T

	child := func(sub *Miniscript) (T, error) {
		if v, ok := lookup(sub); ok {
			return v, nil
		}
		return typeCheck[T](sub.Node, lookup)
	}
	unary := func(sub *Miniscript, cast func(T) (T, error)) (T, error) {
		c, err := child(sub)
		if err != nil {
			return zero, err
		}
		res, err := cast(c)
		if err != nil {
			return zero, withFragment(err, t)
		}
		return res, nil
	}
	binary := func(l, r *Miniscript, comb func(T, T) (T, error)) (T, error) {
		left, err := child(l)
		if err != nil {
			return zero, err
		}
		right, err := child(r)
		if err != nil {
			return zero, err
		}
		res, err := comb(left, right)
		if err != nil {
			return zero, withFragment(err, t)
		}
		return res, nil
	}

	var (
		res T
		err error
	)
	switch t := t.(type) {
	case True:
		res = zero.FromTrue()
	case False:
		res = zero.FromFalse()
	case Pk:
		res = zero.FromPk()
	case PkH:
		res = zero.FromPkH()
	case After:
		if t.LockTime == 0 {
			return zero, withFragment(kindError(ErrZeroTime,
				"represents a 0-valued timelock (use 1 "+
					"instead)"), t)
		}
		res = zero.FromAfter(t.LockTime)
	case Older:
		if t.LockTime == 0 {
			return zero, withFragment(kindError(ErrZeroTime,
				"represents a 0-valued timelock (use 1 "+
					"instead)"), t)
		}
		res = zero.FromOlder(t.LockTime)
	case Sha256:
		res = zero.FromSha256()
	case Hash256:
		res = zero.FromHash256()
	case Ripemd160:
		res = zero.FromRipemd160()
	case Hash160:
		res = zero.FromHash160()

	case Alt:
		res, err = unary(t.Sub, func(c T) (T, error) {
			return c.CastAlt()
		})
	case Swap:
		res, err = unary(t.Sub, func(c T) (T, error) {
			return c.CastSwap()
		})
	case Check:
		res, err = unary(t.Sub, func(c T) (T, error) {
			return c.CastCheck()
		})
	case DupIf:
		res, err = unary(t.Sub, func(c T) (T, error) {
			return c.CastDupIf()
		})
	case Verify:
		res, err = unary(t.Sub, func(c T) (T, error) {
			return c.CastVerify()
		})
	case NonZero:
		res, err = unary(t.Sub, func(c T) (T, error) {
			return c.CastNonZero()
		})
	case ZeroNotEqual:
		res, err = unary(t.Sub, func(c T) (T, error) {
			return c.CastZeroNotEqual()
		})

	case AndV:
		res, err = binary(t.X, t.Y, func(l, r T) (T, error) {
			return l.AndV(r)
		})
	case AndB:
		res, err = binary(t.X, t.Y, func(l, r T) (T, error) {
			return l.AndB(r)
		})
	case OrB:
		res, err = binary(t.X, t.Z, func(l, r T) (T, error) {
			return l.OrB(r)
		})
	case OrD:
		res, err = binary(t.X, t.Z, func(l, r T) (T, error) {
			return l.OrD(r)
		})
	case OrC:
		res, err = binary(t.X, t.Z, func(l, r T) (T, error) {
			return l.OrC(r)
		})
	case OrI:
		res, err = binary(t.X, t.Z, func(l, r T) (T, error) {
			return l.OrI(r)
		})
	case AndOr:
		var a, b, c T
		if a, err = child(t.X); err != nil {
			return zero, err
		}
		if b, err = child(t.Y); err != nil {
			return zero, err
		}
		if c, err = child(t.Z); err != nil {
			return zero, err
		}
		if res, err = a.AndOr(b, c); err != nil {
			return zero, withFragment(err, t)
		}

	case Thresh:
		if err := checkThreshold(t, t.K, len(t.Subs)); err != nil {
			return zero, err
		}
		res, err = zero.Threshold(t.K, len(t.Subs),
			func(i int) (T, error) {
				return child(t.Subs[i])
			})
		if err != nil {
			return zero, withFragment(err, t)
		}
	case ThreshM:
		if err := checkThreshold(t, t.K, len(t.Keys)); err != nil {
			return zero, err
		}
		res = zero.FromMulti(t.K, len(t.Keys))

	default:
		panic("miniscript: unknown fragment type")
	}
	if err != nil {
		return zero, err
	}

	res.SanityChecks()
	return res, nil
}

// checkThreshold validates 0 < k <= n.
func checkThreshold(t Terminal, k, n int) error {
	if k == 0 {
		return withFragment(kindError(ErrZeroThreshold,
			"has a threshold value of 0"), t)
	}
	if k < 0 || k > n {
		return withFragment(kindError(ErrOverThreshold,
			"is a %d-of-%d threshold, which does not make sense",
			k, n), t)
	}
	return nil
}
