package miniscript

// Base is where on the stack a fragment leaves its result.
type Base uint8

const (
	// BaseB pushes a nonzero value on satisfaction and an exact 0 on
	// dissatisfaction.
	BaseB Base = iota

	// BaseV pushes nothing on satisfaction and cannot be dissatisfied
	// without aborting.
	BaseV

	// BaseK pushes a public key, which c: turns into a B.
	BaseK

	// BaseW works like B one element below the top of the stack.
	BaseW
)

// String returns the one letter name of the base type.
func (b Base) String() string {
	switch b {
	case BaseB:
		return "B"
	case BaseV:
		return "V"
	case BaseK:
		return "K"
	case BaseW:
		return "W"
	}
	return "?"
}

// Input describes what a fragment consumes from the stack.
type Input uint8

const (
	// InputZero consumes nothing.
	InputZero Input = iota

	// InputOne consumes exactly one element.
	InputOne

	// InputAny consumes any number of elements.
	InputAny

	// InputOneNonZero consumes exactly one element, which is nonzero
	// when satisfying.
	InputOneNonZero

	// InputAnyNonZero consumes any number of elements, the top one being
	// nonzero when satisfying.
	InputAnyNonZero
)

// String returns the name of the input type.
func (i Input) String() string {
	switch i {
	case InputZero:
		return "Zero"
	case InputOne:
		return "One"
	case InputAny:
		return "Any"
	case InputOneNonZero:
		return "OneNonZero"
	case InputAnyNonZero:
		return "AnyNonZero"
	}
	return "?"
}

// IsSubtype reports whether a fragment with input i may be used where other
// is expected.
func (i Input) IsSubtype(other Input) bool {
	switch {
	case i == other:
		return true
	case other == InputAny:
		return true
	case i == InputOneNonZero &&
		(other == InputOne || other == InputAnyNonZero):
		return true
	}
	return false
}

// Correctness is the structural soundness lattice: whether a composition of
// fragments is a valid script at all.
type Correctness struct {
	Base           Base
	Input          Input
	DisSatisfiable bool
	Unit           bool
}

// IsSubtype reports whether c can be used where other is expected.
func (c Correctness) IsSubtype(other Correctness) bool {
	return c.Base == other.Base &&
		c.Input.IsSubtype(other.Input) &&
		(c.DisSatisfiable || !other.DisSatisfiable) &&
		(c.Unit || !other.Unit)
}

// SanityChecks panics if c breaks an invariant of the lattice.
func (c Correctness) SanityChecks() {
	switch c.Base {
	case BaseK:
		if !c.Unit {
			panic("miniscript: K fragment is not a unit")
		}
	case BaseV:
		if c.Unit || c.DisSatisfiable {
			panic("miniscript: V fragment is a unit or " +
				"dissatisfiable")
		}
	case BaseW:
		if c.Input == InputOneNonZero || c.Input == InputAnyNonZero {
			panic("miniscript: W fragment has a nonzero input")
		}
	}
}

func (Correctness) FromTrue() Correctness {
	return Correctness{Base: BaseB, Input: InputZero, Unit: true}
}

func (Correctness) FromFalse() Correctness {
	return Correctness{
		Base: BaseB, Input: InputZero, DisSatisfiable: true, Unit: true,
	}
}

func (Correctness) FromPk() Correctness {
	return Correctness{
		Base: BaseK, Input: InputOneNonZero, DisSatisfiable: true,
		Unit: true,
	}
}

func (Correctness) FromPkH() Correctness {
	return Correctness{
		Base: BaseK, Input: InputAnyNonZero, DisSatisfiable: true,
		Unit: true,
	}
}

func (Correctness) FromMulti(_, _ int) Correctness {
	return Correctness{
		Base: BaseB, Input: InputAnyNonZero, DisSatisfiable: true,
		Unit: true,
	}
}

func (c Correctness) fromHash() Correctness {
	return Correctness{
		Base: BaseB, Input: InputOneNonZero, DisSatisfiable: true,
		Unit: true,
	}
}

func (c Correctness) FromSha256() Correctness    { return c.fromHash() }
func (c Correctness) FromHash256() Correctness   { return c.fromHash() }
func (c Correctness) FromRipemd160() Correctness { return c.fromHash() }
func (c Correctness) FromHash160() Correctness   { return c.fromHash() }

func (Correctness) fromTime() Correctness {
	return Correctness{Base: BaseB, Input: InputZero}
}

func (c Correctness) FromAfter(uint32) Correctness { return c.fromTime() }
func (c Correctness) FromOlder(uint32) Correctness { return c.fromTime() }

func (c Correctness) CastAlt() (Correctness, error) {
	if c.Base != BaseB {
		return Correctness{}, childBase1(c.Base)
	}
	return Correctness{
		Base:           BaseW,
		Input:          InputAny,
		DisSatisfiable: c.DisSatisfiable,
		Unit:           c.Unit,
	}, nil
}

func (c Correctness) CastSwap() (Correctness, error) {
	if c.Base != BaseB {
		return Correctness{}, childBase1(c.Base)
	}
	if !c.Input.IsSubtype(InputOne) {
		return Correctness{}, kindError(ErrSwapNonOne,
			"attempts to use SWAP to prefix something which does "+
				"not take exactly one input")
	}
	return Correctness{
		Base:           BaseW,
		Input:          InputAny,
		DisSatisfiable: c.DisSatisfiable,
		Unit:           c.Unit,
	}, nil
}

func (c Correctness) CastCheck() (Correctness, error) {
	if c.Base != BaseK {
		return Correctness{}, childBase1(c.Base)
	}
	return Correctness{
		Base:           BaseB,
		Input:          c.Input,
		DisSatisfiable: c.DisSatisfiable,
		Unit:           true,
	}, nil
}

// CastDupIf types d:X.  Unlike implementations that assume MINIMALIF, the
// result is not marked u.
func (c Correctness) CastDupIf() (Correctness, error) {
	if c.Base != BaseV {
		return Correctness{}, childBase1(c.Base)
	}
	if c.Input != InputZero {
		return Correctness{}, kindError(ErrNonZeroDupIf,
			"needs its child to consume zero elements from the "+
				"stack")
	}
	return Correctness{
		Base:           BaseB,
		Input:          InputOneNonZero,
		DisSatisfiable: true,
	}, nil
}

func (c Correctness) CastVerify() (Correctness, error) {
	if c.Base != BaseB {
		return Correctness{}, childBase1(c.Base)
	}
	return Correctness{Base: BaseV, Input: c.Input}, nil
}

func (c Correctness) CastNonZero() (Correctness, error) {
	if c.Input != InputOneNonZero && c.Input != InputAnyNonZero {
		return Correctness{}, kindError(ErrNonZeroZero,
			"uses the j: wrapper around a fragment which might be "+
				"satisfied by an input of size zero")
	}
	if c.Base != BaseB {
		return Correctness{}, childBase1(c.Base)
	}
	return Correctness{
		Base:           BaseB,
		Input:          c.Input,
		DisSatisfiable: true,
		Unit:           c.Unit,
	}, nil
}

func (c Correctness) CastZeroNotEqual() (Correctness, error) {
	if c.Base != BaseB {
		return Correctness{}, childBase1(c.Base)
	}
	return Correctness{
		Base:           BaseB,
		Input:          c.Input,
		DisSatisfiable: c.DisSatisfiable,
		Unit:           true,
	}, nil
}

func (c Correctness) CastTrue() (Correctness, error) {
	if c.Base != BaseV {
		return Correctness{}, childBase1(c.Base)
	}
	return Correctness{Base: BaseB, Input: c.Input, Unit: true}, nil
}

func (c Correctness) CastOrIFalse() (Correctness, error) {
	return c.OrI(c.FromFalse())
}

func (c Correctness) CastLikely() (Correctness, error) {
	return c.FromFalse().OrI(c)
}

func (c Correctness) CastUnlikely() (Correctness, error) {
	return c.OrI(c.FromFalse())
}

// andInput is the input of two fragments executed one after the other.
func andInput(l, r Input) Input {
	switch {
	case l == InputZero && r == InputZero:
		return InputZero
	case l == InputZero && r == InputOne,
		l == InputOne && r == InputZero:
		return InputOne
	case l == InputZero && r == InputOneNonZero,
		l == InputOneNonZero && r == InputZero:
		return InputOneNonZero
	case l == InputOneNonZero, l == InputAnyNonZero,
		l == InputZero && r == InputAnyNonZero:
		return InputAnyNonZero
	}
	return InputAny
}

func (c Correctness) AndB(r Correctness) (Correctness, error) {
	if c.Base != BaseB || r.Base != BaseW {
		return Correctness{}, childBase2(c.Base, r.Base)
	}
	return Correctness{
		Base:           BaseB,
		Input:          andInput(c.Input, r.Input),
		DisSatisfiable: c.DisSatisfiable && r.DisSatisfiable,
		Unit:           true,
	}, nil
}

func (c Correctness) AndV(r Correctness) (Correctness, error) {
	if c.Base != BaseV || r.Base == BaseW {
		return Correctness{}, childBase2(c.Base, r.Base)
	}
	return Correctness{
		Base:  r.Base,
		Input: andInput(c.Input, r.Input),
		Unit:  r.Unit,
	}, nil
}

func (c Correctness) AndN(r Correctness) (Correctness, error) {
	return c.AndOr(r, c.FromFalse())
}

func (c Correctness) OrB(r Correctness) (Correctness, error) {
	if c.Base != BaseB || r.Base != BaseW {
		return Correctness{}, childBase2(c.Base, r.Base)
	}
	if !c.DisSatisfiable {
		return Correctness{}, leftNotDissatisfiable()
	}
	if !r.DisSatisfiable {
		return Correctness{}, kindError(ErrRightNotDissatisfiable,
			"requires its right child be dissatisfiable")
	}

	input := InputAny
	switch {
	case c.Input == InputZero && r.Input == InputZero:
		input = InputZero
	case c.Input == InputZero && r.Input.IsSubtype(InputOne),
		c.Input.IsSubtype(InputOne) && r.Input == InputZero:
		input = InputOne
	}
	return Correctness{
		Base:           BaseB,
		Input:          input,
		DisSatisfiable: true,
		Unit:           true,
	}, nil
}

// orLeft checks the left child of or_d, or_c and andor.
func (c Correctness) orLeft() error {
	if !c.DisSatisfiable {
		return leftNotDissatisfiable()
	}
	if !c.Unit {
		return kindError(ErrLeftNotUnit, "requires its left child be "+
			"a unit (outputs exactly 1 given a satisfying input)")
	}
	return nil
}

// orInput is the input of a disjunction that runs r only after dissatisfying
// c.
func orInput(l, r Input) Input {
	switch {
	case l == InputZero && r == InputZero:
		return InputZero
	case l.IsSubtype(InputOne) && r == InputZero:
		return InputOne
	}
	return InputAny
}

func (c Correctness) OrD(r Correctness) (Correctness, error) {
	if c.Base != BaseB || r.Base != BaseB {
		return Correctness{}, childBase2(c.Base, r.Base)
	}
	if err := c.orLeft(); err != nil {
		return Correctness{}, err
	}
	return Correctness{
		Base:           BaseB,
		Input:          orInput(c.Input, r.Input),
		DisSatisfiable: r.DisSatisfiable,
		Unit:           r.Unit,
	}, nil
}

func (c Correctness) OrC(r Correctness) (Correctness, error) {
	if c.Base != BaseB || r.Base != BaseV {
		return Correctness{}, childBase2(c.Base, r.Base)
	}
	if err := c.orLeft(); err != nil {
		return Correctness{}, err
	}
	return Correctness{
		Base:  BaseV,
		Input: orInput(c.Input, r.Input),
	}, nil
}

func (c Correctness) OrI(r Correctness) (Correctness, error) {
	if c.Base != r.Base || c.Base == BaseW {
		return Correctness{}, childBase2(c.Base, r.Base)
	}
	input := InputAny
	if c.Input == InputZero && r.Input == InputZero {
		input = InputOne
	}
	return Correctness{
		Base:           c.Base,
		Input:          input,
		DisSatisfiable: c.DisSatisfiable || r.DisSatisfiable,
		Unit:           c.Unit && r.Unit,
	}, nil
}

func (c Correctness) AndOr(b, d Correctness) (Correctness, error) {
	if c.Base != BaseB || b.Base != d.Base || b.Base == BaseW {
		return Correctness{}, kindError(ErrChildBase3,
			"cannot accept children of types %v, %v and %v",
			c.Base, b.Base, d.Base)
	}
	if err := c.orLeft(); err != nil {
		return Correctness{}, err
	}

	input := InputAny
	switch {
	case c.Input == InputZero && b.Input == InputZero &&
		d.Input == InputZero:
		input = InputZero
	case c.Input == InputZero && b.Input.IsSubtype(InputOne) &&
		d.Input.IsSubtype(InputOne),
		c.Input.IsSubtype(InputOne) && b.Input == InputZero &&
			d.Input == InputZero:
		input = InputOne
	}
	return Correctness{
		Base:           b.Base,
		Input:          input,
		DisSatisfiable: d.DisSatisfiable,
		Unit:           b.Unit && d.Unit,
	}, nil
}

func (Correctness) Threshold(k, n int,
	sub func(int) (Correctness, error)) (Correctness, error) {

	args := 0
	for i := 0; i < n; i++ {
		s, err := sub(i)
		if err != nil {
			return Correctness{}, err
		}

		switch s.Input {
		case InputOne, InputOneNonZero:
			args++
		case InputAny, InputAnyNonZero:
			args += 2
		}

		want := BaseW
		if i == 0 {
			want = BaseB
		}
		if s.Base != want {
			return Correctness{}, kindError(ErrThresholdBase,
				"sub-fragment %d has type %v rather than %v",
				i, s.Base, want)
		}
		if !s.Unit {
			return Correctness{}, kindError(ErrThresholdNonUnit,
				"sub-fragment %d is not a unit (does not put "+
					"exactly 1 on the stack given a "+
					"satisfying input)", i)
		}
		if !s.DisSatisfiable {
			return Correctness{}, kindError(ErrThresholdDissat,
				"sub-fragment %d can not be dissatisfied and "+
					"cannot be used in a threshold", i)
		}
	}

	input := InputAny
	switch args {
	case 0:
		input = InputZero
	case 1:
		input = InputOne
	}
	return Correctness{
		Base:           BaseB,
		Input:          input,
		DisSatisfiable: true,
		Unit:           true,
	}, nil
}

func childBase1(b Base) error {
	return kindError(ErrChildBase1, "cannot wrap a fragment of type %v", b)
}

func childBase2(l, r Base) error {
	return kindError(ErrChildBase2, "cannot accept children of types "+
		"%v and %v", l, r)
}

func leftNotDissatisfiable() error {
	return kindError(ErrLeftNotDissatisfiable, "requires its left child "+
		"be dissatisfiable")
}
