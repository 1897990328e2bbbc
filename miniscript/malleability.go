package miniscript

// Dissat describes the dissatisfactions of a fragment.
type Dissat uint8

const (
	// DissatNone means the fragment has no dissatisfaction.
	DissatNone Dissat = iota

	// DissatUnique means there is exactly one dissatisfaction a third
	// party could produce.
	DissatUnique

	// DissatUnknown means nothing is known about the dissatisfactions.
	DissatUnknown
)

// String returns the name of the dissatisfaction type.
func (d Dissat) String() string {
	switch d {
	case DissatNone:
		return "None"
	case DissatUnique:
		return "Unique"
	case DissatUnknown:
		return "Unknown"
	}
	return "?"
}

// IsSubtype reports whether d can be used where other is expected.
func (d Dissat) IsSubtype(other Dissat) bool {
	return d == other || other == DissatUnknown
}

// Malleability is the lattice tracking whether a third party could turn a
// valid witness into a different valid witness.
type Malleability struct {
	Dissat Dissat

	// Safe means every satisfaction requires a signature.
	Safe bool

	// NonMalleable means a non-malleable satisfaction always exists.
	NonMalleable bool
}

// IsSubtype reports whether m can be used where other is expected.
func (m Malleability) IsSubtype(other Malleability) bool {
	return m.Dissat.IsSubtype(other.Dissat) &&
		(m.Safe || !other.Safe) &&
		(m.NonMalleable || !other.NonMalleable)
}

// SanityChecks does nothing; the malleability invariants involve the base
// type and are checked on Type.
func (Malleability) SanityChecks() {}

func (Malleability) FromTrue() Malleability {
	return Malleability{Dissat: DissatNone, NonMalleable: true}
}

func (Malleability) FromFalse() Malleability {
	return Malleability{Dissat: DissatUnique, Safe: true, NonMalleable: true}
}

func (Malleability) fromKey() Malleability {
	return Malleability{Dissat: DissatUnique, Safe: true, NonMalleable: true}
}

func (m Malleability) FromPk() Malleability          { return m.fromKey() }
func (m Malleability) FromPkH() Malleability         { return m.fromKey() }
func (m Malleability) FromMulti(_, _ int) Malleability { return m.fromKey() }

func (Malleability) fromHash() Malleability {
	return Malleability{Dissat: DissatUnknown, NonMalleable: true}
}

func (m Malleability) FromSha256() Malleability    { return m.fromHash() }
func (m Malleability) FromHash256() Malleability   { return m.fromHash() }
func (m Malleability) FromRipemd160() Malleability { return m.fromHash() }
func (m Malleability) FromHash160() Malleability   { return m.fromHash() }

func (Malleability) fromTime() Malleability {
	return Malleability{Dissat: DissatNone, NonMalleable: true}
}

func (m Malleability) FromAfter(uint32) Malleability { return m.fromTime() }
func (m Malleability) FromOlder(uint32) Malleability { return m.fromTime() }

func (m Malleability) CastAlt() (Malleability, error)  { return m, nil }
func (m Malleability) CastSwap() (Malleability, error) { return m, nil }

func (m Malleability) CastCheck() (Malleability, error) {
	return Malleability{
		Dissat:       m.Dissat,
		Safe:         true,
		NonMalleable: m.NonMalleable,
	}, nil
}

// gainsDissat is the dissatisfaction of a wrapper that adds a 0 branch.
func (m Malleability) gainsDissat() Malleability {
	dissat := DissatUnknown
	if m.Dissat == DissatNone {
		dissat = DissatUnique
	}
	return Malleability{
		Dissat:       dissat,
		Safe:         m.Safe,
		NonMalleable: m.NonMalleable,
	}
}

func (m Malleability) CastDupIf() (Malleability, error) {
	return m.gainsDissat(), nil
}

func (m Malleability) CastVerify() (Malleability, error) {
	return Malleability{
		Dissat:       DissatNone,
		Safe:         m.Safe,
		NonMalleable: m.NonMalleable,
	}, nil
}

func (m Malleability) CastNonZero() (Malleability, error) {
	return m.gainsDissat(), nil
}

func (m Malleability) CastZeroNotEqual() (Malleability, error) {
	return m, nil
}

func (m Malleability) CastTrue() (Malleability, error) {
	return Malleability{
		Dissat:       DissatNone,
		Safe:         m.Safe,
		NonMalleable: m.NonMalleable,
	}, nil
}

func (m Malleability) CastOrIFalse() (Malleability, error) {
	return m.gainsDissat(), nil
}

func (m Malleability) CastLikely() (Malleability, error) {
	return m.FromFalse().OrI(m)
}

func (m Malleability) CastUnlikely() (Malleability, error) {
	return m.OrI(m.FromFalse())
}

// andDissat is the dissatisfaction of and_b and and_v.
func andDissat(l, r Malleability) Dissat {
	switch {
	case l.Dissat == DissatNone && r.Dissat == DissatNone:
		return DissatNone
	case l.Dissat == DissatNone && l.Safe:
		return DissatNone
	case r.Dissat == DissatNone && r.Safe:
		return DissatNone
	case l.Dissat == DissatUnique && r.Dissat == DissatUnique:
		if l.Safe && r.Safe {
			return DissatUnique
		}
	}
	return DissatUnknown
}

func (m Malleability) AndB(r Malleability) (Malleability, error) {
	return Malleability{
		Dissat:       andDissat(m, r),
		Safe:         m.Safe || r.Safe,
		NonMalleable: m.NonMalleable && r.NonMalleable,
	}, nil
}

func (m Malleability) AndV(r Malleability) (Malleability, error) {
	return Malleability{
		Dissat:       andDissat(m, r),
		Safe:         m.Safe || r.Safe,
		NonMalleable: m.NonMalleable && r.NonMalleable,
	}, nil
}

func (m Malleability) AndN(r Malleability) (Malleability, error) {
	return m.AndOr(r, m.FromFalse())
}

func (m Malleability) OrB(r Malleability) (Malleability, error) {
	return Malleability{
		Dissat: DissatUnique,
		Safe:   m.Safe && r.Safe,
		NonMalleable: m.NonMalleable && m.Dissat == DissatUnique &&
			r.NonMalleable && r.Dissat == DissatUnique &&
			(m.Safe || r.Safe),
	}, nil
}

func (m Malleability) OrD(r Malleability) (Malleability, error) {
	return Malleability{
		Dissat: r.Dissat,
		Safe:   m.Safe && r.Safe,
		NonMalleable: m.NonMalleable && m.Dissat == DissatUnique &&
			r.NonMalleable && (m.Safe || r.Safe),
	}, nil
}

func (m Malleability) OrC(r Malleability) (Malleability, error) {
	return Malleability{
		Dissat: DissatNone,
		Safe:   m.Safe && r.Safe,
		NonMalleable: m.NonMalleable && m.Dissat == DissatUnique &&
			r.NonMalleable && (m.Safe || r.Safe),
	}, nil
}

func (m Malleability) OrI(r Malleability) (Malleability, error) {
	dissat := DissatUnknown
	switch {
	case m.Dissat == DissatNone && r.Dissat == DissatNone:
		dissat = DissatNone
	case m.Dissat == DissatNone && r.Dissat == DissatUnique,
		m.Dissat == DissatUnique && r.Dissat == DissatNone:
		dissat = DissatUnique
	}
	return Malleability{
		Dissat:       dissat,
		Safe:         m.Safe && r.Safe,
		NonMalleable: m.NonMalleable && r.NonMalleable && (m.Safe || r.Safe),
	}, nil
}

func (m Malleability) AndOr(b, c Malleability) (Malleability, error) {
	dissat := DissatUnknown
	switch {
	case b.Dissat == DissatNone && c.Dissat == DissatUnique,
		m.Safe && c.Dissat == DissatUnique:
		dissat = DissatUnique
	case b.Dissat == DissatNone && c.Dissat == DissatNone,
		m.Safe && c.Dissat == DissatNone:
		dissat = DissatNone
	}
	return Malleability{
		Dissat: dissat,
		Safe:   (m.Safe || b.Safe) && c.Safe,
		NonMalleable: m.NonMalleable && b.NonMalleable &&
			c.NonMalleable && m.Dissat == DissatUnique &&
			(m.Safe || b.Safe || c.Safe),
	}, nil
}

func (Malleability) Threshold(k, n int,
	sub func(int) (Malleability, error)) (Malleability, error) {

	var (
		safe            int
		allUnique       = true
		allNonMalleable = true
	)
	for i := 0; i < n; i++ {
		s, err := sub(i)
		if err != nil {
			return Malleability{}, err
		}
		if s.Safe {
			safe++
		}
		allUnique = allUnique && s.Dissat == DissatUnique
		allNonMalleable = allNonMalleable && s.NonMalleable
	}

	dissat := DissatUnknown
	if allUnique && (k == 1 || safe == n) {
		dissat = DissatUnique
	}
	return Malleability{
		Dissat:       dissat,
		Safe:         safe > n-k,
		NonMalleable: allNonMalleable && allUnique && safe >= n-k,
	}, nil
}
