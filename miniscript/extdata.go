package miniscript

import (
	"sort"
)

// LegacySafe tells whether a fragment may be used outside of segwit.
type LegacySafe uint8

const (
	// LegacySafeFragment can be used in pre-segwit scripts: it has no
	// pk_h (the key size cannot be bounded from a hash) and no d: or
	// or_i (the size of the OP_IF argument is not enforced).
	LegacySafeFragment LegacySafe = iota

	// SegwitOnly fragments are only safe with segwit's MINIMALIF and
	// compressed key rules.
	SegwitOnly
)

// String returns the name of the legacy safety class.
func (l LegacySafe) String() string {
	if l == SegwitOnly {
		return "SegwitOnly"
	}
	return "LegacySafe"
}

func legacySafe2(a, b LegacySafe) LegacySafe {
	if a == LegacySafeFragment && b == LegacySafeFragment {
		return LegacySafeFragment
	}
	return SegwitOnly
}

// OpCount is a number of opcodes that may be unavailable, e.g. the
// satisfaction op count of a fragment that cannot be satisfied.
type OpCount struct {
	Valid bool
	Value int
}

func validOps(n int) OpCount {
	return OpCount{Valid: true, Value: n}
}

// and is the count of running both paths.
func (m OpCount) and(b OpCount) OpCount {
	if !m.Valid || !b.Valid {
		return OpCount{}
	}
	return validOps(m.Value + b.Value)
}

// or is the worst case of running either path.
func (m OpCount) or(b OpCount) OpCount {
	if !m.Valid {
		return b
	}
	if !b.Valid {
		return m
	}
	if m.Value >= b.Value {
		return m
	}
	return b
}

func (m OpCount) plus(n int) OpCount {
	return m.and(validOps(n))
}

// ExtData is the cost lattice.  It does not affect soundness and only feeds
// script size and op limit checks.
type ExtData struct {
	LegacySafe LegacySafe

	// PkCost is the length of the compiled script in bytes.
	PkCost int

	// HasVerifyForm means the fragment ends in EQUAL, CHECKSIG or
	// CHECKMULTISIG, so a v: wrapper costs no extra opcode.
	HasVerifyForm bool

	// OpsCountStatic counts the non-push opcodes of the script.
	OpsCountStatic int

	// OpsCountSat and OpsCountNSat add the keys of executed
	// CHECKMULTISIGs when satisfying and dissatisfying.
	OpsCountSat  OpCount
	OpsCountNSat OpCount
}

// SanityChecks panics if an executed op count is below the static count.
func (e ExtData) SanityChecks() {
	if e.OpsCountSat.Valid && e.OpsCountSat.Value < e.OpsCountStatic {
		panic("miniscript: satisfaction op count below static count")
	}
	if e.OpsCountNSat.Valid && e.OpsCountNSat.Value < e.OpsCountStatic {
		panic("miniscript: dissatisfaction op count below static " +
			"count")
	}
}

// scriptNumSize returns the size of the minimal push of n.
func scriptNumSize(n int) int {
	switch {
	case n <= 0x10:
		return 1
	case n < 0x80:
		return 2
	case n < 0x8000:
		return 3
	case n < 0x800000:
		return 4
	case n < 0x80000000:
		return 5
	}
	return 6
}

func (ExtData) FromTrue() ExtData {
	return ExtData{PkCost: 1, OpsCountSat: validOps(0)}
}

func (ExtData) FromFalse() ExtData {
	return ExtData{PkCost: 1, OpsCountNSat: validOps(0)}
}

func (ExtData) FromPk() ExtData {
	return ExtData{
		PkCost:       pubKeyDataPushLen,
		OpsCountSat:  validOps(0),
		OpsCountNSat: validOps(0),
	}
}

func (ExtData) FromPkH() ExtData {
	return ExtData{
		LegacySafe:     SegwitOnly,
		PkCost:         24,
		OpsCountStatic: 3,
		OpsCountSat:    validOps(3),
		OpsCountNSat:   validOps(3),
	}
}

func (ExtData) FromMulti(k, n int) ExtData {
	return ExtData{
		PkCost: scriptNumSize(k) + pubKeyDataPushLen*n +
			scriptNumSize(n) + 1,
		HasVerifyForm:  true,
		OpsCountStatic: 1,
		OpsCountSat:    validOps(n + 1),
		OpsCountNSat:   validOps(n + 1),
	}
}

// fromHash is SIZE <32> EQUALVERIFY HASHOP <hash> EQUAL.
func (ExtData) fromHash(hashLen int) ExtData {
	return ExtData{
		PkCost:         6 + hashLen,
		HasVerifyForm:  true,
		OpsCountStatic: 4,
		OpsCountSat:    validOps(4),
		OpsCountNSat:   validOps(4),
	}
}

func (e ExtData) FromSha256() ExtData    { return e.fromHash(33) }
func (e ExtData) FromHash256() ExtData   { return e.fromHash(33) }
func (e ExtData) FromRipemd160() ExtData { return e.fromHash(21) }
func (e ExtData) FromHash160() ExtData   { return e.fromHash(21) }

func (ExtData) fromTime(t uint32) ExtData {
	return ExtData{
		PkCost:         scriptNumSize(int(t)) + 1,
		OpsCountStatic: 1,
		OpsCountSat:    validOps(1),
	}
}

func (e ExtData) FromAfter(t uint32) ExtData { return e.fromTime(t) }
func (e ExtData) FromOlder(t uint32) ExtData { return e.fromTime(t) }

// wrap adds a fixed number of bytes and opcodes around e.
func (e ExtData) wrap(cost, ops int) ExtData {
	return ExtData{
		LegacySafe:     e.LegacySafe,
		PkCost:         e.PkCost + cost,
		OpsCountStatic: e.OpsCountStatic + ops,
		OpsCountSat:    e.OpsCountSat.plus(ops),
		OpsCountNSat:   e.OpsCountNSat.plus(ops),
	}
}

func (e ExtData) CastAlt() (ExtData, error) {
	return e.wrap(2, 2), nil
}

func (e ExtData) CastSwap() (ExtData, error) {
	res := e.wrap(1, 1)
	res.HasVerifyForm = e.HasVerifyForm
	return res, nil
}

func (e ExtData) CastCheck() (ExtData, error) {
	res := e.wrap(1, 1)
	res.HasVerifyForm = true
	return res, nil
}

func (e ExtData) CastDupIf() (ExtData, error) {
	res := e.wrap(3, 3)
	res.LegacySafe = SegwitOnly
	res.OpsCountNSat = validOps(res.OpsCountStatic)
	return res, nil
}

func (e ExtData) CastVerify() (ExtData, error) {
	verify := 1
	if e.HasVerifyForm {
		verify = 0
	}
	res := e.wrap(verify, verify)
	res.OpsCountNSat = OpCount{}
	return res, nil
}

func (e ExtData) CastNonZero() (ExtData, error) {
	res := e.wrap(4, 4)
	res.OpsCountNSat = validOps(res.OpsCountStatic)
	return res, nil
}

func (e ExtData) CastZeroNotEqual() (ExtData, error) {
	return e.wrap(1, 1), nil
}

func (e ExtData) CastTrue() (ExtData, error) {
	return e.AndV(e.FromTrue())
}

func (e ExtData) CastOrIFalse() (ExtData, error) {
	return e.OrI(e.FromFalse())
}

func (e ExtData) CastLikely() (ExtData, error) {
	return e.FromFalse().OrI(e)
}

func (e ExtData) CastUnlikely() (ExtData, error) {
	return e.OrI(e.FromFalse())
}

func (e ExtData) AndB(r ExtData) (ExtData, error) {
	return ExtData{
		LegacySafe:     legacySafe2(e.LegacySafe, r.LegacySafe),
		PkCost:         e.PkCost + r.PkCost + 1,
		OpsCountStatic: e.OpsCountStatic + r.OpsCountStatic + 1,
		OpsCountSat:    e.OpsCountSat.and(r.OpsCountSat).plus(1),
		OpsCountNSat:   e.OpsCountNSat.and(r.OpsCountNSat).plus(1),
	}, nil
}

func (e ExtData) AndV(r ExtData) (ExtData, error) {
	return ExtData{
		LegacySafe:     legacySafe2(e.LegacySafe, r.LegacySafe),
		PkCost:         e.PkCost + r.PkCost,
		HasVerifyForm:  r.HasVerifyForm,
		OpsCountStatic: e.OpsCountStatic + r.OpsCountStatic,
		OpsCountSat:    e.OpsCountSat.and(r.OpsCountSat),
	}, nil
}

func (e ExtData) AndN(r ExtData) (ExtData, error) {
	return e.AndOr(r, e.FromFalse())
}

func (e ExtData) OrB(r ExtData) (ExtData, error) {
	return ExtData{
		LegacySafe:     legacySafe2(e.LegacySafe, r.LegacySafe),
		PkCost:         e.PkCost + r.PkCost + 1,
		OpsCountStatic: e.OpsCountStatic + r.OpsCountStatic + 1,
		OpsCountSat: e.OpsCountSat.and(r.OpsCountNSat).or(
			e.OpsCountNSat.and(r.OpsCountSat),
		).plus(1),
		OpsCountNSat: e.OpsCountNSat.and(r.OpsCountNSat).plus(1),
	}, nil
}

func (e ExtData) OrD(r ExtData) (ExtData, error) {
	return ExtData{
		LegacySafe:     legacySafe2(e.LegacySafe, r.LegacySafe),
		PkCost:         e.PkCost + r.PkCost + 3,
		OpsCountStatic: e.OpsCountStatic + r.OpsCountStatic + 3,
		OpsCountSat: e.OpsCountSat.plus(r.OpsCountStatic).or(
			e.OpsCountNSat.and(r.OpsCountSat),
		).plus(3),
		OpsCountNSat: e.OpsCountNSat.and(r.OpsCountNSat).plus(3),
	}, nil
}

func (e ExtData) OrC(r ExtData) (ExtData, error) {
	return ExtData{
		LegacySafe:     legacySafe2(e.LegacySafe, r.LegacySafe),
		PkCost:         e.PkCost + r.PkCost + 2,
		OpsCountStatic: e.OpsCountStatic + r.OpsCountStatic + 2,
		OpsCountSat: e.OpsCountSat.plus(r.OpsCountStatic).or(
			e.OpsCountNSat.and(r.OpsCountSat),
		).plus(2),
	}, nil
}

func (e ExtData) OrI(r ExtData) (ExtData, error) {
	return ExtData{
		LegacySafe:     SegwitOnly,
		PkCost:         e.PkCost + r.PkCost + 3,
		OpsCountStatic: e.OpsCountStatic + r.OpsCountStatic + 3,
		OpsCountSat: e.OpsCountSat.plus(r.OpsCountStatic).or(
			r.OpsCountSat.plus(e.OpsCountStatic),
		).plus(3),
		OpsCountNSat: e.OpsCountNSat.plus(r.OpsCountStatic).or(
			r.OpsCountNSat.plus(e.OpsCountStatic),
		).plus(3),
	}, nil
}

func (e ExtData) AndOr(b, c ExtData) (ExtData, error) {
	return ExtData{
		LegacySafe: legacySafe2(e.LegacySafe,
			legacySafe2(b.LegacySafe, c.LegacySafe)),
		PkCost: e.PkCost + b.PkCost + c.PkCost + 3,
		OpsCountStatic: e.OpsCountStatic + b.OpsCountStatic +
			c.OpsCountStatic + 3,
		OpsCountSat: e.OpsCountSat.and(b.OpsCountSat).plus(
			c.OpsCountStatic,
		).or(
			e.OpsCountNSat.and(c.OpsCountSat).plus(b.OpsCountStatic),
		).plus(3),
		OpsCountNSat: e.OpsCountNSat.and(c.OpsCountNSat).plus(
			b.OpsCountStatic + 3,
		),
	}, nil
}

// Threshold estimates the satisfaction op count by starting from every child
// dissatisfied and switching the k children whose satisfaction adds the most
// ops.  Children without a dissatisfaction are always satisfied.
func (ExtData) Threshold(k, n int,
	sub func(int) (ExtData, error)) (ExtData, error) {

	res := ExtData{
		PkCost:         n - 1 + scriptNumSize(k) + 1,
		HasVerifyForm:  true,
		OpsCountStatic: n,
		OpsCountNSat:   validOps(n),
	}

	var (
		base   = validOps(n)
		forced int
		deltas []int
	)
	for i := 0; i < n; i++ {
		s, err := sub(i)
		if err != nil {
			return ExtData{}, err
		}

		res.LegacySafe = legacySafe2(res.LegacySafe, s.LegacySafe)
		res.PkCost += s.PkCost
		res.OpsCountStatic += s.OpsCountStatic
		res.OpsCountNSat = res.OpsCountNSat.and(s.OpsCountNSat)

		switch {
		case !s.OpsCountNSat.Valid:
			forced++
			base = base.and(s.OpsCountSat)
		default:
			base = base.and(s.OpsCountNSat)
			if s.OpsCountSat.Valid {
				deltas = append(deltas,
					s.OpsCountSat.Value-s.OpsCountNSat.Value)
			}
		}
	}

	need := k - forced
	if need < 0 || need > len(deltas) {
		return res, nil
	}
	sort.Sort(sort.Reverse(sort.IntSlice(deltas)))
	for _, d := range deltas[:need] {
		base = base.plus(d)
	}
	res.OpsCountSat = base
	return res, nil
}
