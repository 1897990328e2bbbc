package miniscript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func allCorrectness() []Correctness {
	var res []Correctness
	for _, base := range []Base{BaseB, BaseV, BaseK, BaseW} {
		for _, input := range []Input{InputZero, InputOne, InputAny,
			InputOneNonZero, InputAnyNonZero} {

			for _, d := range []bool{false, true} {
				for _, u := range []bool{false, true} {
					res = append(res, Correctness{
						Base:           base,
						Input:          input,
						DisSatisfiable: d,
						Unit:           u,
					})
				}
			}
		}
	}
	return res
}

func allMalleability() []Malleability {
	var res []Malleability
	for _, d := range []Dissat{DissatNone, DissatUnique, DissatUnknown} {
		for _, safe := range []bool{false, true} {
			for _, nm := range []bool{false, true} {
				res = append(res, Malleability{
					Dissat:       d,
					Safe:         safe,
					NonMalleable: nm,
				})
			}
		}
	}
	return res
}

func TestSubtypeOrder(t *testing.T) {
	t.Parallel()

	corr := allCorrectness()
	for _, a := range corr {
		require.True(t, a.IsSubtype(a), "%+v", a)
		for _, b := range corr {
			if !a.IsSubtype(b) {
				continue
			}
			for _, c := range corr {
				if b.IsSubtype(c) {
					require.True(t, a.IsSubtype(c),
						"%+v <: %+v <: %+v", a, b, c)
				}
			}
		}
	}

	mall := allMalleability()
	for _, a := range mall {
		require.True(t, a.IsSubtype(a), "%+v", a)
		for _, b := range mall {
			if !a.IsSubtype(b) {
				continue
			}
			for _, c := range mall {
				if b.IsSubtype(c) {
					require.True(t, a.IsSubtype(c),
						"%+v <: %+v <: %+v", a, b, c)
				}
			}
		}
	}

	require.True(t, InputOneNonZero.IsSubtype(InputOne))
	require.True(t, InputOneNonZero.IsSubtype(InputAnyNonZero))
	require.False(t, InputZero.IsSubtype(InputOne))
	require.True(t, DissatUnique.IsSubtype(DissatUnknown))
	require.False(t, DissatNone.IsSubtype(DissatUnique))
}

func TestSanityChecksPanic(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		Correctness{Base: BaseV, Unit: true}.SanityChecks()
	})
	require.Panics(t, func() {
		Correctness{Base: BaseK}.SanityChecks()
	})
	require.Panics(t, func() {
		Correctness{Base: BaseW, Input: InputOneNonZero}.SanityChecks()
	})
	require.Panics(t, func() {
		ExtData{
			OpsCountStatic: 3,
			OpsCountSat:    validOps(2),
		}.SanityChecks()
	})
	require.Panics(t, func() {
		Type{
			Corr: Correctness{Base: BaseK, Unit: true},
			Mall: Malleability{Dissat: DissatUnique},
		}.sanityChecks()
	})
	require.NotPanics(t, func() {
		Correctness{}.FromPk().SanityChecks()
		ExtData{}.FromMulti(2, 3).SanityChecks()
	})
}

func TestSwapNonOne(t *testing.T) {
	t.Parallel()

	c := Correctness{}.FromOlder(144)
	_, err := c.CastSwap()
	require.True(t, errors.Is(err, ErrSwapNonOne))

	c, err = Correctness{}.FromPk().CastCheck()
	require.NoError(t, err)
	w, err := c.CastSwap()
	require.NoError(t, err)
	require.Equal(t, BaseW, w.Base)
	require.Equal(t, InputAny, w.Input)
}

func TestThresholdBounds(t *testing.T) {
	t.Parallel()

	a := mustParse(t, "c:pk(A)")
	b := mustParse(t, "sc:pk(B)")

	tests := []struct {
		name string
		frag Terminal
		kind ErrorKind
	}{
		{
			name: "thresh zero",
			frag: Thresh{K: 0, Subs: []*Miniscript{a, b}},
			kind: ErrZeroThreshold,
		},
		{
			name: "thresh over",
			frag: Thresh{K: 3, Subs: []*Miniscript{a, b}},
			kind: ErrOverThreshold,
		},
		{
			name: "thresh_m zero",
			frag: ThreshM{K: 0, Keys: []Key{NamedKey("A")}},
			kind: ErrZeroThreshold,
		},
		{
			name: "thresh_m over",
			frag: ThreshM{K: 2, Keys: []Key{NamedKey("A")}},
			kind: ErrOverThreshold,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			calls := 0
			_, err := typeCheck[Correctness](test.frag,
				func(sub *Miniscript) (Correctness, bool) {
					calls++
					return sub.ty.Corr, true
				})
			require.True(t, errors.Is(err, test.kind), "%v", err)
			require.Zero(t, calls)

			var e Error
			require.True(t, errors.As(err, &e))
			require.NotEmpty(t, e.Fragment)
		})
	}
}

func TestTypeCheckLookupFallback(t *testing.T) {
	t.Parallel()

	m := mustParse(t, "or_d(c:pk(A),and_v(vc:pk(B),older(144)))")

	// A lookup that knows nothing makes the checker recompute every child.
	corr, err := typeCheck[Correctness](m.Node,
		func(*Miniscript) (Correctness, bool) {
			return Correctness{}, false
		})
	require.NoError(t, err)
	require.Equal(t, m.Type().Corr, corr)

	ext, err := typeCheck[ExtData](m.Node,
		func(*Miniscript) (ExtData, bool) {
			return ExtData{}, false
		})
	require.NoError(t, err)
	require.Equal(t, m.Ext(), ext)
}

func TestLatticeScenarios(t *testing.T) {
	t.Parallel()

	pk := mustParse(t, "pk(A)")
	require.Equal(t, BaseK, pk.Type().Corr.Base)
	require.Equal(t, InputOneNonZero, pk.Type().Corr.Input)
	require.Equal(t, DissatUnique, pk.Type().Mall.Dissat)
	require.True(t, pk.Type().Mall.Safe)
	require.Equal(t, 34, pk.ScriptLen())

	check := mustParse(t, "c:pk(A)")
	require.Equal(t, BaseB, check.Type().Corr.Base)
	require.True(t, check.Ext().HasVerifyForm)

	_, err := Parse("thresh(2,pk(A),pk(B),pk(C))")
	require.True(t, errors.Is(err, ErrThresholdBase), "%v", err)

	andV := mustParse(t, "and_v(vc:pk(A),older(144))")
	require.Equal(t, BaseB, andV.Type().Corr.Base)
	require.Equal(t, DissatNone, andV.Type().Mall.Dissat)

	multi := mustParse(t, "thresh_m(2,A,B,C)")
	require.Equal(t, BaseB, multi.Type().Corr.Base)
	require.Equal(t, DissatUnique, multi.Type().Mall.Dissat)
	require.True(t, multi.Type().Mall.Safe)
	require.Equal(t, 105, multi.ScriptLen())
}

// applySugar evaluates a sugar form through the lattice's own method.
func applySugar[T Property[T]](form string, subs []T) (T, error) {
	switch form {
	case "t":
		return subs[0].CastTrue()
	case "u":
		return subs[0].CastUnlikely()
	case "or_i_false":
		return subs[0].CastOrIFalse()
	case "l":
		return subs[0].CastLikely()
	case "and_n":
		return subs[0].AndN(subs[1])
	}
	panic("unknown sugar form " + form)
}

func TestSugarCasts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		form string
		frag string
		subs []string
	}{
		{form: "t", frag: "t(vc:pk(A))", subs: []string{"vc:pk(A)"}},
		{form: "t", frag: "t(v:older(144))", subs: []string{"v:older(144)"}},
		{form: "u", frag: "u(c:pk(A))", subs: []string{"c:pk(A)"}},
		{form: "u", frag: "u(older(144))", subs: []string{"older(144)"}},
		{form: "u", frag: "or_i(c:pk(A),0)", subs: []string{"c:pk(A)"}},
		{
			form: "or_i_false",
			frag: "or_i(c:pk(A),0)",
			subs: []string{"c:pk(A)"},
		},
		{
			form: "or_i_false",
			frag: "u(thresh_m(1,A,B))",
			subs: []string{"thresh_m(1,A,B)"},
		},
		{form: "l", frag: "l(c:pk(A))", subs: []string{"c:pk(A)"}},
		{form: "l", frag: "or_i(0,older(144))", subs: []string{"older(144)"}},
		{
			form: "and_n",
			frag: "and_n(c:pk(A),c:pk(B))",
			subs: []string{"c:pk(A)", "c:pk(B)"},
		},
		{
			form: "and_n",
			frag: "andor(c:pk(A),older(144),0)",
			subs: []string{"c:pk(A)", "older(144)"},
		},
	}

	for _, test := range tests {
		t.Run(test.form+" "+test.frag, func(t *testing.T) {
			m := mustParse(t, test.frag)

			var (
				corrs []Correctness
				malls []Malleability
				exts  []ExtData
			)
			for _, sub := range test.subs {
				s := mustParse(t, sub)
				corrs = append(corrs, s.Type().Corr)
				malls = append(malls, s.Type().Mall)
				exts = append(exts, s.Ext())
			}

			corr, err := applySugar(test.form, corrs)
			require.NoError(t, err)
			require.Equal(t, m.Type().Corr, corr)

			mall, err := applySugar(test.form, malls)
			require.NoError(t, err)
			require.Equal(t, m.Type().Mall, mall)

			ext, err := applySugar(test.form, exts)
			require.NoError(t, err)
			require.Equal(t, m.Ext(), ext)
		})
	}

	// t: needs a V child in both renditions.
	_, err := Parse("t(c:pk(A))")
	require.True(t, errors.Is(err, ErrChildBase2), "%v", err)
	_, err = Correctness{}.FromPk().CastTrue()
	require.True(t, errors.Is(err, ErrChildBase1), "%v", err)
}
