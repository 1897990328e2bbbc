package miniscript

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/btcsuite/miniscript/tree"
	"github.com/stretchr/testify/require"
)

const (
	testHash32 = "0101010101010101010101010101010101010101010101010101010101010101"
	testHash20 = "0202020202020202020202020202020202020202"
)

func mustParse(t *testing.T, s string) *Miniscript {
	t.Helper()
	m, err := Parse(s)
	require.NoError(t, err, s)
	return m
}

var typeTests = []struct {
	frag string
	typ  string
}{
	{frag: "pk(A)", typ: "Kondumse"},
	{frag: "c:pk(A)", typ: "Bondumse"},
	{frag: "pk_h(A)", typ: "Kndumse"},
	{frag: "c:pk_h(A)", typ: "Bndumse"},
	{frag: "older(144)", typ: "Bzmf"},
	{frag: "after(500000000)", typ: "Bzmf"},
	{frag: "sha256(" + testHash32 + ")", typ: "Bondum"},
	{frag: "hash160(" + testHash20 + ")", typ: "Bondum"},
	{frag: "1", typ: "Bzumf"},
	{frag: "0", typ: "Bzdumse"},
	{frag: "thresh_m(2,A,B,C)", typ: "Bndumse"},
	{frag: "vc:pk(A)", typ: "Vonmsf"},
	{frag: "and_v(vc:pk(A),older(144))", typ: "Bonmsf"},
	{frag: "sc:pk(A)", typ: "Wdumse"},
	{frag: "ac:pk(A)", typ: "Wdumse"},
	{frag: "or_b(c:pk(A),sc:pk(B))", typ: "Bdumse"},
	{frag: "dv:older(144)", typ: "Bondme"},
	{frag: "jc:pk(A)", typ: "Bondums"},
	{frag: "or_d(c:pk(A),older(144))", typ: "Bomf"},
	{frag: "or_i(c:pk(A),c:pk(B))", typ: "Bdums"},
	{frag: "andor(c:pk(A),older(144),c:pk(B))", typ: "Bdmse"},
	{frag: "and_n(c:pk(A),c:pk(B))", typ: "Bdumse"},
	{frag: "thresh(2,c:pk(A),sc:pk(B),sc:pk(C))", typ: "Bdumse"},
	{frag: "tvc:pk(A)", typ: "Bonumsf"},
	{frag: "lc:pk(A)", typ: "Bdums"},
}

func TestTypes(t *testing.T) {
	t.Parallel()

	for _, test := range typeTests {
		t.Run(test.frag, func(t *testing.T) {
			m := mustParse(t, test.frag)
			require.Equal(t, test.typ, m.Type().String())
		})
	}
}

func TestComputeOpCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		miniscript string
		opCount    int
	}{
		{
			miniscript: "or_i(thresh_m(2,key1,key2,key3)," +
				"thresh_m(3,key4,key5,key6,key7))",
			opCount: 9,
		},
		{
			miniscript: "thresh(2,or_i(thresh_m(2,key1,key2,key3)," +
				"thresh_m(3,key4,key5,key6,key7))," +
				"sc:pk(key8),sc:pk(key9))",
			opCount: 16,
		},
		{
			miniscript: "thresh(2,or_d(thresh_m(2,key1,key2,key3)," +
				"thresh_m(3,key4,key5,key6,key7))," +
				"sc:pk(key8),sc:pk(key9))",
			opCount: 19,
		},
		{
			miniscript: "and_v(vc:pk(A),older(144))",
			opCount:    2,
		},
	}

	for _, test := range tests {
		m := mustParse(t, test.miniscript)
		require.Equal(t, test.opCount, m.MaxOpCount(), test.miniscript)
	}
}

func TestCanonicalString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in  string
		out string
	}{
		{in: "c(pk(A))", out: "c:pk(A)"},
		{in: "v(c(pk(A)))", out: "vc:pk(A)"},
		{in: "t(vc:pk(A))", out: "tvc:pk(A)"},
		{in: "u(c:pk(A))", out: "uc:pk(A)"},
		{in: "or_i(c:pk(A),0)", out: "uc:pk(A)"},
		{in: "or_i(0,c:pk(A))", out: "lc:pk(A)"},
		{in: "l(c(pk(A)))", out: "lc:pk(A)"},
		{in: "andor(c:pk(A),c:pk(B),0)", out: "and_n(c:pk(A),c:pk(B))"},
		{in: "and_n(c:pk(A),c:pk(B))", out: "and_n(c:pk(A),c:pk(B))"},
		{
			in:  "pk_h(" + testHash20 + ")",
			out: "pk_h(" + testHash20 + ")",
		},
		{
			in:  "and_v(vc:pk(A),and_v(vc:pk(B),c:pk(C)))",
			out: "and_v(vc:pk(A),and_v(vc:pk(B),c:pk(C)))",
		},
		{in: "thresh_m(1,A,B)", out: "thresh_m(1,A,B)"},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			m := mustParse(t, test.in)
			require.Equal(t, test.out, m.String())

			// The canonical form parses back to the same fragment.
			again := mustParse(t, m.String())
			require.Equal(t, m.String(), again.String())
			require.Equal(t, m.Type(), again.Type())
			require.Equal(t, m.Ext(), again.Ext())
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	manyKeys := make([]string, multisigMaxKeys+1)
	for i := range manyKeys {
		manyKeys[i] = fmt.Sprintf("K%d", i)
	}

	tests := []struct {
		in   string
		kind ErrorKind
	}{
		{in: "and_v(vc:pk(A),1)", kind: ErrNonCanonicalTrue},
		{in: "v:c:pk(A)", kind: ErrMultipleColons},
		{in: "x:pk(A)", kind: ErrUnknownWrapper},
		{in: "foo(A)", kind: ErrUnknownFragment},
		{in: "pk(A,B)", kind: ErrWrongArity},
		{in: "or_b(c:pk(A))", kind: ErrWrongArity},
		{in: "thresh(1)", kind: ErrWrongArity},
		{in: "c:pk(A", kind: ErrUnterminated},
		{in: "and_b(c:pk(A),", kind: ErrUnterminated},
		{in: "c:pk(A))", kind: ErrUnexpected},
		{in: "pk(A-B)", kind: ErrInvalidKey},
		{in: "older(x)", kind: ErrInvalidNumber},
		{in: "older(4294967296)", kind: ErrInvalidNumber},
		{in: "older(0)", kind: ErrZeroTime},
		{in: "sha256(abcd)", kind: ErrInvalidHash},
		{in: "thresh_m(0,A,B)", kind: ErrZeroThreshold},
		{in: "thresh_m(3,A,B)", kind: ErrOverThreshold},
		{
			in:   "thresh_m(1," + strings.Join(manyKeys, ",") + ")",
			kind: ErrTooManyKeys,
		},
		{in: "thresh(2,pk(A),pk(B),pk(C))", kind: ErrThresholdBase},
		{in: "thresh(1,c:pk(A),s:older(1))", kind: ErrSwapNonOne},
		{in: "thresh(1,c:pk(A),a:older(1))", kind: ErrThresholdNonUnit},
		{in: "thresh(1,c:pk(A),atv:older(1))", kind: ErrThresholdDissat},
		{in: "c:older(1)", kind: ErrChildBase1},
		{in: "and_b(c:pk(A),c:pk(B))", kind: ErrChildBase2},
		{in: "andor(c:pk(A),vc:pk(B),c:pk(C))", kind: ErrChildBase3},
		{in: "d:c:pk(A)", kind: ErrMultipleColons},
		{in: "dc:pk(A)", kind: ErrChildBase1},
		{in: "a(s(c:pk(A)))", kind: ErrChildBase1},
		{in: "dvc:pk(A)", kind: ErrNonZeroDupIf},
		{in: "j:older(1)", kind: ErrNonZeroZero},
		{in: "or_b(older(1),a:older(2))", kind: ErrLeftNotDissatisfiable},
		{in: "or_b(c:pk(A),a:older(1))", kind: ErrRightNotDissatisfiable},
		{in: "or_d(dv:older(1),c:pk(A))", kind: ErrLeftNotUnit},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			_, err := Parse(test.in)
			require.Error(t, err)
			require.True(t, errors.Is(err, test.kind),
				"got %v, want %v", err, test.kind)

			var e Error
			require.True(t, errors.As(err, &e))
			require.GreaterOrEqual(t, e.Offset, 0)
		})
	}
}

func TestMaxDepth(t *testing.T) {
	t.Parallel()

	p := NewParser()
	p.MaxDepth = 3

	_, err := p.Parse("c:pk(A)")
	require.NoError(t, err)

	_, err = p.Parse("and_v(vc:pk(A),c:pk(B))")
	require.True(t, errors.Is(err, ErrMaxDepthExceeded), "%v", err)

	tr, err := tree.Parse("and_v(vc:pk(A),c:pk(B))")
	require.NoError(t, err)
	_, err = p.FromTree(tr)
	require.True(t, errors.Is(err, ErrMaxDepthExceeded), "%v", err)

	m := mustParse(t, "and_v(vc:pk(A),c:pk(B))")
	require.Equal(t, 4, m.Depth())
}

func TestFromTree(t *testing.T) {
	t.Parallel()

	for _, test := range typeTests {
		tr, err := tree.Parse(test.frag)
		require.NoError(t, err)

		fromTree, err := FromTree(tr)
		require.NoError(t, err, test.frag)

		parsed := mustParse(t, test.frag)
		require.Equal(t, parsed.String(), fromTree.String())
		require.Equal(t, parsed.Type(), fromTree.Type())
		require.Equal(t, parsed.Ext(), fromTree.Ext())
	}

	for _, s := range []string{"and_v(vc:pk(A),1)", "v:c:pk(A)", "pk(A(B))"} {
		tr, err := tree.Parse(s)
		require.NoError(t, err)
		_, err = FromTree(tr)
		require.Error(t, err, s)
	}
}

func TestIsSane(t *testing.T) {
	t.Parallel()

	tooManyOps := strings.Repeat("and_v(v:older(1),", 101) + "c:pk(A)" +
		strings.Repeat(")", 101)
	tooLarge := strings.Repeat("and_v(vc:pk(A),", 110) + "c:pk(B)" +
		strings.Repeat(")", 110)

	tests := []struct {
		frag string
		kind ErrorKind
	}{
		{frag: "c:pk(A)"},
		{frag: "and_v(vc:pk(A),older(144))"},
		{frag: "or_d(c:pk(A),and_v(vc:pk(B),older(144)))"},
		{frag: "thresh(2,c:pk(A),sc:pk(B),sc:pk(C))"},
		{frag: "older(144)", kind: ErrNoSignature},
		{frag: "vc:pk(A)", kind: ErrNotTopLevel},
		{frag: "pk(A)", kind: ErrNotTopLevel},
		{frag: "or_i(older(1),older(2))", kind: ErrNoStrongChild},
		{
			frag: "thresh(1,sha256(" + testHash32 + ")," +
				"a:sha256(" + testHash32 + "))",
			kind: ErrThresholdNotStrong,
		},
		{frag: "or_d(jc:pk(A),c:pk(B))", kind: ErrMalleable},
		{frag: tooManyOps, kind: ErrTooManyOps},
		{frag: tooLarge, kind: ErrScriptTooLarge},
	}

	for _, test := range tests {
		m := mustParse(t, test.frag)
		err := m.IsSane()
		if test.kind == "" {
			require.NoError(t, err, test.frag)
			continue
		}
		require.True(t, errors.Is(err, test.kind),
			"%s: got %v, want %v", test.frag, err, test.kind)
	}
}

func TestKeysAndSubstitute(t *testing.T) {
	t.Parallel()

	m := mustParse(t, "or_d(c:pk(A),and_v(vc:pk(B),thresh_m(1,C,D)))")

	var names []string
	for _, key := range m.Keys() {
		names = append(names, key.String())
	}
	require.Equal(t, []string{"A", "B", "C", "D"}, names)

	_, err := m.Script()
	require.True(t, errors.Is(err, ErrMissingKeyMaterial), "%v", err)

	keys := map[string]Key{}
	for i, name := range names {
		keys[name] = testKey(t, byte(i+1))
	}
	sub, err := m.Substitute(func(k Key) (Key, error) {
		return keys[k.String()], nil
	})
	require.NoError(t, err)
	require.Equal(t, m.Type(), sub.Type())
	require.Equal(t, m.Ext(), sub.Ext())

	script, err := sub.Script()
	require.NoError(t, err)
	require.Len(t, script, sub.ScriptLen())

	lookupErr := errors.New("no such key")
	_, err = m.Substitute(func(Key) (Key, error) {
		return nil, lookupErr
	})
	require.ErrorIs(t, err, lookupErr)
}

func TestDrawTree(t *testing.T) {
	t.Parallel()

	m := mustParse(t, "and_v(vc:pk(A),older(144))")
	want := "and_v [Bonmsf]\n" +
		"├──v: [Vonmsf]\n" +
		"|   └──c: [Bondumse] [v]\n" +
		"|       └──pk(A) [Kondumse]\n" +
		"└──older(144) [Bzmf]\n"
	require.Equal(t, want, m.DrawTree())
}

func TestFromTerminal(t *testing.T) {
	t.Parallel()

	a := mustParse(t, "c:pk(A)")
	b := mustParse(t, "sc:pk(B)")

	m, err := FromTerminal(OrB{X: a, Z: b})
	require.NoError(t, err)
	require.Equal(t, "or_b(c:pk(A),sc:pk(B))", m.String())
	require.Equal(t, b.Depth()+1, m.Depth())
	require.Greater(t, b.Depth(), a.Depth())

	_, err = FromTerminal(OrB{X: b, Z: a})
	require.True(t, errors.Is(err, ErrChildBase2), "%v", err)

	var e Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, "or_b(sc:pk(B),c:pk(A))", e.Fragment)
}

func TestLockTimeRange(t *testing.T) {
	t.Parallel()

	// Every uint32 is a lock time, including values with the sequence
	// disable bit (1<<31) set.
	for _, lockTime := range []string{"1", "2147483647", "2147483648",
		"4294967295"} {

		for _, frag := range []string{"older", "after"} {
			in := frag + "(" + lockTime + ")"
			m := mustParse(t, in)
			require.Equal(t, in, m.String())

			script, err := m.Script()
			require.NoError(t, err, in)
			decoded, err := DecodeScript(script)
			require.NoError(t, err, in)
			require.Equal(t, in, decoded.String())
		}
	}

	for _, in := range []string{"older(4294967296)", "after(4294967296)"} {
		_, err := Parse(in)
		require.True(t, errors.Is(err, ErrInvalidNumber), "%s: %v", in,
			err)
	}
}
