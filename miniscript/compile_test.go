package miniscript

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

// testKey returns a deterministic public key derived from seed.
func testKey(t *testing.T, seed byte) PubKey {
	t.Helper()
	var b [32]byte
	b[31] = seed
	_, pub := btcec.PrivKeyFromBytes(b[:])
	return NewPubKey(pub)
}

// withTestKeys replaces the named keys A, B and C of m by real keys.
func withTestKeys(t *testing.T, m *Miniscript) *Miniscript {
	t.Helper()
	keys := map[string]Key{
		"A": testKey(t, 1),
		"B": testKey(t, 2),
		"C": testKey(t, 3),
	}
	res, err := m.Substitute(func(k Key) (Key, error) {
		return keys[k.String()], nil
	})
	require.NoError(t, err)
	return res
}

func TestScript(t *testing.T) {
	t.Parallel()

	m := withTestKeys(t, mustParse(t, "or_b(c:pk(A),sc:pk(B))"))

	a, err := testKey(t, 1).Serialize()
	require.NoError(t, err)
	b, err := testKey(t, 2).Serialize()
	require.NoError(t, err)

	want, err := txscript.NewScriptBuilder().
		AddData(a).AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_SWAP).
		AddData(b).AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_BOOLOR).
		Script()
	require.NoError(t, err)

	script, err := m.Script()
	require.NoError(t, err)
	require.Equal(t, want, script)
}

func TestScriptLen(t *testing.T) {
	t.Parallel()

	for _, test := range typeTests {
		m := withTestKeys(t, mustParse(t, test.frag))
		script, err := m.Script()
		require.NoError(t, err, test.frag)
		require.Len(t, script, m.ScriptLen(), test.frag)
	}
}

func TestScriptString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		frag string
		asm  string
	}{
		{
			frag: "or_b(c:pk(A),sc:pk(B))",
			asm:  "<A> CHECKSIG SWAP <B> CHECKSIG BOOLOR",
		},
		{
			frag: "and_v(vc:pk(A),older(144))",
			asm:  "<A> CHECKSIGVERIFY <144> CHECKSEQUENCEVERIFY",
		},
		{
			frag: "thresh_m(2,A,B,C)",
			asm:  "<2> <A> <B> <C> <3> CHECKMULTISIG",
		},
		{
			frag: "and_v(v:older(1),c:pk(A))",
			asm:  "<1> CHECKSEQUENCEVERIFY VERIFY <A> CHECKSIG",
		},
		{
			frag: "or_d(c:pk(A),and_v(vc:pk(B),older(144)))",
			asm: "<A> CHECKSIG IFDUP NOTIF <B> CHECKSIGVERIFY " +
				"<144> CHECKSEQUENCEVERIFY ENDIF",
		},
		{
			frag: "andor(c:pk(A),older(144),c:pk(B))",
			asm: "<A> CHECKSIG NOTIF <B> CHECKSIG ELSE <144> " +
				"CHECKSEQUENCEVERIFY ENDIF",
		},
		{
			frag: "lc:pk(A)",
			asm:  "IF 0 ELSE <A> CHECKSIG ENDIF",
		},
		{
			frag: "thresh(2,c:pk(A),sc:pk(B),ac:pk(C))",
			asm: "<A> CHECKSIG SWAP <B> CHECKSIG ADD TOALTSTACK " +
				"<C> CHECKSIG FROMALTSTACK ADD <2> EQUAL",
		},
		{
			frag: "v:sha256(" + testHash32 + ")",
			asm: "SIZE <32> EQUALVERIFY SHA256 <" + testHash32 +
				"> EQUALVERIFY",
		},
	}

	for _, test := range tests {
		m := mustParse(t, test.frag)
		require.Equal(t, test.asm, m.ScriptString(), test.frag)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	frags := []string{
		"or_b(c:pk(A),sc:pk(B))",
		"or_d(c:pk(A),and_v(vc:pk(B),older(144)))",
		"t:or_c(c:pk(A),v:older(144))",
		"and_b(c:pk(A),ac:pk(B))",
		"and_v(v:sha256(" + testHash32 + "),c:pk(A))",
		"or_d(c:pk(A),hash160(" + testHash20 + "))",
		"and_v(vc:pk(A),and_v(vc:pk(B),c:pk(C)))",
		"thresh(2,c:pk(A),sc:pk(B),ac:pk(C))",
		"and_v(v:thresh(1,c:pk(A),sc:pk(B)),older(10))",
		"c:pk_h(A)",
		"and_v(vc:pk_h(A),c:pk(B))",
		"n:after(500000)",
	}
	for _, test := range typeTests {
		// A W fragment is never a whole script.
		if test.typ[0] != 'W' {
			frags = append(frags, test.frag)
		}
	}

	for _, frag := range frags {
		t.Run(frag, func(t *testing.T) {
			m := withTestKeys(t, mustParse(t, frag))
			script, err := m.Script()
			require.NoError(t, err)

			decoded, err := DecodeScript(script)
			require.NoError(t, err)
			require.Equal(t, m.String(), decoded.String())
			require.Equal(t, m.Type(), decoded.Type())
			require.Equal(t, m.Ext(), decoded.Ext())

			again, err := decoded.Script()
			require.NoError(t, err)
			require.Equal(t, script, again)
		})
	}
}

func TestDecodeReassociates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		frag    string
		decoded string
	}{
		{
			frag:    "and_b(and_v(vc:pk(A),c:pk(B)),sc:pk(C))",
			decoded: "and_v(vc:pk(A),and_b(c:pk(B),sc:pk(C)))",
		},
		{
			frag:    "and_v(and_v(vc:pk(A),vc:pk(B)),c:pk(C))",
			decoded: "and_v(vc:pk(A),and_v(vc:pk(B),c:pk(C)))",
		},
	}

	for _, test := range tests {
		m := withTestKeys(t, mustParse(t, test.frag))
		script, err := m.Script()
		require.NoError(t, err)

		decoded, err := DecodeScript(script)
		require.NoError(t, err)
		want := withTestKeys(t, mustParse(t, test.decoded))
		require.Equal(t, want.String(), decoded.String())

		again, err := decoded.Script()
		require.NoError(t, err)
		require.Equal(t, script, again)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	key, err := testKey(t, 1).Serialize()
	require.NoError(t, err)
	pushKey := append([]byte{txscript.OP_DATA_33}, key...)

	badKey := make([]byte, 33)
	badKey[0] = 0x05

	concat := func(parts ...[]byte) []byte {
		return bytes.Join(parts, nil)
	}

	tests := []struct {
		name   string
		script []byte
		kind   ErrorKind
	}{
		{
			name:   "invalid opcode",
			script: []byte{txscript.OP_NOP},
			kind:   ErrInvalidOpcode,
		},
		{
			name:   "small number push",
			script: []byte{txscript.OP_DATA_1, 0x05},
			kind:   ErrInvalidPush,
		},
		{
			name:   "non-minimal number",
			script: []byte{txscript.OP_DATA_2, 0x05, 0x00},
			kind:   ErrInvalidPush,
		},
		{
			name:   "negative number",
			script: []byte{txscript.OP_DATA_1, 0x81},
			kind:   ErrInvalidPush,
		},
		{
			name: "odd push size",
			script: concat([]byte{txscript.OP_DATA_10},
				make([]byte, 10)),
			kind: ErrInvalidPush,
		},
		{
			name:   "pushdata1",
			script: []byte{txscript.OP_PUSHDATA1, 0x01, 0x20},
			kind:   ErrInvalidPush,
		},
		{
			name:   "truncated push",
			script: []byte{txscript.OP_DATA_2, 0x01},
			kind:   ErrInvalidPush,
		},
		{
			name: "separate verify",
			script: concat(pushKey, []byte{
				txscript.OP_CHECKSIG, txscript.OP_VERIFY,
			}),
			kind: ErrNonMinimalVerify,
		},
		{
			name: "trailing tokens",
			script: concat([]byte{txscript.OP_SWAP}, pushKey,
				[]byte{txscript.OP_CHECKSIG}),
			kind: ErrTrailingTokens,
		},
		{
			name:   "empty script",
			script: nil,
			kind:   ErrUnexpectedToken,
		},
		{
			name: "dangling add",
			script: concat(pushKey, []byte{
				txscript.OP_CHECKSIG, txscript.OP_ADD,
			}),
			kind: ErrUnexpectedToken,
		},
		{
			name: "invalid key",
			script: concat([]byte{txscript.OP_DATA_33}, badKey,
				[]byte{txscript.OP_CHECKSIG}),
			kind: ErrInvalidKey,
		},
		{
			name: "ill typed",
			script: concat(pushKey, pushKey, []byte{
				txscript.OP_CHECKSIG,
			}),
			kind: ErrChildBase2,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := DecodeScript(test.script)
			require.Error(t, err)
			require.True(t, errors.Is(err, test.kind),
				"got %v, want %v", err, test.kind)
		})
	}
}

func TestLex(t *testing.T) {
	t.Parallel()

	key, err := testKey(t, 1).Serialize()
	require.NoError(t, err)

	script, err := txscript.NewScriptBuilder().
		AddData(key).AddOp(txscript.OP_CHECKSIGVERIFY).
		AddInt64(144).AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		Script()
	require.NoError(t, err)

	tokens, err := lex(script)
	require.NoError(t, err)

	var kinds []tokenKind
	for _, tok := range tokens {
		kinds = append(kinds, tok.kind)
	}
	require.Equal(t, []tokenKind{
		tokCheckSequenceVerify, tokNum, tokVerify, tokCheckSig,
		tokPubKey,
	}, kinds)
	require.Equal(t, uint32(144), tokens[1].num)
	require.Equal(t, key, tokens[4].data)
	require.Equal(t, 0, tokens[4].offset)
}

func TestNamedKeyDecoder(t *testing.T) {
	t.Parallel()

	// A custom decoder can map pushed keys back to names.
	a := testKey(t, 1)
	p := NewParser()
	p.KeyDecoder = func(b []byte) (Key, error) {
		k, err := DecodePubKey(b)
		if err != nil {
			return nil, err
		}
		if sameKey(k, a) {
			return NamedKey("A"), nil
		}
		return k, nil
	}

	m := withTestKeys(t, mustParse(t, "and_v(vc:pk(A),older(144))"))
	script, err := m.Script()
	require.NoError(t, err)

	decoded, err := p.DecodeScript(script)
	require.NoError(t, err)
	require.Equal(t, "and_v(vc:pk(A),older(144))", decoded.String())
}
