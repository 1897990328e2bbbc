package miniscript

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ripemd160"
)

func TestTxContextOlder(t *testing.T) {
	t.Parallel()

	const secondsFlag = wire.SequenceLockTimeIsSeconds

	tests := []struct {
		name     string
		lockTime uint32
		version  uint32
		sequence uint32
		ok       bool
	}{
		{name: "exact", lockTime: 144, version: 2, sequence: 144, ok: true},
		{name: "later", lockTime: 144, version: 2, sequence: 200, ok: true},
		{name: "early", lockTime: 144, version: 2, sequence: 143},
		{name: "version 1", lockTime: 144, version: 1, sequence: 144},
		{
			name: "disabled", lockTime: 144, version: 2,
			sequence: wire.SequenceLockTimeDisabled | 144,
		},
		{
			name: "mixed units", lockTime: secondsFlag | 10, version: 2,
			sequence: 144,
		},
		{
			name: "seconds", lockTime: secondsFlag | 10, version: 2,
			sequence: secondsFlag | 20, ok: true,
		},
	}

	for _, test := range tests {
		tx := TxContext{Version: test.version, Sequence: test.sequence}
		require.Equal(t, test.ok, tx.Older(test.lockTime), test.name)
	}
}

func TestTxContextAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		value      uint32
		txLockTime uint32
		sequence   uint32
		ok         bool
	}{
		{name: "exact", value: 100, txLockTime: 100, sequence: 0, ok: true},
		{name: "early", value: 100, txLockTime: 99, sequence: 0},
		{
			name: "final sequence", value: 100, txLockTime: 100,
			sequence: wire.MaxTxInSequenceNum,
		},
		{name: "mixed units", value: 500000001, txLockTime: 100},
		{
			name: "time", value: 500000001, txLockTime: 500000002,
			ok: true,
		},
	}

	for _, test := range tests {
		tx := TxContext{LockTime: test.txLockTime, Sequence: test.sequence}
		require.Equal(t, test.ok, tx.After(test.value), test.name)
	}
}

func TestMapSatisfierPreimages(t *testing.T) {
	t.Parallel()

	preimage := bytes.Repeat([]byte{0x07}, preimageLen)

	ripemd := ripemd160.New()
	ripemd.Write(preimage)

	tests := []struct {
		fragment string
		hash     []byte
	}{
		{fragment: "sha256", hash: chainhash.HashB(preimage)},
		{fragment: "hash256", hash: chainhash.DoubleHashB(preimage)},
		{fragment: "ripemd160", hash: ripemd.Sum(nil)},
		{fragment: "hash160", hash: btcutil.Hash160(preimage)},
	}

	s := NewMapSatisfier(TxContext{})
	for _, test := range tests {
		m := mustParse(t, test.fragment+"("+hex.EncodeToString(test.hash)+")")
		require.False(t, m.CanSatisfy(s), test.fragment)
	}

	// Preimages of the wrong size are never used.
	s.AddPreimage(preimage[:preimageLen-1])
	s.AddPreimage(preimage)
	for _, test := range tests {
		m := mustParse(t, test.fragment+"("+hex.EncodeToString(test.hash)+")")
		require.True(t, m.CanSatisfy(s), test.fragment)
	}

	var h [32]byte
	copy(h[:], chainhash.HashB(preimage))
	got, ok := s.Sha256Preimage(h)
	require.True(t, ok)
	require.Equal(t, preimage, got)
}

func TestCanSatisfy(t *testing.T) {
	t.Parallel()

	tx := TxContext{Version: 2, Sequence: 144}
	sig := []byte{0x30}

	tests := []struct {
		frag string
		keys []string
		ok   bool
	}{
		{frag: "c:pk(A)", keys: []string{"A"}, ok: true},
		{frag: "c:pk(A)", keys: []string{"B"}},
		{frag: "c:pk_h(A)", keys: []string{"A"}, ok: true},
		{frag: "c:pk_h(A)"},
		{
			frag: "or_d(c:pk(A),and_v(vc:pk(B),older(144)))",
			keys: []string{"B"}, ok: true,
		},
		{
			frag: "or_d(c:pk(A),and_v(vc:pk(B),older(145)))",
			keys: []string{"B"},
		},
		{frag: "or_d(c:pk(A),and_v(vc:pk(B),older(144)))"},
		{
			frag: "thresh(2,c:pk(A),sc:pk(B),sc:pk(C))",
			keys: []string{"A"},
		},
		{
			frag: "thresh(2,c:pk(A),sc:pk(B),sc:pk(C))",
			keys: []string{"A", "C"}, ok: true,
		},
		{frag: "thresh_m(2,A,B,C)", keys: []string{"B", "C"}, ok: true},
		{frag: "thresh_m(2,A,B,C)", keys: []string{"C"}},
		{frag: "andor(c:pk(A),older(144),c:pk(B))", keys: []string{"B"},
			ok: true},
		{frag: "and_n(c:pk(A),c:pk(B))", keys: []string{"B"}},
		{frag: "uc:pk(A)", keys: []string{"A"}, ok: true},
		{frag: "after(100)"},
	}

	for _, test := range tests {
		s := NewMapSatisfier(tx)
		for _, key := range test.keys {
			s.AddSignature(NamedKey(key), sig)
		}
		m := mustParse(t, test.frag)
		require.Equal(t, test.ok, m.CanSatisfy(s), "%s with %v",
			test.frag, test.keys)
	}
}

func TestPubKeyForHash(t *testing.T) {
	t.Parallel()

	a := testKey(t, 1)
	s := NewMapSatisfier(TxContext{})
	_, ok := s.PubKeyForHash(a.Hash160())
	require.False(t, ok)

	s.AddKey(a)
	key, ok := s.PubKeyForHash(a.Hash160())
	require.True(t, ok)
	require.True(t, sameKey(a, key))

	_, ok = s.Signature(a)
	require.False(t, ok)
}

// sameKey reports whether two keys have the same text form.
func sameKey(a, b Key) bool {
	return a.String() == b.String()
}

// testPrivKey returns the private key behind testKey(t, seed).
func testPrivKey(seed byte) *btcec.PrivateKey {
	var b [32]byte
	b[31] = seed
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	return priv
}

// executeScript spends a P2WSH output locked to witnessScript with the
// witness built by makeWitness and runs the script engine on the spend.
func executeScript(t *testing.T, witnessScript []byte, sequence uint32,
	makeWitness func(sigHash []byte) wire.TxWitness) error {

	t.Helper()

	addr, err := btcutil.NewAddressWitnessScriptHash(
		chainhash.HashB(witnessScript), &chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)
	utxoPkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	burnPkScript, err := txscript.NullDataScript(nil)
	require.NoError(t, err)

	const utxoAmount = int64(100000)
	txInput := wire.NewTxIn(&wire.OutPoint{}, nil, nil)
	txInput.Sequence = sequence
	tx := wire.MsgTx{
		Version: 2,
		TxIn:    []*wire.TxIn{txInput},
		TxOut: []*wire.TxOut{{
			Value:    utxoAmount - 200,
			PkScript: burnPkScript,
		}},
	}

	prevOuts := txscript.NewCannedPrevOutputFetcher(utxoPkScript, utxoAmount)
	sigHashes := txscript.NewTxSigHashes(&tx, prevOuts)
	sigHash, err := txscript.CalcWitnessSigHash(witnessScript, sigHashes,
		txscript.SigHashAll, &tx, 0, utxoAmount)
	require.NoError(t, err)

	witness := makeWitness(sigHash)
	tx.TxIn[0].Witness = append(witness, witnessScript)

	engine, err := txscript.NewEngine(utxoPkScript, &tx, 0,
		txscript.StandardVerifyFlags, nil, sigHashes, utxoAmount,
		prevOuts)
	require.NoError(t, err)
	return engine.Execute()
}

func TestScriptExecutes(t *testing.T) {
	t.Parallel()

	sign := func(seed byte, sigHash []byte) []byte {
		sig := ecdsa.Sign(testPrivKey(seed), sigHash).Serialize()
		return append(sig, byte(txscript.SigHashAll))
	}

	tests := []struct {
		frag     string
		sequence uint32
		witness  func(sigHash []byte) wire.TxWitness
		valid    bool
	}{
		{
			frag: "c:pk(A)",
			witness: func(h []byte) wire.TxWitness {
				return wire.TxWitness{sign(1, h)}
			},
			valid: true,
		},
		{
			frag: "c:pk(A)",
			witness: func(h []byte) wire.TxWitness {
				return wire.TxWitness{sign(2, h)}
			},
		},
		{
			frag: "and_v(vc:pk(A),c:pk(B))",
			witness: func(h []byte) wire.TxWitness {
				return wire.TxWitness{sign(2, h), sign(1, h)}
			},
			valid: true,
		},
		{
			frag: "or_b(c:pk(A),sc:pk(B))",
			witness: func(h []byte) wire.TxWitness {
				return wire.TxWitness{sign(2, h), nil}
			},
			valid: true,
		},
		{
			frag:     "and_v(vc:pk(A),older(144))",
			sequence: 144,
			witness: func(h []byte) wire.TxWitness {
				return wire.TxWitness{sign(1, h)}
			},
			valid: true,
		},
		{
			frag:     "and_v(vc:pk(A),older(144))",
			sequence: 143,
			witness: func(h []byte) wire.TxWitness {
				return wire.TxWitness{sign(1, h)}
			},
		},
		{
			frag: "thresh_m(2,A,B,C)",
			witness: func(h []byte) wire.TxWitness {
				return wire.TxWitness{nil, sign(1, h), sign(3, h)}
			},
			valid: true,
		},
		{
			frag: "thresh(2,c:pk(A),sc:pk(B),sc:pk(C))",
			witness: func(h []byte) wire.TxWitness {
				return wire.TxWitness{sign(3, h), nil, sign(1, h)}
			},
			valid: true,
		},
	}

	for _, test := range tests {
		m := withTestKeys(t, mustParse(t, test.frag))
		require.NoError(t, m.IsSane(), test.frag)

		script, err := m.Script()
		require.NoError(t, err)

		err = executeScript(t, script, test.sequence, test.witness)
		if test.valid {
			require.NoError(t, err, test.frag)
		} else {
			require.Error(t, err, test.frag)
		}
	}
}
