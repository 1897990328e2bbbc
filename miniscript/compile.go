package miniscript

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/txscript"
)

// emitter receives the opcodes of a compiled miniscript.
type emitter interface {
	addOp(op byte)
	addInt(n int64)
	addData(data []byte)
	addKey(key Key) error
}

// scriptEmitter writes real script bytes.
type scriptEmitter struct {
	b *txscript.ScriptBuilder
}

func (e scriptEmitter) addOp(op byte)       { e.b.AddOp(op) }
func (e scriptEmitter) addInt(n int64)      { e.b.AddInt64(n) }
func (e scriptEmitter) addData(data []byte) { e.b.AddData(data) }

func (e scriptEmitter) addKey(key Key) error {
	b, err := key.Serialize()
	if err != nil {
		return err
	}
	e.b.AddData(b)
	return nil
}

// asmEmitter writes a human readable rendering in which keys keep their
// text form, so it also works for keys without public key material.
type asmEmitter struct {
	parts []string
}

// asmNames are the names of every opcode a miniscript compiles to.
var asmNames = map[byte]string{
	txscript.OP_0:                   "0",
	txscript.OP_1:                   "1",
	txscript.OP_DUP:                 "DUP",
	txscript.OP_HASH160:             "HASH160",
	txscript.OP_HASH256:             "HASH256",
	txscript.OP_SHA256:              "SHA256",
	txscript.OP_RIPEMD160:           "RIPEMD160",
	txscript.OP_EQUAL:               "EQUAL",
	txscript.OP_EQUALVERIFY:         "EQUALVERIFY",
	txscript.OP_SIZE:                "SIZE",
	txscript.OP_CHECKSIG:            "CHECKSIG",
	txscript.OP_CHECKSIGVERIFY:      "CHECKSIGVERIFY",
	txscript.OP_CHECKMULTISIG:       "CHECKMULTISIG",
	txscript.OP_CHECKMULTISIGVERIFY: "CHECKMULTISIGVERIFY",
	txscript.OP_CHECKLOCKTIMEVERIFY: "CHECKLOCKTIMEVERIFY",
	txscript.OP_CHECKSEQUENCEVERIFY: "CHECKSEQUENCEVERIFY",
	txscript.OP_VERIFY:              "VERIFY",
	txscript.OP_IF:                  "IF",
	txscript.OP_NOTIF:               "NOTIF",
	txscript.OP_ELSE:                "ELSE",
	txscript.OP_ENDIF:               "ENDIF",
	txscript.OP_IFDUP:               "IFDUP",
	txscript.OP_TOALTSTACK:          "TOALTSTACK",
	txscript.OP_FROMALTSTACK:        "FROMALTSTACK",
	txscript.OP_SWAP:                "SWAP",
	txscript.OP_0NOTEQUAL:           "0NOTEQUAL",
	txscript.OP_ADD:                 "ADD",
	txscript.OP_BOOLAND:             "BOOLAND",
	txscript.OP_BOOLOR:              "BOOLOR",
}

func (e *asmEmitter) addOp(op byte) {
	e.parts = append(e.parts, asmNames[op])
}

func (e *asmEmitter) addInt(n int64) {
	e.parts = append(e.parts, fmt.Sprintf("<%d>", n))
}

func (e *asmEmitter) addData(data []byte) {
	e.parts = append(e.parts, "<"+hex.EncodeToString(data)+">")
}

func (e *asmEmitter) addKey(key Key) error {
	e.parts = append(e.parts, "<"+key.String()+">")
	return nil
}

// Script creates the witness script of the miniscript.  Every key must have
// public key material, otherwise an ErrMissingKeyMaterial error is
// returned.
func (m *Miniscript) Script() ([]byte, error) {
	b := txscript.NewScriptBuilder()
	if err := encode(m, scriptEmitter{b: b}, false); err != nil {
		return nil, err
	}
	return b.Script()
}

// ScriptString returns a human readable version of the script, with keys in
// their text form.
func (m *Miniscript) ScriptString() string {
	var e asmEmitter
	// The asm emitter never fails.
	_ = encode(m, &e, false)
	return strings.Join(e.parts, " ")
}

// encode emits the opcodes of m.  verify is true if the opcode following the
// fragment is an OP_VERIFY that a trailing EQUAL, CHECKSIG or CHECKMULTISIG
// absorbs, turning into its VERIFY variant.  Only the fragments whose last
// opcode is the last opcode of their parent receive the flag.
func encode(m *Miniscript, e emitter, verify bool) error {
	pick := func(op, verifyOp byte) byte {
		if verify {
			return verifyOp
		}
		return op
	}

	switch t := m.Node.(type) {
	case False:
		e.addOp(txscript.OP_0)

	case True:
		e.addOp(txscript.OP_1)

	case Pk:
		return e.addKey(t.Key)

	case PkH:
		e.addOp(txscript.OP_DUP)
		e.addOp(txscript.OP_HASH160)
		e.addData(t.Hash[:])
		e.addOp(txscript.OP_EQUALVERIFY)

	case Older:
		e.addInt(int64(t.LockTime))
		e.addOp(txscript.OP_CHECKSEQUENCEVERIFY)

	case After:
		e.addInt(int64(t.LockTime))
		e.addOp(txscript.OP_CHECKLOCKTIMEVERIFY)

	case Sha256:
		encodeHash(e, txscript.OP_SHA256, t.Hash[:], pick)
	case Hash256:
		encodeHash(e, txscript.OP_HASH256, t.Hash[:], pick)
	case Ripemd160:
		encodeHash(e, txscript.OP_RIPEMD160, t.Hash[:], pick)
	case Hash160:
		encodeHash(e, txscript.OP_HASH160, t.Hash[:], pick)

	case AndOr:
		if err := encode(t.X, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_NOTIF)
		if err := encode(t.Z, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_ELSE)
		if err := encode(t.Y, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_ENDIF)

	case AndV:
		if err := encode(t.X, e, false); err != nil {
			return err
		}
		return encode(t.Y, e, verify)

	case AndB:
		if err := encode(t.X, e, false); err != nil {
			return err
		}
		if err := encode(t.Y, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_BOOLAND)

	case OrB:
		if err := encode(t.X, e, false); err != nil {
			return err
		}
		if err := encode(t.Z, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_BOOLOR)

	case OrC:
		if err := encode(t.X, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_NOTIF)
		if err := encode(t.Z, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_ENDIF)

	case OrD:
		if err := encode(t.X, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_IFDUP)
		e.addOp(txscript.OP_NOTIF)
		if err := encode(t.Z, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_ENDIF)

	case OrI:
		e.addOp(txscript.OP_IF)
		if err := encode(t.X, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_ELSE)
		if err := encode(t.Z, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_ENDIF)

	case Thresh:
		for i, sub := range t.Subs {
			if err := encode(sub, e, false); err != nil {
				return err
			}
			if i > 0 {
				e.addOp(txscript.OP_ADD)
			}
		}
		e.addInt(int64(t.K))
		e.addOp(pick(txscript.OP_EQUAL, txscript.OP_EQUALVERIFY))

	case ThreshM:
		e.addInt(int64(t.K))
		for _, key := range t.Keys {
			if err := e.addKey(key); err != nil {
				return err
			}
		}
		e.addInt(int64(len(t.Keys)))
		e.addOp(pick(txscript.OP_CHECKMULTISIG,
			txscript.OP_CHECKMULTISIGVERIFY))

	case Alt:
		e.addOp(txscript.OP_TOALTSTACK)
		if err := encode(t.Sub, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_FROMALTSTACK)

	case Swap:
		e.addOp(txscript.OP_SWAP)
		return encode(t.Sub, e, verify)

	case Check:
		if err := encode(t.Sub, e, false); err != nil {
			return err
		}
		e.addOp(pick(txscript.OP_CHECKSIG, txscript.OP_CHECKSIGVERIFY))

	case DupIf:
		e.addOp(txscript.OP_DUP)
		e.addOp(txscript.OP_IF)
		if err := encode(t.Sub, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_ENDIF)

	case Verify:
		if err := encode(t.Sub, e, true); err != nil {
			return err
		}
		if !t.Sub.ext.HasVerifyForm {
			e.addOp(txscript.OP_VERIFY)
		}

	case NonZero:
		e.addOp(txscript.OP_SIZE)
		e.addOp(txscript.OP_0NOTEQUAL)
		e.addOp(txscript.OP_IF)
		if err := encode(t.Sub, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_ENDIF)

	case ZeroNotEqual:
		if err := encode(t.Sub, e, false); err != nil {
			return err
		}
		e.addOp(txscript.OP_0NOTEQUAL)

	default:
		return fmt.Errorf("unknown fragment %T", t)
	}
	return nil
}

// encodeHash emits SIZE <32> EQUALVERIFY <hashOp> <hash> EQUAL.
func encodeHash(e emitter, hashOp byte, hash []byte,
	pick func(op, verifyOp byte) byte) {

	e.addOp(txscript.OP_SIZE)
	e.addInt(32)
	e.addOp(txscript.OP_EQUALVERIFY)
	e.addOp(hashOp)
	e.addData(hash)
	e.addOp(pick(txscript.OP_EQUAL, txscript.OP_EQUALVERIFY))
}
