package miniscript

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Terminal is one fragment of a miniscript.  The set of implementations is
// closed: leaves (True, False, Pk, PkH, After, Older and the four hash
// locks), the unary wrappers, the binary and ternary combinators, Thresh and
// ThreshM.  Children are already type checked *Miniscript values.
type Terminal interface {
	// children returns the sub-fragments in script order.
	children() []*Miniscript
}

type (
	// True is the fragment 1.
	True struct{}

	// False is the fragment 0.
	False struct{}

	// Pk pushes a key: <key>.
	Pk struct {
		Key Key
	}

	// PkH checks a key against a hash: DUP HASH160 <hash> EQUALVERIFY.
	PkH struct {
		Hash [20]byte
	}

	// After is an absolute lock time: <n> CHECKLOCKTIMEVERIFY.
	After struct {
		LockTime uint32
	}

	// Older is a relative lock time: <n> CHECKSEQUENCEVERIFY.
	Older struct {
		LockTime uint32
	}

	// Sha256 is a SHA256 hash lock.
	Sha256 struct {
		Hash [32]byte
	}

	// Hash256 is a double SHA256 hash lock.
	Hash256 struct {
		Hash [32]byte
	}

	// Ripemd160 is a RIPEMD160 hash lock.
	Ripemd160 struct {
		Hash [20]byte
	}

	// Hash160 is a RIPEMD160(SHA256) hash lock.
	Hash160 struct {
		Hash [20]byte
	}
)

// Wrappers.
type (
	// Alt is a:X, TOALTSTACK X FROMALTSTACK.
	Alt struct {
		Sub *Miniscript
	}

	// Swap is s:X, SWAP X.
	Swap struct {
		Sub *Miniscript
	}

	// Check is c:X, X CHECKSIG.
	Check struct {
		Sub *Miniscript
	}

	// DupIf is d:X, DUP IF X ENDIF.
	DupIf struct {
		Sub *Miniscript
	}

	// Verify is v:X, X VERIFY.
	Verify struct {
		Sub *Miniscript
	}

	// NonZero is j:X, SIZE 0NOTEQUAL IF X ENDIF.
	NonZero struct {
		Sub *Miniscript
	}

	// ZeroNotEqual is n:X, X 0NOTEQUAL.
	ZeroNotEqual struct {
		Sub *Miniscript
	}
)

// Combinators.
type (
	// AndV is and_v(X,Y), X Y.
	AndV struct {
		X, Y *Miniscript
	}

	// AndB is and_b(X,Y), X Y BOOLAND.
	AndB struct {
		X, Y *Miniscript
	}

	// AndOr is andor(X,Y,Z), X NOTIF Z ELSE Y ENDIF.
	AndOr struct {
		X, Y, Z *Miniscript
	}

	// OrB is or_b(X,Z), X Z BOOLOR.
	OrB struct {
		X, Z *Miniscript
	}

	// OrD is or_d(X,Z), X IFDUP NOTIF Z ENDIF.
	OrD struct {
		X, Z *Miniscript
	}

	// OrC is or_c(X,Z), X NOTIF Z ENDIF.
	OrC struct {
		X, Z *Miniscript
	}

	// OrI is or_i(X,Z), IF X ELSE Z ENDIF.
	OrI struct {
		X, Z *Miniscript
	}

	// Thresh is thresh(k,X1,...,Xn), X1 X2 ADD ... Xn ADD <k> EQUAL.
	Thresh struct {
		K    int
		Subs []*Miniscript
	}

	// ThreshM is thresh_m(k,key1,...,keyn),
	// <k> <key1> ... <keyn> <n> CHECKMULTISIG.
	ThreshM struct {
		K    int
		Keys []Key
	}
)

func (True) children() []*Miniscript      { return nil }
func (False) children() []*Miniscript     { return nil }
func (Pk) children() []*Miniscript        { return nil }
func (PkH) children() []*Miniscript       { return nil }
func (After) children() []*Miniscript     { return nil }
func (Older) children() []*Miniscript     { return nil }
func (Sha256) children() []*Miniscript    { return nil }
func (Hash256) children() []*Miniscript   { return nil }
func (Ripemd160) children() []*Miniscript { return nil }
func (Hash160) children() []*Miniscript   { return nil }
func (ThreshM) children() []*Miniscript   { return nil }

func (t Alt) children() []*Miniscript          { return []*Miniscript{t.Sub} }
func (t Swap) children() []*Miniscript         { return []*Miniscript{t.Sub} }
func (t Check) children() []*Miniscript        { return []*Miniscript{t.Sub} }
func (t DupIf) children() []*Miniscript        { return []*Miniscript{t.Sub} }
func (t Verify) children() []*Miniscript       { return []*Miniscript{t.Sub} }
func (t NonZero) children() []*Miniscript      { return []*Miniscript{t.Sub} }
func (t ZeroNotEqual) children() []*Miniscript { return []*Miniscript{t.Sub} }

func (t AndV) children() []*Miniscript  { return []*Miniscript{t.X, t.Y} }
func (t AndB) children() []*Miniscript  { return []*Miniscript{t.X, t.Y} }
func (t AndOr) children() []*Miniscript { return []*Miniscript{t.X, t.Y, t.Z} }
func (t OrB) children() []*Miniscript   { return []*Miniscript{t.X, t.Z} }
func (t OrD) children() []*Miniscript   { return []*Miniscript{t.X, t.Z} }
func (t OrC) children() []*Miniscript   { return []*Miniscript{t.X, t.Z} }
func (t OrI) children() []*Miniscript   { return []*Miniscript{t.X, t.Z} }
func (t Thresh) children() []*Miniscript {
	return t.Subs
}

// isFalse and isTrue report whether m is the bare 0 or 1 fragment.
func isFalse(m *Miniscript) bool {
	_, ok := m.Node.(False)
	return ok
}

func isTrue(m *Miniscript) bool {
	_, ok := m.Node.(True)
	return ok
}

// wrapperOf returns the wrapper letter and the wrapped child of t if t is a
// wrapper, including the t:, u: and l: sugar.
func wrapperOf(t Terminal) (byte, *Miniscript, bool) {
	switch t := t.(type) {
	case Alt:
		return 'a', t.Sub, true
	case Swap:
		return 's', t.Sub, true
	case Check:
		return 'c', t.Sub, true
	case DupIf:
		return 'd', t.Sub, true
	case Verify:
		return 'v', t.Sub, true
	case NonZero:
		return 'j', t.Sub, true
	case ZeroNotEqual:
		return 'n', t.Sub, true
	case AndV:
		if isTrue(t.Y) {
			return 't', t.X, true
		}
	case OrI:
		if isFalse(t.X) {
			return 'l', t.Z, true
		}
		if isFalse(t.Z) {
			return 'u', t.X, true
		}
	}
	return 0, nil, false
}

// terminalString renders t in canonical form: wrappers are colon
// compressed, t:/u:/l: and and_n are used wherever they apply.
func terminalString(t Terminal) string {
	var b strings.Builder
	writeTerminal(&b, t)
	return b.String()
}

func writeTerminal(b *strings.Builder, t Terminal) {
	var wrappers []byte
	for {
		w, sub, ok := wrapperOf(t)
		if !ok {
			break
		}
		wrappers = append(wrappers, w)
		t = sub.Node
	}
	if len(wrappers) > 0 {
		b.Write(wrappers)
		b.WriteByte(':')
	}

	call := func(name string, args ...*Miniscript) {
		b.WriteString(name)
		b.WriteByte('(')
		for i, arg := range args {
			if i > 0 {
				b.WriteByte(',')
			}
			writeTerminal(b, arg.Node)
		}
		b.WriteByte(')')
	}
	leaf := func(name, arg string) {
		b.WriteString(name)
		b.WriteByte('(')
		b.WriteString(arg)
		b.WriteByte(')')
	}

	switch t := t.(type) {
	case True:
		b.WriteByte('1')
	case False:
		b.WriteByte('0')
	case Pk:
		leaf(fPk, t.Key.String())
	case PkH:
		leaf(fPkH, hex.EncodeToString(t.Hash[:]))
	case After:
		leaf(fAfter, strconv.FormatUint(uint64(t.LockTime), 10))
	case Older:
		leaf(fOlder, strconv.FormatUint(uint64(t.LockTime), 10))
	case Sha256:
		leaf(fSha256, hex.EncodeToString(t.Hash[:]))
	case Hash256:
		leaf(fHash256, hex.EncodeToString(t.Hash[:]))
	case Ripemd160:
		leaf(fRipemd160, hex.EncodeToString(t.Hash[:]))
	case Hash160:
		leaf(fHash160, hex.EncodeToString(t.Hash[:]))
	case AndV:
		call(fAndV, t.X, t.Y)
	case AndB:
		call(fAndB, t.X, t.Y)
	case AndOr:
		if isFalse(t.Z) {
			call(fAndN, t.X, t.Y)
		} else {
			call(fAndOr, t.X, t.Y, t.Z)
		}
	case OrB:
		call(fOrB, t.X, t.Z)
	case OrD:
		call(fOrD, t.X, t.Z)
	case OrC:
		call(fOrC, t.X, t.Z)
	case OrI:
		call(fOrI, t.X, t.Z)
	case Thresh:
		b.WriteString(fThresh)
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(t.K))
		for _, sub := range t.Subs {
			b.WriteByte(',')
			writeTerminal(b, sub.Node)
		}
		b.WriteByte(')')
	case ThreshM:
		b.WriteString(fThreshM)
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(t.K))
		for _, key := range t.Keys {
			b.WriteByte(',')
			b.WriteString(key.String())
		}
		b.WriteByte(')')
	}
}

// Fragment names of the text form.
const (
	fPk        = "pk"
	fPkH       = "pk_h"
	fAfter     = "after"
	fOlder     = "older"
	fSha256    = "sha256"
	fHash256   = "hash256"
	fRipemd160 = "ripemd160"
	fHash160   = "hash160"
	fAndV      = "and_v"
	fAndB      = "and_b"
	fAndN      = "and_n"
	fAndOr     = "andor"
	fOrB       = "or_b"
	fOrD       = "or_d"
	fOrC       = "or_c"
	fOrI       = "or_i"
	fThresh    = "thresh"
	fThreshM   = "thresh_m"
)

// fragmentName returns the name of t as used in diagnostics.
func fragmentName(t Terminal) string {
	switch t.(type) {
	case True:
		return "1"
	case False:
		return "0"
	case Pk:
		return fPk
	case PkH:
		return fPkH
	case After:
		return fAfter
	case Older:
		return fOlder
	case Sha256:
		return fSha256
	case Hash256:
		return fHash256
	case Ripemd160:
		return fRipemd160
	case Hash160:
		return fHash160
	case AndV:
		return fAndV
	case AndB:
		return fAndB
	case AndOr:
		return fAndOr
	case OrB:
		return fOrB
	case OrD:
		return fOrD
	case OrC:
		return fOrC
	case OrI:
		return fOrI
	case Thresh:
		return fThresh
	case ThreshM:
		return fThreshM
	}
	w, _, _ := wrapperOf(t)
	return string(w) + ":"
}
