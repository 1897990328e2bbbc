package miniscript

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// nonTerm is a production the decoder expects next.
type nonTerm uint8

const (
	ntExpression nonTerm = iota
	ntWExpression
	ntMaybeSwap
	ntMaybeAndV
	ntAlt
	ntCheck
	ntDupIf
	ntVerify
	ntNonZero
	ntZeroNotEqual
	ntAndV
	ntAndB
	ntTern
	ntOrB
	ntOrD
	ntOrC
	ntThreshW
	ntThreshE
	ntEndIf
	ntEndIfNotIf
	ntEndIfElse
)

// expectation is an entry of the decoder's non-terminal stack.  k and n are
// the threshold and the number of children parsed so far for ntThreshW and
// ntThreshE.
type expectation struct {
	nt   nonTerm
	k, n int
}

// DecodeScript reconstructs a miniscript from its compiled script with the
// default parser settings.
func DecodeScript(script []byte) (*Miniscript, error) {
	return NewParser().DecodeScript(script)
}

// DecodeScript reconstructs a miniscript from its compiled script.  Every
// script produced by Script is accepted.  Sequences of and_v are rebuilt
// nested to the right, so the result compiles to the same script but may
// print differently from the source: and_b(and_v(P,Q),s:Z) decodes as
// and_v(P,and_b(Q,s:Z)).
func (p *Parser) DecodeScript(script []byte) (*Miniscript, error) {
	tokens, err := lex(script)
	if err != nil {
		return nil, err
	}
	log.Tracef("Decoding tokens %v", newLogClosure(func() string {
		return spew.Sdump(tokens)
	}))

	d := decoder{p: p, tokens: tokens, end: len(script)}
	return d.decode()
}

// decoder is a shift/reduce parser over the reversed token stream.
type decoder struct {
	p      *Parser
	tokens []token
	pos    int
	end    int

	expect []expectation
	values []*Miniscript
}

func (d *decoder) push(nts ...nonTerm) {
	for _, nt := range nts {
		d.expect = append(d.expect, expectation{nt: nt})
	}
}

func (d *decoder) peek() (token, bool) {
	if d.pos >= len(d.tokens) {
		return token{}, false
	}
	return d.tokens[d.pos], true
}

func (d *decoder) next() (token, bool) {
	t, ok := d.peek()
	if ok {
		d.pos++
	}
	return t, ok
}

// offset is the script position of the next token, used in errors.
func (d *decoder) offset() int {
	if t, ok := d.peek(); ok {
		return t.offset
	}
	return d.end
}

func (d *decoder) unexpected(want string) error {
	t, ok := d.peek()
	if !ok {
		return parseError(ErrUnexpectedToken, 0, fmt.Sprintf(
			"unexpected start of script, expected %s", want))
	}
	return parseError(ErrUnexpectedToken, t.offset, fmt.Sprintf(
		"unexpected %v, expected %s", t, want))
}

// expectSeq consumes the given token kinds in order or fails.
func (d *decoder) expectSeq(kinds ...tokenKind) error {
	for _, kind := range kinds {
		t, ok := d.peek()
		if !ok || t.kind != kind {
			return d.unexpected(kind.String())
		}
		d.pos++
	}
	return nil
}

// expectNum consumes a number token equal to n.
func (d *decoder) expectNum(n uint32) error {
	t, ok := d.peek()
	if !ok || t.kind != tokNum || t.num != n {
		return d.unexpected(fmt.Sprintf("<%d>", n))
	}
	d.pos++
	return nil
}

// hashTail consumes HASHOP EQUALVERIFY <32> SIZE, the part of a hash lock
// preceding the hash in reversed order.
func (d *decoder) hashTail(hashOp tokenKind) error {
	if err := d.expectSeq(hashOp, tokVerify, tokEqual); err != nil {
		return err
	}
	if err := d.expectNum(32); err != nil {
		return err
	}
	return d.expectSeq(tokSize)
}

func (d *decoder) pop() (*Miniscript, error) {
	if len(d.values) == 0 {
		return nil, d.unexpected("a fragment")
	}
	m := d.values[len(d.values)-1]
	d.values = d.values[:len(d.values)-1]
	return m, nil
}

// reduce type checks t and pushes it as a value.
func (d *decoder) reduce(t Terminal) error {
	m, err := d.p.check(t, d.offset())
	if err != nil {
		return err
	}
	log.Tracef("Reduced %v", m)
	d.values = append(d.values, m)
	return nil
}

func (d *decoder) reduce1(wrap func(*Miniscript) Terminal) error {
	sub, err := d.pop()
	if err != nil {
		return err
	}
	return d.reduce(wrap(sub))
}

// reduce2 combines the top value, the left child, with the one below it.
func (d *decoder) reduce2(comb func(l, r *Miniscript) Terminal) error {
	l, err := d.pop()
	if err != nil {
		return err
	}
	r, err := d.pop()
	if err != nil {
		return err
	}
	return d.reduce(comb(l, r))
}

// isAndVBoundary reports whether the next token ends an and_v chain.
func (d *decoder) isAndVBoundary() bool {
	t, ok := d.peek()
	if !ok {
		return true
	}
	switch t.kind {
	case tokIf, tokNotIf, tokElse, tokToAltStack, tokSwap:
		return true
	}
	return false
}

func (d *decoder) decode() (*Miniscript, error) {
	d.push(ntMaybeAndV, ntExpression)

	for len(d.expect) > 0 {
		e := d.expect[len(d.expect)-1]
		d.expect = d.expect[:len(d.expect)-1]

		var err error
		switch e.nt {
		case ntExpression:
			err = d.expression()

		case ntWExpression:
			if t, ok := d.peek(); ok && t.kind == tokFromAltStack {
				d.pos++
				d.push(ntAlt, ntMaybeAndV, ntExpression)
			} else {
				d.push(ntMaybeSwap, ntMaybeAndV, ntExpression)
			}

		case ntMaybeAndV:
			if !d.isAndVBoundary() {
				d.push(ntAndV, ntExpression)
			}

		case ntMaybeSwap:
			if t, ok := d.peek(); ok && t.kind == tokSwap {
				d.pos++
				err = d.reduce1(func(s *Miniscript) Terminal {
					return Swap{Sub: s}
				})
			}

		case ntAlt:
			if err = d.expectSeq(tokToAltStack); err == nil {
				err = d.reduce1(func(s *Miniscript) Terminal {
					return Alt{Sub: s}
				})
			}
		case ntCheck:
			err = d.reduce1(func(s *Miniscript) Terminal {
				return Check{Sub: s}
			})
		case ntDupIf:
			err = d.reduce1(func(s *Miniscript) Terminal {
				return DupIf{Sub: s}
			})
		case ntVerify:
			err = d.reduce1(func(s *Miniscript) Terminal {
				return Verify{Sub: s}
			})
		case ntNonZero:
			err = d.reduce1(func(s *Miniscript) Terminal {
				return NonZero{Sub: s}
			})
		case ntZeroNotEqual:
			err = d.reduce1(func(s *Miniscript) Terminal {
				return ZeroNotEqual{Sub: s}
			})

		case ntAndV:
			err = d.reduce2(func(l, r *Miniscript) Terminal {
				return AndV{X: l, Y: r}
			})
			if err == nil {
				d.push(ntMaybeAndV)
			}
		case ntAndB:
			err = d.reduce2(func(l, r *Miniscript) Terminal {
				return AndB{X: l, Y: r}
			})
		case ntOrB:
			err = d.reduce2(func(l, r *Miniscript) Terminal {
				return OrB{X: l, Z: r}
			})
		case ntOrD:
			err = d.reduce2(func(l, r *Miniscript) Terminal {
				return OrD{X: l, Z: r}
			})
		case ntOrC:
			err = d.reduce2(func(l, r *Miniscript) Terminal {
				return OrC{X: l, Z: r}
			})
		case ntTern:
			// X NOTIF Z ELSE Y ENDIF leaves Y, Z, X on the stack.
			var x, y, z *Miniscript
			if x, err = d.pop(); err != nil {
				break
			}
			if z, err = d.pop(); err != nil {
				break
			}
			if y, err = d.pop(); err != nil {
				break
			}
			err = d.reduce(AndOr{X: x, Y: y, Z: z})

		case ntThreshW:
			if t, ok := d.peek(); ok && t.kind == tokAdd {
				d.pos++
				d.expect = append(d.expect,
					expectation{nt: ntThreshW, k: e.k, n: e.n + 1})
				d.push(ntWExpression)
			} else {
				d.expect = append(d.expect,
					expectation{nt: ntThreshE, k: e.k, n: e.n + 1})
				d.push(ntExpression)
			}
		case ntThreshE:
			if len(d.values) < e.n {
				err = d.unexpected("a threshold child")
				break
			}
			// The first child was parsed last and is on top.
			subs := make([]*Miniscript, e.n)
			for i := range subs {
				subs[i] = d.values[len(d.values)-1-i]
			}
			d.values = d.values[:len(d.values)-e.n]
			err = d.reduce(Thresh{K: e.k, Subs: subs})

		case ntEndIf:
			err = d.endIf()
		case ntEndIfNotIf:
			if t, ok := d.peek(); ok && t.kind == tokIfDup {
				d.pos++
				d.push(ntOrD)
			} else {
				d.push(ntOrC)
			}
			d.push(ntExpression)
		case ntEndIfElse:
			t, ok := d.next()
			switch {
			case ok && t.kind == tokIf:
				err = d.reduce2(func(l, r *Miniscript) Terminal {
					return OrI{X: l, Z: r}
				})
			case ok && t.kind == tokNotIf:
				d.push(ntTern, ntExpression)
			default:
				if ok {
					d.pos--
				}
				err = d.unexpected("IF or NOTIF")
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if d.pos < len(d.tokens) {
		t := d.tokens[d.pos]
		return nil, parseError(ErrTrailingTokens, t.offset, fmt.Sprintf(
			"unexpected %v before the end of the miniscript", t))
	}
	if len(d.values) != 1 {
		return nil, parseError(ErrUnexpectedToken, 0, fmt.Sprintf(
			"script decodes to %d fragments", len(d.values)))
	}
	return d.values[0], nil
}

// endIf handles the token preceding a fragment's final ENDIF body.
func (d *decoder) endIf() error {
	t, ok := d.next()
	if !ok {
		return d.unexpected("ELSE, IF or NOTIF")
	}
	switch t.kind {
	case tokElse:
		d.push(ntEndIfElse, ntMaybeAndV, ntExpression)
	case tokIf:
		next, ok := d.next()
		switch {
		case ok && next.kind == tokDup:
			d.push(ntDupIf)
		case ok && next.kind == tokZeroNotEqual:
			if err := d.expectSeq(tokSize); err != nil {
				return err
			}
			d.push(ntNonZero)
		default:
			if ok {
				d.pos--
			}
			return d.unexpected("DUP or 0NOTEQUAL")
		}
	case tokNotIf:
		d.push(ntEndIfNotIf)
	default:
		d.pos--
		return d.unexpected("ELSE, IF or NOTIF")
	}
	return nil
}

// expression consumes the tokens of one fragment, reducing leaves directly
// and pushing the expectations of everything else.
func (d *decoder) expression() error {
	t, ok := d.next()
	if !ok {
		return d.unexpected("a fragment")
	}

	switch t.kind {
	case tokPubKey:
		key, err := d.p.KeyDecoder(t.data)
		if err != nil {
			return parseError(ErrInvalidKey, t.offset, fmt.Sprintf(
				"invalid key %v: %v", t, err))
		}
		return d.reduce(Pk{Key: key})

	case tokCheckSig:
		d.push(ntCheck, ntExpression)

	case tokVerify:
		if n, ok := d.peek(); !ok || n.kind != tokEqual {
			d.push(ntVerify, ntExpression)
			return nil
		}
		d.pos++
		return d.verifyEqual()

	case tokZeroNotEqual:
		d.push(ntZeroNotEqual, ntExpression)

	case tokCheckSequenceVerify, tokCheckLockTimeVerify:
		n, ok := d.next()
		if !ok || n.kind != tokNum {
			if ok {
				d.pos--
			}
			return d.unexpected("a lock time")
		}
		if t.kind == tokCheckSequenceVerify {
			return d.reduce(Older{LockTime: n.num})
		}
		return d.reduce(After{LockTime: n.num})

	case tokEqual:
		h, ok := d.next()
		if !ok {
			return d.unexpected("a hash or threshold")
		}
		switch h.kind {
		case tokHash32, tokHash20:
			hash, err := d.hash(h)
			if err != nil {
				return err
			}
			return d.reduce(hash)
		case tokNum:
			d.expect = append(d.expect,
				expectation{nt: ntThreshW, k: int(h.num)})
			return nil
		}
		d.pos--
		return d.unexpected("a hash or threshold")

	case tokCheckMultiSig:
		return d.multi()

	case tokNum:
		switch t.num {
		case 0:
			return d.reduce(False{})
		case 1:
			return d.reduce(True{})
		}
		d.pos--
		return d.unexpected("a fragment")

	case tokEndIf:
		d.push(ntEndIf, ntMaybeAndV, ntExpression)

	case tokBoolAnd:
		d.push(ntAndB, ntExpression, ntWExpression)

	case tokBoolOr:
		d.push(ntOrB, ntExpression, ntWExpression)

	default:
		d.pos--
		return d.unexpected("a fragment")
	}
	return nil
}

// verifyEqual handles VERIFY EQUAL, the reversed EQUALVERIFY ending pk_h,
// v: wrapped hash locks and v: wrapped thresholds.
func (d *decoder) verifyEqual() error {
	t, ok := d.next()
	if !ok {
		return d.unexpected("a hash or threshold")
	}
	switch t.kind {
	case tokHash20:
		var h [20]byte
		copy(h[:], t.data)
		if n, ok := d.peek(); ok && n.kind == tokHash160 {
			if d.pos+1 < len(d.tokens) &&
				d.tokens[d.pos+1].kind == tokDup {

				d.pos += 2
				return d.reduce(PkH{Hash: h})
			}
		}
		hash, err := d.hash(t)
		if err != nil {
			return err
		}
		d.push(ntVerify)
		return d.reduce(hash)

	case tokHash32:
		hash, err := d.hash(t)
		if err != nil {
			return err
		}
		d.push(ntVerify)
		return d.reduce(hash)

	case tokNum:
		d.push(ntVerify)
		d.expect = append(d.expect, expectation{nt: ntThreshW, k: int(t.num)})
		return nil
	}
	d.pos--
	return d.unexpected("a hash or threshold")
}

// hash consumes the rest of a hash lock whose hash token h was just read.
func (d *decoder) hash(h token) (Terminal, error) {
	n, ok := d.peek()
	if !ok {
		return nil, d.unexpected("a hash opcode")
	}
	if h.kind == tokHash32 {
		var hash [32]byte
		copy(hash[:], h.data)
		switch n.kind {
		case tokSha256:
			return Sha256{Hash: hash}, d.hashTail(tokSha256)
		case tokHash256:
			return Hash256{Hash: hash}, d.hashTail(tokHash256)
		}
		return nil, d.unexpected("SHA256 or HASH256")
	}

	var hash [20]byte
	copy(hash[:], h.data)
	switch n.kind {
	case tokRipemd160:
		return Ripemd160{Hash: hash}, d.hashTail(tokRipemd160)
	case tokHash160:
		return Hash160{Hash: hash}, d.hashTail(tokHash160)
	}
	return nil, d.unexpected("RIPEMD160 or HASH160")
}

// multi consumes <k> <key>... <n> after a CHECKMULTISIG.
func (d *decoder) multi() error {
	n, ok := d.next()
	if !ok || n.kind != tokNum {
		if ok {
			d.pos--
		}
		return d.unexpected("the number of keys")
	}
	if n.num > multisigMaxKeys {
		return parseError(ErrTooManyKeys, n.offset, fmt.Sprintf(
			"CHECKMULTISIG with %d keys, at most %d are allowed",
			n.num, multisigMaxKeys))
	}

	keys := make([]Key, n.num)
	for i := len(keys) - 1; i >= 0; i-- {
		t, ok := d.next()
		if !ok || t.kind != tokPubKey {
			if ok {
				d.pos--
			}
			return d.unexpected("a key")
		}
		key, err := d.p.KeyDecoder(t.data)
		if err != nil {
			return parseError(ErrInvalidKey, t.offset, fmt.Sprintf(
				"invalid key %v: %v", t, err))
		}
		keys[i] = key
	}

	k, ok := d.next()
	if !ok || k.kind != tokNum {
		if ok {
			d.pos--
		}
		return d.unexpected("the threshold")
	}
	return d.reduce(ThreshM{K: int(k.num), Keys: keys})
}
