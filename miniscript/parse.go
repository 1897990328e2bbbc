package miniscript

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Parser holds the settings shared by the text, tree and script parsers.
type Parser struct {
	// KeyParser turns key arguments of the text form into keys.
	KeyParser KeyParser

	// KeyDecoder turns 33 byte pushes of a script into keys.
	KeyDecoder KeyDecoder

	// MaxDepth bounds the nesting of fragments.
	MaxDepth int
}

// NewParser returns a parser accepting hex public keys as well as named
// keys, decoding compressed public keys from scripts and bounding nesting
// by DefaultMaxDepth.
func NewParser() *Parser {
	return &Parser{
		KeyParser:  ParseKey,
		KeyDecoder: DecodePubKey,
		MaxDepth:   DefaultMaxDepth,
	}
}

// Parse parses a miniscript in text form with the default parser settings.
func Parse(s string) (*Miniscript, error) {
	return NewParser().Parse(s)
}

// Parse parses a miniscript in text form.  Both the colon form of wrappers
// (av:pk(A)) and the explicit form (a(v(pk(A)))) are accepted.  The result
// is type checked but not required to be valid at the top level; see
// IsValidTopLevel.
func (p *Parser) Parse(s string) (*Miniscript, error) {
	tp := textParser{p: p, input: s}
	m, err := tp.expr(0)
	if err != nil {
		return nil, err
	}
	if tp.pos < len(s) {
		return nil, parseError(ErrUnexpected, tp.pos, fmt.Sprintf(
			"unexpected %q after end of expression", s[tp.pos]))
	}

	log.Tracef("Parsed miniscript %v with type %v", m, m.ty)
	return m, nil
}

// ParseKey is a KeyParser accepting hex encoded compressed public keys and
// falling back to named keys for anything else.
func ParseKey(s string) (Key, error) {
	if len(s) == 2*pubKeyLen {
		if _, err := hex.DecodeString(s); err == nil {
			return ParsePubKey(s)
		}
	}
	return ParseNamedKey(s)
}

// argKind tells whether a fragment argument is a leaf value or a nested
// expression.
type argKind uint8

const (
	argLeaf argKind = iota
	argExpr
)

// fragmentSig describes the arguments of a fragment.  Variadic fragments
// take at least one argument of kind rest after the fixed ones.
type fragmentSig struct {
	fixed    []argKind
	rest     argKind
	variadic bool
}

func (s fragmentSig) kind(i int) argKind {
	if i < len(s.fixed) {
		return s.fixed[i]
	}
	return s.rest
}

var (
	leaf1 = fragmentSig{fixed: []argKind{argLeaf}}
	expr1 = fragmentSig{fixed: []argKind{argExpr}}
	expr2 = fragmentSig{fixed: []argKind{argExpr, argExpr}}
	expr3 = fragmentSig{fixed: []argKind{argExpr, argExpr, argExpr}}
)

// fragmentSigs holds every fragment name of the text form, including the
// explicit wrapper spellings.
var fragmentSigs = map[string]fragmentSig{
	"0":        {},
	"1":        {},
	fPk:        leaf1,
	fPkH:       leaf1,
	fAfter:     leaf1,
	fOlder:     leaf1,
	fSha256:    leaf1,
	fHash256:   leaf1,
	fRipemd160: leaf1,
	fHash160:   leaf1,
	fAndV:      expr2,
	fAndB:      expr2,
	fAndN:      expr2,
	fAndOr:     expr3,
	fOrB:       expr2,
	fOrD:       expr2,
	fOrC:       expr2,
	fOrI:       expr2,
	fThresh: {
		fixed: []argKind{argLeaf}, rest: argExpr, variadic: true,
	},
	fThreshM: {
		fixed: []argKind{argLeaf}, rest: argLeaf, variadic: true,
	},
	"a": expr1, "s": expr1, "c": expr1, "d": expr1, "v": expr1,
	"j": expr1, "n": expr1, "t": expr1, "u": expr1, "l": expr1,
}

// arg is one parsed argument of a fragment.
type arg struct {
	text   string
	node   *Miniscript
	offset int
}

// textParser is a recursive descent parser over the characters of a
// miniscript.
type textParser struct {
	p     *Parser
	input string
	pos   int
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}

// name scans a fragment name or wrapper prefix.
func (tp *textParser) name() string {
	start := tp.pos
	for tp.pos < len(tp.input) && isNameChar(tp.input[tp.pos]) {
		tp.pos++
	}
	return tp.input[start:tp.pos]
}

func (tp *textParser) peek() (byte, bool) {
	if tp.pos >= len(tp.input) {
		return 0, false
	}
	return tp.input[tp.pos], true
}

func (tp *textParser) unexpected(want string) error {
	c, ok := tp.peek()
	if !ok {
		return parseError(ErrUnterminated, tp.pos, fmt.Sprintf(
			"unexpected end of input, expected %s", want))
	}
	return parseError(ErrUnexpected, tp.pos, fmt.Sprintf(
		"unexpected %q, expected %s", c, want))
}

// expr parses one fragment including its wrapper prefix.
func (tp *textParser) expr(depth int) (*Miniscript, error) {
	if depth >= tp.p.MaxDepth {
		return nil, parseError(ErrMaxDepthExceeded, tp.pos, fmt.Sprintf(
			"fragment nesting exceeds the maximum of %d",
			tp.p.MaxDepth))
	}

	start := tp.pos
	name := tp.name()
	var wrappers string
	if c, ok := tp.peek(); ok && c == ':' {
		wrappers = name
		tp.pos++
		name = tp.name()
		if c, ok := tp.peek(); ok && c == ':' {
			return nil, parseError(ErrMultipleColons, tp.pos,
				fmt.Sprintf("fragment %q has more than one "+
					"wrapper separator", tp.input[start:tp.pos]))
		}
		if wrappers == "" {
			return nil, parseError(ErrUnexpected, start,
				"empty wrapper prefix")
		}
	}
	if name == "" {
		return nil, tp.unexpected("a fragment name")
	}
	nameOffset := tp.pos - len(name)

	sig, ok := fragmentSigs[name]
	if !ok {
		return nil, parseError(ErrUnknownFragment, nameOffset,
			fmt.Sprintf("unknown fragment %q", name))
	}

	var args []arg
	if c, ok := tp.peek(); ok && c == '(' {
		tp.pos++
		for i := 0; ; i++ {
			if !sig.variadic && i >= len(sig.fixed) {
				return nil, parseError(ErrWrongArity, tp.pos,
					fmt.Sprintf("%s takes %d arguments",
						name, len(sig.fixed)))
			}
			a, err := tp.arg(sig.kind(i), depth)
			if err != nil {
				return nil, err
			}
			args = append(args, a)

			c, ok := tp.peek()
			if !ok {
				return nil, parseError(ErrUnterminated, tp.pos,
					fmt.Sprintf("expression %q does not "+
						"terminate with )", name))
			}
			tp.pos++
			if c == ')' {
				break
			}
			if c != ',' {
				tp.pos--
				return nil, tp.unexpected("',' or ')'")
			}
		}
	}

	m, err := tp.p.build(name, nameOffset, args)
	if err != nil {
		return nil, err
	}
	return tp.p.wrap(m, wrappers, start)
}

// arg parses one argument of the given kind.
func (tp *textParser) arg(kind argKind, depth int) (arg, error) {
	start := tp.pos
	if kind == argExpr {
		m, err := tp.expr(depth + 1)
		if err != nil {
			return arg{}, err
		}
		return arg{node: m, offset: start}, nil
	}

	end := strings.IndexAny(tp.input[start:], "(,)")
	if end < 0 {
		tp.pos = len(tp.input)
		return arg{}, tp.unexpected("',' or ')'")
	}
	tp.pos += end
	if tp.input[tp.pos] == '(' {
		return arg{}, tp.unexpected("a leaf argument")
	}
	return arg{text: tp.input[start:tp.pos], offset: start}, nil
}

// wrap applies a colon wrapper prefix to m, innermost letter last.
func (p *Parser) wrap(m *Miniscript, wrappers string,
	offset int) (*Miniscript, error) {

	for i := len(wrappers) - 1; i >= 0; i-- {
		t, err := p.wrapper(wrappers[i], m, offset+i)
		if err != nil {
			return nil, err
		}
		if m, err = p.check(t, offset); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// wrapper returns the fragment that wrapper letter w makes of m.
func (p *Parser) wrapper(w byte, m *Miniscript, offset int) (Terminal,
	error) {

	switch w {
	case 'a':
		return Alt{Sub: m}, nil
	case 's':
		return Swap{Sub: m}, nil
	case 'c':
		return Check{Sub: m}, nil
	case 'd':
		return DupIf{Sub: m}, nil
	case 'v':
		return Verify{Sub: m}, nil
	case 'j':
		return NonZero{Sub: m}, nil
	case 'n':
		return ZeroNotEqual{Sub: m}, nil
	case 't':
		one, err := p.check(True{}, offset)
		if err != nil {
			return nil, err
		}
		return AndV{X: m, Y: one}, nil
	case 'u':
		zero, err := p.check(False{}, offset)
		if err != nil {
			return nil, err
		}
		return OrI{X: m, Z: zero}, nil
	case 'l':
		zero, err := p.check(False{}, offset)
		if err != nil {
			return nil, err
		}
		return OrI{X: zero, Z: m}, nil
	}
	return nil, parseError(ErrUnknownWrapper, offset, fmt.Sprintf(
		"unknown wrapper %q", w))
}

// check type checks t, reporting errors at offset.
func (p *Parser) check(t Terminal, offset int) (*Miniscript, error) {
	m, err := fromTerminal(t, p.MaxDepth)
	if err != nil {
		if e, ok := err.(Error); ok && e.Offset < 0 {
			e.Offset = offset
			return nil, e
		}
		return nil, err
	}
	return m, nil
}

// build constructs and checks the fragment name from its parsed arguments.
func (p *Parser) build(name string, offset int, args []arg) (*Miniscript,
	error) {

	sig := fragmentSigs[name]
	switch {
	case !sig.variadic && len(args) != len(sig.fixed),
		sig.variadic && len(args) <= len(sig.fixed):

		return nil, parseError(ErrWrongArity, offset, fmt.Sprintf(
			"%s does not take %d arguments", name, len(args)))
	}

	var (
		t   Terminal
		err error
	)
	switch name {
	case "0":
		t = False{}
	case "1":
		t = True{}

	case fPk:
		var key Key
		if key, err = p.key(args[0]); err == nil {
			t = Pk{Key: key}
		}
	case fPkH:
		var h [20]byte
		if b, herr := hex.DecodeString(args[0].text); herr == nil &&
			len(b) == 20 {

			copy(h[:], b)
			t = PkH{Hash: h}
			break
		}
		var key Key
		if key, err = p.key(args[0]); err == nil {
			t = PkH{Hash: key.Hash160()}
		}
	case fAfter, fOlder:
		var n uint32
		if n, err = parseLockTime(args[0]); err == nil {
			if name == fAfter {
				t = After{LockTime: n}
			} else {
				t = Older{LockTime: n}
			}
		}
	case fSha256, fHash256:
		var h [32]byte
		if err = parseHash(args[0], h[:]); err == nil {
			if name == fSha256 {
				t = Sha256{Hash: h}
			} else {
				t = Hash256{Hash: h}
			}
		}
	case fRipemd160, fHash160:
		var h [20]byte
		if err = parseHash(args[0], h[:]); err == nil {
			if name == fRipemd160 {
				t = Ripemd160{Hash: h}
			} else {
				t = Hash160{Hash: h}
			}
		}

	case fAndV:
		if isTrue(args[1].node) {
			return nil, parseError(ErrNonCanonicalTrue, offset,
				"and_v(X,1) must be written as t:X")
		}
		t = AndV{X: args[0].node, Y: args[1].node}
	case fAndB:
		t = AndB{X: args[0].node, Y: args[1].node}
	case fAndN:
		var zero *Miniscript
		if zero, err = p.check(False{}, offset); err == nil {
			t = AndOr{X: args[0].node, Y: args[1].node, Z: zero}
		}
	case fAndOr:
		t = AndOr{X: args[0].node, Y: args[1].node, Z: args[2].node}
	case fOrB:
		t = OrB{X: args[0].node, Z: args[1].node}
	case fOrD:
		t = OrD{X: args[0].node, Z: args[1].node}
	case fOrC:
		t = OrC{X: args[0].node, Z: args[1].node}
	case fOrI:
		t = OrI{X: args[0].node, Z: args[1].node}

	case fThresh:
		var k int
		if k, err = parseThreshold(args[0]); err == nil {
			subs := make([]*Miniscript, 0, len(args)-1)
			for _, a := range args[1:] {
				subs = append(subs, a.node)
			}
			t = Thresh{K: k, Subs: subs}
		}
	case fThreshM:
		if len(args)-1 > multisigMaxKeys {
			return nil, parseError(ErrTooManyKeys, offset,
				fmt.Sprintf("thresh_m has %d keys, at most %d "+
					"are allowed", len(args)-1,
					multisigMaxKeys))
		}
		var k int
		if k, err = parseThreshold(args[0]); err != nil {
			break
		}
		keys := make([]Key, 0, len(args)-1)
		for _, a := range args[1:] {
			var key Key
			if key, err = p.key(a); err != nil {
				break
			}
			keys = append(keys, key)
		}
		if err == nil {
			t = ThreshM{K: k, Keys: keys}
		}

	default:
		// Explicit wrapper spelling, e.g. v(pk(A)).
		if t, err = p.wrapper(name[0], args[0].node, offset); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	return p.check(t, offset)
}

func (p *Parser) key(a arg) (Key, error) {
	key, err := p.KeyParser(a.text)
	if err != nil {
		return nil, parseError(ErrInvalidKey, a.offset, fmt.Sprintf(
			"invalid key %q: %v", a.text, err))
	}
	return key, nil
}

func parseLockTime(a arg) (uint32, error) {
	n, err := strconv.ParseUint(a.text, 10, 32)
	if err != nil || a.text == "" || a.text[0] == '+' {
		return 0, parseError(ErrInvalidNumber, a.offset, fmt.Sprintf(
			"invalid lock time %q", a.text))
	}
	return uint32(n), nil
}

func parseThreshold(a arg) (int, error) {
	n, err := strconv.ParseUint(a.text, 10, 31)
	if err != nil || a.text == "" || a.text[0] == '+' {
		return 0, parseError(ErrInvalidNumber, a.offset, fmt.Sprintf(
			"invalid threshold %q", a.text))
	}
	return int(n), nil
}

func parseHash(a arg, h []byte) error {
	b, err := hex.DecodeString(a.text)
	if err != nil || len(b) != len(h) {
		return parseError(ErrInvalidHash, a.offset, fmt.Sprintf(
			"invalid %d byte hash %q", len(h), a.text))
	}
	copy(h, b)
	return nil
}
