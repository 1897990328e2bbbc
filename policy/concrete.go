package policy

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/miniscript/miniscript"
	"github.com/btcsuite/miniscript/tree"
)

// ConcreteKind identifies the variant of a Concrete policy.
type ConcreteKind uint8

// These constants define the concrete policy variants.
const (
	// ConcreteUnsatisfiable is UNSATISFIABLE.
	ConcreteUnsatisfiable ConcreteKind = iota

	// ConcreteTrivial is TRIVIAL.
	ConcreteTrivial

	// ConcreteKey is pk(key).
	ConcreteKey

	// ConcreteAfter is after(n).
	ConcreteAfter

	// ConcreteOlder is older(n).
	ConcreteOlder

	// ConcreteSha256 is sha256(hash).
	ConcreteSha256

	// ConcreteHash256 is hash256(hash).
	ConcreteHash256

	// ConcreteRipemd160 is ripemd160(hash).
	ConcreteRipemd160

	// ConcreteHash160 is hash160(hash).
	ConcreteHash160

	// ConcreteAnd is and(X,Y).
	ConcreteAnd

	// ConcreteOr is or(p@X,q@Y).
	ConcreteOr

	// ConcreteThreshold is thresh(k,X1,...,Xn).
	ConcreteThreshold
)

// Branch is one weighted alternative of an or.
type Branch struct {
	// Prob is the relative likelihood of the branch being used to spend.
	Prob uint32

	Policy *Concrete
}

// Concrete is a spending policy as written by a user.  Unlike Semantic it
// keeps the structure and branch weights the user chose.
type Concrete struct {
	Kind ConcreteKind

	// Key is set for ConcreteKey.
	Key miniscript.Key

	// LockTime is set for ConcreteAfter and ConcreteOlder.
	LockTime uint32

	// Hash is set for the four hash locks.
	Hash []byte

	// Subs holds the operands of ConcreteAnd and ConcreteThreshold.
	Subs []*Concrete

	// K is set for ConcreteThreshold.
	K int

	// Branches holds the alternatives of ConcreteOr.
	Branches []Branch
}

// String renders the policy.  Branch weights other than 1 are printed with
// the p@ prefix.
func (c *Concrete) String() string {
	var b strings.Builder
	c.write(&b)
	return b.String()
}

func (c *Concrete) write(b *strings.Builder) {
	switch c.Kind {
	case ConcreteUnsatisfiable:
		b.WriteString("UNSATISFIABLE")
	case ConcreteTrivial:
		b.WriteString("TRIVIAL")
	case ConcreteKey:
		fmt.Fprintf(b, "pk(%s)", c.Key)
	case ConcreteAfter:
		fmt.Fprintf(b, "after(%d)", c.LockTime)
	case ConcreteOlder:
		fmt.Fprintf(b, "older(%d)", c.LockTime)
	case ConcreteSha256:
		fmt.Fprintf(b, "sha256(%x)", c.Hash)
	case ConcreteHash256:
		fmt.Fprintf(b, "hash256(%x)", c.Hash)
	case ConcreteRipemd160:
		fmt.Fprintf(b, "ripemd160(%x)", c.Hash)
	case ConcreteHash160:
		fmt.Fprintf(b, "hash160(%x)", c.Hash)

	case ConcreteAnd:
		b.WriteString("and(")
		writeConcreteList(b, c.Subs)
		b.WriteByte(')')

	case ConcreteThreshold:
		fmt.Fprintf(b, "thresh(%d,", c.K)
		writeConcreteList(b, c.Subs)
		b.WriteByte(')')

	case ConcreteOr:
		b.WriteString("or(")
		for i, br := range c.Branches {
			if i > 0 {
				b.WriteByte(',')
			}
			if br.Prob != 1 {
				fmt.Fprintf(b, "%d@", br.Prob)
			}
			br.Policy.write(b)
		}
		b.WriteByte(')')
	}
}

func writeConcreteList(b *strings.Builder, subs []*Concrete) {
	for i, sub := range subs {
		if i > 0 {
			b.WriteByte(',')
		}
		sub.write(b)
	}
}

// Keys returns the keys of the policy in order of appearance.
func (c *Concrete) Keys() []miniscript.Key {
	var keys []miniscript.Key
	var walk func(*Concrete)
	walk = func(c *Concrete) {
		if c.Kind == ConcreteKey {
			keys = append(keys, c.Key)
		}
		for _, sub := range c.Subs {
			walk(sub)
		}
		for _, br := range c.Branches {
			walk(br.Policy)
		}
	}
	walk(c)
	return keys
}

// Parser holds the settings used to read concrete policies.
type Parser struct {
	// KeyParser turns the argument of pk into a key.
	KeyParser miniscript.KeyParser

	// MaxDepth bounds the nesting of the policy.
	MaxDepth int
}

// NewParser returns a parser accepting hex public keys as well as named
// keys and bounding nesting by miniscript.DefaultMaxDepth.
func NewParser() *Parser {
	return &Parser{
		KeyParser: miniscript.ParseKey,
		MaxDepth:  miniscript.DefaultMaxDepth,
	}
}

// ParseConcrete parses a concrete policy with the default parser settings.
func ParseConcrete(s string) (*Concrete, error) {
	return NewParser().ParseConcrete(s)
}

// ParseConcrete parses a concrete policy.  Scanning errors are returned as
// the tree package reports them.
func (p *Parser) ParseConcrete(s string) (*Concrete, error) {
	t, err := tree.ParseDepth(s, p.MaxDepth)
	if err != nil {
		return nil, err
	}
	c, err := p.FromTree(t)
	if err != nil {
		return nil, err
	}

	log.Tracef("Parsed concrete policy %v", c)
	return c, nil
}

// FromTree builds a concrete policy from an already scanned expression.
func (p *Parser) FromTree(t *tree.Tree) (*Concrete, error) {
	if strings.IndexByte(t.Name, '@') >= 0 {
		return nil, policyError(ErrInvalidProbability, t.Offset,
			"branch weight in %q outside of an or", t.Name)
	}

	switch t.Name {
	case "UNSATISFIABLE", "TRIVIAL":
		if err := arity(t, 0); err != nil {
			return nil, err
		}
		if t.Name == "TRIVIAL" {
			return &Concrete{Kind: ConcreteTrivial}, nil
		}
		return &Concrete{Kind: ConcreteUnsatisfiable}, nil

	case "pk":
		if err := arity(t, 1); err != nil {
			return nil, err
		}
		a, err := leaf(t.Args[0])
		if err != nil {
			return nil, err
		}
		key, err := p.KeyParser(a.Name)
		if err != nil {
			return nil, policyError(ErrInvalidKey, a.Offset,
				"invalid key %q: %v", a.Name, err)
		}
		return &Concrete{Kind: ConcreteKey, Key: key}, nil

	case "after", "older":
		if err := arity(t, 1); err != nil {
			return nil, err
		}
		a, err := leaf(t.Args[0])
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(a.Name, 10, 32)
		if err != nil || a.Name[0] == '+' {
			return nil, policyError(ErrInvalidNumber, a.Offset,
				"invalid lock time %q", a.Name)
		}
		if n == 0 {
			return nil, policyError(ErrZeroTime, a.Offset,
				"%s(0) can never be satisfied", t.Name)
		}
		kind := ConcreteAfter
		if t.Name == "older" {
			kind = ConcreteOlder
		}
		return &Concrete{Kind: kind, LockTime: uint32(n)}, nil

	case "sha256", "hash256", "ripemd160", "hash160":
		return p.hashFromTree(t)

	case "and":
		if err := arity(t, 2); err != nil {
			return nil, err
		}
		subs, err := p.subsFromTree(t.Args)
		if err != nil {
			return nil, err
		}
		return &Concrete{Kind: ConcreteAnd, Subs: subs}, nil

	case "or":
		if err := arity(t, 2); err != nil {
			return nil, err
		}
		branches := make([]Branch, 0, len(t.Args))
		for _, a := range t.Args {
			br, err := p.branchFromTree(a)
			if err != nil {
				return nil, err
			}
			branches = append(branches, br)
		}
		return &Concrete{Kind: ConcreteOr, Branches: branches}, nil

	case "thresh":
		return p.threshFromTree(t)
	}

	return nil, policyError(ErrUnknownFragment, t.Offset,
		"unknown policy fragment %q", t.Name)
}

func (p *Parser) hashFromTree(t *tree.Tree) (*Concrete, error) {
	if err := arity(t, 1); err != nil {
		return nil, err
	}
	a, err := leaf(t.Args[0])
	if err != nil {
		return nil, err
	}

	kind, size := ConcreteSha256, 32
	switch t.Name {
	case "hash256":
		kind = ConcreteHash256
	case "ripemd160":
		kind, size = ConcreteRipemd160, 20
	case "hash160":
		kind, size = ConcreteHash160, 20
	}

	h, err := hex.DecodeString(a.Name)
	if err != nil || len(h) != size {
		return nil, policyError(ErrInvalidHash, a.Offset,
			"invalid %d byte hash %q", size, a.Name)
	}
	return &Concrete{Kind: kind, Hash: h}, nil
}

func (p *Parser) threshFromTree(t *tree.Tree) (*Concrete, error) {
	if len(t.Args) < 2 {
		return nil, policyError(ErrWrongArity, t.Offset,
			"thresh needs a threshold and at least one policy")
	}
	a, err := leaf(t.Args[0])
	if err != nil {
		return nil, err
	}
	k, err := strconv.ParseUint(a.Name, 10, 31)
	if err != nil || a.Name[0] == '+' {
		return nil, policyError(ErrInvalidNumber, a.Offset,
			"invalid threshold %q", a.Name)
	}

	n := len(t.Args) - 1
	switch {
	case k == 0:
		return nil, policyError(ErrZeroThreshold, a.Offset,
			"thresh requires at least one branch")
	case int(k) > n:
		return nil, policyError(ErrOverThreshold, a.Offset,
			"thresh requires %d of only %d branches", k, n)
	}

	subs, err := p.subsFromTree(t.Args[1:])
	if err != nil {
		return nil, err
	}
	return &Concrete{Kind: ConcreteThreshold, K: int(k), Subs: subs}, nil
}

func (p *Parser) subsFromTree(args []*tree.Tree) ([]*Concrete, error) {
	subs := make([]*Concrete, 0, len(args))
	for _, a := range args {
		sub, err := p.FromTree(a)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// branchFromTree reads an or operand with an optional p@ weight prefix.
func (p *Parser) branchFromTree(t *tree.Tree) (Branch, error) {
	i := strings.IndexByte(t.Name, '@')
	if i < 0 {
		sub, err := p.FromTree(t)
		return Branch{Prob: 1, Policy: sub}, err
	}

	prob, err := strconv.ParseUint(t.Name[:i], 10, 32)
	if err != nil || i == 0 || t.Name[0] == '+' || prob == 0 {
		return Branch{}, policyError(ErrInvalidProbability, t.Offset,
			"invalid branch weight %q", t.Name[:i])
	}

	stripped := *t
	stripped.Name = t.Name[i+1:]
	stripped.Offset = t.Offset + i + 1
	sub, err := p.FromTree(&stripped)
	if err != nil {
		return Branch{}, err
	}
	return Branch{Prob: uint32(prob), Policy: sub}, nil
}

func arity(t *tree.Tree, n int) error {
	if len(t.Args) != n {
		return policyError(ErrWrongArity, t.Offset,
			"%s takes %d arguments, got %d", t.Name, n, len(t.Args))
	}
	return nil
}

func leaf(t *tree.Tree) (*tree.Tree, error) {
	if len(t.Args) != 0 {
		return nil, policyError(ErrWrongArity, t.Offset,
			"unexpected arguments to %q", t.Name)
	}
	return t, nil
}
