package policy

import (
	"fmt"

	"github.com/btcsuite/miniscript/miniscript"
)

// Lift projects a miniscript onto the semantic policy it enforces.  The
// result is normalized.  A miniscript with a branch that can only be
// satisfied by mixing height and time based lock times is rejected with
// ErrMixedTimeLocks.
func Lift(m *miniscript.Miniscript) (*Semantic, error) {
	s := liftTerminal(m.Node).Normalized()
	if err := s.CheckTimeLocks(); err != nil {
		return nil, err
	}

	log.Debugf("Lifted %v to %v", m, s)
	return s, nil
}

func liftTerminal(t miniscript.Terminal) *Semantic {
	switch t := t.(type) {
	case miniscript.True:
		return trivial
	case miniscript.False:
		return unsatisfiable
	case miniscript.Pk:
		return &Semantic{Kind: SemanticKey, Key: t.Key}
	case miniscript.PkH:
		return &Semantic{Kind: SemanticKeyHash, KeyHash: t.Hash}
	case miniscript.After:
		return &Semantic{Kind: SemanticAfter, LockTime: t.LockTime}
	case miniscript.Older:
		return &Semantic{Kind: SemanticOlder, LockTime: t.LockTime}
	case miniscript.Sha256:
		return &Semantic{Kind: SemanticSha256, Hash: t.Hash[:]}
	case miniscript.Hash256:
		return &Semantic{Kind: SemanticHash256, Hash: t.Hash[:]}
	case miniscript.Ripemd160:
		return &Semantic{Kind: SemanticRipemd160, Hash: t.Hash[:]}
	case miniscript.Hash160:
		return &Semantic{Kind: SemanticHash160, Hash: t.Hash[:]}

	// Wrappers change how a fragment is enforced, not what it requires.
	case miniscript.Alt:
		return liftTerminal(t.Sub.Node)
	case miniscript.Swap:
		return liftTerminal(t.Sub.Node)
	case miniscript.Check:
		return liftTerminal(t.Sub.Node)
	case miniscript.DupIf:
		return liftTerminal(t.Sub.Node)
	case miniscript.Verify:
		return liftTerminal(t.Sub.Node)
	case miniscript.NonZero:
		return liftTerminal(t.Sub.Node)
	case miniscript.ZeroNotEqual:
		return liftTerminal(t.Sub.Node)

	case miniscript.AndV:
		return liftAll(2, t.X, t.Y)
	case miniscript.AndB:
		return liftAll(2, t.X, t.Y)
	case miniscript.AndOr:
		return NewThreshold(1, liftAll(2, t.X, t.Y),
			liftTerminal(t.Z.Node))
	case miniscript.OrB:
		return liftAll(1, t.X, t.Z)
	case miniscript.OrD:
		return liftAll(1, t.X, t.Z)
	case miniscript.OrC:
		return liftAll(1, t.X, t.Z)
	case miniscript.OrI:
		return liftAll(1, t.X, t.Z)
	case miniscript.Thresh:
		return liftAll(t.K, t.Subs...)

	case miniscript.ThreshM:
		subs := make([]*Semantic, len(t.Keys))
		for i, key := range t.Keys {
			subs[i] = &Semantic{Kind: SemanticKey, Key: key}
		}
		return NewThreshold(t.K, subs...)
	}

	panic(fmt.Sprintf("unknown terminal %T", t))
}

func liftAll(k int, subs ...*miniscript.Miniscript) *Semantic {
	lifted := make([]*Semantic, len(subs))
	for i, sub := range subs {
		lifted[i] = liftTerminal(sub.Node)
	}
	return NewThreshold(k, lifted...)
}

// Lift projects the policy onto its semantics, dropping branch weights.
// The result is normalized.  Like Lift for miniscripts it rejects branches
// mixing height and time based lock times.
func (c *Concrete) Lift() (*Semantic, error) {
	s := c.lift().Normalized()
	if err := s.CheckTimeLocks(); err != nil {
		return nil, err
	}

	log.Debugf("Lifted %v to %v", c, s)
	return s, nil
}

func (c *Concrete) lift() *Semantic {
	switch c.Kind {
	case ConcreteUnsatisfiable:
		return unsatisfiable
	case ConcreteTrivial:
		return trivial
	case ConcreteKey:
		return &Semantic{Kind: SemanticKey, Key: c.Key}
	case ConcreteAfter:
		return &Semantic{Kind: SemanticAfter, LockTime: c.LockTime}
	case ConcreteOlder:
		return &Semantic{Kind: SemanticOlder, LockTime: c.LockTime}
	case ConcreteSha256:
		return &Semantic{Kind: SemanticSha256, Hash: c.Hash}
	case ConcreteHash256:
		return &Semantic{Kind: SemanticHash256, Hash: c.Hash}
	case ConcreteRipemd160:
		return &Semantic{Kind: SemanticRipemd160, Hash: c.Hash}
	case ConcreteHash160:
		return &Semantic{Kind: SemanticHash160, Hash: c.Hash}

	case ConcreteAnd, ConcreteThreshold:
		subs := make([]*Semantic, len(c.Subs))
		for i, sub := range c.Subs {
			subs[i] = sub.lift()
		}
		k := c.K
		if c.Kind == ConcreteAnd {
			k = len(subs)
		}
		return NewThreshold(k, subs...)

	case ConcreteOr:
		subs := make([]*Semantic, len(c.Branches))
		for i, br := range c.Branches {
			subs[i] = br.Policy.lift()
		}
		return NewThreshold(1, subs...)
	}

	panic(fmt.Sprintf("unknown concrete policy kind %d", c.Kind))
}
