package miniscript

import (
	"fmt"
	"io"
	"strings"
)

const (
	// maxStandardP2WSHScriptSize is the maximum size in bytes of a
	// standard witnessScript.
	maxStandardP2WSHScriptSize = 3600

	// maxOpsPerScript is the maximum number of non-push operations per
	// script.
	maxOpsPerScript = 201

	// multisigMaxKeys is the maximum number of keys in a multisig.
	multisigMaxKeys = 20

	// DefaultMaxDepth is the default bound on fragment nesting for every
	// way of constructing a Miniscript.
	DefaultMaxDepth = 402
)

// Miniscript is a type checked fragment.  Values are only created by
// FromTerminal (directly or through the parsers) and never change
// afterwards.
type Miniscript struct {
	Node Terminal

	ty    Type
	ext   ExtData
	depth int
}

// FromTerminal type checks t, whose children are already checked, and
// returns the resulting node.  Nesting is bounded by DefaultMaxDepth.
func FromTerminal(t Terminal) (*Miniscript, error) {
	return fromTerminal(t, DefaultMaxDepth)
}

func fromTerminal(t Terminal, maxDepth int) (*Miniscript, error) {
	depth := 1
	for _, sub := range t.children() {
		if sub.depth+1 > depth {
			depth = sub.depth + 1
		}
	}
	if depth > maxDepth {
		return nil, parseError(ErrMaxDepthExceeded, -1, fmt.Sprintf(
			"fragment nesting depth %d exceeds the maximum of %d",
			depth, maxDepth))
	}

	corr, err := typeCheck[Correctness](t,
		func(sub *Miniscript) (Correctness, bool) {
			return sub.ty.Corr, true
		})
	if err != nil {
		log.Debugf("Correctness check failed: %v", err)
		return nil, err
	}
	mall, err := typeCheck[Malleability](t,
		func(sub *Miniscript) (Malleability, bool) {
			return sub.ty.Mall, true
		})
	if err != nil {
		log.Debugf("Malleability check failed: %v", err)
		return nil, err
	}
	ext, err := typeCheck[ExtData](t,
		func(sub *Miniscript) (ExtData, bool) {
			return sub.ext, true
		})
	if err != nil {
		log.Debugf("ExtData check failed: %v", err)
		return nil, err
	}

	ty := Type{Corr: corr, Mall: mall}
	ty.sanityChecks()

	return &Miniscript{Node: t, ty: ty, ext: ext, depth: depth}, nil
}

// Type returns the checked type of the node.
func (m *Miniscript) Type() Type {
	return m.ty
}

// Ext returns the cost data of the node.
func (m *Miniscript) Ext() ExtData {
	return m.ext
}

// Depth returns the nesting depth of the node; a leaf has depth 1.
func (m *Miniscript) Depth() int {
	return m.depth
}

// String returns the canonical text form.
func (m *Miniscript) String() string {
	return terminalString(m.Node)
}

// ScriptLen returns the length in bytes of the compiled script.
func (m *Miniscript) ScriptLen() int {
	return m.ext.PkCost
}

// MaxOpCount returns the maximum number of ops executed by a satisfaction,
// counting the keys of executed CHECKMULTISIGs.  Unsatisfiable fragments
// report their static count.
func (m *Miniscript) MaxOpCount() int {
	if m.ext.OpsCountSat.Valid {
		return m.ext.OpsCountSat.Value
	}
	return m.ext.OpsCountStatic
}

func (m *Miniscript) isValid() error {
	if m.ScriptLen() > maxStandardP2WSHScriptSize {
		return analysisError(ErrScriptTooLarge, m.String(), fmt.Sprintf(
			"the script size is %v, which is larger than the "+
				"maximum standard P2WSH script size of %v",
			m.ScriptLen(), maxStandardP2WSHScriptSize))
	}
	return nil
}

// IsValidTopLevel checks whether this node is valid as a script on its own.
func (m *Miniscript) IsValidTopLevel() error {
	if err := m.isValid(); err != nil {
		return err
	}

	// Top-level expression must be of type "B".
	if m.ty.Corr.Base != BaseB {
		return analysisError(ErrNotTopLevel, m.String(), fmt.Sprintf(
			"expression %q expected to have type B, but is type %v",
			m.String(), m.ty.Corr.Base))
	}
	return nil
}

// validSatisfactions checks that a satisfaction never exceeds the op limit.
func (m *Miniscript) validSatisfactions() error {
	if err := m.isValid(); err != nil {
		return err
	}
	if m.MaxOpCount() > maxOpsPerScript {
		return analysisError(ErrTooManyOps, m.String(), fmt.Sprintf(
			"the script requires a maximum number of %d ops, "+
				"which is larger than the consensus limit of %d",
			m.MaxOpCount(), maxOpsPerScript))
	}
	return nil
}

// IsSane checks whether this node is safe as a script on its own: valid at
// the top level, within the op limit, non-malleable and requiring a
// signature.
func (m *Miniscript) IsSane() error {
	if err := m.IsValidTopLevel(); err != nil {
		return err
	}
	if err := m.validSatisfactions(); err != nil {
		return err
	}
	if err := m.CheckNonMalleable(); err != nil {
		return err
	}
	if !m.ty.Mall.Safe {
		return analysisError(ErrNoSignature, m.String(),
			"does not need signature")
	}
	return nil
}

// CheckNonMalleable returns nil if a non-malleable satisfaction always
// exists.  Otherwise it reports the innermost malleable fragment, as
// ErrNoStrongChild for a disjunction none of whose children requires a
// signature and ErrThresholdNotStrong for a threshold with too few such
// children.
func (m *Miniscript) CheckNonMalleable() error {
	if m.ty.Mall.NonMalleable {
		return nil
	}
	for _, sub := range m.Node.children() {
		if !sub.ty.Mall.NonMalleable {
			return sub.CheckNonMalleable()
		}
	}

	frag := m.String()
	switch t := m.Node.(type) {
	case OrB, OrD, OrC, OrI, AndOr:
		strong := false
		for _, sub := range t.children() {
			strong = strong || sub.ty.Mall.Safe
		}
		if !strong {
			return analysisError(ErrNoStrongChild, frag, fmt.Sprintf(
				"fragment %q requires a signature on at least "+
					"one branch to be non-malleable", frag))
		}

	case Thresh:
		safe := 0
		for _, sub := range t.Subs {
			if sub.ty.Mall.Safe {
				safe++
			}
		}
		if n := len(t.Subs); safe < n-t.K {
			return analysisError(ErrThresholdNotStrong, frag,
				fmt.Sprintf("fragment %q has %d of %d children "+
					"requiring a signature, need at least %d",
					frag, safe, n, n-t.K))
		}
	}
	return analysisError(ErrMalleable, frag,
		fmt.Sprintf("fragment %q is malleable", frag))
}

// Keys returns the keys of the node in script order.  Keys only referenced
// by hash are not included.
func (m *Miniscript) Keys() []Key {
	var keys []Key
	var walk func(*Miniscript)
	walk = func(n *Miniscript) {
		switch t := n.Node.(type) {
		case Pk:
			keys = append(keys, t.Key)
		case ThreshM:
			keys = append(keys, t.Keys...)
		}
		for _, sub := range n.Node.children() {
			walk(sub)
		}
	}
	walk(m)
	return keys
}

// Substitute returns a copy of the node with every key replaced by the
// result of lookup, type checking the rebuilt tree.
func (m *Miniscript) Substitute(lookup func(Key) (Key, error)) (*Miniscript,
	error) {

	sub := func(n *Miniscript) (*Miniscript, error) {
		return n.Substitute(lookup)
	}
	subs := func(ns []*Miniscript) ([]*Miniscript, error) {
		res := make([]*Miniscript, len(ns))
		for i, n := range ns {
			var err error
			if res[i], err = sub(n); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	var t Terminal
	switch node := m.Node.(type) {
	case Pk:
		key, err := lookup(node.Key)
		if err != nil {
			return nil, err
		}
		t = Pk{Key: key}

	case ThreshM:
		keys := make([]Key, len(node.Keys))
		for i, k := range node.Keys {
			var err error
			if keys[i], err = lookup(k); err != nil {
				return nil, err
			}
		}
		t = ThreshM{K: node.K, Keys: keys}

	case Thresh:
		children, err := subs(node.Subs)
		if err != nil {
			return nil, err
		}
		t = Thresh{K: node.K, Subs: children}

	default:
		children, err := subs(node.children())
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return m, nil
		}
		t = replaceChildren(node, children)
	}
	return FromTerminal(t)
}

// replaceChildren returns t with its children replaced, in script order.
func replaceChildren(t Terminal, c []*Miniscript) Terminal {
	switch t.(type) {
	case Alt:
		return Alt{Sub: c[0]}
	case Swap:
		return Swap{Sub: c[0]}
	case Check:
		return Check{Sub: c[0]}
	case DupIf:
		return DupIf{Sub: c[0]}
	case Verify:
		return Verify{Sub: c[0]}
	case NonZero:
		return NonZero{Sub: c[0]}
	case ZeroNotEqual:
		return ZeroNotEqual{Sub: c[0]}
	case AndV:
		return AndV{X: c[0], Y: c[1]}
	case AndB:
		return AndB{X: c[0], Y: c[1]}
	case AndOr:
		return AndOr{X: c[0], Y: c[1], Z: c[2]}
	case OrB:
		return OrB{X: c[0], Z: c[1]}
	case OrD:
		return OrD{X: c[0], Z: c[1]}
	case OrC:
		return OrC{X: c[0], Z: c[1]}
	case OrI:
		return OrI{X: c[0], Z: c[1]}
	}
	return t
}

// nodeLabel is the name of a single node in DrawTree, without its children.
func nodeLabel(m *Miniscript) string {
	switch t := m.Node.(type) {
	case Alt, Swap, Check, DupIf, Verify, NonZero, ZeroNotEqual:
		return fragmentName(t)
	case AndV, AndB, AndOr, OrB, OrD, OrC, OrI:
		return fragmentName(t)
	case Thresh:
		return fmt.Sprintf("%s(%d)", fThresh, t.K)
	}
	return m.String()
}

func (m *Miniscript) drawTree(w io.Writer, indent string) {
	label := nodeLabel(m)
	_, _ = fmt.Fprintf(w, "%s [%s]", label, m.ty)
	if m.ext.HasVerifyForm {
		_, _ = fmt.Fprint(w, " [v]")
	}
	_, _ = fmt.Fprintln(w)

	children := m.Node.children()
	for i, arg := range children {
		mark := ""
		delim := ""
		if i == len(children)-1 {
			mark = "└──"
		} else {
			mark = "├──"
			delim = "|"
		}
		_, _ = fmt.Fprintf(w, "%s%s", indent, mark)
		padLen := len([]rune(nodeLabel(arg))) + len([]rune(mark)) -
			1 - len(delim)
		if padLen < 0 {
			padLen = 0
		}
		padding := strings.Repeat(" ", padLen)
		arg.drawTree(w, indent+delim+padding)
	}
}

// DrawTree returns a drawing of the node tree, one line per fragment with
// its type.
func (m *Miniscript) DrawTree() string {
	var b strings.Builder
	m.drawTree(&b, "")
	return b.String()
}
