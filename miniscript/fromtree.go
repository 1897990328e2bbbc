package miniscript

import (
	"fmt"
	"strings"

	"github.com/btcsuite/miniscript/tree"
)

// FromTree builds a miniscript from an already scanned expression tree with
// the default parser settings.
func FromTree(t *tree.Tree) (*Miniscript, error) {
	return NewParser().FromTree(t)
}

// FromTree builds a miniscript from an already scanned expression tree.  It
// accepts exactly what Parse accepts.
func (p *Parser) FromTree(t *tree.Tree) (*Miniscript, error) {
	return p.fromTree(t, 0)
}

func (p *Parser) fromTree(t *tree.Tree, depth int) (*Miniscript, error) {
	if depth >= p.MaxDepth {
		return nil, parseError(ErrMaxDepthExceeded, t.Offset, fmt.Sprintf(
			"fragment nesting exceeds the maximum of %d", p.MaxDepth))
	}

	name := t.Name
	var wrappers string
	if i := strings.IndexByte(name, ':'); i >= 0 {
		wrappers, name = name[:i], name[i+1:]
		if strings.IndexByte(name, ':') >= 0 {
			return nil, parseError(ErrMultipleColons, t.Offset,
				fmt.Sprintf("fragment %q has more than one "+
					"wrapper separator", t.Name))
		}
		if wrappers == "" {
			return nil, parseError(ErrUnexpected, t.Offset,
				"empty wrapper prefix")
		}
	}
	nameOffset := t.Offset + len(t.Name) - len(name)

	sig, ok := fragmentSigs[name]
	if !ok {
		return nil, parseError(ErrUnknownFragment, nameOffset,
			fmt.Sprintf("unknown fragment %q", name))
	}
	if !sig.variadic && len(t.Args) > len(sig.fixed) {
		return nil, parseError(ErrWrongArity, nameOffset, fmt.Sprintf(
			"%s takes %d arguments", name, len(sig.fixed)))
	}

	args := make([]arg, 0, len(t.Args))
	for i, a := range t.Args {
		if sig.kind(i) == argExpr {
			m, err := p.fromTree(a, depth+1)
			if err != nil {
				return nil, err
			}
			args = append(args, arg{node: m, offset: a.Offset})
			continue
		}
		if len(a.Args) != 0 {
			return nil, parseError(ErrUnexpected, a.Offset,
				fmt.Sprintf("unexpected arguments to leaf "+
					"argument %q", a.Name))
		}
		args = append(args, arg{text: a.Name, offset: a.Offset})
	}

	m, err := p.build(name, nameOffset, args)
	if err != nil {
		return nil, err
	}
	return p.wrap(m, wrappers, t.Offset)
}
