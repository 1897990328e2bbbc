// Package tree implements a small scanner for "name(arg,arg,...)"
// expressions. It knows nothing about the languages layered on top of it:
// miniscript fragments and concrete policies are both read through it.
package tree

import (
	"fmt"
	"strings"
)

// DefaultMaxDepth is the nesting limit applied by Parse.
const DefaultMaxDepth = 402

// Tree is one parsed expression. A leaf has no arguments, e.g. the key in
// pk(A) is the Tree{Name: "A"}.
type Tree struct {
	Name string
	Args []*Tree

	// Offset is the byte offset of Name in the parsed input.
	Offset int
}

// String renders the tree back into the "name(arg,...)" form without any
// whitespace.
func (t *Tree) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Tree) write(b *strings.Builder) {
	b.WriteString(t.Name)
	if len(t.Args) == 0 {
		return
	}
	b.WriteByte('(')
	for i, arg := range t.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		arg.write(b)
	}
	b.WriteByte(')')
}

// Parse parses s into a single Tree. The whole input must be consumed.
func Parse(s string) (*Tree, error) {
	return ParseDepth(s, DefaultMaxDepth)
}

// ParseDepth is like Parse but rejects inputs nested deeper than maxDepth.
func ParseDepth(s string, maxDepth int) (*Tree, error) {
	p := parser{input: s, maxDepth: maxDepth}
	t, rest, err := p.parseOne(s, 0)
	if err != nil {
		return nil, err
	}
	if rest = strings.TrimLeft(rest, " \t\r\n"); rest != "" {
		return nil, treeError(ErrUnexpected, p.offset(rest),
			fmt.Sprintf("unexpected %q after end of expression",
				rest[0]))
	}
	return t, nil
}

type parser struct {
	input    string
	maxDepth int
}

// offset returns the position of rest, a suffix of the input.
func (p *parser) offset(rest string) int {
	return len(p.input) - len(rest)
}

// parseOne consumes one expression from the front of s and returns it along
// with the unconsumed remainder.
func (p *parser) parseOne(s string, depth int) (*Tree, string, error) {
	if depth > p.maxDepth {
		return nil, "", treeError(ErrMaxDepth, p.offset(s),
			fmt.Sprintf("expression nested deeper than %d",
				p.maxDepth))
	}

	idx := strings.IndexAny(s, "(,)")
	if idx < 0 {
		idx = len(s)
	}
	name, err := p.name(s, idx)
	if err != nil {
		return nil, "", err
	}
	t := &Tree{Name: name, Offset: p.offset(s)}

	if idx == len(s) || s[idx] != '(' {
		return t, s[idx:], nil
	}

	rest := s[idx+1:]
	for {
		arg, r, err := p.parseOne(rest, depth+1)
		if err != nil {
			return nil, "", err
		}
		t.Args = append(t.Args, arg)

		r = strings.TrimLeft(r, " \t\r\n")
		if r == "" {
			return nil, "", treeError(ErrUnterminated, len(p.input),
				fmt.Sprintf("expression %q does not terminate "+
					"with )", name))
		}
		switch r[0] {
		case ',':
			rest = r[1:]
		case ')':
			return t, r[1:], nil
		default:
			return nil, "", treeError(ErrUnexpected, p.offset(r),
				fmt.Sprintf("unexpected %q", r[0]))
		}
	}
}

// name validates the identifier in s[:end], allowing surrounding whitespace.
func (p *parser) name(s string, end int) (string, error) {
	name := strings.TrimSpace(s[:end])
	if name == "" {
		if end < len(s) {
			return "", treeError(ErrUnexpected, p.offset(s[end:]),
				fmt.Sprintf("unexpected %q, expected a name",
					s[end]))
		}
		return "", treeError(ErrUnexpected, p.offset(s[end:]),
			"unexpected end of input, expected a name")
	}
	if i := strings.IndexAny(name, " \t\r\n"); i >= 0 {
		return "", treeError(ErrUnexpected, p.offset(s),
			fmt.Sprintf("unexpected whitespace in %q", name))
	}
	return name, nil
}
