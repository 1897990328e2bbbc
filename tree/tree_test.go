package tree

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParse tests parsing well formed expressions.
func TestParse(t *testing.T) {
	t.Parallel()

	leaf := func(name string) *Tree {
		return &Tree{Name: name}
	}

	testCases := []struct {
		str      string
		expected *Tree
	}{
		{
			str:      "0",
			expected: leaf("0"),
		},
		{
			str: "pk(A)",
			expected: &Tree{Name: "pk", Args: []*Tree{
				leaf("A"),
			}},
		},
		{
			str: "or_b(pk(key_1),s:pk(key_2))",
			expected: &Tree{Name: "or_b", Args: []*Tree{
				{Name: "pk", Args: []*Tree{leaf("key_1")}},
				{Name: "s:pk", Args: []*Tree{leaf("key_2")}},
			}},
		},
		{
			str: "thresh(2, pk(A), 99@pk(B) )",
			expected: &Tree{Name: "thresh", Args: []*Tree{
				leaf("2"),
				{Name: "pk", Args: []*Tree{leaf("A")}},
				{Name: "99@pk", Args: []*Tree{leaf("B")}},
			}},
		},
	}

	for _, tc := range testCases {
		got, err := Parse(tc.str)
		require.NoError(t, err, tc.str)
		require.Equal(t, tc.expected.String(), got.String())
		requireSameShape(t, tc.expected, got)
	}
}

func requireSameShape(t *testing.T, expected, got *Tree) {
	t.Helper()

	require.Equal(t, expected.Name, got.Name)
	require.Len(t, got.Args, len(expected.Args))
	for i := range expected.Args {
		requireSameShape(t, expected.Args[i], got.Args[i])
	}
}

// TestParseErrors tests that malformed expressions are rejected with the
// right error kind.
func TestParseErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		str  string
		kind ErrorKind
	}{
		{"", ErrUnexpected},
		{"pk(A", ErrUnterminated},
		{"and_v(pk(A),pk(B)", ErrUnterminated},
		{"pk(A))", ErrUnexpected},
		{"pk()", ErrUnexpected},
		{"pk(A,,B)", ErrUnexpected},
		{"(A)", ErrUnexpected},
		{"pk(A)B", ErrUnexpected},
		{"p k(A)", ErrUnexpected},
	}

	for _, tc := range testCases {
		_, err := Parse(tc.str)
		require.Errorf(t, err, "input %q", tc.str)
		require.Truef(t, errors.Is(err, tc.kind),
			"input %q: expected %v, got %v", tc.str, tc.kind, err)
	}
}

// TestParseDepth makes sure deeply nested inputs are rejected instead of
// exhausting the stack.
func TestParseDepth(t *testing.T) {
	t.Parallel()

	nested := func(depth int) string {
		return strings.Repeat("a(", depth) + "0" +
			strings.Repeat(")", depth)
	}

	_, err := ParseDepth(nested(10), 10)
	require.NoError(t, err)

	_, err = ParseDepth(nested(11), 10)
	require.ErrorIs(t, err, ErrMaxDepth)

	_, err = Parse(nested(10000))
	require.ErrorIs(t, err, ErrMaxDepth)
}

// TestUnterminatedOffset checks the reported offset of an unterminated
// expression points at the end of the input.
func TestUnterminatedOffset(t *testing.T) {
	t.Parallel()

	_, err := Parse("thresh(1,pk(A)")
	var treeErr Error
	require.True(t, errors.As(err, &treeErr))
	require.Equal(t, len("thresh(1,pk(A)"), treeErr.Offset)
}
