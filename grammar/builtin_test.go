package grammar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structuredgen/gbnf/grammar"
	"github.com/structuredgen/gbnf/matcher"
	"github.com/structuredgen/gbnf/vocab"
)

// matches reports whether the grammar accepts input as a complete value.
func matches(t *testing.T, g *grammar.Grammar, input string) bool {
	t.Helper()
	idx, err := vocab.New([][]byte{[]byte("</s>")})
	require.NoError(t, err)
	m, err := matcher.New(g, idx)
	require.NoError(t, err)
	if !m.AcceptString(input) {
		return false
	}
	return m.AcceptStopToken()
}

func TestBuiltinJSON(t *testing.T) {
	g := grammar.BuiltinJSON()
	require.NotNil(t, g)
	assert.Same(t, g, grammar.BuiltinJSON())

	accepted := []string{
		`{}`,
		`[]`,
		`{"name": "John"}`,
		`{ "name" : "John" }`,
		`[1, 2, 3]`,
		`[ { "a" : [ true, null ] } ]`,
		`{"x": -1.5e3, "y": 0.25}`,
		`{"esc": "a\né\""}`,
		"{\n  \"a\": 1,\n  \"b\": [2]\n}",
	}
	for _, s := range accepted {
		assert.True(t, matches(t, g, s), "should accept %q", s)
	}

	rejected := []string{
		``,
		`"top-level string"`,
		`42`,
		`{"a": }`,
		`{"a": 1,}`,
		`[1 2]`,
		`{"a": 01}`,
		`{'a': 1}`,
		`{"a": 1} `,
		` {"a": 1}`,
	}
	for _, s := range rejected {
		assert.False(t, matches(t, g, s), "should reject %q", s)
	}
}
