package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindJumpForwardString(t *testing.T) {
	g := testGrammar(t, `root ::= "abb" | "abbd" | "abbde"`)
	m, err := New(g, testVocab(t, "a", "b", "</s>"))
	require.NoError(t, err)

	// Every alternative starts with "abb", and after "abb" the matcher
	// could already complete.
	assert.Equal(t, "abb", m.FindJumpForwardString())

	// Computing a jump does not consume it.
	require.True(t, m.AcceptString("a"))
	assert.Equal(t, "bb", m.FindJumpForwardString())
	require.True(t, m.AcceptString("bb"))
	assert.Equal(t, "", m.FindJumpForwardString())
}

func TestJumpForwardStopsAtChoice(t *testing.T) {
	g := testGrammar(t, `root ::= "key: " ("on" | "off")`)
	m, err := New(g, testVocab(t, "</s>"))
	require.NoError(t, err)

	assert.Equal(t, "key: o", m.FindJumpForwardString())
}

func TestJumpForwardSingletonClass(t *testing.T) {
	// A character class forces bytes only when it admits exactly one
	// character; é is two forced bytes.
	g := testGrammar(t, `root ::= [é] [0-9]`)
	m, err := New(g, testVocab(t, "</s>"))
	require.NoError(t, err)
	assert.Equal(t, "é", m.FindJumpForwardString())

	g = testGrammar(t, `root ::= [ab] "c"`)
	m, err = New(g, testVocab(t, "</s>"))
	require.NoError(t, err)
	assert.Equal(t, "", m.FindJumpForwardString())
}

func TestJumpForwardRepeatForcesNothing(t *testing.T) {
	// "x" is forced, but the repetition after it may be skipped.
	g := testGrammar(t, `root ::= "x" [0-9]* "y"`)
	m, err := New(g, testVocab(t, "</s>"))
	require.NoError(t, err)
	assert.Equal(t, "x", m.FindJumpForwardString())
}

func TestJumpForwardTerminated(t *testing.T) {
	g := testGrammar(t, `root ::= "a"`)
	m, err := New(g, testVocab(t, "a", "</s>"))
	require.NoError(t, err)
	require.True(t, m.AcceptToken(0))
	require.True(t, m.AcceptToken(1))
	assert.Equal(t, "", m.FindJumpForwardString())
}

func TestJumpForwardLeavesNoGarbage(t *testing.T) {
	g := testGrammar(t, `root ::= "ab" ("c" | "d") "ef"`)
	m, err := New(g, testVocab(t, "</s>"))
	require.NoError(t, err)
	live := m.store.live()
	assert.Equal(t, "ab", m.FindJumpForwardString())
	assert.Equal(t, live, m.store.live())
}
