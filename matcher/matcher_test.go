package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structuredgen/gbnf/grammar"
	"github.com/structuredgen/gbnf/parser"
	"github.com/structuredgen/gbnf/reporter"
	"github.com/structuredgen/gbnf/vocab"
)

func testGrammar(t *testing.T, src string) *grammar.Grammar {
	t.Helper()
	handler := reporter.NewHandler(nil)
	file, err := parser.Parse("test.ebnf", []byte(src), handler)
	require.NoError(t, err)
	g, err := grammar.FromAST(file, "root", handler)
	require.NoError(t, err)
	return g
}

func testVocab(t *testing.T, tokens ...string) *vocab.Index {
	t.Helper()
	raw := make([][]byte, len(tokens))
	for i, tok := range tokens {
		raw[i] = []byte(tok)
	}
	idx, err := vocab.New(raw)
	require.NoError(t, err)
	return idx
}

func TestAcceptTokenSequence(t *testing.T) {
	g := testGrammar(t, `root ::= "a" "b" | "a" "c"`)
	idx := testVocab(t, "a", "b", "c", "d", "</s>")
	m, err := New(g, idx)
	require.NoError(t, err)

	assert.Equal(t, []int32{4}, m.StopTokens())
	assert.False(t, m.IsTerminated())

	assert.False(t, m.AcceptToken(3), "d is not admissible initially")
	assert.True(t, m.AcceptToken(0))
	assert.False(t, m.AcceptToken(4), "stop before a complete sentence")
	assert.True(t, m.AcceptToken(1))
	assert.False(t, m.AcceptToken(1), "only a stop token can follow ab")

	assert.True(t, m.AcceptToken(4))
	assert.True(t, m.IsTerminated())
	assert.False(t, m.AcceptToken(0))
	assert.False(t, m.AcceptStopToken())
}

func TestAcceptTokenOutOfRange(t *testing.T) {
	g := testGrammar(t, `root ::= "a"`)
	m, err := New(g, testVocab(t, "a", "</s>"))
	require.NoError(t, err)
	assert.False(t, m.AcceptToken(-1))
	assert.False(t, m.AcceptToken(2))
}

func TestSpecialTokenNeverAdmissible(t *testing.T) {
	// The token surface "<a>" would match the grammar text, but special
	// tokens contribute no bytes.
	g := testGrammar(t, `root ::= "<a>"`)
	m, err := New(g, testVocab(t, "<a>", "</s>"))
	require.NoError(t, err)
	assert.False(t, m.AcceptToken(0))
	assert.True(t, m.AcceptString("<a>"))
}

func TestTokensSpanRuleElements(t *testing.T) {
	g := testGrammar(t, `root ::= "hello" " " "world"`)
	m, err := New(g, testVocab(t, "hello", " wor", "ld", "</s>"))
	require.NoError(t, err)

	assert.True(t, m.AcceptToken(0))
	assert.True(t, m.AcceptToken(1))
	assert.True(t, m.AcceptToken(2))
	assert.True(t, m.AcceptStopToken())
}

func TestAcceptString(t *testing.T) {
	g := testGrammar(t, `root ::= "hello world"`)
	m, err := New(g, testVocab(t, "</s>"))
	require.NoError(t, err)

	assert.True(t, m.AcceptString(""))
	assert.True(t, m.AcceptString("hello"))
	// Rejection is transactional, even when a prefix of the string was
	// viable.
	assert.False(t, m.AcceptString(" wox"))
	assert.True(t, m.AcceptString(" world"))
	assert.True(t, m.AcceptStopToken())
	assert.False(t, m.AcceptString("x"))
}

func TestStopTokenOverride(t *testing.T) {
	g := testGrammar(t, `root ::= "a"`)
	idx := testVocab(t, "a", "eos", "</s>")
	m, err := New(g, idx, WithStopTokens([]int32{1}))
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, m.StopTokens())

	require.True(t, m.AcceptToken(0))
	// The vocabulary's inferred stop token is not a stop token here; its
	// bytes "</s>" are not admissible either.
	assert.False(t, m.AcceptToken(2))
	assert.True(t, m.AcceptToken(1))
	assert.True(t, m.IsTerminated())

	_, err = New(g, idx, WithStopTokens([]int32{3}))
	assert.Error(t, err)
}

func TestRollback(t *testing.T) {
	g := testGrammar(t, `root ::= "a"* "b"`)
	idx := testVocab(t, "a", "b", "</s>")
	m, err := New(g, idx, WithMaxRollback(2))
	require.NoError(t, err)
	assert.Equal(t, 2, m.MaxRollbackSteps())

	require.True(t, m.AcceptToken(0))
	require.True(t, m.AcceptToken(0))
	before, err := m.NextTokenMask()
	require.NoError(t, err)

	require.True(t, m.AcceptToken(1))
	require.True(t, m.Rollback(1))
	after, err := m.NextTokenMask()
	require.NoError(t, err)
	assert.Equal(t, before.Words(), after.Words())

	// Only one more step of history remains after the first rollback.
	assert.False(t, m.Rollback(2))
	assert.True(t, m.Rollback(1))
	require.True(t, m.AcceptToken(1))
}

func TestRollbackDefaultDisabled(t *testing.T) {
	g := testGrammar(t, `root ::= "a"`)
	m, err := New(g, testVocab(t, "a", "</s>"))
	require.NoError(t, err)
	require.True(t, m.AcceptToken(0))
	assert.True(t, m.Rollback(0))
	assert.False(t, m.Rollback(1))
}

func TestRollbackPastStop(t *testing.T) {
	g := testGrammar(t, `root ::= "a"`)
	m, err := New(g, testVocab(t, "a", "</s>"), WithMaxRollback(1))
	require.NoError(t, err)

	require.True(t, m.AcceptToken(0))
	require.True(t, m.AcceptToken(1))
	require.True(t, m.IsTerminated())

	require.True(t, m.Rollback(1))
	assert.False(t, m.IsTerminated())
	assert.True(t, m.AcceptStopToken())
}

func TestReset(t *testing.T) {
	g := testGrammar(t, `root ::= "a" "b" | "a" "c"`)
	m, err := New(g, testVocab(t, "a", "b", "c", "</s>"), WithMaxRollback(4))
	require.NoError(t, err)
	live0 := m.store.live()

	require.True(t, m.AcceptToken(0))
	_, err = m.NextTokenMask()
	require.NoError(t, err)
	require.True(t, m.AcceptToken(2))
	require.True(t, m.AcceptToken(3))

	m.Reset()
	assert.False(t, m.IsTerminated())
	// Every node allocated since construction has been released.
	assert.Equal(t, live0, m.store.live())

	assert.True(t, m.AcceptToken(0))
	assert.True(t, m.AcceptToken(1))
	assert.True(t, m.AcceptStopToken())
}

func TestTerminateWithoutStop(t *testing.T) {
	g := testGrammar(t, `root ::= "ab"`)
	idx := testVocab(t, "ab", "</s>")

	m, err := New(g, idx)
	require.NoError(t, err)
	require.True(t, m.AcceptToken(0))
	assert.False(t, m.IsTerminated())

	m, err = New(g, idx, WithTerminateWithoutStop(true))
	require.NoError(t, err)
	assert.False(t, m.IsTerminated())
	require.True(t, m.AcceptToken(0))
	assert.True(t, m.IsTerminated())
}

func TestFrontierOverflow(t *testing.T) {
	g := testGrammar(t, `root ::= "a" "b" | "a" "c"`)
	idx := testVocab(t, "a", "b", "c", "</s>")
	m, err := New(g, idx, WithMaxFrontierSize(1))
	require.NoError(t, err)

	// Both alternatives stay viable after "a", exceeding the cap.
	assert.False(t, m.AcceptToken(0))
	assert.ErrorIs(t, m.Err(), ErrFrontierOverflow)

	// The error is sticky until Reset.
	assert.False(t, m.AcceptToken(0))
	err = m.FillNextTokenMask(NewMask(m.MaskVocabSize()))
	assert.ErrorIs(t, err, ErrFrontierOverflow)

	m.Reset()
	assert.NoError(t, m.Err())
}

func TestMaskVocabSizeValidation(t *testing.T) {
	g := testGrammar(t, `root ::= "a"`)
	idx := testVocab(t, "a", "</s>")
	_, err := New(g, idx, WithMaskVocabSize(1))
	assert.Error(t, err)
	_, err = New(g, idx, WithMaxRollback(-1))
	assert.Error(t, err)
}

func TestNegatedClassUTF8(t *testing.T) {
	g := testGrammar(t, `root ::= [^a-z]+`)
	m, err := New(g, testVocab(t, "é", "中", "A", "b", "</s>"))
	require.NoError(t, err)

	assert.True(t, m.AcceptToken(0))
	assert.True(t, m.AcceptToken(1))
	assert.True(t, m.AcceptToken(2))
	assert.False(t, m.AcceptToken(3))
	assert.True(t, m.AcceptStopToken())
}

func TestPartialUTF8AcrossTokens(t *testing.T) {
	// 中 is U+4E2D, encoded e4 b8 ad; the vocabulary splits it into
	// single-byte tokens.
	g := testGrammar(t, `root ::= [一-鿿]`)
	idx := testVocab(t, "\xe4", "\xb8", "\xad", "</s>")
	m, err := New(g, idx)
	require.NoError(t, err)

	require.True(t, m.AcceptToken(0))
	// Mid-character, only the right continuation byte is admissible.
	mask, err := m.NextTokenMask()
	require.NoError(t, err)
	assert.True(t, mask.Bit(1))
	assert.False(t, mask.Bit(0))
	assert.False(t, mask.Bit(2))

	require.True(t, m.AcceptToken(1))
	require.True(t, m.AcceptToken(2))
	assert.True(t, m.AcceptStopToken())
}

func TestInvalidUTF8Rejected(t *testing.T) {
	g := testGrammar(t, `root ::= [^x]*`)
	m, err := New(g, testVocab(t, "</s>"))
	require.NoError(t, err)

	assert.False(t, m.AcceptString("\xff"))
	// Overlong encoding of U+0000.
	assert.False(t, m.AcceptString("\xc0\x80"))
	// Surrogate half U+D800.
	assert.False(t, m.AcceptString("\xed\xa0\x80"))
	assert.True(t, m.AcceptString("ok é 中"))
}

func TestRepetitionGrammar(t *testing.T) {
	g := testGrammar(t, `root ::= ("ab" | "cd"){2,3}`)
	m, err := New(g, testVocab(t, "ab", "cd", "</s>"))
	require.NoError(t, err)

	require.True(t, m.AcceptToken(0))
	assert.False(t, m.AcceptStopToken(), "minimum of two repetitions")
	require.True(t, m.AcceptToken(1))
	require.True(t, m.AcceptToken(1))
	assert.False(t, m.AcceptToken(0), "maximum of three repetitions")
	assert.True(t, m.AcceptStopToken())
}

// TestExhaustiveFiniteLanguage enumerates the entire language of a small
// finite grammar and checks, with a single-byte vocabulary, that every
// sentence is accepted byte-by-byte with each byte's mask bit set
// beforehand, and that every other short string over the alphabet is
// rejected.
func TestExhaustiveFiniteLanguage(t *testing.T) {
	g := testGrammar(t, `root ::= ("a" | "b") ("c" | "d") "e"?`)
	idx := testVocab(t, "a", "b", "c", "d", "e", "</s>")
	tokenOf := map[byte]int32{'a': 0, 'b': 1, 'c': 2, 'd': 3, 'e': 4}

	language := map[string]bool{}
	for _, first := range []string{"a", "b"} {
		for _, second := range []string{"c", "d"} {
			for _, tail := range []string{"", "e"} {
				language[first+second+tail] = true
			}
		}
	}
	require.Len(t, language, 8)

	for sentence := range language {
		m, err := New(g, idx)
		require.NoError(t, err)
		for i := 0; i < len(sentence); i++ {
			id := tokenOf[sentence[i]]
			mask, err := m.NextTokenMask()
			require.NoError(t, err)
			assert.True(t, mask.Bit(id), "mask for byte %d of %q", i, sentence)
			require.True(t, m.AcceptToken(id), "byte %d of %q", i, sentence)
		}
		assert.True(t, m.AcceptStopToken(), "sentence %q", sentence)
	}

	// Every other string up to the language's maximum length must be
	// rejected, at the first illegal byte or at the stop check.
	alphabet := "abcde"
	var all func(prefix string)
	all = func(prefix string) {
		if !language[prefix] {
			m, err := New(g, idx)
			require.NoError(t, err)
			accepted := true
			for i := 0; accepted && i < len(prefix); i++ {
				accepted = m.AcceptToken(tokenOf[prefix[i]])
			}
			assert.False(t, accepted && m.AcceptStopToken(), "non-sentence %q", prefix)
		}
		if len(prefix) == 3 {
			return
		}
		for i := 0; i < len(alphabet); i++ {
			all(prefix + string(alphabet[i]))
		}
	}
	all("")
}
