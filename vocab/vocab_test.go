package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bs(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestParseType(t *testing.T) {
	for s, want := range map[string]Type{
		"raw":           TypeRaw,
		"byte_fallback": TypeByteFallback,
		"byte_level":    TypeByteLevel,
	} {
		got, err := ParseType(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, s, got.String())
	}

	_, err := ParseType("bpe")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestNewRaw(t *testing.T) {
	idx, err := New(bs("hello", " world", "<s>", "</s>", ""))
	require.NoError(t, err)

	assert.Equal(t, 5, idx.Size())
	assert.Equal(t, TypeRaw, idx.Type())
	assert.Equal(t, []byte("hello"), idx.RawBytes(0))
	assert.Equal(t, []byte("hello"), idx.EffectiveBytes(0))
	assert.Equal(t, []byte(" world"), idx.EffectiveBytes(1))

	// "<...>" surfaces are control tokens; empty tokens match nothing and
	// are treated the same way.
	assert.True(t, idx.IsSpecial(2))
	assert.True(t, idx.IsSpecial(3))
	assert.True(t, idx.IsSpecial(4))
	assert.False(t, idx.IsSpecial(0))

	// "</s>" is a well-known stop token surface.
	assert.True(t, idx.IsStop(3))
	assert.False(t, idx.IsStop(2))
	assert.Equal(t, []int32{3}, idx.StopTokens())
}

func TestExplicitStopTokens(t *testing.T) {
	idx, err := New(bs("a", "b", "</s>"), WithStopTokens([]int32{0, 0, 1}))
	require.NoError(t, err)
	// Explicit stop ids replace the surface-based inference entirely.
	assert.Equal(t, []int32{0, 1}, idx.StopTokens())
	assert.True(t, idx.IsStop(0))
	assert.False(t, idx.IsStop(2))

	_, err = New(bs("a"), WithStopTokens([]int32{5}))
	assert.Error(t, err)
	_, err = New(bs("a"), WithStopTokens([]int32{-1}))
	assert.Error(t, err)
}

func TestByteFallback(t *testing.T) {
	idx, err := New(bs("▁hello", "<0x0A>", "<0xFF>", "<0xZZ>", "<pad>", "abc"),
		WithType(TypeByteFallback))
	require.NoError(t, err)

	// U+2581 decodes to a plain space.
	assert.Equal(t, []byte(" hello"), idx.EffectiveBytes(0))
	// "<0xNN>" tokens are single raw bytes, not control tokens.
	assert.Equal(t, []byte{0x0a}, idx.EffectiveBytes(1))
	assert.Equal(t, []byte{0xff}, idx.EffectiveBytes(2))
	assert.False(t, idx.IsSpecial(1))
	// A malformed byte token falls back to the control convention.
	assert.True(t, idx.IsSpecial(3))
	assert.True(t, idx.IsSpecial(4))
	assert.Equal(t, []byte("abc"), idx.EffectiveBytes(5))
}

func TestByteLevel(t *testing.T) {
	// "Ġ" (U+0120) is the byte-level stand-in for a space, "Ċ" (U+010A)
	// for a newline.
	idx, err := New(bs("Ġworld", "Ċ", "abc", "<|endoftext|>"), WithType(TypeByteLevel))
	require.NoError(t, err)

	assert.Equal(t, []byte(" world"), idx.EffectiveBytes(0))
	assert.Equal(t, []byte("\n"), idx.EffectiveBytes(1))
	assert.Equal(t, []byte("abc"), idx.EffectiveBytes(2))
	assert.True(t, idx.IsSpecial(3))
	assert.True(t, idx.IsStop(3))
}

func TestByteLevelRoundTrip(t *testing.T) {
	// Every byte value has exactly one stand-in rune.
	seen := make(map[byte]bool)
	for r, b := range byteLevelDecoder {
		assert.False(t, seen[b], "byte %#x has two stand-ins", b)
		seen[b] = true
		got := decodeByteLevel([]byte(string(r)))
		assert.Equal(t, []byte{b}, got)
	}
	assert.Len(t, seen, 256)
}

func TestPrependSpace(t *testing.T) {
	idx, err := New(bs("hello", "<s>"), WithPrependSpace(true))
	require.NoError(t, err)
	assert.True(t, idx.PrependSpace())
	assert.Equal(t, []byte(" hello"), idx.EffectiveBytes(0))
	// Raw bytes are unaffected, and special tokens get no space.
	assert.Equal(t, []byte("hello"), idx.RawBytes(0))
	assert.Empty(t, idx.EffectiveBytes(1))
}

func TestTrie(t *testing.T) {
	idx, err := New(bs("ab", "abc", "b", "ab", "</s>", "<s>"))
	require.NoError(t, err)
	trie := idx.Trie()

	// Root has edges for 'a' and 'b' only; special and stop tokens are
	// not inserted.
	root := trie.Root()
	edges := trie.Edges(root)
	require.Len(t, edges, 2)
	assert.Equal(t, byte('a'), edges[0].Byte)
	assert.Equal(t, byte('b'), edges[1].Byte)
	assert.Empty(t, trie.Terminals(root))

	// "b" terminates directly under the root.
	assert.Equal(t, []int32{2}, trie.Terminals(edges[1].Node))

	// Both "ab" tokens share one terminal node, with "abc" below it.
	abNode := func() int32 {
		n := edges[0].Node
		es := trie.Edges(n)
		require.Len(t, es, 1)
		require.Equal(t, byte('b'), es[0].Byte)
		return es[0].Node
	}()
	assert.Equal(t, []int32{0, 3}, trie.Terminals(abNode))

	es := trie.Edges(abNode)
	require.Len(t, es, 1)
	assert.Equal(t, byte('c'), es[0].Byte)
	assert.Equal(t, []int32{1}, trie.Terminals(es[0].Node))

	// root, a, ab, abc, b
	assert.Equal(t, 5, trie.NumNodes())
}

func TestRawVocabAliases(t *testing.T) {
	toks := bs("x", "y")
	idx, err := New(toks)
	require.NoError(t, err)
	assert.Equal(t, toks, idx.RawVocab())
}
