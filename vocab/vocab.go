// Package vocab builds an immutable index over a model vocabulary.
//
// The index maps every token id to the byte string the token contributes
// during decoding. Tokenizers disagree about how a token's surface string
// encodes its bytes, so the index is built with an explicit Type selecting
// the decoding convention. The index also identifies special and stop
// tokens and exposes a byte trie over the decoded token strings; the
// matcher traverses that trie to compute next-token masks without
// re-walking shared prefixes.
//
// An Index is immutable after construction and safe for unlimited
// concurrent readers.
package vocab

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedType is returned when an Index is built with an
// unrecognized vocabulary type.
var ErrUnsupportedType = errors.New("unsupported vocabulary type")

// Type selects the byte-decoding convention for a vocabulary.
type Type int

const (
	// TypeRaw uses each token's bytes as-is.
	TypeRaw Type = iota
	// TypeByteFallback decodes the SentencePiece byte-fallback
	// convention: "<0xNN>" tokens are single raw bytes, and U+2581 is a
	// space.
	TypeByteFallback
	// TypeByteLevel decodes the GPT-2 byte-level BPE convention, where
	// every byte is represented by a printable stand-in rune.
	TypeByteLevel

	numTypes
)

func (t Type) String() string {
	switch t {
	case TypeRaw:
		return "raw"
	case TypeByteFallback:
		return "byte_fallback"
	case TypeByteLevel:
		return "byte_level"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType converts a vocabulary type name, as used by tokenizer
// configurations, into a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "raw":
		return TypeRaw, nil
	case "byte_fallback":
		return TypeByteFallback, nil
	case "byte_level":
		return TypeByteLevel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
	}
}

// Option configures the construction of an Index.
type Option func(*options)

type options struct {
	typ          Type
	prependSpace bool
	stopTokens   []int32
	hasStop      bool
}

// WithType selects the byte-decoding convention. The default is TypeRaw.
func WithType(t Type) Option {
	return func(o *options) { o.typ = t }
}

// WithPrependSpace causes every non-special token's effective match bytes
// to be prefixed with a space. This compensates for tokenizers that strip
// leading whitespace during encoding; the raw bytes reported by RawBytes
// and RawVocab are unaffected.
func WithPrependSpace(prepend bool) Option {
	return func(o *options) { o.prependSpace = prepend }
}

// WithStopTokens supplies the stop token ids explicitly, overriding the
// default inference from well-known token strings.
func WithStopTokens(ids []int32) Option {
	return func(o *options) {
		o.stopTokens = ids
		o.hasStop = true
	}
}

// Index is the precomputed view of a vocabulary used for matching.
type Index struct {
	raw     [][]byte
	eff     [][]byte
	special []bool
	stop    []bool
	stopIDs []int32

	typ          Type
	prependSpace bool
	trie         *Trie
}

// stopTokenStrings are the token surfaces treated as stop tokens when no
// explicit stop token list is supplied.
var stopTokenStrings = map[string]bool{
	"</s>":            true,
	"<|endoftext|>":   true,
	"<|end_of_text|>": true,
	"<|eot_id|>":      true,
	"<|im_end|>":      true,
}

// New builds an Index over the given ordered vocabulary. Token ids are
// the indexes into tokens.
func New(tokens [][]byte, opts ...Option) (*Index, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.typ < 0 || o.typ >= numTypes {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, o.typ)
	}

	idx := &Index{
		raw:          tokens,
		eff:          make([][]byte, len(tokens)),
		special:      make([]bool, len(tokens)),
		stop:         make([]bool, len(tokens)),
		typ:          o.typ,
		prependSpace: o.prependSpace,
	}

	for id, tok := range tokens {
		eff, special := decodeToken(tok, o.typ)
		if !special && len(eff) == 0 {
			// Tokens that contribute no bytes can never be matched
			// against the grammar; treat them like special tokens.
			special = true
		}
		if o.prependSpace && !special {
			eff = append([]byte{' '}, eff...)
		}
		idx.eff[id] = eff
		idx.special[id] = special
	}

	if o.hasStop {
		for _, id := range o.stopTokens {
			if id < 0 || int(id) >= len(tokens) {
				return nil, fmt.Errorf("stop token id %d out of range for vocabulary of size %d", id, len(tokens))
			}
			if !idx.stop[id] {
				idx.stop[id] = true
				idx.stopIDs = append(idx.stopIDs, id)
			}
		}
	} else {
		for id, tok := range tokens {
			if stopTokenStrings[string(tok)] {
				idx.stop[id] = true
				idx.stopIDs = append(idx.stopIDs, int32(id))
			}
		}
	}

	idx.trie = buildTrie(idx)
	return idx, nil
}

// decodeToken converts a token's surface bytes into its effective match
// bytes, reporting whether the token is a special (control) token.
func decodeToken(tok []byte, typ Type) (eff []byte, special bool) {
	switch typ {
	case TypeRaw:
		if isSpecialSurface(tok) {
			return nil, true
		}
		return tok, false
	case TypeByteFallback:
		if b, ok := decodeByteFallback(tok); ok {
			return []byte{b}, false
		}
		if isSpecialSurface(tok) {
			return nil, true
		}
		return bytes.ReplaceAll(tok, []byte("▁"), []byte(" ")), false
	case TypeByteLevel:
		if isSpecialSurface(tok) {
			return nil, true
		}
		return decodeByteLevel(tok), false
	default:
		panic(fmt.Sprintf("vocab: unknown type %v", typ))
	}
}

// decodeByteFallback recognizes SentencePiece "<0xNN>" byte tokens.
func decodeByteFallback(tok []byte) (byte, bool) {
	if len(tok) != 6 || !bytes.HasPrefix(tok, []byte("<0x")) || tok[5] != '>' {
		return 0, false
	}
	v, err := strconv.ParseUint(string(tok[3:5]), 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}

// isSpecialSurface reports whether a token surface follows the "<...>"
// control token convention.
func isSpecialSurface(tok []byte) bool {
	s := string(tok)
	return len(s) >= 3 && strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">")
}

// byteLevelDecoder maps the GPT-2 byte-level stand-in runes back to raw
// bytes. Printable bytes stand for themselves; the rest are offset into
// the private range starting at U+0100.
var byteLevelDecoder = func() map[rune]byte {
	dec := make(map[rune]byte, 256)
	isPrintable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xa1 && b <= 0xac) || (b >= 0xae && b <= 0xff)
	}
	n := 0
	for b := range 256 {
		if isPrintable(b) {
			dec[rune(b)] = byte(b)
		} else {
			dec[rune(0x100+n)] = byte(b)
			n++
		}
	}
	return dec
}()

func decodeByteLevel(tok []byte) []byte {
	out := make([]byte, 0, len(tok))
	for i := 0; i < len(tok); {
		r, sz := utf8.DecodeRune(tok[i:])
		if b, ok := byteLevelDecoder[r]; ok {
			out = append(out, b)
		} else {
			out = append(out, tok[i:i+sz]...)
		}
		i += sz
	}
	return out
}

// Size returns the number of tokens in the vocabulary.
func (idx *Index) Size() int {
	return len(idx.raw)
}

// Type returns the byte-decoding convention the index was built with.
func (idx *Index) Type() Type {
	return idx.typ
}

// PrependSpace reports whether effective bytes carry the space sentinel.
func (idx *Index) PrependSpace() bool {
	return idx.prependSpace
}

// RawVocab returns the original token byte strings, unmodified by any
// decoding or space prepending. The returned slices alias the index's
// storage and must not be mutated.
func (idx *Index) RawVocab() [][]byte {
	return idx.raw
}

// RawBytes returns the original bytes of the given token.
func (idx *Index) RawBytes(id int32) []byte {
	return idx.raw[id]
}

// EffectiveBytes returns the bytes the given token contributes during
// matching. Empty for special tokens.
func (idx *Index) EffectiveBytes(id int32) []byte {
	return idx.eff[id]
}

// IsSpecial reports whether the given token is a control token that can
// never match grammar content.
func (idx *Index) IsSpecial(id int32) bool {
	return idx.special[id]
}

// IsStop reports whether the given token is a stop token.
func (idx *Index) IsStop(id int32) bool {
	return idx.stop[id]
}

// StopTokens returns the ids of all stop tokens, in ascending order of
// discovery.
func (idx *Index) StopTokens() []int32 {
	return idx.stopIDs
}

// Trie returns the byte trie over the effective bytes of all matchable
// tokens.
func (idx *Index) Trie() *Trie {
	return idx.trie
}
