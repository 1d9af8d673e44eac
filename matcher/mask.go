package matcher

import (
	"fmt"
)

// Mask is a bitmask over token ids. Bit i lives at position i%32 of word
// i/32; a set bit marks the token as admissible. Bits past the last
// vocabulary id, when the mask is sized to a padded logits layer, are
// always zero.
type Mask struct {
	words []uint32
	n     int
}

// NewMask returns a zeroed mask with n bits.
func NewMask(n int) *Mask {
	return &Mask{words: make([]uint32, (n+31)/32), n: n}
}

// Len returns the number of bits in the mask.
func (m *Mask) Len() int {
	return m.n
}

// Words returns the mask's backing words. The slice aliases the mask;
// callers hand it to the sampler rather than mutate it.
func (m *Mask) Words() []uint32 {
	return m.words
}

// Bit reports whether token id is admissible.
func (m *Mask) Bit(id int32) bool {
	if id < 0 || int(id) >= m.n {
		return false
	}
	return m.words[id/32]&(1<<(id%32)) != 0
}

func (m *Mask) set(id int32) {
	m.words[id/32] |= 1 << (id % 32)
}

func (m *Mask) clear() {
	for i := range m.words {
		m.words[i] = 0
	}
}

// NextTokenMask computes the admissible-token mask for the current state
// into a fresh mask.
func (m *Matcher) NextTokenMask() (*Mask, error) {
	mask := NewMask(m.maskSize)
	if err := m.FillNextTokenMask(mask); err != nil {
		return nil, err
	}
	return mask, nil
}

// FillNextTokenMask computes the admissible-token mask for the current
// state into mask, which must be sized to MaskVocabSize. A token's bit is
// set exactly when AcceptToken would report true for it. Computing a mask
// does not change the matcher state, but it does use the matcher's node
// store, so it is subject to the same single-goroutine rule as accepting.
//
// On a terminated matcher there is no next token and the error is
// ErrTerminated.
func (m *Matcher) FillNextTokenMask(mask *Mask) error {
	m.guard.enter()
	defer m.guard.exit()
	if m.err != nil {
		return m.err
	}
	if m.terminated() {
		return ErrTerminated
	}
	if mask.n != m.maskSize {
		return fmt.Errorf("mask has %d bits, want %d", mask.n, m.maskSize)
	}
	mask.clear()

	cur := m.current()
	if err := m.fillFromTrie(m.idx.Trie().Root(), cur, mask); err != nil {
		m.err = err
		return err
	}
	if m.canComplete(cur) {
		for _, id := range m.stopIDs {
			mask.set(id)
		}
	}
	return nil
}

// fillFromTrie walks the vocabulary trie depth-first, advancing the
// frontier edge by edge. Tokens ending at a reached node are admissible;
// a dead frontier prunes the whole subtree, so tokens sharing an
// impossible prefix are rejected in one step.
func (m *Matcher) fillFromTrie(node int32, tops []nodeRef, mask *Mask) error {
	trie := m.idx.Trie()
	for _, id := range trie.Terminals(node) {
		// The trie excludes the vocabulary's stop tokens, but an override
		// can name a content-bearing token; those accept only as stops.
		if m.stopSet[id] {
			continue
		}
		mask.set(id)
	}
	for _, e := range trie.Edges(node) {
		next, err := m.advanceByte(tops, e.Byte)
		if err != nil {
			return err
		}
		if len(next) == 0 {
			continue
		}
		err = m.fillFromTrie(e.Node, next, mask)
		m.releaseTops(next)
		if err != nil {
			return err
		}
	}
	return nil
}

// RejectedTokens projects a mask into the explicit list of inadmissible
// token ids among the first vocabSize ids, in ascending order.
func RejectedTokens(mask *Mask, vocabSize int) []int32 {
	var out []int32
	for id := int32(0); int(id) < vocabSize; id++ {
		if !mask.Bit(id) {
			out = append(out, id)
		}
	}
	return out
}
