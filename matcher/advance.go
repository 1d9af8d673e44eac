package matcher

import (
	"fmt"
	"unicode/utf8"

	"github.com/structuredgen/gbnf/grammar"
)

// completed reports whether key is past the last element of its
// alternative. Completed positions only survive in a frontier at the root
// rule, where they mark that the accepted bytes form a complete sentence.
func (m *Matcher) completed(key nodeKey) bool {
	seq := m.g.Expr(key.seq)
	return seq.Kind == grammar.KindEmpty || int(key.elem) == len(seq.Elems)
}

// advanceElem moves a key to the start of its next element.
func advanceElem(key nodeKey) nodeKey {
	key.elem++
	key.sub = 0
	key.pend = [3]byte{}
	return key
}

// beginStep starts a new frontier build. Nodes appended during one step
// carry the step's stamp so duplicates arising from different expansion
// paths collapse.
func (m *Matcher) beginStep() {
	m.stamp++
}

// appendTop adds an owned node reference to a frontier under
// construction, dropping it if the node is already present.
func (m *Matcher) appendTop(out []nodeRef, r nodeRef) []nodeRef {
	n := m.store.get(r)
	if n.stamp == m.stamp {
		m.store.release(r)
		return out
	}
	n.stamp = m.stamp
	return append(out, r)
}

func (m *Matcher) releaseTops(tops []nodeRef) {
	for _, r := range tops {
		m.store.release(r)
	}
}

func (m *Matcher) retainTops(tops []nodeRef) []nodeRef {
	out := make([]nodeRef, len(tops))
	for i, r := range tops {
		m.store.retain(r)
		out[i] = r
	}
	return out
}

// settle expands a position until it rests on a byte-consuming element,
// appending every resulting stack top to out. Completed non-root
// alternatives pop into their parent; rule references push a child per
// alternative; repeats fork into a stay and a skip position. Grammar
// compilation rejects zero-width cycles, so the expansion terminates.
func (m *Matcher) settle(key nodeKey, out []nodeRef) []nodeRef {
	seq := m.g.Expr(key.seq)
	if seq.Kind == grammar.KindEmpty || int(key.elem) == len(seq.Elems) {
		if key.parent.Nil() {
			return m.appendTop(out, m.store.intern(key))
		}
		pk := m.store.get(key.parent).nodeKey
		return m.settle(advanceElem(pk), out)
	}
	e := m.g.Expr(seq.Elems[key.elem])
	switch e.Kind {
	case grammar.KindByteString, grammar.KindCharClass:
		return m.appendTop(out, m.store.intern(key))
	case grammar.KindCharClassRepeat:
		out = m.appendTop(out, m.store.intern(key))
		return m.settle(advanceElem(key), out)
	case grammar.KindRuleRef:
		parent := m.store.intern(key)
		body := m.g.Expr(m.g.Rule(e.Rule).Body)
		for _, alt := range body.Elems {
			out = m.settle(nodeKey{rule: e.Rule, seq: alt, parent: parent}, out)
		}
		// Children hold their own references; drop ours. If the rule
		// only matched the empty string, this frees the node again.
		m.store.release(parent)
		return out
	default:
		panic(fmt.Sprintf("matcher: unexpected %v in frontier", e.Kind))
	}
}

// advanceByte advances every stack in tops over one input byte. The
// caller owns the returned frontier; an empty result means no stack
// survived. tops itself is not modified or released.
func (m *Matcher) advanceByte(tops []nodeRef, b byte) ([]nodeRef, error) {
	m.beginStep()
	var out []nodeRef
	for _, r := range tops {
		key := m.store.get(r).nodeKey
		if m.completed(key) {
			continue
		}
		e := m.g.Expr(m.g.Expr(key.seq).Elems[key.elem])
		switch e.Kind {
		case grammar.KindByteString:
			if e.Bytes[key.sub] != b {
				continue
			}
			next := key
			next.sub++
			if int(next.sub) == len(e.Bytes) {
				out = m.settle(advanceElem(key), out)
			} else {
				out = m.appendTop(out, m.store.intern(next))
			}
		case grammar.KindCharClass, grammar.KindCharClassRepeat:
			next, done, ok := stepClass(key, e.Class, b)
			switch {
			case !ok:
			case !done:
				out = m.appendTop(out, m.store.intern(next))
			case e.Kind == grammar.KindCharClassRepeat:
				// A repeat consumes the character and re-forks, so the
				// next byte may continue the repeat or leave it.
				stay := key
				stay.sub = 0
				stay.pend = [3]byte{}
				out = m.settle(stay, out)
			default:
				out = m.settle(advanceElem(key), out)
			}
		default:
			panic(fmt.Sprintf("matcher: unexpected %v in frontier", e.Kind))
		}
	}
	if len(out) > m.maxFrontier {
		m.releaseTops(out)
		return nil, fmt.Errorf("%w (%d stacks, limit %d)", ErrFrontierOverflow, len(out), m.maxFrontier)
	}
	return out, nil
}

// stepClass feeds one byte to a character class element. done reports
// that a full character was matched; otherwise next buffers the byte as a
// pending UTF-8 prefix. ok is false when the byte cannot begin or extend
// any character the class accepts.
func stepClass(key nodeKey, c *grammar.CharClass, b byte) (next nodeKey, done, ok bool) {
	if key.sub == 0 {
		if b < utf8.RuneSelf {
			return key, true, c.Matches(rune(b))
		}
		n := utf8SeqLen(b)
		if n == 0 {
			return key, false, false
		}
		key.pend[0] = b
		key.sub = 1
		lo, hi := utf8Range(key.pend[:1], n)
		return key, false, c.MatchesAny(lo, hi)
	}

	if b&0xC0 != 0x80 {
		return key, false, false
	}
	n := utf8SeqLen(key.pend[0])
	if int(key.sub)+1 == n {
		var buf [4]byte
		copy(buf[:], key.pend[:key.sub])
		buf[key.sub] = b
		r, size := utf8.DecodeRune(buf[:n])
		if r == utf8.RuneError || size != n {
			return key, false, false
		}
		return key, true, c.Matches(r)
	}
	key.pend[key.sub] = b
	key.sub++
	lo, hi := utf8Range(key.pend[:key.sub], n)
	return key, false, c.MatchesAny(lo, hi)
}

// utf8SeqLen returns the sequence length implied by a lead byte, or zero
// if the byte cannot begin a valid multi-byte sequence.
func utf8SeqLen(lead byte) int {
	switch {
	case lead >= 0xC2 && lead <= 0xDF:
		return 2
	case lead >= 0xE0 && lead <= 0xEF:
		return 3
	case lead >= 0xF0 && lead <= 0xF4:
		return 4
	default:
		return 0
	}
}

// utf8Range returns the inclusive range of code points reachable from a
// partial UTF-8 sequence of total length n. The range is a slight
// over-approximation near encoding boundaries; the final continuation
// byte re-validates the decoded character exactly.
func utf8Range(pend []byte, n int) (lo, hi rune) {
	masks := [5]byte{2: 0x1F, 3: 0x0F, 4: 0x07}
	acc := rune(pend[0] & masks[n])
	for _, b := range pend[1:] {
		acc = acc<<6 | rune(b&0x3F)
	}
	rem := (n - len(pend)) * 6
	lo = acc << rem
	hi = lo | (1<<rem - 1)
	return lo, min(hi, utf8.MaxRune)
}
