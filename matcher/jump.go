package matcher

import (
	"unicode/utf8"

	"github.com/structuredgen/gbnf/grammar"
)

// FindJumpForwardString returns the longest byte string that is forced by
// the grammar from the current state: every admissible continuation must
// begin with it. Generation loops append it verbatim and skip the
// per-token mask for those bytes. The result is empty when the next byte
// is not unique, when the matcher could already complete, or when the
// matcher is terminated.
//
// The matcher state is unchanged.
func (m *Matcher) FindJumpForwardString() string {
	m.guard.enter()
	defer m.guard.exit()
	if m.err != nil || m.terminated() {
		return ""
	}

	cur := m.retainTops(m.current())
	var jump []byte
	for {
		// A completable state admits a stop token, so no byte is forced.
		if m.canComplete(cur) {
			break
		}
		b, unique := m.uniqueNextByte(cur)
		if !unique {
			break
		}
		next, err := m.advanceByte(cur, b)
		if err != nil || len(next) == 0 {
			m.releaseTops(next)
			break
		}
		m.releaseTops(cur)
		cur = next
		jump = append(jump, b)
	}
	m.releaseTops(cur)
	return string(jump)
}

// uniqueNextByte reports the single byte every stack in tops requires
// next, if there is one.
func (m *Matcher) uniqueNextByte(tops []nodeRef) (byte, bool) {
	var want byte
	have := false
	for _, r := range tops {
		key := m.store.get(r).nodeKey
		e := m.g.Expr(m.g.Expr(key.seq).Elems[key.elem])
		b, ok := nextByteOf(key, e)
		if !ok {
			return 0, false
		}
		if have && b != want {
			return 0, false
		}
		want, have = b, true
	}
	return want, have
}

// nextByteOf returns the byte a single stack top requires next, if it
// admits exactly one. A character class forces a byte only when it admits
// exactly one character; a repeat never forces anything because skipping
// it is settled as a separate stack top.
func nextByteOf(key nodeKey, e *grammar.Expr) (byte, bool) {
	switch e.Kind {
	case grammar.KindByteString:
		return e.Bytes[key.sub], true
	case grammar.KindCharClass:
		c := e.Class
		if c.Negated || len(c.Ranges) != 1 || c.Ranges[0].Lo != c.Ranges[0].Hi {
			return 0, false
		}
		var buf [4]byte
		n := utf8.EncodeRune(buf[:], c.Ranges[0].Lo)
		if int(key.sub) >= n {
			return 0, false
		}
		return buf[key.sub], true
	default:
		return 0, false
	}
}
