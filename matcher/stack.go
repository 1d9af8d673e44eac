package matcher

import (
	"github.com/structuredgen/gbnf/grammar"
	"github.com/structuredgen/gbnf/internal/arena"
)

// nodeRef is a compressed pointer to a stack node in a Matcher's store.
type nodeRef = arena.Pointer[stackNode]

// nodeKey is the identity of a stack node: a position inside one
// alternative of one rule, plus the chain of suspended positions beneath
// it. Two stacks whose keys are equal are the same stack, so keys double
// as the interning key of the store.
type nodeKey struct {
	// rule and seq locate the alternative: seq is one element of the
	// rule body's choices, either a KindSequence or KindEmpty.
	rule grammar.RuleID
	seq  grammar.ExprRef
	// elem indexes the current element of the sequence. elem equal to
	// the sequence length marks a completed alternative; for the root
	// rule that is the accept state.
	elem int32
	// sub is the progress inside the current element: the byte offset
	// into a byte string, or the number of UTF-8 bytes buffered in pend
	// for a character class.
	sub int32
	// pend holds the lead and continuation bytes of a partially-read
	// UTF-8 sequence. Only the first sub bytes are meaningful.
	pend [3]byte
	// parent is the position that was suspended to enter this rule, or
	// nil at the root.
	parent nodeRef
}

// stackNode is one interned stack. Nodes are shared: any number of
// frontier entries and child nodes may point at the same node, tracked
// by refs.
type stackNode struct {
	nodeKey
	refs  int32
	stamp uint64
}

// nodeStore interns stack nodes in an arena. Released slots are recycled
// through a free list, so long-running matchers do not grow without
// bound as the frontier moves.
type nodeStore struct {
	arena arena.Arena[stackNode]
	index map[nodeKey]nodeRef
	free  []nodeRef
}

func (s *nodeStore) init() {
	s.index = make(map[nodeKey]nodeRef)
}

func (s *nodeStore) get(r nodeRef) *stackNode {
	return r.In(&s.arena)
}

// intern returns the node for key, creating it if needed, and hands the
// caller one reference to it. The caller owns that reference and must
// release it (directly, or by handing it to a frontier that will).
func (s *nodeStore) intern(key nodeKey) nodeRef {
	if r, ok := s.index[key]; ok {
		s.get(r).refs++
		return r
	}
	var r nodeRef
	if n := len(s.free); n > 0 {
		r = s.free[n-1]
		s.free = s.free[:n-1]
		*s.get(r) = stackNode{nodeKey: key, refs: 1}
	} else {
		r = s.arena.New(stackNode{nodeKey: key, refs: 1})
	}
	s.index[key] = r
	if !key.parent.Nil() {
		s.get(key.parent).refs++
	}
	return r
}

func (s *nodeStore) retain(r nodeRef) {
	s.get(r).refs++
}

// release drops one reference to r, freeing it and unwinding the parent
// chain when the count reaches zero.
func (s *nodeStore) release(r nodeRef) {
	for !r.Nil() {
		n := s.get(r)
		n.refs--
		if n.refs > 0 {
			return
		}
		parent := n.parent
		delete(s.index, n.nodeKey)
		s.free = append(s.free, r)
		r = parent
	}
}

// live returns the number of interned nodes, for tests.
func (s *nodeStore) live() int {
	return len(s.index)
}
