package matcher

import (
	"fmt"

	"github.com/structuredgen/gbnf/grammar"
	"github.com/structuredgen/gbnf/vocab"
)

const defaultMaxFrontierSize = 10000

// Option configures the construction of a Matcher.
type Option func(*config)

type config struct {
	stopTokens           []int32
	hasStop              bool
	terminateWithoutStop bool
	maskSize             int
	maxRollback          int
	maxFrontier          int
}

// WithStopTokens overrides the stop tokens inferred by the vocabulary
// index for this matcher only.
func WithStopTokens(ids []int32) Option {
	return func(c *config) {
		c.stopTokens = ids
		c.hasStop = true
	}
}

// WithTerminateWithoutStop makes IsTerminated report true as soon as the
// accepted bytes form a complete sentence of the grammar, without
// requiring a stop token.
func WithTerminateWithoutStop(enable bool) Option {
	return func(c *config) { c.terminateWithoutStop = enable }
}

// WithMaskVocabSize sets the number of bits in computed masks. It must be
// at least the vocabulary size; models whose output layer is padded past
// the tokenizer vocabulary use this to size masks to the logits. The
// padding bits are always zero.
func WithMaskVocabSize(n int) Option {
	return func(c *config) { c.maskSize = n }
}

// WithMaxRollback sets how many accepted tokens can be undone by
// Rollback. The default is zero: no rollback.
func WithMaxRollback(n int) Option {
	return func(c *config) { c.maxRollback = n }
}

// WithMaxFrontierSize caps the number of simultaneously live stacks.
// Zero or negative means the default limit.
func WithMaxFrontierSize(n int) Option {
	return func(c *config) { c.maxFrontier = n }
}

// Matcher tracks the match state of one generation sequence against a
// grammar. It is not safe for concurrent use; see the package
// documentation.
type Matcher struct {
	g   *grammar.Grammar
	idx *vocab.Index

	store nodeStore
	// log[len-1] is the current frontier; earlier entries are rollback
	// snapshots, oldest first. An empty frontier means terminated.
	log [][]nodeRef

	stopSet              map[int32]bool
	stopIDs              []int32
	terminateWithoutStop bool
	maskSize             int
	maxRollback          int
	maxFrontier          int

	stamp uint64
	err   error
	guard ownerGuard
}

// New builds a Matcher for the given grammar and vocabulary. The grammar
// and index may be shared freely between matchers.
func New(g *grammar.Grammar, idx *vocab.Index, opts ...Option) (*Matcher, error) {
	c := config{
		maskSize:    idx.Size(),
		maxFrontier: defaultMaxFrontierSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.maskSize < idx.Size() {
		return nil, fmt.Errorf("mask vocab size %d is smaller than the vocabulary size %d", c.maskSize, idx.Size())
	}
	if c.maxRollback < 0 {
		return nil, fmt.Errorf("max rollback steps must not be negative: %d", c.maxRollback)
	}
	if c.maxFrontier <= 0 {
		c.maxFrontier = defaultMaxFrontierSize
	}

	stopIDs := idx.StopTokens()
	if c.hasStop {
		stopIDs = c.stopTokens
	}
	m := &Matcher{
		g:                    g,
		idx:                  idx,
		stopSet:              make(map[int32]bool, len(stopIDs)),
		terminateWithoutStop: c.terminateWithoutStop,
		maskSize:             c.maskSize,
		maxRollback:          c.maxRollback,
		maxFrontier:          c.maxFrontier,
	}
	for _, id := range stopIDs {
		if id < 0 || int(id) >= idx.Size() {
			return nil, fmt.Errorf("stop token id %d out of range for vocabulary of size %d", id, idx.Size())
		}
		if !m.stopSet[id] {
			m.stopSet[id] = true
			m.stopIDs = append(m.stopIDs, id)
		}
	}
	m.store.init()
	m.pushInitial()
	return m, nil
}

// AcceptToken advances the matcher over one token. It reports whether the
// token is admissible in the current state; on false the state is
// unchanged. Stop tokens are admissible exactly when the accepted bytes
// already form a complete sentence, and accepting one terminates the
// matcher. Special tokens are never admissible.
func (m *Matcher) AcceptToken(id int32) bool {
	m.guard.enter()
	defer m.guard.exit()
	if m.err != nil || id < 0 || int(id) >= m.idx.Size() {
		return false
	}
	if m.stopSet[id] {
		return m.acceptStop()
	}
	if m.terminated() || m.idx.IsSpecial(id) {
		return false
	}
	return m.acceptBytes(m.idx.EffectiveBytes(id))
}

// AcceptStopToken terminates the matcher as if a stop token had been
// accepted, without naming a particular token id. It reports false if the
// accepted bytes do not form a complete sentence.
func (m *Matcher) AcceptStopToken() bool {
	m.guard.enter()
	defer m.guard.exit()
	if m.err != nil {
		return false
	}
	return m.acceptStop()
}

// AcceptString advances the matcher over a literal byte string, as if a
// token with those effective bytes had been accepted. The whole string is
// accepted transactionally: on false the state is unchanged. Accepting an
// empty string is a no-op and reports true.
//
// This is the debugging and prefill entry point; generation loops use
// AcceptToken.
func (m *Matcher) AcceptString(s string) bool {
	m.guard.enter()
	defer m.guard.exit()
	if m.err != nil || m.terminated() {
		return false
	}
	if len(s) == 0 {
		return true
	}
	return m.acceptBytes([]byte(s))
}

// Rollback undoes the last n accept operations. It reports false, leaving
// the state unchanged, if n exceeds the retained history. Rolling back
// past a stop token un-terminates the matcher.
func (m *Matcher) Rollback(n int) bool {
	m.guard.enter()
	defer m.guard.exit()
	if m.err != nil || n < 0 || n > len(m.log)-1 {
		return false
	}
	for ; n > 0; n-- {
		last := len(m.log) - 1
		m.releaseTops(m.log[last])
		m.log[last] = nil
		m.log = m.log[:last]
	}
	return true
}

// Reset discards all accepted input and rollback history, returning the
// matcher to its initial state. It also clears a frontier overflow error.
func (m *Matcher) Reset() {
	m.guard.enter()
	defer m.guard.exit()
	for i, tops := range m.log {
		m.releaseTops(tops)
		m.log[i] = nil
	}
	m.log = m.log[:0]
	m.err = nil
	m.pushInitial()
}

// IsTerminated reports whether the matcher has accepted a stop token, or,
// with WithTerminateWithoutStop, whether the accepted bytes already form
// a complete sentence.
func (m *Matcher) IsTerminated() bool {
	m.guard.enter()
	defer m.guard.exit()
	if m.terminated() {
		return true
	}
	return m.terminateWithoutStop && m.canComplete(m.current())
}

// Err returns the sticky fatal error, if any. Only ErrFrontierOverflow is
// fatal; Reset clears it.
func (m *Matcher) Err() error {
	m.guard.enter()
	defer m.guard.exit()
	return m.err
}

// MaskVocabSize returns the number of bits in masks computed by this
// matcher.
func (m *Matcher) MaskVocabSize() int {
	return m.maskSize
}

// MaxRollbackSteps returns the configured rollback depth.
func (m *Matcher) MaxRollbackSteps() int {
	return m.maxRollback
}

// StopTokens returns the stop token ids in effect for this matcher.
func (m *Matcher) StopTokens() []int32 {
	return m.stopIDs
}

func (m *Matcher) current() []nodeRef {
	return m.log[len(m.log)-1]
}

func (m *Matcher) terminated() bool {
	return len(m.current()) == 0
}

// pushInitial settles the root rule's alternatives into the first
// frontier.
func (m *Matcher) pushInitial() {
	m.beginStep()
	var out []nodeRef
	root := m.g.Root()
	body := m.g.Expr(m.g.Rule(root).Body)
	for _, alt := range body.Elems {
		out = m.settle(nodeKey{rule: root, seq: alt}, out)
	}
	m.log = append(m.log, out)
}

// pushFrontier records tops as the new current frontier, evicting the
// oldest snapshot beyond the rollback depth.
func (m *Matcher) pushFrontier(tops []nodeRef) {
	m.log = append(m.log, tops)
	if len(m.log) > m.maxRollback+1 {
		m.releaseTops(m.log[0])
		copy(m.log, m.log[1:])
		m.log[len(m.log)-1] = nil
		m.log = m.log[:len(m.log)-1]
	}
}

// acceptBytes advances the current frontier over every byte of bs and, on
// success, pushes the result as the new frontier.
func (m *Matcher) acceptBytes(bs []byte) bool {
	cur := m.current()
	owned := false
	for _, b := range bs {
		next, err := m.advanceByte(cur, b)
		if owned {
			m.releaseTops(cur)
		}
		if err != nil {
			m.err = err
			return false
		}
		if len(next) == 0 {
			return false
		}
		cur, owned = next, true
	}
	m.pushFrontier(cur)
	return true
}

// acceptStop terminates the matcher if the accepted bytes form a complete
// sentence. Termination is recorded as an empty frontier, so it
// participates in rollback like any other accept.
func (m *Matcher) acceptStop() bool {
	if !m.canComplete(m.current()) {
		return false
	}
	m.pushFrontier(nil)
	return true
}

func (m *Matcher) canComplete(tops []nodeRef) bool {
	for _, r := range tops {
		if m.completed(m.store.get(r).nodeKey) {
			return true
		}
	}
	return false
}
