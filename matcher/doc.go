// Package matcher implements the grammar-guided matching automaton and
// the next-token mask computation built on top of it.
//
// A Matcher tracks, for one generation sequence, every way the bytes
// accepted so far could parse under a grammar. The state is a frontier:
// a set of parser stacks, stored as a tree of positions in a shared arena
// so that stacks with common suffixes share nodes and a snapshot is just
// a set of arena pointers. Accepting a token advances the frontier one
// byte at a time through the token's effective bytes and records the
// prior frontier in a bounded rollback log; computing a mask walks the
// vocabulary trie against the frontier, sharing the work for every common
// token prefix.
//
// A Matcher may share its Grammar and vocabulary Index with any number of
// other matchers, but the Matcher itself must only ever be used by one
// goroutine at a time. This is asserted at run time; see the guard in
// this package.
package matcher
