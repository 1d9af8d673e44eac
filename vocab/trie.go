package vocab

import (
	"slices"
)

// Trie is a byte trie over the effective bytes of every matchable token
// in a vocabulary. Many tokens share prefixes; the matcher walks the trie
// depth-first so each shared prefix is matched against the grammar once,
// no matter how many tokens it is a prefix of.
//
// Special and stop tokens are not in the trie; they never match grammar
// content.
type Trie struct {
	nodes []trieNode
}

type trieNode struct {
	edges []Edge
	// ids of tokens whose effective bytes end at this node
	terminals []int32
}

// Edge is one labeled transition of a trie node.
type Edge struct {
	Byte byte
	Node int32
}

// buildTrie indexes every matchable token of idx.
func buildTrie(idx *Index) *Trie {
	t := &Trie{nodes: make([]trieNode, 1)}
	for id := range idx.eff {
		if idx.special[id] || idx.stop[id] {
			continue
		}
		t.insert(idx.eff[id], int32(id))
	}
	// Sort edges for deterministic traversal order.
	for i := range t.nodes {
		slices.SortFunc(t.nodes[i].edges, func(a, b Edge) int {
			return int(a.Byte) - int(b.Byte)
		})
	}
	return t
}

func (t *Trie) insert(key []byte, id int32) {
	n := int32(0)
	for _, b := range key {
		next := int32(-1)
		for _, e := range t.nodes[n].edges {
			if e.Byte == b {
				next = e.Node
				break
			}
		}
		if next < 0 {
			next = int32(len(t.nodes))
			t.nodes = append(t.nodes, trieNode{})
			t.nodes[n].edges = append(t.nodes[n].edges, Edge{Byte: b, Node: next})
		}
		n = next
	}
	t.nodes[n].terminals = append(t.nodes[n].terminals, id)
}

// Root returns the node id of the trie root.
func (t *Trie) Root() int32 {
	return 0
}

// Edges returns the outgoing edges of the given node, ordered by byte.
// The returned slice aliases the trie's storage and must not be mutated.
func (t *Trie) Edges(n int32) []Edge {
	return t.nodes[n].edges
}

// Terminals returns the ids of tokens whose effective bytes end at the
// given node.
func (t *Trie) Terminals(n int32) []int32 {
	return t.nodes[n].terminals
}

// NumNodes returns the number of nodes in the trie, including the root.
func (t *Trie) NumNodes() int {
	return len(t.nodes)
}
