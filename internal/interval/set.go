// Package interval provides a set of closed integer intervals, used to
// represent character class membership.
//
// Character classes are stored as sets of inclusive rune ranges. Matching
// a partially-read UTF-8 sequence requires asking not just "is this rune
// in the class" but "could any rune in this range be in the class", so the
// set supports containment, overlap, and coverage queries.
package interval

import (
	"fmt"
	"iter"
	"strings"

	"github.com/tidwall/btree"
	"golang.org/x/exp/constraints"
)

// Set is a set of closed intervals with endpoints in K. Overlapping and
// adjacent intervals are coalesced on insertion, so the set always holds
// the minimal number of disjoint ranges.
//
// A zero value is ready to use.
type Set[K constraints.Integer] struct {
	// Keys in this tree are the ends of intervals in the set; values are
	// the corresponding starts. Invariant: intervals are disjoint and
	// non-adjacent, so iteration order by end is also order by start.
	tree btree.Map[K, K]
}

// Range is one interval of a [Set]. Both endpoints are inclusive.
type Range[K constraints.Integer] struct {
	Start, End K
}

// Insert adds [start, end] to the set, coalescing with any intervals it
// overlaps or abuts.
func (s *Set[K]) Insert(start, end K) {
	if start > end {
		panic(fmt.Sprintf("interval: start (%#v) > end (%#v)", start, end))
	}

	var dead []K

	// The greatest interval ending before start abuts [start, end] if it
	// ends exactly at start-1. When no interval ends at or after start,
	// that candidate is the set's last interval.
	it := s.tree.Iter()
	if ok := it.Seek(start); ok && it.Prev() || !ok && it.Last() {
		if d := it.Key(); d+1 == start {
			start = it.Value()
			dead = append(dead, d)
		}
	}

	// Every interval [c, d] with d >= start and c <= end+1 overlaps or
	// abuts [start, end]; fold each into the new interval. The break
	// condition is written c-1 > end to avoid overflow on end+1; c-1 is
	// safe because c > end there.
	it = s.tree.Iter()
	for ok := it.Seek(start); ok; ok = it.Next() {
		c, d := it.Value(), it.Key()
		if c > end && c-1 > end {
			break
		}
		if c < start {
			start = c
		}
		if d > end {
			end = d
		}
		dead = append(dead, d)
	}

	for _, d := range dead {
		s.tree.Delete(d)
	}
	s.tree.Set(end, start)
}

// Contains reports whether k lies within some interval of the set.
func (s *Set[K]) Contains(k K) bool {
	// Seek finds the least end >= k; k is contained iff that interval's
	// start is <= k.
	it := s.tree.Iter()
	return it.Seek(k) && it.Value() <= k
}

// Overlaps reports whether any point of [start, end] lies within the set.
func (s *Set[K]) Overlaps(start, end K) bool {
	// The least interval ending at or after start is the only candidate.
	it := s.tree.Iter()
	return it.Seek(start) && it.Value() <= end
}

// Covers reports whether every point of [start, end] lies within the set.
// Because intervals are coalesced, this holds iff a single interval
// contains the whole query.
func (s *Set[K]) Covers(start, end K) bool {
	it := s.tree.Iter()
	return it.Seek(start) && it.Value() <= start && end <= it.Key()
}

// Len returns the number of disjoint intervals in the set.
func (s *Set[K]) Len() int {
	return s.tree.Len()
}

// Ranges returns an iterator over the intervals of the set, in order.
func (s *Set[K]) Ranges() iter.Seq[Range[K]] {
	return func(yield func(Range[K]) bool) {
		it := s.tree.Iter()
		for ok := it.First(); ok; ok = it.Next() {
			if !yield(Range[K]{Start: it.Value(), End: it.Key()}) {
				return
			}
		}
	}
}

// String implements [fmt.Stringer].
func (s *Set[K]) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for r := range s.Ranges() {
		if !first {
			b.WriteString(", ")
		}
		first = false
		if r.Start == r.End {
			fmt.Fprintf(&b, "%#v", r.Start)
		} else {
			fmt.Fprintf(&b, "[%#v, %#v]", r.Start, r.End)
		}
	}
	b.WriteByte('}')
	return b.String()
}
