// Package arena defines an Arena type with compressed pointers.
//
// Grammar expressions and matcher stack nodes are allocated in arenas and
// refer to each other by 32-bit arena pointers rather than Go pointers.
// This keeps the structures compact, makes structural equality a word
// compare, and lets snapshots of the matcher frontier be plain index sets.
package arena

import (
	"fmt"
	"iter"
	"math/bits"
)

// chunkMinLenShift is the log2 of the size of the smallest chunk in an Arena.
const (
	chunkMinLenShift = 4
	chunkMinLen      = 1 << chunkMinLenShift
)

// An untyped arena pointer.
//
// The pointer value of a particular pointer in an arena is equal to one
// plus the number of elements allocated before it.
type Untyped uint32

// Nil returns a nil arena pointer.
func Nil() Untyped {
	return 0
}

// Nil returns whether this pointer is nil.
func (p Untyped) Nil() bool {
	return p == 0
}

// A compressed arena pointer.
//
// Cannot be dereferenced directly; see [Pointer.In].
//
// The zero value is nil.
type Pointer[T any] Untyped

// Nil returns whether this pointer is nil.
func (p Pointer[T]) Nil() bool {
	return Untyped(p).Nil()
}

// In looks up this pointer in the given arena.
//
// arena must be the arena that allocated this pointer, otherwise this will
// either return an arbitrary pointer or panic. If p is nil, this panics.
func (p Pointer[T]) In(arena *Arena[T]) *T {
	return arena.At(Untyped(p))
}

// Arena is an allocator that offers compressed pointers. Internally, it is
// a slice of T that guarantees the Ts will never be moved.
//
// It does this by maintaining a table of logarithmically-growing chunks
// that mimic the resizing behavior of an ordinary slice. This trades off
// the linear 8-byte overhead of []*T for a logarithmic 24-byte overhead.
// Lookup time remains O(1), at the cost of two pointer loads instead of one.
//
// A zero Arena[T] is empty and ready to use.
type Arena[T any] struct {
	// Invariants:
	// 1. cap(table[0]) == 1<<chunkMinLenShift.
	// 2. cap(table[n]) == 2*cap(table[n-1]).
	// 3. cap(table[n]) == len(table[n]) for n < len(table)-1.
	//
	// These invariants are needed for lookup to be O(1).
	table [][]T
}

// New allocates a new value on the arena.
func (a *Arena[T]) New(value T) Pointer[T] {
	if a.table == nil {
		a.table = [][]T{make([]T, 0, chunkMinLen)}
	}

	last := &a.table[len(a.table)-1]
	if len(*last) == cap(*last) {
		a.table = append(a.table, make([]T, 0, 2*cap(*last)))
		last = &a.table[len(a.table)-1]
	}

	*last = append(*last, value)
	return Pointer[T](Untyped(a.Len()))
}

// At dereferences an untyped arena pointer, as if by [Pointer.In].
func (a *Arena[T]) At(ptr Untyped) *T {
	if ptr.Nil() {
		a = nil // Trigger an ordinary nil dereference on purpose.
	}
	chunk, idx := a.coordinates(int(ptr) - 1)
	return &a.table[chunk][idx]
}

// Len returns the number of values allocated on this arena.
func (a *Arena[T]) Len() int {
	if len(a.table) == 0 {
		return 0
	}

	// Only the last chunk will be not-fully-filled.
	return a.lenOfFirstNChunks(len(a.table)-1) + len(a.table[len(a.table)-1])
}

// Values returns an iterator over all allocated values, in allocation order.
func (a *Arena[T]) Values() iter.Seq2[Untyped, *T] {
	return func(yield func(Untyped, *T) bool) {
		n := Untyped(1)
		for i := range a.table {
			for j := range a.table[i] {
				if !yield(n, &a.table[i][j]) {
					return
				}
				n++
			}
		}
	}
}

// lenOfNthChunk returns the length of the nth chunk, even if it isn't
// allocated yet.
func (*Arena[T]) lenOfNthChunk(n int) int {
	return chunkMinLen << n
}

// lenOfFirstNChunks returns the length of the first n chunks.
func (a *Arena[T]) lenOfFirstNChunks(n int) int {
	// 2^m + 2^(m+1) + ... + 2^n = 2^(n+1) - 2^m, so the sum of
	// lenOfNthChunk from 0 to n-1 is:
	return max(0, a.lenOfNthChunk(n)-a.lenOfNthChunk(0))
}

// coordinates calculates the coordinates of the given index in table. It
// also performs a bounds check.
func (a *Arena[T]) coordinates(idx int) (int, int) {
	if idx >= a.Len() || idx < 0 {
		panic(fmt.Sprintf("arena: pointer out of range: %#x", idx))
	}

	// The cumulative starting index of each chunk, with chunkMinLenShift
	// == n, is 0b0<<n, 0b1<<n, 0b11<<n, 0b111<<n, ... Adding chunkMinLen
	// maps this to 0b1<<n, 0b10<<n, 0b100<<n, ... so the one-indexed
	// high-order bit, minus n+1, is the chunk index.
	chunk := bits.UintSize - bits.LeadingZeros(uint(idx)+chunkMinLen)
	chunk -= chunkMinLenShift + 1

	// The offset within table[chunk] is what remains after subtracting
	// off the lengths of all prior chunks.
	idx -= a.lenOfFirstNChunks(chunk)

	return chunk, idx
}
