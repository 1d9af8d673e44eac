package matcher

import (
	"fmt"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// ownerGuard asserts at run time that a Matcher is only entered by one
// goroutine at a time. Every operation mutates the node store, including
// mask computation, so concurrent use is a data race even for calls that
// look read-only. Catching it here turns a silent corruption into a
// panic that names both goroutines.
type ownerGuard struct {
	owner atomic.Int64
}

func (g *ownerGuard) enter() {
	id := goid.Get()
	for !g.owner.CompareAndSwap(0, id) {
		owner := g.owner.Load()
		if owner == 0 {
			// The owner exited between the swap and the load; the guard
			// is free again, so take it.
			continue
		}
		panic(fmt.Sprintf("matcher: concurrent use by goroutines %d and %d; a Matcher must be confined to one goroutine at a time", owner, id))
	}
}

func (g *ownerGuard) exit() {
	g.owner.Store(0)
}
