package matcher

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// FillNextTokenMaskBatch computes the next-token mask of every matcher in
// parallel, writing into the mask with the same index. Each matcher is
// touched by exactly one goroutine, so sharing grammars and vocabularies
// between the matchers is fine. At most parallelism masks are computed
// concurrently; zero or negative means one per CPU.
//
// The first error stops the batch and is returned; masks other than the
// failing one may or may not have been filled.
func FillNextTokenMaskBatch(ctx context.Context, matchers []*Matcher, masks []*Mask, parallelism int) error {
	if len(matchers) != len(masks) {
		return fmt.Errorf("got %d matchers but %d masks", len(matchers), len(masks))
	}
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	sem := semaphore.NewWeighted(int64(parallelism))
	grp, ctx := errgroup.WithContext(ctx)
	var acquireErr error
	for i := range matchers {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		grp.Go(func() error {
			defer sem.Release(1)
			return matchers[i].FillNextTokenMask(masks[i])
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	return acquireErr
}
