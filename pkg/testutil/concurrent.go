package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"docucred/pkg/platform/sentinel"
)

// ConcurrentResult counts outcomes of RunConcurrent.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

// RunConcurrent releases n goroutines at once and waits for all of them.
// sentinel.ErrAlreadyUsed counts as a conflict and sentinel.ErrNotFound as
// not found; any other error is counted in Errors.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		buckets [4]atomic.Int32
	)
	const (
		ok = iota
		failed
		conflict
		notFound
	)

	for i := range n {
		wg.Go(func() {
			<-start
			switch err := fn(i); {
			case err == nil:
				buckets[ok].Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				buckets[conflict].Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				buckets[notFound].Add(1)
			default:
				buckets[failed].Add(1)
			}
		})
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: buckets[ok].Load(),
		Errors:    buckets[failed].Load(),
		Conflicts: buckets[conflict].Load(),
		NotFounds: buckets[notFound].Load(),
	}
}
