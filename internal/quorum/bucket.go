package quorum

import (
	"context"
	"errors"
)

// ServerFunc is a synchronous computation from A to R that may fail with a
// recoverable error E. Any error it returns that is not (via errors.As) an
// E is treated as a programming bug and propagated immediately, aborting
// the whole Query.
type ServerFunc[A any, R any] func(ctx context.Context, arg A) (R, error)

// Failure pairs a failing server function with the exact recoverable error
// it produced, in order of first failure.
type Failure[A any, R any, E error] struct {
	Func ServerFunc[A, R]
	Err  E
}

// partition splits funcs into exactly p contiguous buckets using a fair
// split: when len(funcs) > p, the first (len(funcs) % p) buckets get one
// extra element; when len(funcs) < p, the trailing buckets are empty.
func partition[A any, R any](funcs []ServerFunc[A, R], p int) [][]ServerFunc[A, R] {
	buckets := make([][]ServerFunc[A, R], p)
	n := len(funcs)
	base := n / p
	rem := n % p

	idx := 0
	for i := 0; i < p; i++ {
		size := base
		if i < rem {
			size++
		}
		buckets[i] = funcs[idx : idx+size : idx+size]
		idx += size
	}
	if len(buckets) != p {
		panic("quorum: partition did not yield exactly p buckets")
	}
	return buckets
}

// bucketEvent is what a bucket goroutine reports to the completion loop:
// either a success (with any failures observed since the last event) or
// exhaustion (no more pending functions). A fatal, non-E error is reported
// separately via fatal and ends the whole query.
type bucketEvent[A any, R any, E error] struct {
	bucket     int
	newFailure []Failure[A, R, E]
	success    bool
	result     R
	exhausted  bool
	fatal      error
}

// runBucket drives one bucket's pending functions in declaration order. On
// success it reports the result and then blocks on resume, re-entering the
// driving loop only when told to continue — this is the "do no further
// work until the continuation is driven" rule from the bucket runner
// contract: the goroutine is parked, not polling, between successes.
func runBucket[A any, R any, E error](
	ctx context.Context,
	arg A,
	funcs []ServerFunc[A, R],
	bucketID int,
	events chan<- bucketEvent[A, R, E],
	resume <-chan bool,
) {
	var pending []Failure[A, R, E]
	reported := 0

	emit := func(ev bucketEvent[A, R, E]) bool {
		ev.newFailure = pending[reported:]
		reported = len(pending)
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, fn := range funcs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r, err := fn(ctx, arg)
		if err == nil {
			if !emit(bucketEvent[A, R, E]{bucket: bucketID, success: true, result: r}) {
				return
			}

			select {
			case cont, open := <-resume:
				if !open || !cont {
					return
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		var recoverable E
		if errors.As(err, &recoverable) {
			pending = append(pending, Failure[A, R, E]{Func: fn, Err: recoverable})
			continue
		}

		select {
		case events <- bucketEvent[A, R, E]{bucket: bucketID, fatal: err}:
		case <-ctx.Done():
		}
		return
	}

	emit(bucketEvent[A, R, E]{bucket: bucketID, exhausted: true})
}
