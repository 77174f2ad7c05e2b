package quorum

import "context"

type outcomeKind int

const (
	outcomeConsistent outcomeKind = iota
	outcomeAveraged
	outcomeNotEnough
)

func outcomeKindName(k outcomeKind) string {
	switch k {
	case outcomeConsistent:
		return "consistent"
	case outcomeAveraged:
		return "averaged"
	default:
		return "not_enough"
	}
}

// attemptOutcome is the result of one attempt round: either a final value
// (Consistent/Averaged) or NotEnough with everything gathered so buckets
// exhausted without satisfying the policy.
type attemptOutcome[A any, R any, E error] struct {
	kind     outcomeKind
	value    R
	results  []R
	failures []Failure[A, R, E]
}

// runAttempt launches exactly MaxParallel buckets over funcs and drives the
// completion loop: await the first bucket to finish, fold its outcome into
// the running state, re-launch its continuation on success, re-evaluate the
// consistency policy. A fatal (non-E) error from any bucket aborts the
// whole attempt immediately. seedResults lets Average-policy retries carry
// forward results gathered in a prior round (Case C in SPEC_FULL.md §4.5).
func (c *Client[A, R, E]) runAttempt(
	ctx context.Context,
	settings Settings[R],
	arg A,
	funcs []ServerFunc[A, R],
	seedResults []R,
) (attemptOutcome[A, R, E], error) {
	var zero attemptOutcome[A, R, E]

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	buckets := partition(funcs, int(settings.MaxParallel))
	events := make(chan bucketEvent[A, R, E])
	resumes := make([]chan bool, len(buckets))

	inFlight := 0
	for i, b := range buckets {
		resumes[i] = make(chan bool)
		inFlight++
		go runBucket[A, R, E](runCtx, arg, b, i, events, resumes[i])
	}

	resultsSoFar := append([]R(nil), seedResults...)
	var failuresSoFar []Failure[A, R, E]

	for inFlight > 0 {
		ev := <-events

		if ev.fatal != nil {
			return zero, ev.fatal
		}

		failuresSoFar = append(failuresSoFar, ev.newFailure...)

		if ev.exhausted {
			inFlight--
			continue
		}

		resultsSoFar = append(resultsSoFar, ev.result)

		if value, ok := settings.Policy.evaluate(resultsSoFar); ok {
			kind := outcomeConsistent
			if !settings.Policy.IsCount() {
				kind = outcomeAveraged
			}
			return attemptOutcome[A, R, E]{kind: kind, value: value, results: resultsSoFar}, nil
		}

		// Not sufficient yet: let the bucket continue with its remaining
		// pending functions. It will notice ctx cancellation on its own if
		// a later event ends the attempt before it wakes up.
		select {
		case resumes[ev.bucket] <- true:
		case <-runCtx.Done():
		}
	}

	return attemptOutcome[A, R, E]{
		kind:     outcomeNotEnough,
		results:  resultsSoFar,
		failures: failuresSoFar,
	}, nil
}
