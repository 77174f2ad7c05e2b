// Package quorum implements a fault-tolerant parallel query coordinator.
//
// Given a single argument and a list of equivalent server functions, Client
// runs several of them concurrently and reconciles their outputs under a
// pluggable ConsistencyPolicy, returning one trustworthy result or a
// taxonomized failure. It is the piece a wallet uses to cross-check
// multiple blockchain RPC endpoints without trusting any single one — see
// SPEC_FULL.md for the surrounding wallet components that consume it.
package quorum

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"
)

// Settings configures one Query call. MaxParallel bounds the number of
// buckets (and therefore outstanding server calls); Retries bounds
// retries of the "no responses" class; RetriesForInconsistency bounds
// retries of the "responses disagree" class.
type Settings[R comparable] struct {
	MaxParallel             uint16
	Policy                  ConsistencyPolicy[R]
	Retries                 uint16
	RetriesForInconsistency uint16
	Logger                  *zerolog.Logger

	// OnRetry, if set, is invoked once per retry round, immediately before
	// the retried attempt runs, with the class of retry: "no_successes"
	// (Case A), "inconsistency" (Case B), or "shortfall" (Case C). Callers
	// use this to surface retry counts without Query itself depending on
	// any metrics library.
	OnRetry func(class string)
}

func (s Settings[R]) onRetry(class string) {
	if s.OnRetry != nil {
		s.OnRetry(class)
	}
}

func (s Settings[R]) logger() zerolog.Logger {
	if s.Logger != nil {
		return *s.Logger
	}
	return zerolog.Nop()
}

// Client coordinates queries whose server functions share argument type A,
// result type R, and recoverable-error type E. R must support total
// equality (comparable); E must be a proper marker type for recoverable
// connection errors, never the universal error interface.
type Client[A any, R comparable, E error] struct{}

// NewClient constructs a Client. Construction fails if E is literally the
// universal `error` interface — callers must define a named recoverable
// error type so that non-recoverable bugs are never silently swallowed.
// Go's type system cannot express "a proper subtype of error" at compile
// time, so this is a runtime guard (see SPEC_FULL.md §9 / spec.md §9).
func NewClient[A any, R comparable, E error]() (*Client[A, R, E], error) {
	var zero E
	errType := reflect.TypeOf((*error)(nil)).Elem()
	if reflect.TypeOf(&zero).Elem() == errType {
		return nil, &ConfigurationError{Reason: "E must not be the universal error type"}
	}
	return &Client[A, R, E]{}, nil
}

// Query validates settings, fans work out across buckets, reconciles
// results under the consistency policy, and retries each failure class
// under its own budget. It returns exactly one R on success, or one of
// ConfigurationError, NoneAvailableError, NotEnoughAvailableError,
// InconsistentError, or a propagated non-E error from a server function.
func (c *Client[A, R, E]) Query(
	ctx context.Context,
	settings Settings[R],
	arg A,
	funcs []ServerFunc[A, R],
) (R, error) {
	var zero R

	if err := validate(settings, funcs); err != nil {
		return zero, err
	}

	log := settings.logger()

	var (
		resultsSoFar  []R
		failuresSoFar []Failure[A, R, E]
		firstCause    error
		retriesUsed   uint16
		inconsistency uint16
	)

	active := funcs

	for {
		outcome, err := c.runAttempt(ctx, settings, arg, active, resultsSoFar)
		if err != nil {
			return zero, err
		}

		switch outcome.kind {
		case outcomeConsistent, outcomeAveraged:
			log.Debug().
				Str("outcome", outcomeKindName(outcome.kind)).
				Int("successes", len(outcome.results)).
				Msg("quorum query satisfied")
			return outcome.value, nil

		case outcomeNotEnough:
			resultsSoFar = outcome.results
			failuresSoFar = append(failuresSoFar, outcome.failures...)
			if len(outcome.failures) > 0 && firstCause == nil {
				firstCause = outcome.failures[0].Err
			}

			if len(resultsSoFar) == 0 {
				// Case A: no successes at all.
				if retriesUsed == settings.Retries {
					return zero, &NoneAvailableError{Cause: firstCause}
				}
				retriesUsed++
				active = failedFuncs(failuresSoFar)
				failuresSoFar = nil
				settings.onRetry("no_successes")
				log.Debug().Uint16("retries_used", retriesUsed).Msg("quorum: retrying after no successes")
				continue
			}

			if settings.Policy.IsCount() {
				// Case B: some successes, Count policy, not enough agreement.
				if inconsistency == settings.RetriesForInconsistency {
					tally := Tally(resultsSoFar)
					top := 0
					if len(tally) > 0 {
						top = tally[0].Count
					}
					return zero, &InconsistentError{
						TotalSuccesses: len(resultsSoFar),
						TopTally:       top,
						Required:       settings.Policy.N(),
					}
				}
				inconsistency++
				active = funcs
				resultsSoFar = nil
				failuresSoFar = nil
				settings.onRetry("inconsistency")
				log.Debug().Uint16("inconsistency_retries_used", inconsistency).Msg("quorum: retrying after inconsistency")
				continue
			}

			// Case C: some successes, Average policy, fewer than m.
			if retriesUsed == settings.Retries {
				return zero, &NotEnoughAvailableError{Cause: firstCause}
			}
			retriesUsed++
			active = failedFuncs(failuresSoFar)
			settings.onRetry("shortfall")
			log.Debug().Uint16("retries_used", retriesUsed).Msg("quorum: retrying average after shortfall")
			continue
		}
	}
}

func failedFuncs[A any, R any, E error](failures []Failure[A, R, E]) []ServerFunc[A, R] {
	out := make([]ServerFunc[A, R], 0, len(failures))
	for _, f := range failures {
		out = append(out, f.Func)
	}
	return out
}

func validate[A any, R comparable](settings Settings[R], funcs []ServerFunc[A, R]) error {
	if len(funcs) == 0 {
		return &ConfigurationError{Reason: "functions must be non-empty"}
	}
	if settings.MaxParallel < 1 {
		return &ConfigurationError{Reason: "max_parallel must be >= 1"}
	}
	if settings.Policy.IsCount() {
		if settings.Policy.N() < 1 {
			return &ConfigurationError{Reason: "Count policy requires n >= 1"}
		}
		if len(funcs) < settings.Policy.N() {
			return &ConfigurationError{Reason: "Count policy requires n <= number of functions"}
		}
	} else {
		if settings.Policy.M() < 1 {
			return &ConfigurationError{Reason: "Average policy requires m >= 1"}
		}
		if settings.Policy.M() > int(settings.MaxParallel) {
			return &ConfigurationError{Reason: "Average policy requires m <= max_parallel"}
		}
	}
	return nil
}
