package quorum

import "fmt"

// ConfigurationError is raised synchronously, before any server call, when
// settings or arguments violate a precondition. It is never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("quorum: invalid configuration: %s", e.Reason)
}

// NoneAvailableError means every server function failed with E across all
// retry rounds. Cause is the very first E observed, across every round.
type NoneAvailableError struct {
	Cause error
}

func (e *NoneAvailableError) Error() string {
	return fmt.Sprintf("quorum: no server available, first cause: %v", e.Cause)
}

func (e *NoneAvailableError) Unwrap() error { return e.Cause }

// NotEnoughAvailableError means an Average policy had some successes but
// never reached m after exhausting the retry budget. Cause is the first E
// observed, across every round.
type NotEnoughAvailableError struct {
	Cause error
}

func (e *NotEnoughAvailableError) Error() string {
	return fmt.Sprintf("quorum: not enough servers available, first cause: %v", e.Cause)
}

func (e *NotEnoughAvailableError) Unwrap() error { return e.Cause }

// InconsistentError means a Count policy had successes but never reached n
// agreements after exhausting the inconsistency retry budget.
type InconsistentError struct {
	TotalSuccesses int
	TopTally       int
	Required       int
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf(
		"quorum: inconsistent results: %d successes, top agreement %d, required %d",
		e.TotalSuccesses, e.TopTally, e.Required,
	)
}
