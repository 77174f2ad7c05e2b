package quorum

import "sort"

// ConsistencyPolicy decides when a growing set of successful results is
// sufficient to answer a query. It is a tagged variant: exactly one of
// Count or Average applies, never both.
type ConsistencyPolicy[R comparable] struct {
	kind policyKind
	n    int
	m    int
	agg  func([]R) R
}

type policyKind int

const (
	policyCount policyKind = iota
	policyAverage
)

// Count builds a policy that succeeds as soon as n results agree
// (bit-equal under R's equality).
func Count[R comparable](n int) ConsistencyPolicy[R] {
	return ConsistencyPolicy[R]{kind: policyCount, n: n}
}

// Average builds a policy that succeeds as soon as m results exist,
// returning agg(results) regardless of whether they agree.
func Average[R comparable](m int, agg func([]R) R) ConsistencyPolicy[R] {
	return ConsistencyPolicy[R]{kind: policyAverage, m: m, agg: agg}
}

// IsCount reports whether the policy is a Count policy.
func (p ConsistencyPolicy[R]) IsCount() bool { return p.kind == policyCount }

// N returns the required agreement count for a Count policy.
func (p ConsistencyPolicy[R]) N() int { return p.n }

// M returns the required sample size for an Average policy.
func (p ConsistencyPolicy[R]) M() int { return p.m }

// TallyEntry is one (value, count) pair produced by Tally.
type TallyEntry[R comparable] struct {
	Value R
	Count int
}

// Tally groups results by equality and returns (value, count) pairs sorted
// by count descending. An empty input yields an empty tally.
func Tally[R comparable](results []R) []TallyEntry[R] {
	counts := make(map[R]int, len(results))
	order := make([]R, 0, len(results))
	for _, r := range results {
		if _, seen := counts[r]; !seen {
			order = append(order, r)
		}
		counts[r]++
	}

	entries := make([]TallyEntry[R], 0, len(order))
	for _, v := range order {
		entries = append(entries, TallyEntry[R]{Value: v, Count: counts[v]})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries
}

// evaluate checks results against the policy. ok is true only when the
// policy's success condition is met; value is the answer in that case.
func (p ConsistencyPolicy[R]) evaluate(results []R) (value R, ok bool) {
	switch p.kind {
	case policyCount:
		tally := Tally(results)
		if len(tally) == 0 {
			return value, false
		}
		top := tally[0]
		if top.Count == p.n {
			return top.Value, true
		}
		return value, false
	case policyAverage:
		if len(results) >= p.m {
			return p.agg(results), true
		}
		return value, false
	default:
		return value, false
	}
}
