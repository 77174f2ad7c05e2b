package quorum

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// recoverableErr is the test suite's concrete recoverable-error marker: a
// proper named type, never the universal `error` interface.
type recoverableErr struct {
	msg string
}

func (e *recoverableErr) Error() string { return e.msg }

func fatalErr(msg string) error { return errors.New(msg) }

func constFunc(v int) ServerFunc[struct{}, int] {
	return func(ctx context.Context, _ struct{}) (int, error) {
		return v, nil
	}
}

func countingFunc(v int, calls *int64) ServerFunc[struct{}, int] {
	return func(ctx context.Context, _ struct{}) (int, error) {
		atomic.AddInt64(calls, 1)
		return v, nil
	}
}

func failingFunc(err error) ServerFunc[struct{}, int] {
	return func(ctx context.Context, _ struct{}) (int, error) {
		return 0, err
	}
}

func sumAverage(results []int) int {
	total := 0
	for _, r := range results {
		total += r
	}
	return total / len(results)
}

func TestNewClient_RejectsUniversalErrorType(t *testing.T) {
	_, err := NewClient[struct{}, int, error]()
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewClient_AcceptsNamedRecoverableType(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)
	require.NotNil(t, c)
}

// Scenario 1: three servers, require 2 consistent, all return 42.
func TestQuery_ThreeServersRequireTwoConsistent_AllAgree(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	var calls int64
	funcs := []ServerFunc[struct{}, int]{
		countingFunc(42, &calls),
		countingFunc(42, &calls),
		countingFunc(42, &calls),
	}

	settings := Settings[int]{MaxParallel: 3, Policy: Count[int](2)}
	result, err := c.Query(context.Background(), settings, struct{}{}, funcs)
	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
	require.LessOrEqual(t, atomic.LoadInt64(&calls), int64(3))
}

// Scenario 2: split vote, two agree on 1.
func TestQuery_SplitVote_TwoAgree(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	funcs := []ServerFunc[struct{}, int]{
		constFunc(1),
		constFunc(1),
		constFunc(2),
	}

	settings := Settings[int]{MaxParallel: 3, Policy: Count[int](2), RetriesForInconsistency: 0}
	result, err := c.Query(context.Background(), settings, struct{}{}, funcs)
	require.NoError(t, err)
	require.Equal(t, 1, result)
}

// Scenario 3: average of 10, 20, 30 is 20.
func TestQuery_Average(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	funcs := []ServerFunc[struct{}, int]{
		constFunc(10),
		constFunc(20),
		constFunc(30),
	}

	settings := Settings[int]{MaxParallel: 3, Policy: Average[int](3, sumAverage)}
	result, err := c.Query(context.Background(), settings, struct{}{}, funcs)
	require.NoError(t, err)
	require.Equal(t, 20, result)
}

// Scenario 4: all fail, then NoneAvailable with first cause preserved.
//
// MaxParallel is pinned to 1 so both functions land in the same bucket and
// run sequentially in declaration order (see partition/runBucket in
// bucket.go); with more than one bucket, which one's failure reaches
// failuresSoFar[0] first is implementation-defined, since both funcs return
// synchronously and their buckets race to emit on the same channel.
func TestQuery_AllFail_NoneAvailable(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	first := &recoverableErr{msg: "first"}
	second := &recoverableErr{msg: "second"}

	funcs := []ServerFunc[struct{}, int]{
		failingFunc(first),
		failingFunc(second),
	}

	settings := Settings[int]{MaxParallel: 1, Policy: Count[int](1), Retries: 0}
	_, err = c.Query(context.Background(), settings, struct{}{}, funcs)
	require.Error(t, err)

	var noneErr *NoneAvailableError
	require.ErrorAs(t, err, &noneErr)
	require.Equal(t, first, noneErr.Cause)
}

// Scenario 5: a fatal error escapes even though two good servers exist.
func TestQuery_FatalEscapes(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	fatal := fatalErr("boom")
	funcs := []ServerFunc[struct{}, int]{
		failingFunc(fatal),
		constFunc(7),
		constFunc(7),
	}

	settings := Settings[int]{MaxParallel: 3, Policy: Count[int](2)}
	_, err = c.Query(context.Background(), settings, struct{}{}, funcs)
	require.Error(t, err)
	require.ErrorIs(t, err, fatal)

	var noneErr *NoneAvailableError
	require.False(t, errors.As(err, &noneErr))
}

// Scenario 6: inconsistency retry consumes its budget, then fails with
// the literal (total, top, required) numbers.
func TestQuery_InconsistencyRetryBudget(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	funcs := make([]ServerFunc[struct{}, int], 6)
	for i := range funcs {
		funcs[i] = constFunc(i)
	}

	settings := Settings[int]{MaxParallel: 6, Policy: Count[int](2), RetriesForInconsistency: 1}
	_, err = c.Query(context.Background(), settings, struct{}{}, funcs)
	require.Error(t, err)

	var inconsistentErr *InconsistentError
	require.ErrorAs(t, err, &inconsistentErr)
	require.Equal(t, 6, inconsistentErr.TotalSuccesses)
	require.Equal(t, 1, inconsistentErr.TopTally)
	require.Equal(t, 2, inconsistentErr.Required)
}

func TestQuery_ConfigurationRejection(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	cases := []struct {
		name     string
		settings Settings[int]
		funcs    []ServerFunc[struct{}, int]
	}{
		{
			name:     "empty functions",
			settings: Settings[int]{MaxParallel: 1, Policy: Count[int](1)},
			funcs:    nil,
		},
		{
			name:     "max_parallel zero",
			settings: Settings[int]{MaxParallel: 0, Policy: Count[int](1)},
			funcs:    []ServerFunc[struct{}, int]{constFunc(1)},
		},
		{
			name:     "count n exceeds functions",
			settings: Settings[int]{MaxParallel: 1, Policy: Count[int](2)},
			funcs:    []ServerFunc[struct{}, int]{constFunc(1)},
		},
		{
			name:     "average m exceeds max_parallel",
			settings: Settings[int]{MaxParallel: 1, Policy: Average[int](2, sumAverage)},
			funcs:    []ServerFunc[struct{}, int]{constFunc(1), constFunc(2)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Query(context.Background(), tc.settings, struct{}{}, tc.funcs)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestQuery_Average_RetainsResultsAcrossRetries(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	attempt := 0
	flaky := func(ctx context.Context, _ struct{}) (int, error) {
		attempt++
		if attempt == 1 {
			return 0, &recoverableErr{msg: "transient"}
		}
		return 99, nil
	}

	funcs := []ServerFunc[struct{}, int]{
		constFunc(10),
		constFunc(20),
		flaky,
	}

	settings := Settings[int]{MaxParallel: 3, Policy: Average[int](3, sumAverage), Retries: 1}
	result, err := c.Query(context.Background(), settings, struct{}{}, funcs)
	require.NoError(t, err)
	require.Equal(t, (10+20+99)/3, result)
}

func TestQuery_AtMostOneInvocationPerFunctionPerRound(t *testing.T) {
	c, err := NewClient[struct{}, int, *recoverableErr]()
	require.NoError(t, err)

	var calls int64
	funcs := []ServerFunc[struct{}, int]{
		countingFunc(9, &calls),
		countingFunc(9, &calls),
		countingFunc(9, &calls),
		countingFunc(9, &calls),
	}

	// Two buckets of two functions each: reaching Count(4) requires every
	// bucket to drive both of its functions via continuation.
	settings := Settings[int]{MaxParallel: 2, Policy: Count[int](4)}
	result, err := c.Query(context.Background(), settings, struct{}{}, funcs)
	require.NoError(t, err)
	require.Equal(t, 9, result)
	require.Equal(t, int64(4), atomic.LoadInt64(&calls))
}

func TestTally_SortsByCountDescending(t *testing.T) {
	entries := Tally([]int{1, 2, 2, 3, 3, 3})
	require.Len(t, entries, 3)
	require.Equal(t, 3, entries[0].Value)
	require.Equal(t, 3, entries[0].Count)
}

func TestPartition_FairSplit(t *testing.T) {
	funcs := make([]ServerFunc[struct{}, int], 7)
	for i := range funcs {
		funcs[i] = constFunc(i)
	}

	buckets := partition(funcs, 3)
	require.Len(t, buckets, 3)
	require.Len(t, buckets[0], 3)
	require.Len(t, buckets[1], 2)
	require.Len(t, buckets[2], 2)
}

func TestPartition_MoreBucketsThanFunctions(t *testing.T) {
	funcs := []ServerFunc[struct{}, int]{constFunc(1)}
	buckets := partition(funcs, 3)
	require.Len(t, buckets, 3)
	nonEmpty := 0
	for _, b := range buckets {
		if len(b) > 0 {
			nonEmpty++
		}
	}
	require.Equal(t, 1, nonEmpty)
}

func ExampleClient_Query() {
	c, _ := NewClient[struct{}, int, *recoverableErr]()
	funcs := []ServerFunc[struct{}, int]{constFunc(1), constFunc(1), constFunc(2)}
	result, _ := c.Query(context.Background(), Settings[int]{
		MaxParallel: 3,
		Policy:      Count[int](2),
	}, struct{}{}, funcs)
	fmt.Println(result)
	// Output: 1
}
