package watcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatcher_TracksHealthyOnSuccess(t *testing.T) {
	w := New(zerolog.Nop(), Config{ChainName: "ethereum", Address: common.HexToAddress("0xabc"), PollInterval: time.Hour},
		func(ctx context.Context, addr common.Address) (string, error) {
			return "1", nil
		})

	w.tick(context.Background())
	require.True(t, w.Healthy())

	healthy, lastErr, lastPoll := w.Status()
	require.True(t, healthy)
	require.NoError(t, lastErr)
	require.False(t, lastPoll.IsZero())
}

func TestWatcher_TracksUnhealthyOnFailure(t *testing.T) {
	fetchErr := errors.New("all endpoints unreachable")
	w := New(zerolog.Nop(), Config{ChainName: "ethereum", Address: common.HexToAddress("0xabc"), PollInterval: time.Hour},
		func(ctx context.Context, addr common.Address) (string, error) {
			return "", fetchErr
		})

	w.tick(context.Background())
	require.False(t, w.Healthy())

	_, lastErr, _ := w.Status()
	require.ErrorIs(t, lastErr, fetchErr)
}

func TestWatcher_RunStopsOnContextCancel(t *testing.T) {
	var calls int64
	w := New(zerolog.Nop(), Config{ChainName: "ethereum", Address: common.HexToAddress("0xabc"), PollInterval: 2 * time.Millisecond},
		func(ctx context.Context, addr common.Address) (string, error) {
			atomic.AddInt64(&calls, 1)
			return "1", nil
		})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	require.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(1))
}
