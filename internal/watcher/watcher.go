// Package watcher periodically cross-checks a watched address's balance so
// its last-known-good value stays fresh in the cache even between
// on-demand queries.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/0xkanth/quorum-wallet/internal/metrics"
)

// Watcher polls a balance lookup on an interval and tracks whether the last poll
// succeeded, exposing that through the WatcherHealthy gauge and Status.
type Watcher struct {
	logger       zerolog.Logger
	chainName    string
	address      common.Address
	pollInterval time.Duration

	mu        sync.RWMutex
	isHealthy bool
	lastErr   error
	lastPoll  time.Time

	poll func(ctx context.Context) error
}

// Config holds watcher configuration.
type Config struct {
	ChainName    string
	Address      common.Address
	PollInterval time.Duration
}

// New builds a watcher bound to one chain+address, calling fetch on each
// poll tick. fetch is expected to be pkg/walletservice.Service.BalanceOf
// (adapted to return a string) or an equivalent quorum-backed lookup; the
// watcher only cares whether it errors, not its value, since
// pkg/walletservice already updates the cache and metrics gauges on
// success.
func New(logger zerolog.Logger, cfg Config, fetch func(ctx context.Context, addr common.Address) (string, error)) *Watcher {
	w := &Watcher{
		logger:       logger.With().Str("component", "watcher").Str("chain", cfg.ChainName).Logger(),
		chainName:    cfg.ChainName,
		address:      cfg.Address,
		pollInterval: cfg.PollInterval,
		isHealthy:    true,
	}
	w.poll = func(ctx context.Context) error {
		_, err := fetch(ctx, cfg.Address)
		return err
	}
	return w
}

// Run polls until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info().Dur("interval", w.pollInterval).Msg("starting balance watcher")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("balance watcher stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	err := w.poll(ctx)

	w.mu.Lock()
	w.isHealthy = err == nil
	w.lastErr = err
	w.lastPoll = time.Now()
	w.mu.Unlock()

	addr := w.address.Hex()
	if err != nil {
		metrics.WatcherHealthy.WithLabelValues(w.chainName, addr).Set(0)
		w.logger.Warn().Err(err).Msg("balance poll failed")
		return
	}
	metrics.WatcherHealthy.WithLabelValues(w.chainName, addr).Set(1)
}

// Healthy reports whether the most recent poll succeeded.
func (w *Watcher) Healthy() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isHealthy
}

// Status returns the last poll's outcome and timestamp.
func (w *Watcher) Status() (healthy bool, lastErr error, lastPoll time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isHealthy, w.lastErr, w.lastPoll
}
