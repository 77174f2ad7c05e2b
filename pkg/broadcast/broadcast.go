// Package broadcast submits a signed transaction through the configured RPC
// endpoints and waits for it to be mined, reusing the quorum coordinator to
// require only a single endpoint's acceptance before considering the
// transaction sent.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/0xkanth/quorum-wallet/internal/quorum"
	"github.com/0xkanth/quorum-wallet/internal/rpcendpoint"
)

// Coordinator submits transactions through a pool of endpoints and polls
// for a mined receipt.
type Coordinator struct {
	endpoints []rpcendpoint.TxEndpoint
	client    *quorum.Client[*types.Transaction, common.Hash, *rpcendpoint.RecoverableError]
	settings  quorum.Settings[common.Hash]
	pollEvery time.Duration
	logger    zerolog.Logger
}

// New builds a broadcast coordinator over endpoints. Acceptance by any one
// endpoint's mempool is sufficient: the policy is Count(1) regardless of
// how many endpoints are configured, since a transaction hash either
// matches across all endpoints that accept it or the transaction was never
// resubmitted with different parameters.
func New(endpoints []rpcendpoint.TxEndpoint, maxParallel uint16, retries uint16, pollEvery time.Duration, logger zerolog.Logger) (*Coordinator, error) {
	client, err := quorum.NewClient[*types.Transaction, common.Hash, *rpcendpoint.RecoverableError]()
	if err != nil {
		return nil, fmt.Errorf("broadcast: new client: %w", err)
	}

	return &Coordinator{
		endpoints: endpoints,
		client:    client,
		settings: quorum.Settings[common.Hash]{
			MaxParallel: maxParallel,
			Policy:      quorum.Count[common.Hash](1),
			Retries:     retries,
			Logger:      &logger,
		},
		pollEvery: pollEvery,
		logger:    logger,
	}, nil
}

// Submit sends tx through the endpoints via the quorum coordinator and
// returns the hash accepted by the first endpoint whose mempool acknowledges
// it. Once one endpoint has accepted, endpoints not yet tried are not
// contacted.
func (c *Coordinator) Submit(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	funcs := make([]quorum.ServerFunc[*types.Transaction, common.Hash], 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		funcs = append(funcs, ep.SendTransaction)
	}

	return c.client.Query(ctx, c.settings, tx, funcs)
}

// WaitMined polls every endpoint for a receipt until one is found, the
// transaction reverts, or ctx is done. A revert is returned as an error
// alongside the (non-nil) receipt so the caller can inspect the failure.
func (c *Coordinator) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		for _, ep := range c.endpoints {
			receipt, err := ep.TransactionReceipt(ctx, hash)
			if err != nil {
				continue
			}
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("broadcast: transaction %s reverted", hash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("broadcast: timed out waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
