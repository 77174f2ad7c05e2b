// Package rpcendpoint adapts a single blockchain JSON-RPC endpoint into the
// plain synchronous calls the quorum coordinator expects as server
// functions, classifying transport failures as recoverable.
package rpcendpoint

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/0xkanth/quorum-wallet/internal/metrics"
)

// RecoverableError marks a failure that is plausibly transient and specific
// to one endpoint: a closed connection, a timeout, a DNS failure. It is the
// E type parameter quorum.Client is instantiated with throughout this
// wallet — never the bare `error` interface, so quorum.NewClient accepts
// it (see internal/quorum.NewClient).
type RecoverableError struct {
	Endpoint string
	Cause    error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("rpcendpoint %s: %v", e.Endpoint, e.Cause)
}

func (e *RecoverableError) Unwrap() error { return e.Cause }

// Client wraps one ethclient.Client for one configured RPC URL.
type Client struct {
	URL       string
	chainName string
	eth       *ethclient.Client
	chainID   *big.Int
	logger    zerolog.Logger
}

// Dial connects to url and verifies it answers for the expected chain ID.
// chainName labels the endpoint's metrics (internal/metrics.EndpointFailuresTotal).
func Dial(ctx context.Context, url string, chainName string, expectedChainID int64, logger zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("rpcendpoint: dial %s: %w", url, err)
	}

	actual, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("rpcendpoint: chain id check for %s: %w", url, err)
	}
	if actual.Int64() != expectedChainID {
		eth.Close()
		return nil, fmt.Errorf("rpcendpoint: %s reports chain id %d, expected %d", url, actual, expectedChainID)
	}

	return &Client{
		URL:       url,
		chainName: chainName,
		eth:       eth,
		chainID:   actual,
		logger:    logger.With().Str("endpoint", url).Logger(),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() { c.eth.Close() }

// BalanceAt fetches the latest balance for addr, wrapping transport
// failures as RecoverableError.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, c.classify(err)
	}
	return balance, nil
}

// PendingNonceAt fetches the pending nonce for addr.
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, c.classify(err)
	}
	return nonce, nil
}

// SuggestGasPrice fetches a suggested gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, c.classify(err)
	}
	return price, nil
}

// SendTransaction submits a signed transaction, returning its hash on
// acceptance by this endpoint's mempool.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, c.classify(err)
	}
	return tx.Hash(), nil
}

// TransactionReceipt fetches a mined receipt. It returns a RecoverableError
// if the endpoint is unreachable; a transaction that is not yet mined
// yields ethereum.NotFound unwrapped, since that is not a transport error.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, c.classify(err)
	}
	return receipt, nil
}

// classify wraps err as RecoverableError when it looks like a transport
// problem (connection refused/reset, DNS failure, deadline exceeded, or
// context cancellation due to a per-call timeout). Anything else — a
// malformed response the client could not decode, an ABI mismatch — is
// returned unwrapped and becomes fatal to the whole query.
func (c *Client) classify(err error) error {
	if isTransportError(err) {
		metrics.EndpointFailuresTotal.WithLabelValues(c.chainName, c.URL).Inc()
		return &RecoverableError{Endpoint: c.URL, Cause: err}
	}
	return err
}

func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
