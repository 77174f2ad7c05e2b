package rpcendpoint

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MethodFunc is a bound call against one endpoint, parameterized by the
// address under query.
type MethodFunc[R any] func(ctx context.Context, addr common.Address) (R, error)

// Endpoint is the set of calls a method router needs from a dialed
// endpoint. *Client satisfies it; tests satisfy it with fakes that never
// touch the network.
type Endpoint interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// MethodRouter maps a method name ("balance", "nonce", ...) to the bound
// call on a given endpoint. One router is built per endpoint; the wallet
// services use it to assemble the []ServerFunc slice passed to
// internal/quorum.Client.Query without each service reimplementing the
// endpoint-to-method wiring.
type MethodRouter struct {
	endpoint Endpoint
}

// NewMethodRouter builds a router over a single dialed endpoint.
func NewMethodRouter(endpoint Endpoint) *MethodRouter {
	return &MethodRouter{endpoint: endpoint}
}

// Balance returns the bound balance-query call for this endpoint, in wei.
func (r *MethodRouter) Balance() MethodFunc[*big.Int] {
	return func(ctx context.Context, addr common.Address) (*big.Int, error) {
		return r.endpoint.BalanceAt(ctx, addr)
	}
}

// Nonce returns the bound pending-nonce call for this endpoint.
func (r *MethodRouter) Nonce() MethodFunc[uint64] {
	return func(ctx context.Context, addr common.Address) (uint64, error) {
		return r.endpoint.PendingNonceAt(ctx, addr)
	}
}

// GasPrice returns the bound suggested-gas-price call for this endpoint.
func (r *MethodRouter) GasPrice() MethodFunc[*big.Int] {
	return func(ctx context.Context, _ common.Address) (*big.Int, error) {
		return r.endpoint.SuggestGasPrice(ctx)
	}
}

// Has reports whether method names a known router method ("balance",
// "nonce" or "gas_price").
func Has(method string) bool {
	switch method {
	case "balance", "nonce", "gas_price":
		return true
	default:
		return false
	}
}

// UnsupportedMethodError describes a method name this router has no
// handler for. Nothing in this package returns it.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("rpcendpoint: unsupported method %q", e.Method)
}

// TxEndpoint is the subset of endpoint calls the broadcast coordinator
// needs: submitting a transaction and polling for its receipt.
type TxEndpoint interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}
