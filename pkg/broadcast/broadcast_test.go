package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/quorum-wallet/internal/rpcendpoint"
)

type fakeTxEndpoint struct {
	sendHash common.Hash
	sendErr  error
	receipt  *types.Receipt
	recErr   error
}

func (f *fakeTxEndpoint) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	return f.sendHash, nil
}

func (f *fakeTxEndpoint) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if f.recErr != nil {
		return nil, f.recErr
	}
	return f.receipt, nil
}

func testTx() *types.Transaction {
	return types.NewTx(&types.LegacyTx{Nonce: 0, Gas: 21000})
}

func TestSubmit_FirstAcceptingEndpointWins(t *testing.T) {
	hash := common.HexToHash("0x01")
	endpoints := []rpcendpoint.TxEndpoint{
		&fakeTxEndpoint{sendHash: hash},
		&fakeTxEndpoint{sendHash: hash},
	}

	coord, err := New(endpoints, 2, 0, 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	got, err := coord.Submit(context.Background(), testTx())
	require.NoError(t, err)
	require.Equal(t, hash, got)
}

func TestWaitMined_ReturnsReceiptWhenFound(t *testing.T) {
	hash := common.HexToHash("0x02")
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful}
	endpoints := []rpcendpoint.TxEndpoint{
		&fakeTxEndpoint{recErr: context.DeadlineExceeded},
		&fakeTxEndpoint{receipt: receipt},
	}

	coord, err := New(endpoints, 2, 0, 5*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	got, err := coord.WaitMined(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, receipt, got)
}

func TestWaitMined_RevertIsReturnedAsError(t *testing.T) {
	hash := common.HexToHash("0x03")
	receipt := &types.Receipt{Status: types.ReceiptStatusFailed}
	endpoints := []rpcendpoint.TxEndpoint{&fakeTxEndpoint{receipt: receipt}}

	coord, err := New(endpoints, 1, 0, 5*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	got, err := coord.WaitMined(context.Background(), hash)
	require.Error(t, err)
	require.Equal(t, receipt, got)
}

func TestWaitMined_ContextCancellationStopsPolling(t *testing.T) {
	endpoints := []rpcendpoint.TxEndpoint{&fakeTxEndpoint{recErr: context.DeadlineExceeded}}
	coord, err := New(endpoints, 1, 0, 5*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = coord.WaitMined(ctx, common.HexToHash("0x04"))
	require.Error(t, err)
}
