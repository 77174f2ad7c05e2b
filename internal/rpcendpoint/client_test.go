package rpcendpoint

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTransportError_NetError(t *testing.T) {
	err := &net.DNSError{Err: "no such host", Name: "example.invalid"}
	require.True(t, isTransportError(err))
}

func TestIsTransportError_DeadlineExceeded(t *testing.T) {
	require.True(t, isTransportError(context.DeadlineExceeded))
}

func TestIsTransportError_OrdinaryError(t *testing.T) {
	require.False(t, isTransportError(errors.New("malformed response")))
}

func TestClassify_WrapsTransportErrorsAsRecoverable(t *testing.T) {
	c := &Client{URL: "https://rpc.example"}
	wrapped := c.classify(context.DeadlineExceeded)

	var recoverable *RecoverableError
	require.ErrorAs(t, wrapped, &recoverable)
	require.Equal(t, "https://rpc.example", recoverable.Endpoint)
	require.ErrorIs(t, wrapped, context.DeadlineExceeded)
}

func TestClassify_PassesThroughNonTransportErrors(t *testing.T) {
	c := &Client{URL: "https://rpc.example"}
	fatal := errors.New("decode failed")
	wrapped := c.classify(fatal)

	var recoverable *RecoverableError
	require.False(t, errors.As(wrapped, &recoverable))
	require.Equal(t, fatal, wrapped)
}

func TestUnsupportedMethodError_Message(t *testing.T) {
	err := &UnsupportedMethodError{Method: "storage_at"}
	require.Contains(t, err.Error(), "storage_at")
}

func TestHas_KnownMethods(t *testing.T) {
	require.True(t, Has("balance"))
	require.True(t, Has("nonce"))
	require.True(t, Has("gas_price"))
	require.False(t, Has("storage_at"))
}
