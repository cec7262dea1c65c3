package rpc_test

import (
	"encoding/json"
	"errors"
	"testing"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aio-mcp/aio-server/internal/execution/rpc"
)

func TestParseMethod(t *testing.T) {
	method, ok := rpc.ParseMethod([]byte(`{"jsonrpc":"2.0","method":"start","id":1}`))
	assert.True(t, ok)
	assert.Equal(t, "start", method)

	_, ok = rpc.ParseMethod([]byte(`{"jsonrpc":"2.0","id":1}`))
	assert.False(t, ok)

	_, ok = rpc.ParseMethod([]byte(`not json`))
	assert.False(t, ok)

	_, ok = rpc.ParseMethod([]byte(`{"method":42}`))
	assert.False(t, ok)
}

func TestEncode_DoesNotEscapeHTML(t *testing.T) {
	data, err := rpc.Encode(map[string]string{"html": "<b>&</b>"})
	require.NoError(t, err)

	assert.Equal(t, `{"html":"<b>&</b>"}`, string(data))
}

func TestNewError_DefaultsID(t *testing.T) {
	resp := rpc.NewError(nil, rpc.CodeInvalidRequest, "Invalid request", nil)

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32600,"message":"Invalid request"},"id":1}`, string(data))
}

func TestError_ImplementsRPCError(t *testing.T) {
	var err error = &rpc.Error{Code: rpc.CodeServerError, Message: "down", Data: "detail"}

	var rpcErr gethrpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, rpc.CodeServerError, rpcErr.ErrorCode())

	var dataErr gethrpc.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "detail", dataErr.ErrorData())
}
