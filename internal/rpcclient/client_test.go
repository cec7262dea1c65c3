package rpcclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aio-mcp/aio-server/internal/rpcclient"
	"github.com/aio-mcp/aio-server/internal/storage"
)

type captured struct {
	path  string
	query string
	body  map[string]json.RawMessage
}

func newServer(t *testing.T, response func(id json.RawMessage) string) (*httptest.Server, *captured) {
	t.Helper()

	c := &captured{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		require.NoError(t, json.Unmarshal(body, &c.body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, response(c.body["id"]))
	}))
	t.Cleanup(srv.Close)

	return srv, c
}

func TestTarget_Endpoint(t *testing.T) {
	endpoint, err := rpcclient.Target{
		BaseURL:  "http://localhost:8080/api/v1/",
		FileType: storage.FileTypeMCP,
		Filename: "server",
		Timeout:  45 * time.Second,
	}.Endpoint()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1/rpc/mcp/server?timeout=45", endpoint)

	_, err = rpcclient.Target{BaseURL: "localhost", FileType: storage.FileTypeMCP, Filename: "x"}.Endpoint()
	assert.ErrorIs(t, err, rpcclient.ErrInvalidEndpoint)

	_, err = rpcclient.Target{BaseURL: "http://localhost", FileType: storage.FileTypeMCP, Filename: "../x"}.Endpoint()
	assert.ErrorIs(t, err, storage.ErrInvalidName)
}

func TestClient_Call(t *testing.T) {
	srv, c := newServer(t, func(id json.RawMessage) string {
		return `{"jsonrpc":"2.0","result":{"tools":[]},"id":` + string(id) + `}`
	})

	client, err := rpcclient.Dial(context.Background(), rpcclient.Target{
		BaseURL:  srv.URL,
		FileType: storage.FileTypeAgent,
		Filename: "tool",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Call(context.Background(), "tools/list", map[string]any{"cursor": "a"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"tools":[]}`, string(result))
	assert.Equal(t, "/rpc/agent/tool", c.path)
	assert.Empty(t, c.query)
	assert.JSONEq(t, `"tools/list"`, string(c.body["method"]))
	assert.JSONEq(t, `[{"cursor":"a"}]`, string(c.body["params"]))
}

func TestClient_CallError(t *testing.T) {
	srv, _ := newServer(t, func(id json.RawMessage) string {
		return `{"jsonrpc":"2.0","error":{"code":-32602,"message":"File does not exist: tool","data":{"stderr":"x"}},"id":` + string(id) + `}`
	})

	client, err := rpcclient.Dial(context.Background(), rpcclient.Target{
		BaseURL:  srv.URL,
		FileType: storage.FileTypeAgent,
		Filename: "tool",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Call(context.Background(), "ping")
	require.Error(t, err)

	var rpcErr rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32602, rpcErr.ErrorCode())

	var dataErr rpc.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.NotNil(t, dataErr.ErrorData())
}
