// Package rpcclient calls the JSON-RPC endpoint of a running server.
package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/internal/storage"
)

var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Target names the executable behind the rpc endpoint.
type Target struct {
	// BaseURL is the url the api is mounted at, e.g.
	// http://localhost:8080/api/v1.
	BaseURL string

	FileType storage.FileType
	Filename string

	// Timeout is passed to the server as execution timeout. The
	// server default is used if zero.
	Timeout time.Duration
}

// Endpoint returns the url of the target's rpc route.
func (t Target) Endpoint() (string, error) {
	base, err := url.Parse(strings.TrimSuffix(t.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEndpoint, t.BaseURL)
	}

	if err := storage.ValidateName(t.Filename); err != nil {
		return "", err
	}

	endpoint := base.JoinPath("rpc", string(t.FileType), t.Filename)

	if t.Timeout > 0 {
		query := endpoint.Query()
		query.Set("timeout", strconv.Itoa(int(t.Timeout.Seconds())))
		endpoint.RawQuery = query.Encode()
	}

	return endpoint.String(), nil
}

// Client sends JSON-RPC requests over http.
type Client struct {
	rpc *rpc.Client
	log *zap.Logger
}

// Dial creates a client for the target. No connection is made until
// the first call.
func Dial(ctx context.Context, target Target, log *zap.Logger) (*Client, error) {
	endpoint, err := target.Endpoint()
	if err != nil {
		return nil, err
	}

	// the server may take up to the execution timeout to answer
	httpClient := &http.Client{}
	if target.Timeout > 0 {
		httpClient.Timeout = target.Timeout + 10*time.Second
	}

	client, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("error dialing rpc: %w", err)
	}

	return &Client{
		rpc: client,
		log: log.Named("rpc_client").With(zap.String("endpoint", endpoint)),
	}, nil
}

// Call invokes method with the given positional params and returns the
// raw result. Error responses are returned as errors implementing
// rpc.Error and rpc.DataError.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var result json.RawMessage

	c.log.Debug("sending rpc request", zap.String("method", method))

	if err := c.rpc.CallContext(ctx, &result, method, params...); err != nil {
		return nil, fmt.Errorf("error sending rpc request: %w", err)
	}

	return result, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}
