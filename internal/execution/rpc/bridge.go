package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/internal/execution/runner"
)

// base64Key is the params member whose size raises the timeout floor.
const base64Key = "base64_data"

// Config describes the large payload handling of the bridge.
type Config struct {
	// LargePayloadThreshold is the base64_data length in bytes above
	// which LargePayloadTimeout applies as minimum timeout.
	LargePayloadThreshold int `conf:"large_payload_threshold"`

	// LargePayloadTimeout is the minimum timeout for large payloads.
	LargePayloadTimeout time.Duration `conf:"large_payload_timeout"`
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		LargePayloadThreshold: 1_000_000,
		LargePayloadTimeout:   60 * time.Second,
	}
}

// CallRequest describes a JSON-RPC call to be relayed to an executable.
type CallRequest struct {
	// Path is the absolute path of the executable.
	Path string

	// Method is the JSON-RPC method.
	Method string

	// Params are the JSON-RPC params. Nil is sent as an empty object.
	Params any

	// ID is the JSON-RPC id. It defaults to 1.
	ID json.RawMessage

	// Timeout is the execution timeout. Zero selects the runner default.
	Timeout time.Duration

	// Env is merged into the environment of the executable.
	Env map[string]string
}

// ExecutionData is attached to error responses caused by the process.
type ExecutionData struct {
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr"`
	ExitCode   *int   `json:"exit_code"`
	ParseError string `json:"parse_error,omitempty"`
}

// Bridge relays JSON-RPC calls to executables over stdin and stdout.
type Bridge struct {
	runner runner.Runner
	config Config
	log    *zap.Logger
}

type Params struct {
	fx.In

	// Runner executes the target executable
	Runner runner.Runner

	// Config is the bridge configuration
	Config Config

	// Log is the logger to use
	Log *zap.Logger
}

func NewBridge(params Params) *Bridge {
	config := params.Config

	defaults := DefaultConfig()
	if config.LargePayloadThreshold <= 0 {
		config.LargePayloadThreshold = defaults.LargePayloadThreshold
	}
	if config.LargePayloadTimeout <= 0 {
		config.LargePayloadTimeout = defaults.LargePayloadTimeout
	}

	return &Bridge{
		runner: params.Runner,
		config: config,
		log:    params.Log.Named("rpc_bridge"),
	}
}

// Call sends one JSON-RPC request to the executable and returns its
// response. Every failure is reported as an error response carrying
// the request id, so Call never returns a Go error.
func (b *Bridge) Call(ctx context.Context, req CallRequest) Response {
	id := req.ID
	if string(bytes.TrimSpace(id)) == "null" {
		// a null id counts as absent
		id = nil
	}
	id = orDefaultID(id)

	log := b.log.With(
		zap.String("path", req.Path),
		zap.String("method", req.Method),
		zap.ByteString("id", id),
	)

	params := req.Params
	if params == nil {
		params = json.RawMessage("{}")
	}

	timeout := req.Timeout
	if timeout < b.config.LargePayloadTimeout && hasLargeBase64(params, b.config.LargePayloadThreshold) {
		log.Info("large base64 payload, raising timeout",
			zap.Duration("requested", timeout),
			zap.Duration("timeout", b.config.LargePayloadTimeout),
		)
		timeout = b.config.LargePayloadTimeout
	}

	payload, err := Encode(Request{
		JSONRPC: Version,
		Method:  req.Method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		log.Error("failed to encode request", zap.Error(err))
		return NewError(id, CodeParseError, fmt.Sprintf("Failed to encode request: %s", err), nil)
	}

	outcome, err := b.runner.Run(ctx, runner.Request{
		Path:    req.Path,
		Stdin:   payload,
		Method:  req.Method,
		Timeout: timeout,
		Env:     req.Env,
	})

	resp := b.respond(id, req, outcome, err, log)

	if resp.Error != nil {
		log.Info("rpc call failed",
			zap.Int("code", resp.Error.Code),
			zap.String("message", resp.Error.Message),
			zap.Duration("elapsed", outcome.Elapsed),
		)
	} else {
		log.Info("rpc call succeeded", zap.Duration("elapsed", outcome.Elapsed))
	}

	return resp
}

func (b *Bridge) respond(
	id json.RawMessage,
	req CallRequest,
	outcome runner.Outcome,
	err error,
	log *zap.Logger,
) Response {
	if errors.Is(err, runner.ErrNotFound) {
		return NewError(id, CodeInvalidParams, fmt.Sprintf("File does not exist: %s", req.Path), nil)
	}

	data := ExecutionData{
		Stderr:   outcome.Stderr,
		ExitCode: outcome.ExitCode,
	}

	if !outcome.Success {
		return NewError(id, CodeInternalError, outcome.Message, data)
	}

	stdout := strings.TrimSpace(outcome.Stdout)
	if stdout == "" {
		if req.Method == runner.StartMethod {
			return NewResult(id, json.RawMessage(`{"status":"success","message":"Service started successfully"}`))
		}

		return NewError(id, CodeInternalError, "Execution successful but no output", data)
	}

	resp, err := parseResponse([]byte(stdout))
	if err != nil {
		log.Warn("executable returned an invalid response", zap.Error(err))

		data.Stdout = outcome.Stdout
		data.ParseError = err.Error()

		return NewError(id, CodeInternalError, "Response is not a valid JSON-RPC response", data)
	}

	if !bytes.Equal(bytes.TrimSpace(resp.ID), id) {
		log.Warn("response id mismatch, replacing with request id",
			zap.ByteString("response_id", resp.ID),
		)
	}

	resp.JSONRPC = Version
	resp.ID = id

	return resp
}

// MARK: - Helpers

// parseResponse decodes stdout of the executable. The output must be a
// JSON object with a result or error member.
func parseResponse(data []byte) (Response, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return Response{}, err
	}

	result, hasResult := members["result"]
	rawError, hasError := members["error"]
	if hasError && string(bytes.TrimSpace(rawError)) == "null" {
		hasError = false
	}

	if !hasResult && !hasError {
		return Response{}, errors.New("response has neither result nor error")
	}

	resp := Response{ID: members["id"]}

	if hasError {
		var e Error
		if err := json.Unmarshal(rawError, &e); err != nil {
			return Response{}, fmt.Errorf("invalid error object: %w", err)
		}
		resp.Error = &e
	} else {
		resp.Result = result
	}

	return resp, nil
}

// hasLargeBase64 reports whether params, or one of its elements if it
// is an array, carries a base64_data string longer than threshold.
func hasLargeBase64(params any, threshold int) bool {
	var value any

	switch p := params.(type) {
	case json.RawMessage:
		// only decode payloads that may exceed the threshold at all
		if len(p) <= threshold || json.Unmarshal(p, &value) != nil {
			return false
		}
	case []byte:
		if len(p) <= threshold || json.Unmarshal(p, &value) != nil {
			return false
		}
	default:
		value = p
	}

	isLarge := func(v any) bool {
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		s, ok := m[base64Key].(string)
		return ok && len(s) > threshold
	}

	switch v := value.(type) {
	case map[string]any:
		return isLarge(v)
	case []any:
		for _, elem := range v {
			if isLarge(elem) {
				return true
			}
		}
	}

	return false
}
