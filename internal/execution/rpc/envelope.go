package rpc

import (
	"bytes"
	"encoding/json"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Version is the only JSON-RPC version supported.
const Version = "2.0"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// DefaultID is used when a request carries no id.
var DefaultID = json.RawMessage("1")

// Request is a JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  any             `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result
// and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var (
	_ gethrpc.Error     = (*Error)(nil)
	_ gethrpc.DataError = (*Error)(nil)
)

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) ErrorCode() int {
	return e.Code
}

func (e *Error) ErrorData() any {
	return e.Data
}

// NewError creates a response carrying an error object.
func NewError(id json.RawMessage, code int, message string, data any) Response {
	return Response{
		JSONRPC: Version,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: orDefaultID(id),
	}
}

// NewResult creates a response carrying a result.
func NewResult(id json.RawMessage, result json.RawMessage) Response {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}

	return Response{
		JSONRPC: Version,
		Result:  result,
		ID:      orDefaultID(id),
	}
}

// Encode serializes v without html escaping and without a trailing
// newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseMethod extracts the method of a JSON-RPC request from raw bytes.
// It returns false if data is not a JSON object with a string method.
func ParseMethod(data []byte) (string, bool) {
	var req struct {
		Method *string `json:"method"`
	}

	if err := json.Unmarshal(data, &req); err != nil || req.Method == nil {
		return "", false
	}

	return *req.Method, true
}

func orDefaultID(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return DefaultID
	}

	return id
}
