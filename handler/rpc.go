package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/handler/schema"
	"github.com/aio-mcp/aio-server/internal/execution/rpc"
	"github.com/aio-mcp/aio-server/internal/execution/runner"
	"github.com/aio-mcp/aio-server/internal/storage"
)

var nullID = json.RawMessage("null")

// RPCHandler relays JSON-RPC requests to uploaded executables. Every
// request that reaches the executable lookup is answered with 200 and
// a JSON-RPC envelope.
type RPCHandler struct {
	store  *storage.Store
	bridge *rpc.Bridge
	schema *schema.Schema
	limits runner.Config
	log    *zap.Logger
}

func NewRPCHandler(params Params) *RPCHandler {
	return &RPCHandler{
		store:  params.Store,
		bridge: params.Bridge,
		schema: params.Schema,
		limits: params.Limits,
		log:    params.Log.Named("rpc"),
	}
}

type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"`
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.log, r)

	fileType, err := storage.ParseFileType(r.PathValue("file_type"))
	if err != nil {
		writeError(w, log, err)
		return
	}

	filename := r.PathValue("filename")

	log = log.With(
		zap.String("file_type", string(fileType)),
		zap.String("filename", filename),
	)

	timeout, err := parseTimeout(r, h.limits)
	if err != nil {
		log.Debug("invalid timeout", zap.Error(err))
		writeJSON(w, log, http.StatusBadRequest,
			rpc.NewError(nullID, rpc.CodeInvalidRequest, fmt.Sprintf("Invalid request: %s", err), nil))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		log.Debug("failed to read body", zap.Error(err))
		writeJSON(w, log, http.StatusBadRequest,
			rpc.NewError(nullID, rpc.CodeParseError, "Parse error: failed to read body", nil))
		return
	}

	body = bytes.TrimSpace(body)

	if len(body) > 0 && !json.Valid(body) {
		log.Debug("malformed body")
		writeJSON(w, log, http.StatusBadRequest,
			rpc.NewError(nullID, rpc.CodeParseError, "Parse error", nil))
		return
	}

	var members map[string]json.RawMessage
	if len(body) > 0 {
		// non-objects are rejected by the schema below
		_ = json.Unmarshal(body, &members)
	}

	id := nullID
	if raw, ok := members["id"]; ok {
		id = raw
	}

	if !h.store.Exists(fileType, filename) {
		log.Debug("executable not found")
		writeJSON(w, log, http.StatusOK, rpc.NewError(id, rpc.CodeInvalidParams,
			fmt.Sprintf("File does not exist: %s", filename), nil))
		return
	}

	if len(body) == 0 || string(body) == "null" || (members != nil && len(members) == 0) {
		writeJSON(w, log, http.StatusOK, rpc.NewError(nullID, rpc.CodeInvalidRequest,
			"Invalid request: Missing JSON-RPC request object", nil))
		return
	}

	if err := h.schema.Validate(schema.SchemaTypeRPCRequest, body); err != nil {
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			writeError(w, log, err)
			return
		}

		log.Debug("invalid request", zap.Error(err))
		writeJSON(w, log, http.StatusOK, rpc.NewError(id, rpc.CodeInvalidRequest,
			fmt.Sprintf("Invalid request: %s", err), nil))
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, log, http.StatusOK, rpc.NewError(id, rpc.CodeInvalidRequest,
			fmt.Sprintf("Invalid request: %s", err), nil))
		return
	}

	if req.Method == "" {
		writeJSON(w, log, http.StatusOK, rpc.NewError(id, rpc.CodeInvalidRequest,
			"Invalid request: Missing method field", nil))
		return
	}

	path, err := h.store.ResolvePath(fileType, filename)
	if err != nil {
		writeError(w, log, err)
		return
	}

	var params any
	if len(req.Params) > 0 && string(req.Params) != "null" {
		params = req.Params
	}

	resp := h.bridge.Call(r.Context(), rpc.CallRequest{
		Path:    path,
		Method:  req.Method,
		Params:  params,
		ID:      req.ID,
		Timeout: timeout,
	})

	writeJSON(w, log, http.StatusOK, resp)
}
