package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/handler/schema"
	"github.com/aio-mcp/aio-server/internal/execution/rpc"
	"github.com/aio-mcp/aio-server/internal/execution/runner"
	"github.com/aio-mcp/aio-server/internal/storage"
)

// ExecuteHandler runs uploaded executables as plain processes.
type ExecuteHandler struct {
	store  *storage.Store
	runner runner.Runner
	schema *schema.Schema
	limits runner.Config
	log    *zap.Logger
}

func NewExecuteHandler(params Params) *ExecuteHandler {
	return &ExecuteHandler{
		store:  params.Store,
		runner: params.Runner,
		schema: params.Schema,
		limits: params.Limits,
		log:    params.Log.Named("execute"),
	}
}

// ExecutionRequest is the body of the generic execution endpoint.
type ExecutionRequest struct {
	Filepath    string            `json:"filepath"`
	Arguments   []string          `json:"arguments"`
	StdinData   *string           `json:"stdin_data"`
	Timeout     *int              `json:"timeout"`
	Environment map[string]string `json:"environment"`
}

// ExecutionResponse reports the outcome of a generic execution.
type ExecutionResponse struct {
	Success       bool     `json:"success"`
	Stdout        *string  `json:"stdout"`
	Stderr        *string  `json:"stderr"`
	ExitCode      *int     `json:"exit_code"`
	ExecutionTime *float64 `json:"execution_time"`
	Message       string   `json:"message"`
}

type outputResponse struct {
	Output string `json:"output"`
}

// ExecuteFile runs the executable named by the filename query parameter
// with the space separated args and answers with its stdout.
func (h *ExecuteHandler) ExecuteFile(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.log, r)

	fileType, err := storage.ParseFileType(r.PathValue("file_type"))
	if err != nil {
		writeError(w, log, err)
		return
	}

	query := r.URL.Query()

	filename := query.Get("filename")
	if filename == "" {
		writeError(w, log, ErrMissingFilename)
		return
	}

	timeout, err := parseTimeout(r, h.limits)
	if err != nil {
		writeError(w, log, err)
		return
	}

	log = log.With(
		zap.String("file_type", string(fileType)),
		zap.String("filename", filename),
	)

	path, err := h.store.ResolvePath(fileType, filename)
	if err != nil {
		writeError(w, log, err)
		return
	}

	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		log.Debug("executable not found")
		writeDetail(w, log, http.StatusNotFound, "File does not exist")
		return
	}

	if fi.Mode().Perm()&0o111 == 0 {
		log.Debug("executable bit not set")
		writeDetail(w, log, http.StatusForbidden, "File does not have execute permission")
		return
	}

	outcome, err := h.runner.Run(r.Context(), runner.Request{
		Path:    path,
		Args:    strings.Fields(query.Get("args")),
		Timeout: timeout,
	})
	if errors.Is(err, runner.ErrNotFound) {
		writeDetail(w, log, http.StatusNotFound, "File does not exist")
		return
	}

	if !outcome.Success {
		detail := outcome.Stderr
		if detail == "" {
			detail = outcome.Message
		}

		log.Info("execution failed", zap.String("message", outcome.Message))
		writeDetail(w, log, http.StatusInternalServerError, detail)
		return
	}

	writeJSON(w, log, http.StatusOK, outputResponse{Output: outcome.Stdout})
}

// Execute runs an executable inside one of the storage directories as
// described by an ExecutionRequest body. Process failures are reported
// with 200 and success set to false.
func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.log, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, log, fmt.Errorf("%w: %s", ErrInvalidBody, err))
		return
	}

	if !json.Valid(body) {
		writeError(w, log, fmt.Errorf("%w: malformed json", ErrInvalidBody))
		return
	}

	if err := h.schema.Validate(schema.SchemaTypeExecuteRequest, body); err != nil {
		writeError(w, log, err)
		return
	}

	var req ExecutionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, log, fmt.Errorf("%w: %s", ErrInvalidBody, err))
		return
	}

	path, err := filepath.Abs(req.Filepath)
	if err != nil || !h.store.Contains(path) {
		writeError(w, log, ErrOutsideStorage)
		return
	}

	timeout := h.limits.DefaultTimeout
	if req.Timeout != nil {
		if timeout, err = checkTimeout(*req.Timeout, h.limits); err != nil {
			writeError(w, log, err)
			return
		}
	}

	var stdin []byte
	var method string
	if req.StdinData != nil {
		stdin = []byte(*req.StdinData)
		method, _ = rpc.ParseMethod(stdin)
	}

	log = log.With(zap.String("filepath", path))

	outcome, err := h.runner.Run(r.Context(), runner.Request{
		Path:    path,
		Args:    req.Arguments,
		Stdin:   stdin,
		Method:  method,
		Timeout: timeout,
		Env:     req.Environment,
	})
	if errors.Is(err, runner.ErrNotFound) {
		writeJSON(w, log, http.StatusOK, ExecutionResponse{
			Message: fmt.Sprintf("File does not exist: %s", req.Filepath),
		})
		return
	}

	elapsed := outcome.Elapsed.Seconds()

	resp := ExecutionResponse{
		Success:       outcome.Success,
		Stderr:        optional(outcome.Stderr),
		ExitCode:      outcome.ExitCode,
		ExecutionTime: &elapsed,
		Message:       outcome.Message,
	}

	if outcome.ExitCode != nil {
		resp.Stdout = &outcome.Stdout
	}

	writeJSON(w, log, http.StatusOK, resp)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
