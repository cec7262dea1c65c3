package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/handler/schema"
	"github.com/aio-mcp/aio-server/internal/execution/rpc"
	"github.com/aio-mcp/aio-server/internal/execution/runner"
	"github.com/aio-mcp/aio-server/internal/storage"
)

var (
	ErrMissingFilename = errors.New("filename is required")
	ErrInvalidTimeout  = errors.New("invalid timeout")
	ErrOutsideStorage  = errors.New("file path is outside of the executable directories")
	ErrInvalidBody     = errors.New("invalid request body")
)

var wellKnownErrors = map[error]int{
	storage.ErrNotFound:      http.StatusNotFound,
	storage.ErrInvalidType:   http.StatusNotFound,
	storage.ErrInvalidName:   http.StatusBadRequest,
	runner.ErrNotFound:       http.StatusNotFound,
	ErrMissingFilename:       http.StatusBadRequest,
	ErrInvalidTimeout:        http.StatusBadRequest,
	ErrOutsideStorage:        http.StatusForbidden,
	ErrInvalidBody:           http.StatusBadRequest,
	schema.ErrSchemaNotFound: http.StatusInternalServerError,
}

// getErrorStatusCode returns the status code for the given error.
func getErrorStatusCode(err error) int {
	for known, status := range wellKnownErrors {
		if errors.Is(err, known) {
			return status
		}
	}

	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

// detailResponse is the body of non-2xx responses.
type detailResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	body, err := rpc.Encode(v)
	if err != nil {
		log.Error("failed to encode response", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}
}

// writeDetail writes a {detail} body with the given status code.
func writeDetail(w http.ResponseWriter, log *zap.Logger, status int, detail string) {
	writeJSON(w, log, status, detailResponse{Detail: detail})
}

// writeError maps err to a status code and writes it as detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := getErrorStatusCode(err)

	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Error(err), zap.Int("status", status))
	}

	writeDetail(w, log, status, err.Error())
}
