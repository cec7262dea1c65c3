package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/handler/schema"
	"github.com/aio-mcp/aio-server/internal/execution/rpc"
	"github.com/aio-mcp/aio-server/internal/execution/runner"
	"github.com/aio-mcp/aio-server/internal/storage"
)

// maxBodySize bounds json request bodies. Payloads may carry base64
// encoded files.
const maxBodySize = 64 << 20

// Params are the dependencies shared by all http handlers.
type Params struct {
	fx.In

	// Store manages the uploaded executables
	Store *storage.Store

	// Runner executes plain processes
	Runner runner.Runner

	// Bridge executes JSON-RPC calls
	Bridge *rpc.Bridge

	// Schema validates request bodies
	Schema *schema.Schema

	// Limits are the execution limits
	Limits runner.Config

	// Log is the logger to use
	Log *zap.Logger
}

// parseTimeout reads the timeout query parameter in seconds. The
// default timeout is returned if the parameter is absent.
func parseTimeout(r *http.Request, limits runner.Config) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return limits.DefaultTimeout, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidTimeout, raw)
	}

	return checkTimeout(seconds, limits)
}

func checkTimeout(seconds int, limits runner.Config) (time.Duration, error) {
	// compared in seconds, the product may not fit a time.Duration
	maxSeconds := int64(math.MaxInt64 / time.Second)
	if limits.MaxTimeout > 0 {
		maxSeconds = int64(limits.MaxTimeout / time.Second)
	}

	if int64(seconds) < int64(limits.MinTimeout/time.Second) || int64(seconds) > maxSeconds {
		return 0, fmt.Errorf("%w: must be between %s and %s",
			ErrInvalidTimeout, limits.MinTimeout, limits.MaxTimeout)
	}

	return time.Duration(seconds) * time.Second, nil
}

func requestLogger(log *zap.Logger, r *http.Request) *zap.Logger {
	return log.With(
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)
}
