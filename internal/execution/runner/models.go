package runner

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the executable does not reference an
	// existing regular file. It is the only error Run returns.
	ErrNotFound = errors.New("executable not found")

	// ErrKillTimeout is returned when a killed process did not terminate
	// within the configured grace period.
	ErrKillTimeout = errors.New("kill timeout")
)

// StartMethod is the JSON-RPC method name of long-running service
// launches. A timeout of such a request is reported as a successful
// start, unless the process wrote to stderr before the deadline.
const StartMethod = "start"

// Config describes the execution limits of the runner.
type Config struct {
	// DefaultTimeout is used when a request carries no timeout.
	DefaultTimeout time.Duration `conf:"default_timeout"`

	// MinTimeout is the smallest timeout accepted at the http boundary.
	MinTimeout time.Duration `conf:"min_timeout"`

	// MaxTimeout is the upper bound for any execution.
	MaxTimeout time.Duration `conf:"max_timeout"`

	// KillGrace bounds how long the runner waits for a killed process
	// to terminate and release its output pipes.
	KillGrace time.Duration `conf:"kill_grace"`
}

// DefaultConfig returns the limits used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 30 * time.Second,
		MinTimeout:     time.Second,
		MaxTimeout:     300 * time.Second,
		KillGrace:      2 * time.Second,
	}
}

// Request describes a single invocation of an executable.
type Request struct {
	// Path is the absolute path of the executable.
	Path string

	// Args are passed to the executable after argv[0].
	Args []string

	// Stdin is written to the process and closed afterwards. The
	// process gets no stdin pipe if Stdin is empty.
	Stdin []byte

	// Method is the JSON-RPC method carried in Stdin, if Stdin holds a
	// JSON-RPC request. It is parsed once by the caller.
	Method string

	// Timeout is the wall-clock limit for the whole execution.
	Timeout time.Duration

	// Env is merged on top of the inherited environment.
	Env map[string]string
}

// Outcome is the normalized result of one execution.
type Outcome struct {
	// Success is true iff the process exited with code 0 within the
	// timeout, or a "start" request timed out without stderr output.
	Success bool

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// ExitCode is set iff the process terminated before the timeout.
	// A process killed by a signal reports the negated signal number.
	ExitCode *int

	// Elapsed is the wall-clock execution time. It equals the requested
	// timeout if the process timed out.
	Elapsed time.Duration

	// Message summarizes the result.
	Message string

	// TimedOut is true if the deadline fired before the process exited.
	TimedOut bool
}
