package runner

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Runner executes a single executable and reports its outcome.
type Runner interface {
	// Run starts the executable described by req and blocks until it
	// exits, the timeout fires or ctx is cancelled. The only returned
	// error is ErrNotFound; every other failure is reported through
	// the outcome.
	Run(ctx context.Context, req Request) (Outcome, error)
}

// ProcessRunner runs executables as child processes.
type ProcessRunner struct {
	config  Config
	environ func() []string
	log     *zap.Logger
}

var _ Runner = (*ProcessRunner)(nil)

type Params struct {
	fx.In

	// Config is the runner configuration
	Config Config

	// Log is the logger to use
	Log *zap.Logger
}

func New(params Params) *ProcessRunner {
	config := params.Config

	defaults := DefaultConfig()
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	if config.KillGrace <= 0 {
		config.KillGrace = defaults.KillGrace
	}

	return &ProcessRunner{
		config:  config,
		environ: os.Environ,
		log:     params.Log.Named("runner"),
	}
}

func (r *ProcessRunner) Run(ctx context.Context, req Request) (Outcome, error) {
	log := r.log.With(zap.String("path", req.Path), zap.Strings("args", req.Args))

	info, err := os.Stat(req.Path)
	if err != nil || !info.Mode().IsRegular() {
		log.Debug("executable not found")
		return Outcome{
			Message: fmt.Sprintf("File does not exist: %s", req.Path),
		}, fmt.Errorf("%w: %s", ErrNotFound, req.Path)
	}

	if err := ensureExecutable(req.Path, info.Mode()); err != nil {
		log.Error("failed to set executable permissions", zap.Error(err))
		return Outcome{
			Message: fmt.Sprintf("Unable to set executable permissions: %s", err),
		}, nil
	}

	timeout := r.timeout(req.Timeout)
	serviceLaunch := req.Method == StartMethod

	log.Debug("starting process",
		zap.Duration("timeout", timeout),
		zap.String("method", req.Method),
		zap.Int("stdin_bytes", len(req.Stdin)),
	)

	start := time.Now()

	p, err := startProc(procConfig{
		path:      req.Path,
		args:      req.Args,
		stdin:     req.Stdin,
		env:       mergeEnv(r.environ(), req.Env),
		waitDelay: r.config.KillGrace,
	}, log)
	if err != nil {
		log.Error("failed to start process", zap.Error(err))
		return Outcome{
			Message: fmt.Sprintf("Execution failed: %s", err),
			Elapsed: time.Since(start),
		}, nil
	}

	log = log.With(zap.Int("pid", p.pid))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.Done():
		return r.exited(p, time.Since(start), log), nil
	case <-timer.C:
		return r.timedOut(p, timeout, serviceLaunch, log), nil
	case <-ctx.Done():
		return r.cancelled(ctx, p, time.Since(start), log), nil
	}
}

func (r *ProcessRunner) exited(p *proc, elapsed time.Duration, log *zap.Logger) Outcome {
	event := p.ExitEvent()

	var code int
	if event.Signal != nil {
		code = -*event.Signal
	} else {
		code = *event.Code
	}

	outcome := Outcome{
		Success:  code == 0,
		Stdout:   decodeText(p.stdout.Bytes()),
		Stderr:   decodeText(p.stderr.Bytes()),
		ExitCode: &code,
		Elapsed:  elapsed,
	}

	if outcome.Success {
		outcome.Message = "Execution successful"
	} else {
		outcome.Message = fmt.Sprintf("Execution failed, exit code: %d", code)
	}

	log.Info("process exited",
		zap.Int("exit_code", code),
		zap.Duration("elapsed", elapsed),
		zap.Int("stdout_bytes", len(outcome.Stdout)),
		zap.Int("stderr_bytes", len(outcome.Stderr)),
	)

	return outcome
}

func (r *ProcessRunner) timedOut(p *proc, timeout time.Duration, serviceLaunch bool, log *zap.Logger) Outcome {
	// only output written before the deadline counts
	stderr := decodeText(p.stderr.Bytes())

	// a launched service may have forked into the background, only the
	// direct child is stopped in that case
	r.terminate(p, !serviceLaunch, log)

	outcome := Outcome{
		Stderr:   stderr,
		Elapsed:  timeout,
		TimedOut: true,
	}

	switch {
	case serviceLaunch && stderr == "":
		outcome.Success = true
		outcome.Message = "Service start successfully"
		log.Info("service started", zap.Duration("timeout", timeout))
	case serviceLaunch:
		outcome.Message = fmt.Sprintf("Service start failed: %s", strings.TrimSpace(stderr))
		log.Warn("service start failed", zap.Duration("timeout", timeout))
	default:
		outcome.Message = fmt.Sprintf("Execution timeout (>%s seconds)", formatSeconds(timeout))
		log.Warn("process timed out", zap.Duration("timeout", timeout))
	}

	return outcome
}

func (r *ProcessRunner) cancelled(ctx context.Context, p *proc, elapsed time.Duration, log *zap.Logger) Outcome {
	r.terminate(p, true, log)

	log.Warn("execution cancelled", zap.Error(ctx.Err()))

	return Outcome{
		Stderr:  decodeText(p.stderr.Bytes()),
		Elapsed: elapsed,
		Message: fmt.Sprintf("Execution cancelled: %s", ctx.Err()),
	}
}

func (r *ProcessRunner) terminate(p *proc, group bool, log *zap.Logger) {
	if err := p.Kill(group); err != nil {
		log.Error("failed to kill process", zap.Error(err))
	}

	if err := p.waitForTermination(r.config.KillGrace); err != nil {
		log.Warn("process did not terminate in time", zap.Error(err))
	}
}

func (r *ProcessRunner) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		d = r.config.DefaultTimeout
	}

	if r.config.MaxTimeout > 0 && d > r.config.MaxTimeout {
		d = r.config.MaxTimeout
	}

	return d
}

// MARK: - Helpers

func ensureExecutable(path string, mode os.FileMode) error {
	if mode.Perm()&0o111 != 0 {
		return nil
	}

	return os.Chmod(path, 0o755)
}

func decodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
