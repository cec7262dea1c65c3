package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// exitEvent describes how a process terminated.
type exitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int
}

type procConfig struct {
	path      string
	args      []string
	stdin     []byte
	env       []string
	waitDelay time.Duration
}

// proc is a started child process whose output is captured in memory.
type proc struct {
	pid  int
	cmd  *exec.Cmd
	done chan struct{}
	exit exitEvent

	stdout *lockedBuffer
	stderr *lockedBuffer

	log *zap.Logger
}

func startProc(config procConfig, log *zap.Logger) (*proc, error) {
	cmd := exec.Command(config.path, config.args...)
	cmd.Env = config.env

	// os/exec copies stdin, stdout and stderr in separate goroutines,
	// so a full pipe never blocks the wait for process exit.
	if len(config.stdin) > 0 {
		cmd.Stdin = bytes.NewReader(config.stdin)
	}

	stdout := &lockedBuffer{}
	stderr := &lockedBuffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// background processes may inherit the output pipes and hold them
	// open after the child is gone
	cmd.WaitDelay = config.waitDelay

	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &proc{
		pid:    cmd.Process.Pid,
		cmd:    cmd,
		done:   make(chan struct{}),
		stdout: stdout,
		stderr: stderr,
		log:    log.Named("proc").With(zap.Int("pid", cmd.Process.Pid)),
	}

	go func() {
		// block until the process exits and the pipes are drained
		err := cmd.Wait()

		p.exit = getExitEvent(err)

		close(p.done)
	}()

	return p, nil
}

// Done is closed once the process exited and its output was collected.
func (p *proc) Done() <-chan struct{} {
	return p.done
}

// ExitEvent returns the exit status. It must only be called after Done
// is closed.
func (p *proc) ExitEvent() exitEvent {
	return p.exit
}

// Kill sends SIGKILL to the process, or to its whole process group if
// group is set. A process that already exited is not an error.
func (p *proc) Kill(group bool) error {
	select {
	case <-p.done:
		p.log.Debug("process already terminated")
		return nil
	default:
		// continue
	}

	p.log.Debug("killing process", zap.Bool("group", group))

	var err error
	if group {
		err = killGroup(p.pid)
	} else {
		err = p.cmd.Process.Kill()
	}

	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return nil
	}

	return err
}

func (p *proc) waitForTermination(timeout time.Duration) error {
	// if timeout is 0, wait indefinitely
	if timeout <= 0 {
		<-p.done
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return ErrKillTimeout
	}
}

// MARK: - Helpers

func getExitEvent(err error) exitEvent {
	var cell int
	var exitStatus *int
	var signo *int

	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		// the process exited successfully, set the exit code to 0
		exitStatus = &cell
	} else if exitError, ok := err.(*exec.ExitError); ok {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			if code := status.ExitStatus(); code >= 0 {
				// the process exited with an exit code
				cell = code
				exitStatus = &cell
			} else {
				// the process was terminated by a signal
				cell = int(status.Signal())
				signo = &cell
			}
		}
	}

	if signo == nil && exitStatus == nil {
		// could not determine the exit status or signal,
		// set exit status to 1
		cell = 1
		exitStatus = &cell
	}

	return exitEvent{
		Code:   exitStatus,
		Signal: signo,
	}
}

// mergeEnv appends the overrides to base. os/exec keeps the last value
// of duplicate keys, so explicit overrides win.
func mergeEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	env = append(env, base...)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overrides[k]))
	}

	return env
}

// lockedBuffer is a bytes.Buffer that may be read while the process
// is still writing to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return bytes.Clone(b.buf.Bytes())
}
