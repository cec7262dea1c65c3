package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aio-mcp/aio-server/internal/execution/runner"
	"github.com/aio-mcp/aio-server/internal/testutil"
	"github.com/aio-mcp/aio-server/util"
)

func newRunner(t *testing.T) *runner.ProcessRunner {
	return runner.New(runner.Params{
		Config: runner.Config{
			DefaultTimeout: 5 * time.Second,
			MaxTimeout:     10 * time.Second,
			KillGrace:      500 * time.Millisecond,
		},
		Log: zaptest.NewLogger(t),
	})
}

func TestRunner_Run_CapturesOutput(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "hello", `echo "hello $1"; echo "oops" >&2`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path: path,
		Args: []string{"world"},
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, "hello world\n", outcome.Stdout)
	assert.Equal(t, "oops\n", outcome.Stderr)
	require.NotNil(t, outcome.ExitCode)
	assert.Equal(t, 0, *outcome.ExitCode)
	assert.Equal(t, "Execution successful", outcome.Message)
	assert.False(t, outcome.TimedOut)
}

func TestRunner_Run_WritesStdin(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "cat", `cat`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path:  path,
		Stdin: []byte(`{"jsonrpc":"2.0","method":"x","id":1}`),
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"x","id":1}`, outcome.Stdout)
}

func TestRunner_Run_NonZeroExit(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "fail", `echo "boom" >&2; exit 3`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{Path: path})
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.ExitCode)
	assert.Equal(t, 3, *outcome.ExitCode)
	assert.Equal(t, "boom\n", outcome.Stderr)
	assert.Equal(t, "Execution failed, exit code: 3", outcome.Message)
}

func TestRunner_Run_KilledBySignal(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "suicide", `kill -9 $$`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{Path: path})
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.ExitCode)
	assert.Equal(t, -9, *outcome.ExitCode)
}

func TestRunner_Run_NotFound(t *testing.T) {
	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path: filepath.Join(t.TempDir(), "missing"),
	})

	assert.ErrorIs(t, err, runner.ErrNotFound)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "File does not exist")
}

func TestRunner_Run_DirectoryIsNotFound(t *testing.T) {
	_, err := newRunner(t).Run(context.Background(), runner.Request{
		Path: t.TempDir(),
	})

	assert.ErrorIs(t, err, runner.ErrNotFound)
}

func TestRunner_Run_SetsExecutableBit(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "plain", "#!/bin/sh\necho ok\n", 0o644)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{Path: path})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, "ok\n", outcome.Stdout)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)
}

func TestRunner_Run_SpawnFailure(t *testing.T) {
	// executable bit set, but no valid interpreter
	path := testutil.WriteFile(t, t.TempDir(), "broken", "#!/nonexistent/interpreter\n", 0o755)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{Path: path})
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Nil(t, outcome.ExitCode)
	assert.True(t, strings.HasPrefix(outcome.Message, "Execution failed: "), outcome.Message)
}

func TestRunner_Run_Timeout(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "sleep", `sleep 30`)

	start := time.Now()

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path:    path,
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, outcome.Success)
	assert.True(t, outcome.TimedOut)
	assert.Nil(t, outcome.ExitCode)
	assert.Equal(t, 200*time.Millisecond, outcome.Elapsed)
	assert.Equal(t, "Execution timeout (>0.2 seconds)", outcome.Message)
}

func TestRunner_Run_TimeoutKillsProcessGroup(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")

	path := testutil.WriteScript(t, dir, "spawn", `sleep 30 &
echo $! > `+pidFile+`
wait`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path:    path,
		Timeout: 300 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, outcome.TimedOut)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !util.IsProcessAlive(pid)
	}, 2*time.Second, 20*time.Millisecond, "grandchild survived the timeout")
}

func TestRunner_Run_StartTimeoutIsSuccess(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "service", `sleep 30`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path:    path,
		Method:  runner.StartMethod,
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.True(t, outcome.TimedOut)
	assert.Nil(t, outcome.ExitCode)
	assert.Equal(t, "Service start successfully", outcome.Message)
}

func TestRunner_Run_StartTimeoutWithStderrFails(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "service", `echo "port in use" >&2; sleep 30`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path:    path,
		Method:  runner.StartMethod,
		Timeout: 300 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.True(t, outcome.TimedOut)
	assert.Equal(t, "port in use\n", outcome.Stderr)
}

func TestRunner_Run_StartTimeoutIgnoresLateStderr(t *testing.T) {
	// the background writer outlives the direct child and writes while
	// the runner waits for the pipes to close
	path := testutil.WriteScript(t, t.TempDir(), "service", `(sleep 0.4; echo "late" >&2) &
exec sleep 30`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path:    path,
		Method:  runner.StartMethod,
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.True(t, outcome.TimedOut)
	assert.Empty(t, outcome.Stderr)
	assert.Equal(t, "Service start successfully", outcome.Message)
}

func TestRunner_Run_ContextCancelled(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "sleep", `sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	outcome, err := newRunner(t).Run(ctx, runner.Request{Path: path})
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Nil(t, outcome.ExitCode)
	assert.True(t, strings.HasPrefix(outcome.Message, "Execution cancelled"), outcome.Message)
}

func TestRunner_Run_MergesEnvironment(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "env", `printf '%s' "$AIO_TEST_VALUE"`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{
		Path: path,
		Env:  map[string]string{"AIO_TEST_VALUE": "42"},
	})
	require.NoError(t, err)

	assert.Equal(t, "42", outcome.Stdout)
}

func TestRunner_Run_ReplacesInvalidUTF8(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "binary", `printf 'a\377b'`)

	outcome, err := newRunner(t).Run(context.Background(), runner.Request{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "a�b", outcome.Stdout)
}

func TestRunner_Run_ConcurrentRequestsAreIsolated(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "echo", `echo "$1"`)
	r := newRunner(t)

	results := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			outcome, err := r.Run(context.Background(), runner.Request{
				Path: path,
				Args: []string{strconv.Itoa(i)},
			})
			if err != nil {
				results <- err.Error()
				return
			}
			results <- strings.TrimSpace(outcome.Stdout)
		}(i)
	}

	seen := map[string]bool{}
	for i := 0; i < 8; i++ {
		seen[<-results] = true
	}

	for i := 0; i < 8; i++ {
		assert.True(t, seen[strconv.Itoa(i)], "missing output %d", i)
	}
}
