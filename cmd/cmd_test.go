package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aio-mcp/aio-server/internal/testutil"
)

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()

	// keep the registry out of the working directory
	t.Setenv(envPrefix+"DATABASE_PATH", "")
	t.Setenv(envPrefix+"ENV_FILE", "")

	var buf bytes.Buffer
	rootApp.Writer = &buf
	t.Cleanup(func() { rootApp.Writer = os.Stdout })

	code := run(context.Background(), append([]string{appName, "--log-level", "error"}, args...))

	return code, buf.String()
}

func TestExec_Version(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "tool", `echo "v1.0"`)

	code, out := runCLI(t, "exec", path, "--version")
	require.Equal(t, 0, code, out)

	var outcome outcomeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))

	assert.True(t, outcome.Success)
	assert.Equal(t, "v1.0\n", outcome.Stdout)
	require.NotNil(t, outcome.ExitCode)
	assert.Equal(t, 0, *outcome.ExitCode)
}

func TestExec_StdinAndEnv(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "tool", `read -r line; echo "$line $NAME"`)

	code, out := runCLI(t, "exec", "--stdin", "hello", "--env", "NAME=aio", path)
	require.Equal(t, 0, code, out)

	var outcome outcomeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, "hello aio\n", outcome.Stdout)
}

func TestExec_Failure(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "tool", `exit 4`)

	code, out := runCLI(t, "exec", path)
	assert.Equal(t, 1, code)

	var outcome outcomeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.ExitCode)
	assert.Equal(t, 4, *outcome.ExitCode)
}

func TestExec_NotFound(t *testing.T) {
	code, out := runCLI(t, "exec", "/nonexistent/tool")

	assert.Equal(t, 1, code)
	assert.Empty(t, out)
}

func TestRPC_Echo(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "echo", testutil.EchoRPC)

	code, out := runCLI(t, "rpc", "--method", "tools/list", "--id", "9", path)
	require.Equal(t, 0, code, out)

	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{"ok":true},"id":9}`, out)
}

func TestRPC_Error(t *testing.T) {
	path := testutil.WriteScript(t, t.TempDir(), "broken", `cat > /dev/null; echo "oops"`)

	code, out := runCLI(t, "rpc", "--method", "ping", "--id", "abc", path)
	assert.Equal(t, 1, code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.JSONEq(t, `"abc"`, string(resp["id"]))
	assert.Contains(t, string(resp["error"]), "Response is not a valid JSON-RPC response")
}

func TestCall(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req map[string]json.RawMessage
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		if string(req["method"]) == `"fail"` {
			_, _ = io.WriteString(w, `{"jsonrpc":"2.0","error":{"code":-32603,"message":"Execution failed, exit code: 1"},"id":`+string(req["id"])+`}`)
			return
		}

		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","result":{"params":`+string(req["params"])+`},"id":`+string(req["id"])+`}`)
	}))
	defer srv.Close()

	code, out := runCLI(t, "call", "--url", srv.URL+"/api/v1", "--method", "echo", "--param", `{"a":1}`, "mcp", "server")
	require.Equal(t, 0, code, out)

	assert.Equal(t, "/api/v1/rpc/mcp/server", gotPath)
	assert.JSONEq(t, `{"result":{"params":[{"a":1}]}}`, out)

	code, out = runCLI(t, "call", "--url", srv.URL, "--method", "fail", "agent", "tool")
	assert.Equal(t, 1, code)
	assert.JSONEq(t, `{"error":{"code":-32603,"message":"Execution failed, exit code: 1"}}`, out)
}

func TestParseEnv(t *testing.T) {
	env, err := parseEnv([]string{"A=1", "B=x=y", "C="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, env)

	_, err = parseEnv([]string{"novalue"})
	assert.Error(t, err)

	env, err = parseEnv(nil)
	require.NoError(t, err)
	assert.Nil(t, env)
}
