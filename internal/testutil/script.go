// Package testutil contains helpers shared by the package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteScript writes an executable shell script with the given body to
// dir/name and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()

	return WriteFile(t, dir, name, "#!/bin/sh\n"+body+"\n", 0o755)
}

// WriteFile writes content to dir/name with the given mode and returns
// its path. Missing parent directories are created.
func WriteFile(t testing.TB, dir, name, content string, mode os.FileMode) string {
	t.Helper()

	path := filepath.Join(dir, name)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))

	// WriteFile applies the umask, set the mode explicitly
	require.NoError(t, os.Chmod(path, mode))

	return path
}

// EchoRPC is a script body answering any JSON-RPC request on stdin with
// a fixed result echoing the request id.
const EchoRPC = `read -r line
id=$(printf '%s' "$line" | sed -n 's/.*"id":\([^,}]*\).*/\1/p')
printf '{"jsonrpc":"2.0","result":{"ok":true},"id":%s}\n' "${id:-null}"`
