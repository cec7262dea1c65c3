package config

import (
	"fmt"
	"maps"
	"path/filepath"

	"github.com/aio-mcp/aio-server/internal/execution/rpc"
	"github.com/aio-mcp/aio-server/internal/execution/runner"
	"github.com/aio-mcp/aio-server/internal/server"
	"github.com/aio-mcp/aio-server/internal/storage"
	"github.com/aio-mcp/aio-server/util/conf"
)

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Router is the mount and cors configuration of the api
	Router server.RouterConfig `conf:",squash"`

	// Storage locates the executables and their registry
	Storage storage.Config `conf:",squash"`

	// Execution holds the process and rpc limits
	Execution ExecutionConfig `conf:"execution"`
}

type ExecutionConfig struct {
	// Runner is the process runner configuration
	Runner runner.Config `conf:",squash"`

	// Bridge is the rpc bridge configuration
	Bridge rpc.Config `conf:",squash"`
}

var DefaultConfig = defaultConfig()

func defaultConfig() conf.DefaultConfig {
	runnerDefaults := runner.DefaultConfig()
	bridgeDefaults := rpc.DefaultConfig()

	defaults := conf.DefaultConfig{
		"api_version":     "v1",
		"allowed_origins": "*",
		"agent_exec_dir":  "uploads/agent",
		"mcp_exec_dir":    "uploads/mcp",
		"database_path":   "aio_server.db",
	}

	maps.Copy(defaults, conf.MergeDefaults("execution",
		conf.DefaultConfig{
			"default_timeout": runnerDefaults.DefaultTimeout,
			"min_timeout":     runnerDefaults.MinTimeout,
			"max_timeout":     runnerDefaults.MaxTimeout,
			"kill_grace":      runnerDefaults.KillGrace,
		},
		conf.DefaultConfig{
			"large_payload_threshold": bridgeDefaults.LargePayloadThreshold,
			"large_payload_timeout":   bridgeDefaults.LargePayloadTimeout,
		},
	))

	return defaults
}

// Resolve makes the storage paths absolute relative to the working
// directory.
func (c *Config) Resolve() error {
	paths := []*string{
		&c.Storage.AgentDir,
		&c.Storage.MCPDir,
		&c.Storage.DatabasePath,
	}

	for _, path := range paths {
		if *path == "" {
			continue
		}

		abs, err := filepath.Abs(*path)
		if err != nil {
			return fmt.Errorf("could not resolve %q: %w", *path, err)
		}

		*path = abs
	}

	return nil
}
