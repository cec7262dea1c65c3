package app

import (
	"context"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/config"
	"github.com/aio-mcp/aio-server/internal/execution/rpc"
	"github.com/aio-mcp/aio-server/internal/execution/runner"
	"github.com/aio-mcp/aio-server/internal/shell"
	"github.com/aio-mcp/aio-server/internal/storage"
	"github.com/aio-mcp/aio-server/internal/storage/memory"
	"github.com/aio-mcp/aio-server/internal/storage/sqlite"
	"github.com/aio-mcp/aio-server/util/conf"
	"github.com/aio-mcp/aio-server/util/logging"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	return shell.New(log, Module(config)), nil
}

// Module provides the storage and execution components shared by all
// commands.
func Module(config config.Config) fx.Option {
	return fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide component configs
		fx.Supply(
			config.Router,
			config.Storage,
			config.Execution.Runner,
			config.Execution.Bridge,
		),
		// provide file registry and store
		fx.Provide(NewRegistry),
		fx.Provide(storage.NewStore),
		// provide process runner
		fx.Provide(NewRunner),
		// provide rpc bridge
		fx.Provide(rpc.NewBridge),
	)
}

// NewRunner provides the process runner as runner.Runner.
func NewRunner(params runner.Params) runner.Runner {
	return runner.New(params)
}

// NewRegistry opens the sqlite file registry, or keeps the registry in
// memory if no database path is configured.
func NewRegistry(config storage.Config, log *zap.Logger, lc fx.Lifecycle) (storage.Registry, error) {
	if config.DatabasePath == "" {
		log.Info("no database configured, keeping file registry in memory")
		return memory.NewRegistry(log), nil
	}

	repo, err := sqlite.NewRepository(sqlite.RepositoryConfig{
		DBPath: config.DatabasePath,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return repo.Close()
		},
	})

	return repo, nil
}
