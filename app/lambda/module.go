package lambda

import (
	"go.uber.org/fx"

	"github.com/aio-mcp/aio-server/handler"
	"github.com/aio-mcp/aio-server/internal/server"
	"github.com/aio-mcp/aio-server/util/logging"
)

func Module(config Config) fx.Option {
	return fx.Module(
		"lambda",
		// provide lambda config
		fx.Supply(config),
		// rename logger for module
		logging.DecorateLogger("lambda"),
		// provide handlers
		handler.Module(),
		// provide router
		fx.Provide(server.NewRouter),
		// provide lambda handler
		fx.Provide(NewLifecycleHandler),
		// invoke handler
		fx.Invoke(func(*LambdaHandler) {}),
	)
}
