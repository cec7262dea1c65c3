package standalone

import (
	"go.uber.org/fx"

	"github.com/aio-mcp/aio-server/handler"
	"github.com/aio-mcp/aio-server/internal/server"
	"github.com/aio-mcp/aio-server/util/logging"
)

func Module(config Config) fx.Option {
	return fx.Module(
		"serve",
		// rename logger for module
		logging.DecorateLogger("serve"),
		// provide handlers
		handler.Module(),
		// provide server
		server.Module(config.HttpConfig),
	)
}
