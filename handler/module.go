package handler

import (
	"go.uber.org/fx"

	"github.com/aio-mcp/aio-server/handler/schema"
)

// Module provides the http handlers of the api, registered in the
// server's handlers group.
func Module() fx.Option {
	return fx.Module("handler",
		// provide request schemas
		fx.Provide(schema.NewRequestSchema),
		// provide handlers
		fx.Provide(NewHealthHandler),
		fx.Provide(NewRPCHandler),
		fx.Provide(NewExecuteHandler),
		fx.Provide(NewFilesHandler),
		// provide routes
		fx.Provide(NewHealthRoute),
		fx.Provide(NewRPCRoute),
		fx.Provide(NewExecuteFileRoute),
		fx.Provide(NewExecuteRoute),
		fx.Provide(NewUploadRoute),
		fx.Provide(NewListRoute),
		fx.Provide(NewInfoRoute),
		fx.Provide(NewDeleteRoute),
		fx.Provide(NewDownloadRoute),
	)
}
