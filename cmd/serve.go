package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/aio-mcp/aio-server/app"
	"github.com/aio-mcp/aio-server/app/standalone"
	"github.com/aio-mcp/aio-server/internal/server"
)

var (
	serveCmdDescription = `The serve command starts the http server. Executables are
	uploaded through the api and executed on request, either as
	plain processes or as JSON-RPC services.

	The api is mounted at the root and at /api/{api_version}.
	The command blocks indefinitely, processing incoming http
	requests.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start the http server.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Value:    "0.0.0.0",
				Category: "http",
				EnvVars:  []string{"HTTP_HOST", envPrefix + "HOST"},
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Value:    8080,
				Category: "http",
				EnvVars:  []string{"HTTP_PORT", envPrefix + "PORT"},
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Value:    false,
				Category: "http",
				EnvVars:  []string{"HTTP_H2C"},
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	config := standalone.Config{
		HttpConfig: server.HttpConfig{
			Host: ctx.String("host"),
			Port: ctx.Int("port"),
			H2c:  ctx.Bool("h2c"),
		},
	}

	return app.Run(ctx.Context, standalone.Module(config))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
