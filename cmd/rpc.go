package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/aio-mcp/aio-server/app"
	"github.com/aio-mcp/aio-server/internal/execution/rpc"
	"github.com/aio-mcp/aio-server/internal/shell"
)

var (
	rpcCmdDescription = `The rpc command sends a single JSON-RPC request to a local
executable over its standard input and prints the response
envelope read from its standard output.

The process exit code is 1 if the envelope carries an error.`
	rpcCmd = &cli.Command{
		Name:        "rpc",
		Usage:       "Send a JSON-RPC request to an executable.",
		ArgsUsage:   "<path>",
		Description: rpcCmdDescription,
		Action:      rpcAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "method",
				Aliases:  []string{"m"},
				Usage:    "The method to call.",
				Required: true,
				Category: "rpc",
			},
			&cli.StringFlag{
				Name:     "params",
				Aliases:  []string{"p"},
				Usage:    "The params of the request as json object or array.",
				Category: "rpc",
			},
			&cli.StringFlag{
				Name:     "id",
				Usage:    "The id of the request as json string or number.",
				Value:    "1",
				Category: "rpc",
			},
			&cli.DurationFlag{
				Name:     "timeout",
				Aliases:  []string{"t"},
				Usage:    "The wall-clock limit of the execution.",
				Category: "rpc",
			},
		},
	}
)

func rpcAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("path of the executable is required")
	}

	path, err := filepath.Abs(ctx.Args().First())
	if err != nil {
		return err
	}

	var params any
	if raw := ctx.String("params"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("params are not valid json: %s", raw)
		}
		params = json.RawMessage(raw)
	}

	id := json.RawMessage(ctx.String("id"))
	if !json.Valid(id) {
		// bare words are sent as string ids
		quoted, err := json.Marshal(ctx.String("id"))
		if err != nil {
			return err
		}
		id = quoted
	}

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	var bridge *rpc.Bridge
	if err := app.Populate(ctx.Context, &bridge); err != nil {
		return err
	}

	resp := bridge.Call(ctx.Context, rpc.CallRequest{
		Path:    path,
		Method:  ctx.String("method"),
		Params:  params,
		ID:      id,
		Timeout: ctx.Duration("timeout"),
	})

	if err := printJSON(ctx, resp); err != nil {
		return err
	}

	if resp.Error != nil {
		return shell.NewExitError(1)
	}

	return nil
}

func init() {
	rootApp.Commands = append(rootApp.Commands, rpcCmd)
}
