package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/internal/rpcclient"
	"github.com/aio-mcp/aio-server/internal/shell"
	"github.com/aio-mcp/aio-server/internal/storage"
	"github.com/aio-mcp/aio-server/util/logging"
)

var (
	callCmdDescription = `The call command sends a JSON-RPC request to an executable
hosted by a running server and prints the result.

Params are sent positionally: every --param value is decoded
as json and becomes one element of the params array.

The process exit code is 1 if the server answers with an
error response.`
	callCmd = &cli.Command{
		Name:        "call",
		Usage:       "Call a hosted executable over http.",
		ArgsUsage:   "<file_type> <filename>",
		Description: callCmdDescription,
		Action:      callAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Aliases:  []string{"u"},
				Usage:    "The base url of the server api.",
				Value:    "http://localhost:8080/api/v1",
				Category: "rpc",
				EnvVars:  []string{envPrefix + "URL"},
			},
			&cli.StringFlag{
				Name:     "method",
				Aliases:  []string{"m"},
				Usage:    "The method to call.",
				Required: true,
				Category: "rpc",
			},
			&cli.StringSliceFlag{
				Name:     "param",
				Aliases:  []string{"p"},
				Usage:    "A positional param as json value.",
				Category: "rpc",
			},
			&cli.DurationFlag{
				Name:     "timeout",
				Aliases:  []string{"t"},
				Usage:    "The execution timeout requested from the server.",
				Category: "rpc",
			},
		},
	}
)

type callError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func callAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	if ctx.NArg() != 2 {
		return errors.New("file type and filename are required")
	}

	fileType, err := storage.ParseFileType(ctx.Args().Get(0))
	if err != nil {
		return err
	}

	var params []any
	for _, raw := range ctx.StringSlice("param") {
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("param is not valid json: %s", raw)
		}
		params = append(params, json.RawMessage(raw))
	}

	timeout := ctx.Duration("timeout")
	if timeout > 0 && timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %s", timeout)
	}

	client, err := rpcclient.Dial(ctx.Context, rpcclient.Target{
		BaseURL:  ctx.String("url"),
		FileType: fileType,
		Filename: ctx.Args().Get(1),
		Timeout:  timeout,
	}, log)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Call(ctx.Context, ctx.String("method"), params...)

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		out := callError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}

		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			out.Data = dataErr.ErrorData()
		}

		if err := printJSON(ctx, map[string]any{"error": out}); err != nil {
			return err
		}

		log.Debug("server answered with an error", zap.Int("code", out.Code))

		return shell.NewExitError(1)
	}
	if err != nil {
		return err
	}

	return printJSON(ctx, map[string]any{"result": result})
}

func init() {
	rootApp.Commands = append(rootApp.Commands, callCmd)
}
