package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/aio-mcp/aio-server/app"
	"github.com/aio-mcp/aio-server/internal/execution/rpc"
	"github.com/aio-mcp/aio-server/internal/execution/runner"
	"github.com/aio-mcp/aio-server/internal/shell"
)

var (
	execCmdDescription = `The exec command runs a local executable once, the same way
the server runs uploaded executables, and prints the outcome
as json.

The process exit code is 0 if the execution succeeded and 1
otherwise.`
	execCmd = &cli.Command{
		Name:        "exec",
		Usage:       "Run an executable and print its outcome.",
		ArgsUsage:   "<path> [args...]",
		Description: execCmdDescription,
		Action:      execAction,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:     "timeout",
				Aliases:  []string{"t"},
				Usage:    "The wall-clock limit of the execution.",
				Category: "execution",
			},
			&cli.StringFlag{
				Name:     "stdin",
				Usage:    "Data written to the standard input of the process.",
				Category: "execution",
			},
			&cli.StringSliceFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment variables in KEY=VALUE form.",
				Category: "execution",
			},
		},
	}
)

// outcomeOutput is the printed form of a runner.Outcome.
type outcomeOutput struct {
	Success       bool    `json:"success"`
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	ExitCode      *int    `json:"exit_code"`
	ExecutionTime float64 `json:"execution_time"`
	Message       string  `json:"message"`
	TimedOut      bool    `json:"timed_out"`
}

func execAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return errors.New("path of the executable is required")
	}

	path, err := filepath.Abs(ctx.Args().First())
	if err != nil {
		return err
	}

	env, err := parseEnv(ctx.StringSlice("env"))
	if err != nil {
		return err
	}

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	var r runner.Runner
	if err := app.Populate(ctx.Context, &r); err != nil {
		return err
	}

	stdin := []byte(ctx.String("stdin"))
	method, _ := rpc.ParseMethod(stdin)

	outcome, err := r.Run(ctx.Context, runner.Request{
		Path:    path,
		Args:    ctx.Args().Tail(),
		Stdin:   stdin,
		Method:  method,
		Timeout: ctx.Duration("timeout"),
		Env:     env,
	})
	if errors.Is(err, runner.ErrNotFound) {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := printJSON(ctx, outcomeOutput{
		Success:       outcome.Success,
		Stdout:        outcome.Stdout,
		Stderr:        outcome.Stderr,
		ExitCode:      outcome.ExitCode,
		ExecutionTime: outcome.Elapsed.Seconds(),
		Message:       outcome.Message,
		TimedOut:      outcome.TimedOut,
	}); err != nil {
		return err
	}

	if !outcome.Success {
		return shell.NewExitError(1)
	}

	return nil
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment variable %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}

	return env, nil
}

func printJSON(ctx *cli.Context, v any) error {
	data, err := rpc.Encode(v)
	if err != nil {
		return err
	}

	w := ctx.App.Writer
	if w == nil {
		w = os.Stdout
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}

func init() {
	rootApp.Commands = append(rootApp.Commands, execCmd)
}
