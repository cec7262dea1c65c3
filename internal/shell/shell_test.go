package shell

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap/zaptest"
)

type greeter struct {
	name string
}

func TestShell_Run_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"clean", 0},
		{"failed", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := New(zaptest.NewLogger(t))

			err := sh.Run(context.Background(), fx.Invoke(func(lc fx.Lifecycle, s fx.Shutdowner) {
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						return s.Shutdown(fx.ExitCode(tt.code))
					},
				})
			}))

			if tt.code == 0 {
				assert.NoError(t, err)
				return
			}

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, tt.code, exitErr.ExitCode)
		})
	}
}

func TestShell_Run_StartFailure(t *testing.T) {
	sh := New(zaptest.NewLogger(t))

	err := sh.Run(context.Background(), fx.Invoke(func(lc fx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return errors.New("boom")
			},
		})
	}))

	assert.True(t, IsExitError(err))
}

func TestShell_Populate(t *testing.T) {
	sh := New(zaptest.NewLogger(t), fx.Supply(&greeter{name: "aio"}))

	var g *greeter
	require.NoError(t, sh.Populate(context.Background(), &g))
	assert.Equal(t, "aio", g.name)

	var missing *ExitError
	assert.Error(t, sh.Populate(context.Background(), &missing))
}
