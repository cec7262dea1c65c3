package conf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDefaults(t *testing.T) {
	merged := MergeDefaults("execution",
		DefaultConfig{"a": 1, "b": 2},
		DefaultConfig{"b": 3},
	)

	assert.Equal(t, DefaultConfig{"execution.a": 1, "execution.b": 3}, merged)
}

func TestConfigContext(t *testing.T) {
	type config struct{ Name string }

	_, err := GetConfigFromContext[config](context.Background())
	assert.ErrorIs(t, err, ErrNoConfigInContext)

	ctx := ContextWithConfig(context.Background(), config{Name: "aio"})

	c, err := GetConfigFromContext[config](ctx)
	require.NoError(t, err)
	assert.Equal(t, "aio", c.Name)

	_, err = GetConfigFromContext[string](ctx)
	assert.ErrorIs(t, err, ErrInvalidConfigType)
}

func TestTransformEnv(t *testing.T) {
	assert.Equal(t, "execution.default_timeout", transformEnv("AIO_EXECUTION__DEFAULT_TIMEOUT", "AIO_"))
	assert.Equal(t, "mcp_exec_dir", transformEnv("AIO_MCP_EXEC_DIR", "AIO_"))
}

func TestParse_DecodesListsAndDurations(t *testing.T) {
	type config struct {
		Origins []string      `conf:"origins"`
		Timeout time.Duration `conf:"timeout"`
	}

	t.Setenv("AIO_TEST_DECODE_ORIGINS", "https://a.example.com,https://b.example.com")

	c, err := Parse[config](ParseOptions{
		Defaults:  DefaultConfig{"origins": "*", "timeout": "30s"},
		EnvPrefix: "AIO_TEST_DECODE_",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.Origins)
	assert.Equal(t, 30*time.Second, c.Timeout)
}
