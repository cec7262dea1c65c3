package conf

import (
	"context"
	"errors"
	"fmt"
)

type contextKey int

var configKey = contextKey(1)

var (
	ErrNoConfigInContext = errors.New("config not found in context")
	ErrInvalidConfigType = errors.New("invalid config in context")
)

// GetConfigFromContext returns the config stored by ContextWithConfig.
func GetConfigFromContext[C any](ctx context.Context) (C, error) {
	var c C

	value := ctx.Value(configKey)
	if value == nil {
		return c, ErrNoConfigInContext
	}

	config, ok := value.(C)
	if !ok {
		return c, fmt.Errorf("%w: got %T", ErrInvalidConfigType, value)
	}

	return config, nil
}

func ContextWithConfig[C any](ctx context.Context, config C) context.Context {
	return context.WithValue(ctx, configKey, config)
}
