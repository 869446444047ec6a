package gateway

import (
	"context"

	"github.com/jessevdk/go-flags"
	"github.com/viant/mcpauth/config"
	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
)

// Run loads the environment, applies args and serves until ctx is cancelled.
func Run(ctx context.Context, args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	options.Apply(cfg)
	logger := logging.FromEnv()
	g, err := New(ctx, cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer func() {
		if err := g.Close(); err != nil {
			logger.Warn("gateway.close", "error", err)
		}
	}()
	return g.Run(ctx)
}
