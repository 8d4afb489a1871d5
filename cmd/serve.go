// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/observability"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP render service.",
		Long: `Serves POST /render, GET /healthz and GET /metrics.

The browser is launched at startup and relaunched on demand if it dies.
SIGINT or SIGTERM drains in-flight requests before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :3000)")
	cmd.Flags().Bool("debug", false, "write step snapshots to debug.dir")
	cmd.Flags().String("engine", "", "browser engine: chromedp, rod or playwright")
	a.bindFlag(cmd, "server.addr", "addr")
	a.bindFlag(cmd, "debug.enabled", "debug")
	a.bindFlag(cmd, "browser.engine", "engine")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	components, err := a.factory.Create(ctx, a.cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	if err := components.Browsers.Warmup(ctx); err != nil {
		// The manager relaunches on the first request.
		logger.Warn("Browser warmup failed.", zap.Error(err))
	}

	serveErr := components.Server.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := components.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	return serveErr
}
