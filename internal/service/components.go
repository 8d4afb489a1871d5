// File: internal/service/components.go
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/observability"
	"github.com/xkilldash9x/clickrender/internal/render"
	"github.com/xkilldash9x/clickrender/internal/server"
)

// Components holds every long-lived service of a clickrender process and
// owns their shutdown order.
type Components struct {
	Metrics  *observability.Metrics
	Browsers *browser.Manager
	Renderer *render.Service
	Server   *server.Server

	logger *zap.Logger
}

// Shutdown stops accepting renders, waits for the in-flight ones and then
// closes the browser. The HTTP server is stopped by its own context.
func (c *Components) Shutdown(ctx context.Context) error {
	logger := c.logger
	if logger == nil {
		logger = observability.GetLogger()
	}
	logger.Debug("Beginning components shutdown sequence.")

	switch {
	case c.Renderer != nil:
		// The render service shuts the manager down after draining.
		if err := c.Renderer.Shutdown(ctx); err != nil {
			logger.Warn("Error during render service shutdown.", zap.Error(err))
			return err
		}
	case c.Browsers != nil:
		if err := c.Browsers.Shutdown(ctx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
			return err
		}
	}

	logger.Info("All components shut down.", zap.Int64("browser_launches", c.launches()))
	return nil
}

func (c *Components) launches() int64 {
	if c.Browsers == nil {
		return 0
	}
	return c.Browsers.Launches()
}
