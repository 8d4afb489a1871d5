// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/config"
	"github.com/xkilldash9x/clickrender/internal/engine"
	"github.com/xkilldash9x/clickrender/internal/interaction"
	"github.com/xkilldash9x/clickrender/internal/observability"
	"github.com/xkilldash9x/clickrender/internal/render"
	"github.com/xkilldash9x/clickrender/internal/server"
	"github.com/xkilldash9x/clickrender/internal/snapshot"
)

// ComponentFactory builds the component graph. Commands depend on the
// interface so tests can substitute a fake browser.
type ComponentFactory interface {
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error)
}

// LauncherFunc picks the browser launcher for a configuration.
type LauncherFunc func(cfg config.BrowserConfig, logger *zap.Logger) (browser.Launcher, error)

type concreteFactory struct {
	newLauncher LauncherFunc
}

// NewComponentFactory returns the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{newLauncher: engine.New}
}

// NewComponentFactoryWithLauncher returns a factory that obtains its browser
// launcher from fn.
func NewComponentFactoryWithLauncher(fn LauncherFunc) ComponentFactory {
	return &concreteFactory{newLauncher: fn}
}

// Create wires metrics, the browser manager, the interaction pipeline, the
// render service and the HTTP server. Nothing is launched here.
func (f *concreteFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	components := &Components{logger: logger}

	// 1. Metrics
	components.Metrics = observability.NewMetrics()

	// 2. Browser
	launcher, err := f.newLauncher(cfg.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser launcher: %w", err)
	}
	components.Browsers = browser.NewManager(launcher, logger,
		browser.WithProbeTimeout(cfg.Browser.ProbeTimeout),
		browser.WithLaunchTimeout(cfg.Browser.LaunchTimeout),
		browser.WithLaunchRate(cfg.Browser.RelaunchInterval, cfg.Browser.RelaunchBurst),
		browser.WithMetrics(components.Metrics),
	)
	logger.Debug("Browser manager initialized.", zap.String("engine", cfg.Browser.Engine))

	// 3. Interaction pipeline
	recorder := snapshot.NewRecorder(cfg.Debug, logger)
	if cfg.Debug.Enabled {
		logger.Info("Debug snapshots enabled.", zap.String("dir", cfg.Debug.Dir), zap.Int("max_runs", cfg.Debug.MaxRuns))
	}
	executor := interaction.NewExecutor(cfg.Interaction, logger)
	sequencer := interaction.NewSequencer(executor, recorder, components.Metrics, logger)

	// 4. Render service
	components.Renderer = render.NewService(components.Browsers, sequencer, cfg.Render, cfg.Browser.Viewport, components.Metrics, logger)

	// 5. HTTP
	components.Server = server.New(cfg.Server, components.Renderer, components.Metrics, logger)

	logger.Debug("All components initialized.")
	return components, nil
}
