// internal/engine/engine.go
package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/config"
	"github.com/xkilldash9x/clickrender/internal/engine/cdpengine"
	"github.com/xkilldash9x/clickrender/internal/engine/pwengine"
	"github.com/xkilldash9x/clickrender/internal/engine/rodengine"
)

// New returns the launcher for the configured browser engine.
func New(cfg config.BrowserConfig, logger *zap.Logger) (browser.Launcher, error) {
	opts := browser.NewLaunchOptions(cfg)
	engine := strings.ToLower(strings.TrimSpace(cfg.Engine))

	logger.Debug("Selecting browser engine.",
		zap.String("engine", engine),
		zap.Bool("headless", opts.Headless),
		zap.Strings("flags", opts.FlagNames()),
	)

	switch engine {
	case "", config.EngineChromedp:
		return cdpengine.NewLauncher(opts, logger), nil
	case config.EngineRod:
		return rodengine.NewLauncher(opts, logger), nil
	case config.EnginePlaywright:
		return pwengine.NewLauncher(opts, cfg.PlaywrightInstall, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}
