// internal/engine/rodengine/launcher_test.go
package rodengine

import (
	"testing"

	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/config"
)

var (
	_ browser.Launcher = (*Launcher)(nil)
	_ browser.Browser  = (*Browser)(nil)
	_ browser.Page     = (*Page)(nil)
)

func TestProcessLauncher_Flags(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser
	cfg.ExecutablePath = "/opt/chromium/chrome"
	cfg.Args = []string{"--lang=de-DE", "--mute-audio"}
	cfg.Extensions = []string{"/ext/one", "/ext/two"}

	l := NewLauncher(browser.NewLaunchOptions(cfg), zaptest.NewLogger(t))
	pl := l.processLauncher()

	assert.Equal(t, "/opt/chromium/chrome", pl.Get(flags.Bin))
	assert.True(t, pl.Has(flags.Headless))
	assert.True(t, pl.Has(flags.Flag("no-sandbox")))
	assert.True(t, pl.Has(flags.Flag("disable-dev-shm-usage")))
	assert.True(t, pl.Has(flags.Flag("mute-audio")))
	assert.Equal(t, "de-DE", pl.Get(flags.Flag("lang")))
	assert.Equal(t, "/ext/one,/ext/two", pl.Get(flags.Flag("load-extension")))
	assert.False(t, pl.Has(flags.Leakless))
}

func TestProcessLauncher_Headful(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser
	cfg.Headless = false

	pl := NewLauncher(browser.NewLaunchOptions(cfg), zaptest.NewLogger(t)).processLauncher()
	assert.False(t, pl.Has(flags.Headless))
}

func TestProcessLauncher_DisabledSwitchIsRemoved(t *testing.T) {
	opts := browser.LaunchOptions{
		Headless: true,
		Flags:    []browser.Flag{{Name: "no-startup-window", Value: false}},
	}
	pl := NewLauncher(opts, zaptest.NewLogger(t)).processLauncher()
	assert.False(t, pl.Has(flags.Flag("no-startup-window")))
}
