// File: internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, EngineChromedp, cfg.Browser.Engine)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Second, cfg.Interaction.WaitTimeout)
	assert.Equal(t, 2*time.Second, cfg.Interaction.DefaultWait)
	assert.Equal(t, 30*time.Second, cfg.Render.NavigationTimeout)
	assert.Equal(t, 8, cfg.Render.MaxConcurrentPages)
	assert.False(t, cfg.Debug.Enabled)
	assert.Equal(t, 20, cfg.Debug.MaxRuns)
	assert.Equal(t, 1366, cfg.Browser.Viewport.Width)
	assert.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown engine", func(c *Config) { c.Browser.Engine = "webkit" }, "browser.engine must be one of"},
		{"zero launch timeout", func(c *Config) { c.Browser.LaunchTimeout = 0 }, "browser.launch_timeout"},
		{"zero probe timeout", func(c *Config) { c.Browser.ProbeTimeout = 0 }, "browser.probe_timeout"},
		{"negative relaunch burst", func(c *Config) { c.Browser.RelaunchBurst = -1 }, "browser.relaunch_burst"},
		{"bad viewport", func(c *Config) { c.Browser.Viewport.Width = 0 }, "browser.viewport"},
		{"no page slots", func(c *Config) { c.Render.MaxConcurrentPages = 0 }, "render.max_concurrent_pages"},
		{"zero navigation timeout", func(c *Config) { c.Render.NavigationTimeout = 0 }, "render.navigation_timeout"},
		{"zero wait timeout", func(c *Config) { c.Interaction.WaitTimeout = 0 }, "interaction.wait_timeout"},
		{"zero click timeout", func(c *Config) { c.Interaction.ClickTimeout = 0 }, "interaction.click_timeout"},
		{"negative default wait", func(c *Config) { c.Interaction.DefaultWait = -time.Second }, "interaction.default_wait"},
		{"debug without dir", func(c *Config) { c.Debug.Enabled = true; c.Debug.Dir = "" }, "debug.dir"},
		{"negative retention", func(c *Config) { c.Debug.MaxRuns = -1 }, "debug.max_runs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("viewport ignored when disabled", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Browser.Viewport.Enabled = false
		cfg.Browser.Viewport.Width = 0
		assert.NoError(t, cfg.Validate())
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		yamlBytes := []byte(`
browser:
  engine: rod
  args: ["--lang=en-US"]
interaction:
  default_wait: 300ms
debug:
  enabled: true
  dir: /tmp/snapshots
  max_runs: 3
`)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, EngineRod, cfg.Browser.Engine)
		assert.Equal(t, []string{"--lang=en-US"}, cfg.Browser.Args)
		assert.Equal(t, 300*time.Millisecond, cfg.Interaction.DefaultWait)
		assert.True(t, cfg.Debug.Enabled)
		assert.Equal(t, "/tmp/snapshots", cfg.Debug.Dir)
		assert.Equal(t, 3, cfg.Debug.MaxRuns)
		// Untouched keys keep their defaults.
		assert.Equal(t, 5*time.Second, cfg.Interaction.WaitTimeout)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("render.max_concurrent_pages", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("home directory is expanded", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		v := viper.New()
		SetDefaults(v)
		v.Set("debug.dir", "~/snapshots")
		v.Set("browser.extensions", []string{"~/ext/ublock"})

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		// go-homedir caches the home directory, so compare against what it resolved.
		assert.NotContains(t, cfg.Debug.Dir, "~")
		assert.Equal(t, "snapshots", filepath.Base(cfg.Debug.Dir))
		require.Len(t, cfg.Browser.Extensions, 1)
		assert.NotContains(t, cfg.Browser.Extensions[0], "~")
	})

	t.Run("environment variables override", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		BindEnv(v, "CLICKRENDER_TEST")
		require.NoError(t, os.Setenv("CLICKRENDER_TEST_BROWSER_ENGINE", "playwright"))
		t.Cleanup(func() { os.Unsetenv("CLICKRENDER_TEST_BROWSER_ENGINE") })

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, EnginePlaywright, cfg.Browser.Engine)
	})
}
