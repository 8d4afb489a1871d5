// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Supported browser engines.
const (
	EngineChromedp   = "chromedp"
	EngineRod        = "rod"
	EnginePlaywright = "playwright"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Render      RenderConfig      `mapstructure:"render" yaml:"render"`
	Interaction InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
	Debug       DebugConfig       `mapstructure:"debug" yaml:"debug"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// BrowserConfig holds settings for the shared headless browser process.
type BrowserConfig struct {
	Engine         string         `mapstructure:"engine" yaml:"engine"`
	ExecutablePath string         `mapstructure:"executable_path" yaml:"executable_path"`
	Headless       bool           `mapstructure:"headless" yaml:"headless"`
	Args           []string       `mapstructure:"args" yaml:"args"`
	Extensions     []string       `mapstructure:"extensions" yaml:"extensions"`
	LaunchTimeout  time.Duration  `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	ProbeTimeout   time.Duration  `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	Viewport       ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	// RelaunchInterval and RelaunchBurst rate-limit browser launches.
	RelaunchInterval time.Duration `mapstructure:"relaunch_interval" yaml:"relaunch_interval"`
	RelaunchBurst    int           `mapstructure:"relaunch_burst" yaml:"relaunch_burst"`
	// PlaywrightInstall downloads the Playwright driver and Chromium before
	// the first launch. Only the playwright engine reads it.
	PlaywrightInstall bool `mapstructure:"playwright_install" yaml:"playwright_install"`
}

// ViewportConfig is the fixed viewport applied to every page after navigation.
type ViewportConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Width   int  `mapstructure:"width" yaml:"width"`
	Height  int  `mapstructure:"height" yaml:"height"`
}

// RenderConfig bounds a single render request.
type RenderConfig struct {
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	MaxConcurrentPages int           `mapstructure:"max_concurrent_pages" yaml:"max_concurrent_pages"`
}

// InteractionConfig tunes the per-step click strategy.
type InteractionConfig struct {
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	ClickTimeout time.Duration `mapstructure:"click_timeout" yaml:"click_timeout"`
	DefaultWait  time.Duration `mapstructure:"default_wait" yaml:"default_wait"`
}

// DebugConfig controls step snapshots.
type DebugConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	MaxRuns  int    `mapstructure:"max_runs" yaml:"max_runs"`
	MaxWidth int    `mapstructure:"max_width" yaml:"max_width"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "clickrender")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "3m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// -- Browser --
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.executable_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.extensions", []string{})
	v.SetDefault("browser.launch_timeout", "60s")
	v.SetDefault("browser.probe_timeout", "2s")
	v.SetDefault("browser.viewport.enabled", true)
	v.SetDefault("browser.viewport.width", 1366)
	v.SetDefault("browser.viewport.height", 768)
	v.SetDefault("browser.relaunch_interval", "5s")
	v.SetDefault("browser.relaunch_burst", 3)
	v.SetDefault("browser.playwright_install", false)

	// -- Render --
	v.SetDefault("render.timeout", "2m")
	v.SetDefault("render.navigation_timeout", "30s")
	v.SetDefault("render.max_concurrent_pages", 8)

	// -- Interaction --
	v.SetDefault("interaction.wait_timeout", "5s")
	v.SetDefault("interaction.click_timeout", "5s")
	v.SetDefault("interaction.default_wait", "2s")

	// -- Debug --
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.dir", "debug")
	v.SetDefault("debug.max_runs", 20)
	v.SetDefault("debug.max_width", 0)
}

// BindEnv makes every key overridable through PREFIX_SECTION_KEY variables.
func BindEnv(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every filesystem path setting.
func (c *Config) expandPaths() error {
	var err error
	expand := func(key, p string) string {
		if err != nil || p == "" {
			return p
		}
		out, e := homedir.Expand(p)
		if e != nil {
			err = fmt.Errorf("expanding %s: %w", key, e)
			return p
		}
		return out
	}

	c.Logger.LogFile = expand("logger.log_file", c.Logger.LogFile)
	c.Debug.Dir = expand("debug.dir", c.Debug.Dir)
	c.Browser.ExecutablePath = expand("browser.executable_path", c.Browser.ExecutablePath)
	for i, ext := range c.Browser.Extensions {
		c.Browser.Extensions[i] = expand("browser.extensions", ext)
	}
	return err
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Browser.Engine) {
	case EngineChromedp, EngineRod, EnginePlaywright:
	default:
		return fmt.Errorf("browser.engine must be one of %q, %q or %q, got %q",
			EngineChromedp, EngineRod, EnginePlaywright, c.Browser.Engine)
	}
	if c.Browser.LaunchTimeout <= 0 {
		return fmt.Errorf("browser.launch_timeout must be a positive duration")
	}
	if c.Browser.ProbeTimeout <= 0 {
		return fmt.Errorf("browser.probe_timeout must be a positive duration")
	}
	if c.Browser.RelaunchInterval < 0 || c.Browser.RelaunchBurst < 0 {
		return fmt.Errorf("browser.relaunch_interval and browser.relaunch_burst must not be negative")
	}
	if c.Browser.Viewport.Enabled && (c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0) {
		return fmt.Errorf("browser.viewport width and height must be positive when enabled")
	}
	if c.Render.MaxConcurrentPages <= 0 {
		return fmt.Errorf("render.max_concurrent_pages must be a positive integer")
	}
	if c.Render.NavigationTimeout <= 0 {
		return fmt.Errorf("render.navigation_timeout must be a positive duration")
	}
	if c.Interaction.WaitTimeout <= 0 {
		return fmt.Errorf("interaction.wait_timeout must be a positive duration")
	}
	if c.Interaction.ClickTimeout <= 0 {
		return fmt.Errorf("interaction.click_timeout must be a positive duration")
	}
	if c.Interaction.DefaultWait < 0 {
		return fmt.Errorf("interaction.default_wait must not be negative")
	}
	if c.Debug.Enabled && c.Debug.Dir == "" {
		return fmt.Errorf("debug.dir is required when debug snapshots are enabled")
	}
	if c.Debug.MaxRuns < 0 {
		return fmt.Errorf("debug.max_runs must not be negative")
	}
	return nil
}
