// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/config"
	"github.com/xkilldash9x/clickrender/internal/observability"
	"github.com/xkilldash9x/clickrender/internal/service"
)

// EnvPrefix prefixes every configuration environment variable.
const EnvPrefix = "CLICKRENDER"

// app is the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	factory service.ComponentFactory
	fs      afero.Fs

	// bindings maps config keys to flag names per command. Only the
	// running command's flags are bound, since viper keeps one flag per key.
	bindings map[*cobra.Command]map[string]string
}

// NewRootCommand builds the clickrender command tree with production wiring.
func NewRootCommand() *cobra.Command {
	return newRootCommand(service.NewComponentFactory(), afero.NewOsFs())
}

func newRootCommand(factory service.ComponentFactory, fs afero.Fs) *cobra.Command {
	a := &app{
		v:        viper.New(),
		factory:  factory,
		fs:       fs,
		bindings: make(map[*cobra.Command]map[string]string),
	}

	root := &cobra.Command{
		Use:           "clickrender",
		Short:         "Render web pages in headless Chromium after replaying click sequences.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This runs before every subcommand, setting up config and logging.
			if err := a.bindFlags(cmd); err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "clickrender"})
				return err
			}
			a.cfg = cfg
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded.",
				zap.String("version", Version),
				zap.String("config_file", a.v.ConfigFileUsed()),
			)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newServeCommand(a),
		newRenderCommand(a),
		newVersionCommand(),
	)
	return root
}

// loadConfig layers defaults, the config file, CLICKRENDER_* variables and
// bound flags, then validates the result.
func (a *app) loadConfig() (*config.Config, error) {
	config.SetDefaults(a.v)
	config.BindEnv(a.v, EnvPrefix)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}
	a.v.SetFs(a.fs)

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return config.NewConfigFromViper(a.v)
}

// bindFlag ties a command flag to a configuration key.
func (a *app) bindFlag(cmd *cobra.Command, key, flag string) {
	if a.bindings[cmd] == nil {
		a.bindings[cmd] = make(map[string]string)
	}
	a.bindings[cmd][key] = flag
}

func (a *app) bindFlags(cmd *cobra.Command) error {
	for key, flag := range a.bindings[cmd] {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %q: %w", flag, err)
		}
	}
	return nil
}

// Execute runs the root command under ctx.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
