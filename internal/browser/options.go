package browser

import (
	"sort"
	"strings"
	"time"

	"github.com/xkilldash9x/clickrender/internal/config"
)

// Flag is a browser command-line switch. Value is either a bool or a string.
type Flag struct {
	Name  string
	Value interface{}
}

// Arg renders the flag in --name or --name=value form.
func (f Flag) Arg() string {
	switch v := f.Value.(type) {
	case bool:
		if v {
			return "--" + f.Name
		}
		return ""
	case string:
		return "--" + f.Name + "=" + v
	default:
		return "--" + f.Name
	}
}

// LaunchOptions is the engine-neutral description of how to start the browser.
type LaunchOptions struct {
	ExecutablePath string
	Headless       bool
	Flags          []Flag
	Extensions     []string
	Timeout        time.Duration
}

// defaultFlags keep Chromium alive inside containers and under root.
var defaultFlags = []Flag{
	{Name: "no-sandbox", Value: true},
	{Name: "disable-setuid-sandbox", Value: true},
	{Name: "disable-dev-shm-usage", Value: true},
}

// NewLaunchOptions translates the browser configuration into launch options.
func NewLaunchOptions(cfg config.BrowserConfig) LaunchOptions {
	opts := LaunchOptions{
		ExecutablePath: cfg.ExecutablePath,
		Headless:       cfg.Headless,
		Timeout:        cfg.LaunchTimeout,
		Extensions:     append([]string(nil), cfg.Extensions...),
	}
	opts.Flags = append(opts.Flags, defaultFlags...)

	for _, arg := range cfg.Args {
		if f, ok := parseArg(arg); ok {
			opts.Flags = append(opts.Flags, f)
		}
	}

	if len(opts.Extensions) > 0 {
		paths := strings.Join(opts.Extensions, ",")
		opts.Flags = append(opts.Flags,
			Flag{Name: "disable-extensions-except", Value: paths},
			Flag{Name: "load-extension", Value: paths},
		)
	}
	return opts
}

// Args renders all flags as command-line arguments, skipping disabled switches.
func (o LaunchOptions) Args() []string {
	args := make([]string, 0, len(o.Flags))
	for _, f := range o.Flags {
		if a := f.Arg(); a != "" {
			args = append(args, a)
		}
	}
	return args
}

// FlagMap returns the flags keyed by name. Later flags win.
func (o LaunchOptions) FlagMap() map[string]interface{} {
	m := make(map[string]interface{}, len(o.Flags))
	for _, f := range o.Flags {
		m[f.Name] = f.Value
	}
	return m
}

// FlagNames returns the distinct flag names in sorted order.
func (o LaunchOptions) FlagNames() []string {
	m := o.FlagMap()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// parseArg accepts "--name", "name", "--name=value" and "name=value".
func parseArg(arg string) (Flag, bool) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return Flag{}, false
	}
	name, value, found := strings.Cut(arg, "=")
	if name == "" {
		return Flag{}, false
	}
	if !found {
		return Flag{Name: name, Value: true}, true
	}
	return Flag{Name: name, Value: value}, true
}
