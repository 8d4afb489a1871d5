// internal/engine/rodengine/launcher.go
package rodengine

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
)

// Launcher starts Chromium with go-rod.
type Launcher struct {
	opts   browser.LaunchOptions
	logger *zap.Logger
}

// NewLauncher returns a rod launcher.
func NewLauncher(opts browser.LaunchOptions, logger *zap.Logger) *Launcher {
	return &Launcher{opts: opts, logger: logger.Named("rod")}
}

// processLauncher builds the rod process launcher for the options.
func (l *Launcher) processLauncher() *launcher.Launcher {
	pl := launcher.New().
		Headless(l.opts.Headless).
		// leakless ships a helper binary; the manager owns process cleanup.
		Leakless(false)

	if l.opts.ExecutablePath != "" {
		pl = pl.Bin(l.opts.ExecutablePath)
	} else if path, found := launcher.LookPath(); found {
		pl = pl.Bin(path)
	}

	for _, f := range l.opts.Flags {
		name := flags.Flag(f.Name)
		switch v := f.Value.(type) {
		case bool:
			if v {
				pl = pl.Set(name)
			} else {
				pl = pl.Delete(name)
			}
		case string:
			pl = pl.Set(name, v)
		}
	}
	return pl
}

// Launch starts the process and connects to its DevTools endpoint.
func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	pl := l.processLauncher()

	type launched struct {
		url string
		err error
	}
	ch := make(chan launched, 1)
	go func() {
		u, err := pl.Launch()
		ch <- launched{url: u, err: err}
	}()

	var res launched
	select {
	case res = <-ch:
	case <-ctx.Done():
		// Reap the process once the launch finishes on its own.
		go func() {
			<-ch
			pl.Kill()
			pl.Cleanup()
		}()
		return nil, &browser.LaunchError{Engine: "rod", Err: fmt.Errorf("startup aborted: %w", ctx.Err())}
	}
	if res.err != nil {
		pl.Cleanup()
		return nil, &browser.LaunchError{Engine: "rod", Err: res.err}
	}

	rb := rod.New().ControlURL(res.url)
	if err := rb.Connect(); err != nil {
		pl.Kill()
		pl.Cleanup()
		return nil, &browser.LaunchError{Engine: "rod", Err: fmt.Errorf("connect %s: %w", res.url, err)}
	}

	b := &Browser{browser: rb, process: pl, logger: l.logger}
	if v, err := (proto.BrowserGetVersion{}).Call(rb.Context(ctx)); err == nil {
		l.logger.Info("Chromium started.", zap.String("product", v.Product), zap.Int("pid", pl.PID()))
	}
	return b, nil
}

// Browser is a connected rod browser and the process behind it.
type Browser struct {
	browser *rod.Browser
	process *launcher.Launcher
	logger  *zap.Logger
}

// Connected asks the browser for its version.
func (b *Browser) Connected(ctx context.Context) bool {
	_, err := proto.BrowserGetVersion{}.Call(b.browser.Context(ctx))
	if err != nil {
		b.logger.Debug("Liveness probe failed.", zap.Error(err))
	}
	return err == nil
}

// NewPage opens a blank tab.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	p, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	return &Page{page: p, logger: b.logger}, nil
}

// Close closes the connection and kills the process.
func (b *Browser) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		err := b.browser.Close()
		b.process.Kill()
		b.process.Cleanup()
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
