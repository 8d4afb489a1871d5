// internal/engine/pwengine/launcher.go
package pwengine

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
)

const installTimeout = 5 * time.Minute

// Launcher starts Chromium through a Playwright driver.
type Launcher struct {
	opts    browser.LaunchOptions
	install bool
	logger  *zap.Logger
}

// NewLauncher returns a Playwright launcher. When install is set the driver
// and Chromium are downloaded before every launch; repeated installs are
// cheap no-ops.
func NewLauncher(opts browser.LaunchOptions, install bool, logger *zap.Logger) *Launcher {
	l := &Launcher{opts: opts, install: install, logger: logger.Named("playwright")}
	if len(opts.Extensions) > 0 {
		l.logger.Warn("Extensions are not supported by the playwright engine; ignoring them.",
			zap.Strings("extensions", opts.Extensions))
	}
	return l
}

// launchOptions maps the engine-neutral options onto Playwright's.
func (l *Launcher) launchOptions() playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args:     []string{},
	}
	for _, f := range l.opts.Flags {
		switch f.Name {
		case "load-extension", "disable-extensions-except":
			continue
		}
		if a := f.Arg(); a != "" {
			opts.Args = append(opts.Args, a)
		}
	}
	if l.opts.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(l.opts.ExecutablePath)
	}
	if l.opts.Timeout > 0 {
		opts.Timeout = playwright.Float(float64(l.opts.Timeout.Milliseconds()))
	}
	return opts
}

func (l *Launcher) ensureInstallation(ctx context.Context) error {
	l.logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	return await(installCtx, func() error {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return fmt.Errorf("install playwright browsers: %w", err)
		}
		return nil
	})
}

// Launch starts the driver and a Chromium instance.
func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	if l.install {
		if err := l.ensureInstallation(ctx); err != nil {
			return nil, &browser.LaunchError{Engine: "playwright", Err: err}
		}
	}

	type launched struct {
		pw  *playwright.Playwright
		b   playwright.Browser
		err error
	}
	ch := make(chan launched, 1)
	go func() {
		pw, err := playwright.Run()
		if err != nil {
			ch <- launched{err: fmt.Errorf("start playwright driver: %w", err)}
			return
		}
		b, err := pw.Chromium.Launch(l.launchOptions())
		if err != nil {
			_ = pw.Stop()
			ch <- launched{err: fmt.Errorf("launch chromium: %w", err)}
			return
		}
		ch <- launched{pw: pw, b: b}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, &browser.LaunchError{Engine: "playwright", Err: res.err}
		}
		l.logger.Info("Chromium started.", zap.String("version", res.b.Version()))
		return &Browser{pw: res.pw, browser: res.b, logger: l.logger}, nil
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.err == nil {
				_ = res.b.Close()
				_ = res.pw.Stop()
			}
		}()
		return nil, &browser.LaunchError{Engine: "playwright", Err: fmt.Errorf("startup aborted: %w", ctx.Err())}
	}
}

// Browser is a Playwright-driven Chromium.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  *zap.Logger
}

// Connected reports the driver's view of the connection.
func (b *Browser) Connected(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return b.browser.IsConnected()
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	open := func() (playwright.Page, error) { return b.browser.NewPage() }
	closeLate := func(late playwright.Page) {
		if err := late.Close(); err != nil {
			b.logger.Debug("Could not close abandoned tab.", zap.Error(err))
		}
	}
	p, err := awaitValue(ctx, open, closeLate)
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	return &Page{page: p, logger: b.logger}, nil
}

// Close closes the browser and stops the driver.
func (b *Browser) Close(ctx context.Context) error {
	return await(ctx, func() error {
		err := b.browser.Close()
		if stopErr := b.pw.Stop(); err == nil {
			err = stopErr
		}
		return err
	})
}

// await runs fn and returns its error, or ctx's error if ctx ends first.
// Playwright calls carry their own timeouts, so fn is left to finish.
func await(ctx context.Context, fn func() error) error {
	_, err := awaitValue(ctx, func() (struct{}, error) { return struct{}{}, fn() }, nil)
	return err
}

type result[T any] struct {
	val T
	err error
}

// awaitValue is await for calls that produce a value. The value travels over
// the channel, so nothing is shared with an abandoned call. If ctx ends
// first, discard receives whatever the call later produces.
func awaitValue[T any](ctx context.Context, fn func() (T, error), discard func(T)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	done := make(chan result[T], 1)
	go func() {
		v, err := fn()
		done <- result[T]{val: v, err: err}
	}()
	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		if discard != nil {
			go func() {
				if res := <-done; res.err == nil {
					discard(res.val)
				}
			}()
		}
		return zero, ctx.Err()
	}
}
