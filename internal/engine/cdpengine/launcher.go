// internal/engine/cdpengine/launcher.go
package cdpengine

import (
	"context"
	"fmt"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
)

// Launcher starts Chromium through the DevTools protocol with chromedp.
type Launcher struct {
	opts   browser.LaunchOptions
	logger *zap.Logger
}

// NewLauncher returns a chromedp launcher.
func NewLauncher(opts browser.LaunchOptions, logger *zap.Logger) *Launcher {
	return &Launcher{opts: opts, logger: logger.Named("chromedp")}
}

// allocatorFlags merges chromedp's defaults with the launch options. The
// result is keyed by flag name so later settings override defaults.
func allocatorFlags(opts browser.LaunchOptions) map[string]interface{} {
	flags := map[string]interface{}{
		// chromedp.DefaultExecAllocatorOptions sets these; restated so
		// headless and extensions can be overridden below.
		"headless":           true,
		"disable-extensions": true,
	}
	if !opts.Headless {
		flags["headless"] = false
	}
	if len(opts.Extensions) > 0 {
		flags["disable-extensions"] = false
	}
	for _, f := range opts.Flags {
		flags[f.Name] = f.Value
	}
	return flags
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range allocatorFlags(l.opts) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if l.opts.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecutablePath))
	}
	return opts
}

// Launch starts the browser process and opens the initial target. ctx bounds
// the startup only.
func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	// The allocator and browser contexts own the process lifetime, so they
	// must not inherit the caller's cancellation.
	base := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(base, l.allocatorOptions()...)

	sugar := l.logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		// The protocol emits many benign "unhandled event" errors.
		chromedp.WithErrorf(sugar.Debugf),
	)

	// The first Run allocates the browser. It must not carry a timeout, or
	// the deadline would later tear the whole browser down.
	if err := startContext(ctx, browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, &browser.LaunchError{Engine: "chromedp", Err: err}
	}

	b := &Browser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      l.logger,
	}
	if version, err := b.version(ctx); err == nil {
		l.logger.Info("Chromium started.", zap.String("product", version))
	}
	return b, nil
}

// startContext performs the first Run on target while honouring ctx.
func startContext(ctx, target context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(target) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("startup aborted: %w", ctx.Err())
	}
}

// Browser is a running chromedp browser.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

func (b *Browser) version(ctx context.Context) (string, error) {
	c := chromedp.FromContext(b.ctx)
	if c == nil || c.Browser == nil {
		return "", browser.ErrDisconnected
	}
	_, product, _, _, _, err := cdpbrowser.GetVersion().Do(cdp.WithExecutor(ctx, c.Browser))
	return product, err
}

// Connected asks the browser for its version over the protocol connection.
func (b *Browser) Connected(ctx context.Context) bool {
	if b.ctx.Err() != nil {
		return false
	}
	_, err := b.version(ctx)
	if err != nil {
		b.logger.Debug("Liveness probe failed.", zap.Error(err))
	}
	return err == nil
}

// NewPage opens a new tab.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if b.ctx.Err() != nil {
		return nil, browser.ErrDisconnected
	}
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	if err := startContext(ctx, tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	return &Page{ctx: tabCtx, cancel: tabCancel, logger: b.logger}, nil
}

// Close shuts the browser down and kills the process.
func (b *Browser) Close(ctx context.Context) error {
	defer b.allocCancel()
	defer b.cancel()
	if b.ctx.Err() != nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(b.ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
