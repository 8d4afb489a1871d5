// internal/engine/cdpengine/page.go
package cdpengine

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
)

// Page is a single chromedp tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// run executes actions on the tab under the caller's context.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := browser.CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func queryOption(loc browser.Locator) chromedp.QueryOption {
	if loc.Kind == browser.KindText {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads url and waits for the main frame's networkIdle lifecycle event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		idle := make(chan struct{})
		var (
			mu        sync.Mutex
			mainFrame cdp.FrameID
			once      sync.Once
		)

		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch e.Name {
			case "init":
				// The first document to start loading is the main frame.
				if mainFrame == "" {
					mainFrame = e.FrameID
				}
			case "networkIdle":
				if mainFrame != "" && e.FrameID == mainFrame {
					once.Do(func() { close(idle) })
				}
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}
		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return err
		}

		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
}

func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (p *Page) WaitFor(ctx context.Context, loc browser.Locator) error {
	return p.run(ctx, chromedp.WaitReady(loc.Value, queryOption(loc)))
}

func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	return p.run(ctx, chromedp.Click(loc.Value, queryOption(loc)))
}

func (p *Page) ForceClick(ctx context.Context, loc browser.Locator) error {
	var clicked bool
	return p.run(ctx, chromedp.Evaluate("("+loc.ForceClickFunction()+")()", &clicked))
}

// Screenshot captures the full page. Quality 100 selects PNG encoding.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	var doctype, html string
	err := p.run(ctx,
		chromedp.Evaluate("("+browser.DoctypeFunction+")()", &doctype),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	if doctype != "" {
		return doctype + "\n" + html, nil
	}
	return html, nil
}

// Close closes the tab. The browser stays up.
func (p *Page) Close(ctx context.Context) error {
	defer p.cancel()
	if p.ctx.Err() != nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(p.ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
