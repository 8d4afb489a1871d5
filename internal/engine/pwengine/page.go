// internal/engine/pwengine/page.go
package pwengine

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
)

// fallbackTimeout applies when ctx carries no deadline.
const fallbackTimeout = 30 * time.Second

// Page is a single Playwright tab.
type Page struct {
	page   playwright.Page
	logger *zap.Logger
}

// selector maps a Locator onto Playwright's engine-prefixed selector syntax.
func selector(loc browser.Locator) string {
	if loc.Kind == browser.KindText {
		return "xpath=" + loc.Value
	}
	return "css=" + loc.Value
}

// timeoutMillis converts ctx's remaining time into a Playwright timeout.
func timeoutMillis(ctx context.Context) *float64 {
	d := fallbackTimeout
	if deadline, ok := ctx.Deadline(); ok {
		d = time.Until(deadline)
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return await(ctx, func() error {
		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   timeoutMillis(ctx),
		})
		return err
	})
}

func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	return await(ctx, func() error {
		return p.page.SetViewportSize(width, height)
	})
}

func (p *Page) WaitFor(ctx context.Context, loc browser.Locator) error {
	return await(ctx, func() error {
		return p.page.Locator(selector(loc)).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: timeoutMillis(ctx),
		})
	})
}

func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	return await(ctx, func() error {
		return p.page.Locator(selector(loc)).First().Click(playwright.LocatorClickOptions{
			Timeout: timeoutMillis(ctx),
		})
	})
}

func (p *Page) ForceClick(ctx context.Context, loc browser.Locator) error {
	return await(ctx, func() error {
		_, err := p.page.Evaluate(loc.ForceClickFunction())
		return err
	})
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	timeout := timeoutMillis(ctx)
	return awaitValue(ctx, func() ([]byte, error) {
		return p.page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(true),
			Type:     playwright.ScreenshotTypePng,
			Timeout:  timeout,
		})
	}, nil)
}

// HTML returns the document including its doctype.
func (p *Page) HTML(ctx context.Context) (string, error) {
	return awaitValue(ctx, p.page.Content, nil)
}

func (p *Page) Close(ctx context.Context) error {
	return await(ctx, func() error {
		return p.page.Close()
	})
}
