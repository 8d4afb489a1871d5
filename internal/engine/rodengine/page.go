// internal/engine/rodengine/page.go
package rodengine

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
)

// idleWindow is how long the network must stay quiet to count as idle.
const idleWindow = 500 * time.Millisecond

// Page is a single rod tab.
type Page struct {
	page   *rod.Page
	logger *zap.Logger
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	waitIdle := pg.WaitRequestIdle(idleWindow, nil, nil, nil)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	waitIdle()
	return ctx.Err()
}

func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	return p.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

// element resolves loc, retrying until it is attached or ctx is done.
func (p *Page) element(ctx context.Context, loc browser.Locator) (*rod.Element, error) {
	pg := p.page.Context(ctx)
	if loc.Kind == browser.KindText {
		return pg.ElementX(loc.Value)
	}
	return pg.Element(loc.Value)
}

func (p *Page) WaitFor(ctx context.Context, loc browser.Locator) error {
	_, err := p.element(ctx, loc)
	return err
}

func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	el, err := p.element(ctx, loc)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *Page) ForceClick(ctx context.Context, loc browser.Locator) error {
	_, err := p.page.Context(ctx).Eval(loc.ForceClickFunction())
	return err
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	pg := p.page.Context(ctx)
	doctype, err := pg.Eval(browser.DoctypeFunction)
	if err != nil {
		return "", err
	}
	html, err := pg.HTML()
	if err != nil {
		return "", err
	}
	if dt := doctype.Value.Str(); dt != "" {
		return dt + "\n" + html, nil
	}
	return html, nil
}

// Close closes the tab. The browser stays up.
func (p *Page) Close(ctx context.Context) error {
	return p.page.Context(ctx).Close()
}
