package browser

import "context"

// Launcher starts a new browser process. The context bounds the launch
// only; the returned Browser lives until Close is called.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a handle to a running browser process.
type Browser interface {
	// Connected reports whether the process is still reachable. It must
	// return promptly and never panic on a dead handle.
	Connected(ctx context.Context) bool
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Page is a single tab. A Page is used by one request at a time.
type Page interface {
	// Navigate loads url and returns once network activity has settled.
	Navigate(ctx context.Context, url string) error
	SetViewport(ctx context.Context, width, height int) error
	// WaitFor blocks until an element matching loc is attached to the DOM
	// or ctx is done.
	WaitFor(ctx context.Context, loc Locator) error
	// Click performs a native pointer click on the first match.
	Click(ctx context.Context, loc Locator) error
	// ForceClick invokes the element's click() method from page script,
	// bypassing visibility and hit-testing checks.
	ForceClick(ctx context.Context, loc Locator) error
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// HTML serializes the current document.
	HTML(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}
