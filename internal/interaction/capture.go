// internal/interaction/capture.go
package interaction

import (
	"context"

	"github.com/xkilldash9x/clickrender/internal/browser"
)

// Capture records the page around each step of one run. Implementations must
// swallow their own failures; a capture error never affects the run.
type Capture interface {
	Initial(ctx context.Context, page browser.Page)
	Before(ctx context.Context, page browser.Page, index int)
	After(ctx context.Context, page browser.Page, index int)
}

// Recorder opens a Capture for a run.
type Recorder interface {
	Begin(runID string) Capture
}

// NopRecorder is used when debug capture is disabled.
type NopRecorder struct{}

func (NopRecorder) Begin(string) Capture { return nopCapture{} }

type nopCapture struct{}

func (nopCapture) Initial(context.Context, browser.Page)     {}
func (nopCapture) Before(context.Context, browser.Page, int) {}
func (nopCapture) After(context.Context, browser.Page, int)  {}
