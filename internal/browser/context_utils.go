// internal/browser/context_utils.go
package browser

import "context"

// CombineContext derives a context from parent that is additionally cancelled
// when secondary is done. Values and deadline come from parent only, which
// lets engine handles stored in a long-lived context be driven under a
// short-lived request context.
func CombineContext(parent, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(parent)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
