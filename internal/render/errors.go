// internal/render/errors.go
package render

import (
	"errors"
	"fmt"
)

// ErrServiceClosed is returned for renders submitted after Shutdown.
var ErrServiceClosed = errors.New("render service is shut down")

// Stage names the point in a render where it failed.
type Stage string

const (
	StageQueue    Stage = "queue"
	StageAcquire  Stage = "acquire"
	StageOpenPage Stage = "open_page"
	StageNavigate Stage = "navigate"
	StageExtract  Stage = "extract"
)

// ValidationError reports a malformed request. It is raised before any
// browser resource is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// RenderError wraps a request-level failure with the stage it occurred in.
type RenderError struct {
	Stage Stage
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed during %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
