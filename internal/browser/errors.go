package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrManagerClosed is returned by Acquire after Shutdown.
	ErrManagerClosed = errors.New("browser manager is shut down")
	// ErrDisconnected marks operations attempted on a dead browser.
	ErrDisconnected = errors.New("browser disconnected")
)

// LaunchError wraps a failure to start the browser process.
type LaunchError struct {
	Engine string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s browser: %v", e.Engine, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
