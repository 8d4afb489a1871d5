// internal/interaction/executor.go
package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/config"
)

var (
	// ErrStepTimeout means the target never appeared within the wait timeout.
	ErrStepTimeout = errors.New("element did not appear in time")
	// ErrInteractionFailed means both the native and the forced click failed.
	ErrInteractionFailed = errors.New("element could not be clicked")
)

// Outcome classifies how a step ended.
type Outcome string

const (
	OutcomeClicked      Outcome = "clicked"
	OutcomeForceClicked Outcome = "force_clicked"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeTimedOut     Outcome = "timed_out"
	OutcomeFailed       Outcome = "failed"
)

// Succeeded reports whether the step clicked its target.
func (o Outcome) Succeeded() bool {
	return o == OutcomeClicked || o == OutcomeForceClicked
}

// StepResult is the outcome of executing one step.
type StepResult struct {
	Index    int
	Kind     Kind
	Locator  *browser.Locator
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Executor runs a single locator against a page: wait for presence, click
// natively, fall back to a script click once, then settle.
type Executor struct {
	logger       *zap.Logger
	waitTimeout  time.Duration
	clickTimeout time.Duration
	defaultWait  time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an executor from the interaction settings.
func NewExecutor(cfg config.InteractionConfig, logger *zap.Logger) *Executor {
	return &Executor{
		logger:       logger.Named("executor"),
		waitTimeout:  cfg.WaitTimeout,
		clickTimeout: cfg.ClickTimeout,
		defaultWait:  cfg.DefaultWait,
		sleep:        sleepContext,
	}
}

// DefaultWait is the settle delay used when a step does not ask for one.
func (e *Executor) DefaultWait() time.Duration { return e.defaultWait }

// Execute runs one step. A nil locator is a no-op. wait <= 0 selects the
// default settle delay. Errors are reported in the result, never returned.
func (e *Executor) Execute(ctx context.Context, page browser.Page, loc *browser.Locator, wait time.Duration) (res StepResult) {
	start := time.Now()
	res.Locator = loc
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("%w: panic: %v", ErrInteractionFailed, r)
		}
		res.Duration = time.Since(start)
	}()

	if loc == nil {
		res.Outcome = OutcomeSkipped
		return res
	}

	if err := e.waitFor(ctx, page, *loc); err != nil {
		res.Err = err
		res.Outcome = OutcomeFailed
		if errors.Is(err, ErrStepTimeout) {
			res.Outcome = OutcomeTimedOut
		}
		return res
	}

	res.Outcome = OutcomeClicked
	if err := e.click(ctx, page, *loc, page.Click); err != nil {
		e.logger.Debug("Native click failed, forcing script click.",
			zap.Stringer("locator", loc), zap.Error(err))

		if forceErr := e.click(ctx, page, *loc, page.ForceClick); forceErr != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("%w: %w", ErrInteractionFailed, errors.Join(err, forceErr))
			return res
		}
		res.Outcome = OutcomeForceClicked
	}

	if wait <= 0 {
		wait = e.defaultWait
	}
	if err := e.sleep(ctx, wait); err != nil {
		// The click landed; a cancelled settle only shortens the pause.
		e.logger.Debug("Settle wait interrupted.", zap.Error(err))
	}
	return res
}

func (e *Executor) waitFor(ctx context.Context, page browser.Page, loc browser.Locator) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.waitTimeout)
	defer cancel()

	err := page.WaitFor(waitCtx, loc)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && waitCtx.Err() != nil {
		return fmt.Errorf("%w after %s: %v", ErrStepTimeout, e.waitTimeout, err)
	}
	return fmt.Errorf("waiting for %s: %w", loc, err)
}

func (e *Executor) click(ctx context.Context, page browser.Page, loc browser.Locator,
	fn func(context.Context, browser.Locator) error) error {
	clickCtx, cancel := context.WithTimeout(ctx, e.clickTimeout)
	defer cancel()
	return fn(clickCtx, loc)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
