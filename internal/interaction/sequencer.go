// internal/interaction/sequencer.go
package interaction

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/observability"
)

// Report summarises a sequence run. Results are in step order.
type Report struct {
	RunID   string
	Results []StepResult
}

// Succeeded counts the steps that clicked their target.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Succeeded() {
			n++
		}
	}
	return n
}

// Count returns how many steps ended with outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Sequencer executes an ordered list of steps against one page. A failing
// step is logged and recorded; the remaining steps still run.
type Sequencer struct {
	executor *Executor
	recorder Recorder
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewSequencer wires an executor and a capture recorder. A nil recorder
// disables capture.
func NewSequencer(executor *Executor, recorder Recorder, metrics *observability.Metrics, logger *zap.Logger) *Sequencer {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Sequencer{
		executor: executor,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger.Named("sequencer"),
	}
}

// Run executes every step exactly once, in order.
func (s *Sequencer) Run(ctx context.Context, runID string, page browser.Page, steps []Step) Report {
	report := Report{RunID: runID, Results: make([]StepResult, 0, len(steps))}
	logger := s.logger.With(zap.String("run_id", runID))
	capture := s.recorder.Begin(runID)

	capture.Initial(ctx, page)

	for i, step := range steps {
		capture.Before(ctx, page, i)

		res := s.runStep(ctx, page, step)
		res.Index = i
		report.Results = append(report.Results, res)
		s.metrics.ObserveStep(string(res.Outcome))

		switch {
		case res.Outcome == OutcomeSkipped:
			logger.Debug("Step has no target; skipped.",
				zap.Int("step", i),
				zap.ByteString("descriptor", descriptor(step)))
		case res.Err != nil:
			logger.Warn("Step failed; continuing with the next step.",
				zap.Int("step", i),
				zap.String("kind", string(res.Kind)),
				zap.ByteString("descriptor", descriptor(step)),
				zap.Stringer("locator", res.Locator),
				zap.String("outcome", string(res.Outcome)),
				zap.Error(res.Err))
		default:
			logger.Debug("Step completed.",
				zap.Int("step", i),
				zap.String("outcome", string(res.Outcome)),
				zap.Duration("duration", res.Duration))
		}

		capture.After(ctx, page, i)
	}

	logger.Info("Interaction sequence finished.",
		zap.Int("steps", len(steps)),
		zap.Int("succeeded", report.Succeeded()))
	return report
}

// runStep isolates a single step so that nothing it does can stop the run.
func (s *Sequencer) runStep(ctx context.Context, page browser.Page, step Step) (res StepResult) {
	start := time.Now()
	var loc *browser.Locator
	defer func() {
		if r := recover(); r != nil {
			res = StepResult{
				Locator:  loc,
				Outcome:  OutcomeFailed,
				Err:      fmt.Errorf("%w: panic: %v", ErrInteractionFailed, r),
				Duration: time.Since(start),
			}
		}
		if step != nil {
			res.Kind = step.Kind()
		}
	}()

	loc = Resolve(step)
	var wait time.Duration
	if step != nil {
		wait, _ = step.Wait()
	}
	return s.executor.Execute(ctx, page, loc, wait)
}

func descriptor(step Step) []byte {
	if step == nil {
		return nil
	}
	return step.Raw()
}
