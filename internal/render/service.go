// internal/render/service.go
package render

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/config"
	"github.com/xkilldash9x/clickrender/internal/interaction"
	"github.com/xkilldash9x/clickrender/internal/observability"
)

const pageCloseTimeout = 10 * time.Second

// Browsers hands out the shared browser. *browser.Manager implements it.
type Browsers interface {
	Acquire(ctx context.Context) (browser.Browser, error)
	Shutdown(ctx context.Context) error
}

// Request is a single render job.
type Request struct {
	URL   string
	Steps []interaction.Step
	// RunID names the snapshot directory and tags the logs. A UUID is
	// generated when empty.
	RunID string
}

// Result is the rendered document and the outcome of each step.
type Result struct {
	HTML   string
	Report interaction.Report
	RunID  string
}

// Service renders pages on the shared browser, one tab per request.
type Service struct {
	browsers  Browsers
	sequencer *interaction.Sequencer
	cfg       config.RenderConfig
	viewport  config.ViewportConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
	sem       *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewService wires the render pipeline.
func NewService(
	browsers Browsers,
	sequencer *interaction.Sequencer,
	cfg config.RenderConfig,
	viewport config.ViewportConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	slots := int64(cfg.MaxConcurrentPages)
	if slots <= 0 {
		slots = 1
	}
	return &Service{
		browsers:  browsers,
		sequencer: sequencer,
		cfg:       cfg,
		viewport:  viewport,
		metrics:   metrics,
		logger:    logger.Named("render"),
		sem:       semaphore.NewWeighted(slots),
	}
}

// Render loads req.URL in a fresh tab, replays the steps and returns the
// final HTML. The tab is always closed; the browser is left running.
func (s *Service) Render(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := s.render(ctx, req)

	outcome := "ok"
	switch {
	case IsValidation(err):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	s.metrics.ObserveRender(outcome, time.Since(start))
	return res, err
}

func (s *Service) render(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, &ValidationError{Field: "url", Reason: "is required"}
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := s.logger.With(zap.String("run_id", runID), zap.String("url", req.URL))

	if !s.begin() {
		return nil, &RenderError{Stage: StageQueue, Err: ErrServiceClosed}
	}
	defer s.wg.Done()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, &RenderError{Stage: StageQueue, Err: err}
	}
	defer s.sem.Release(1)

	b, err := s.browsers.Acquire(ctx)
	if err != nil {
		return nil, &RenderError{Stage: StageAcquire, Err: err}
	}

	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, &RenderError{Stage: StageOpenPage, Err: err}
	}
	s.metrics.PageOpened()
	defer s.closePage(page, log)

	if err := s.navigate(ctx, page, req.URL); err != nil {
		log.Warn("Navigation failed.", zap.Error(err))
		return nil, &RenderError{Stage: StageNavigate, Err: err}
	}

	if s.viewport.Enabled {
		if err := page.SetViewport(ctx, s.viewport.Width, s.viewport.Height); err != nil {
			log.Warn("Could not set viewport; continuing with the default.", zap.Error(err))
		}
	}

	report := interaction.Report{RunID: runID}
	if len(req.Steps) > 0 {
		report = s.sequencer.Run(ctx, runID, page, req.Steps)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, &RenderError{Stage: StageExtract, Err: err}
	}

	log.Info("Page rendered.",
		zap.Int("steps", len(report.Results)),
		zap.Int("steps_ok", report.Succeeded()),
		zap.Int("bytes", len(html)),
	)
	return &Result{HTML: html, Report: report, RunID: runID}, nil
}

func (s *Service) navigate(ctx context.Context, page browser.Page, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	return page.Navigate(ctx, url)
}

// closePage runs on a detached context so a cancelled request still
// releases its tab.
func (s *Service) closePage(page browser.Page, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), pageCloseTimeout)
	defer cancel()
	if err := page.Close(ctx); err != nil {
		log.Warn("Could not close page.", zap.Error(err))
	}
	s.metrics.PageClosed()
}

func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// Shutdown rejects new renders, waits for in-flight ones and then shuts the
// browser down.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for in-flight renders.", zap.Error(ctx.Err()))
	}
	return s.browsers.Shutdown(ctx)
}
