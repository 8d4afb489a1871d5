// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/clickrender/internal/observability"
)

const (
	defaultProbeTimeout  = 2 * time.Second
	defaultLaunchTimeout = 60 * time.Second
	closeGracePeriod     = 10 * time.Second
	launchKey            = "browser"
)

// Manager owns the single shared browser process. It hands out a live handle
// and transparently relaunches the process when the liveness probe fails.
// Concurrent callers that observe the same dead handle share one launch.
type Manager struct {
	launcher Launcher
	logger   *zap.Logger
	metrics  *observability.Metrics

	probeTimeout  time.Duration
	launchTimeout time.Duration
	// limiter spaces out launches so a browser that dies on startup does
	// not turn into a crash loop. nil means unlimited.
	limiter *rate.Limiter

	mu      sync.Mutex
	current Browser
	closed  bool

	group    singleflight.Group
	launches atomic.Int64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithProbeTimeout bounds each liveness probe.
func WithProbeTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithLaunchTimeout bounds each browser launch.
func WithLaunchTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.launchTimeout = d
		}
	}
}

// WithLaunchRate allows burst launches at once and then one per interval.
// A non-positive interval disables the limit.
func WithLaunchRate(interval time.Duration, burst int) ManagerOption {
	return func(m *Manager) {
		if interval <= 0 {
			m.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithMetrics records launches on m.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a manager in the Disconnected state. Nothing is launched
// until Warmup or the first Acquire.
func NewManager(launcher Launcher, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		launcher:      launcher,
		logger:        logger.Named("browser_manager"),
		probeTimeout:  defaultProbeTimeout,
		launchTimeout: defaultLaunchTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Warmup launches the browser eagerly so the first request does not pay for it.
func (m *Manager) Warmup(ctx context.Context) error {
	_, err := m.Acquire(ctx)
	return err
}

// Acquire returns a connected browser handle, launching or relaunching the
// process when needed.
func (m *Manager) Acquire(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	current := m.current
	m.mu.Unlock()

	if current != nil && m.probe(ctx, current) {
		return current, nil
	}
	if current != nil {
		if err := ctx.Err(); err != nil {
			// Leave the relaunch to a caller that still wants the browser.
			return nil, err
		}
		m.logger.Warn("Browser failed liveness probe; relaunching.")
	}

	ch := m.group.DoChan(launchKey, func() (interface{}, error) {
		return m.relaunch(ctx, current)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Browser), nil
	case <-ctx.Done():
		// The shared launch keeps going for the other waiters.
		return nil, ctx.Err()
	}
}

// probe runs the liveness check under its own deadline, detached from the
// caller so a cancelled request cannot make a healthy browser look dead.
func (m *Manager) probe(ctx context.Context, b Browser) bool {
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.probeTimeout)
	defer cancel()
	return b.Connected(probeCtx)
}

// relaunch replaces stale with a fresh browser. It runs inside the
// singleflight group, so at most one launch is in progress at a time.
func (m *Manager) relaunch(ctx context.Context, stale Browser) (Browser, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if m.current != nil && m.current != stale {
		// Another launch already replaced the handle this caller saw.
		replacement := m.current
		m.mu.Unlock()
		return replacement, nil
	}
	m.mu.Unlock()

	if stale != nil {
		m.closeQuietly(stale)
	}

	// The launch outlives the request that triggered it, since other
	// callers may be waiting on the same result.
	launchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.launchTimeout)
	defer cancel()

	start := time.Now()
	b, err := m.launch(launchCtx)
	if err != nil {
		m.mu.Lock()
		if m.current == stale {
			m.current = nil
		}
		m.mu.Unlock()
		m.logger.Error("Failed to launch browser.", zap.Error(err))
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.closeQuietly(b)
		return nil, ErrManagerClosed
	}
	m.current = b
	m.mu.Unlock()

	n := m.launches.Add(1)
	m.metrics.BrowserLaunched()
	m.logger.Info("Browser launched.",
		zap.Int64("launch_count", n),
		zap.Duration("duration", time.Since(start)))
	return b, nil
}

func (m *Manager) launch(ctx context.Context) (Browser, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("launch rate limit: %w", err)
		}
	}
	return m.launcher.Launch(ctx)
}

func (m *Manager) closeQuietly(b Browser) {
	ctx, cancel := context.WithTimeout(context.Background(), closeGracePeriod)
	defer cancel()
	if err := b.Close(ctx); err != nil {
		m.logger.Debug("Error closing browser handle.", zap.Error(err))
	}
}

// Launches reports how many browser processes have been started.
func (m *Manager) Launches() int64 {
	return m.launches.Load()
}

// Shutdown closes the current browser and rejects further acquisitions.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	b := m.current
	m.current = nil
	m.mu.Unlock()

	if b == nil {
		return nil
	}
	m.logger.Info("Shutting down browser.")
	if err := b.Close(ctx); err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}
