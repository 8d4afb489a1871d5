// internal/browser/manager_test.go
package browser_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBrowser is a controllable browser handle.
type fakeBrowser struct {
	id     int
	alive  atomic.Bool
	closed atomic.Int32
	// onProbe runs at the start of every liveness check.
	onProbe func()
}

// Connected fails on a done context, as the real engines do.
func (b *fakeBrowser) Connected(ctx context.Context) bool {
	if b.onProbe != nil {
		b.onProbe()
	}
	return ctx.Err() == nil && b.alive.Load()
}
func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBrowser) Close(ctx context.Context) error {
	b.closed.Add(1)
	b.alive.Store(false)
	return nil
}

// gatedLauncher blocks every launch until release is closed, so tests can pile
// up concurrent acquirers behind a single in-flight launch.
type gatedLauncher struct {
	mu       sync.Mutex
	launched []*fakeBrowser
	calls    atomic.Int32
	started  chan struct{}
	release  chan struct{}
	err      error
}

func newGatedLauncher() *gatedLauncher {
	return &gatedLauncher{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (l *gatedLauncher) Launch(ctx context.Context) (browser.Browser, error) {
	n := l.calls.Add(1)
	l.started <- struct{}{}
	select {
	case <-l.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if l.err != nil {
		return nil, l.err
	}
	b := &fakeBrowser{id: int(n)}
	b.alive.Store(true)
	l.mu.Lock()
	l.launched = append(l.launched, b)
	l.mu.Unlock()
	return b, nil
}

func TestManager_LaunchesOnFirstAcquire(t *testing.T) {
	launcher := newGatedLauncher()
	close(launcher.release)
	m := browser.NewManager(launcher, zaptest.NewLogger(t))

	b1, err := m.Acquire(context.Background())
	require.NoError(t, err)
	b2, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, b1, b2, "a live browser must be reused")
	assert.EqualValues(t, 1, launcher.calls.Load())
	assert.EqualValues(t, 1, m.Launches())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_RelaunchesAfterDisconnect(t *testing.T) {
	launcher := newGatedLauncher()
	close(launcher.release)
	m := browser.NewManager(launcher, zaptest.NewLogger(t))

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	first.(*fakeBrowser).alive.Store(false)

	second, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.True(t, second.Connected(context.Background()))
	assert.EqualValues(t, 1, first.(*fakeBrowser).closed.Load(), "the stale handle is closed")
	assert.EqualValues(t, 2, m.Launches())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_ConcurrentAcquireLaunchesOnce(t *testing.T) {
	launcher := newGatedLauncher()
	m := browser.NewManager(launcher, zaptest.NewLogger(t))

	const callers = 16
	var wg sync.WaitGroup
	results := make([]browser.Browser, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Acquire(context.Background())
		}(i)
	}

	// Let the single launch begin, give the others time to queue behind it, then release.
	<-launcher.started
	time.Sleep(50 * time.Millisecond)
	close(launcher.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.EqualValues(t, 1, launcher.calls.Load(), "concurrent acquirers must share one launch")
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_ConcurrentRelaunchAfterCrash(t *testing.T) {
	launcher := newGatedLauncher()
	m := browser.NewManager(launcher, zaptest.NewLogger(t))

	// First launch.
	go func() { <-launcher.started; launcher.release <- struct{}{} }()
	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	first.(*fakeBrowser).alive.Store(false)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]browser.Browser, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := m.Acquire(context.Background())
			assert.NoError(t, err)
			results[i] = b
		}(i)
	}

	<-launcher.started
	time.Sleep(50 * time.Millisecond)
	close(launcher.release)
	wg.Wait()

	assert.EqualValues(t, 2, launcher.calls.Load(), "the crash triggers exactly one relaunch")
	for _, b := range results {
		assert.Same(t, results[0], b)
		assert.NotSame(t, first, b)
	}
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_LaunchFailure(t *testing.T) {
	launcher := &mocks.MockLauncher{}
	launchErr := errors.New("chrome not found")
	launcher.On("Launch", mock.Anything).Return(nil, launchErr).Once()

	healthy := &mocks.MockBrowser{}
	healthy.On("Connected", mock.Anything).Return(true)
	healthy.On("Close", mock.Anything).Return(nil)
	launcher.On("Launch", mock.Anything).Return(healthy, nil).Once()

	m := browser.NewManager(launcher, zaptest.NewLogger(t))

	_, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, launchErr)

	// The next caller retries the launch.
	b, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, healthy, b)
	assert.EqualValues(t, 1, m.Launches())

	require.NoError(t, m.Shutdown(context.Background()))
	launcher.AssertExpectations(t)
	healthy.AssertCalled(t, "Close", mock.Anything)
}

func TestManager_CanceledCallerDoesNotAbortSharedLaunch(t *testing.T) {
	launcher := newGatedLauncher()
	m := browser.NewManager(launcher, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Acquire(ctx)
		errCh <- err
	}()

	<-launcher.started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	done := make(chan browser.Browser, 1)
	go func() {
		b, err := m.Acquire(context.Background())
		assert.NoError(t, err)
		done <- b
	}()
	time.Sleep(20 * time.Millisecond)
	close(launcher.release)

	b := <-done
	require.NotNil(t, b)
	assert.EqualValues(t, 1, launcher.calls.Load(), "the launch started by the canceled caller is reused")
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_Shutdown(t *testing.T) {
	b := &mocks.MockBrowser{}
	b.On("Connected", mock.Anything).Return(true).Maybe()
	b.On("Close", mock.Anything).Return(nil).Once()
	launcher := &mocks.MockLauncher{}
	launcher.On("Launch", mock.Anything).Return(b, nil).Once()

	m := browser.NewManager(launcher, zaptest.NewLogger(t), browser.WithProbeTimeout(time.Second))
	require.NoError(t, m.Warmup(context.Background()))

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()), "shutdown is idempotent")

	_, err := m.Acquire(context.Background())
	assert.ErrorIs(t, err, browser.ErrManagerClosed)
	b.AssertExpectations(t)
	launcher.AssertExpectations(t)
}

func TestManager_LaunchRateLimit(t *testing.T) {
	launcher := newGatedLauncher()
	close(launcher.release)
	m := browser.NewManager(launcher, zaptest.NewLogger(t),
		browser.WithLaunchRate(time.Hour, 1),
		browser.WithLaunchTimeout(50*time.Millisecond),
	)

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	first.(*fakeBrowser).alive.Store(false)

	// The burst is spent; the next token is an hour away, past the launch deadline.
	_, err = m.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "launch rate limit")
	assert.EqualValues(t, 1, launcher.calls.Load())
	assert.EqualValues(t, 1, m.Launches())

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_CanceledCallerKeepsHealthyBrowser(t *testing.T) {
	launcher := newGatedLauncher()
	close(launcher.release)
	m := browser.NewManager(launcher, zaptest.NewLogger(t))

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	fb := first.(*fakeBrowser)

	t.Run("AlreadyCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Acquire(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("CanceledDuringProbe", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fb.onProbe = cancel
		b, err := m.Acquire(ctx)
		fb.onProbe = nil
		require.NoError(t, err)
		assert.Same(t, first, b)
	})

	t.Run("CanceledWhileBrowserIsDown", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fb.onProbe = func() {
			cancel()
			fb.alive.Store(false)
		}
		_, err := m.Acquire(ctx)
		fb.onProbe = nil
		fb.alive.Store(true)
		assert.ErrorIs(t, err, context.Canceled)
	})

	time.Sleep(50 * time.Millisecond)
	b, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, b, "the shared browser survives cancelled callers")
	assert.Zero(t, fb.closed.Load())
	assert.EqualValues(t, 1, launcher.calls.Load())
	assert.EqualValues(t, 1, m.Launches())

	require.NoError(t, m.Shutdown(context.Background()))
}
