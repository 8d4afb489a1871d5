// internal/engine/pwengine/launcher_test.go
package pwengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/config"
)

var (
	_ browser.Launcher = (*Launcher)(nil)
	_ browser.Browser  = (*Browser)(nil)
	_ browser.Page     = (*Page)(nil)
)

func TestLaunchOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser
	cfg.ExecutablePath = "/usr/bin/chromium"
	cfg.Args = []string{"--lang=fr"}
	cfg.Extensions = []string{"/ext/a"}

	l := NewLauncher(browser.NewLaunchOptions(cfg), false, zaptest.NewLogger(t))
	opts := l.launchOptions()

	require.NotNil(t, opts.Headless)
	assert.True(t, *opts.Headless)
	require.NotNil(t, opts.ExecutablePath)
	assert.Equal(t, "/usr/bin/chromium", *opts.ExecutablePath)
	require.NotNil(t, opts.Timeout)
	assert.Equal(t, float64(60000), *opts.Timeout)
	assert.Contains(t, opts.Args, "--no-sandbox")
	assert.Contains(t, opts.Args, "--lang=fr")
	for _, a := range opts.Args {
		assert.NotContains(t, a, "load-extension")
	}
}

func TestNewLauncher_WarnsAboutExtensions(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := config.NewDefaultConfig().Browser
	cfg.Extensions = []string{"/ext/a"}

	NewLauncher(browser.NewLaunchOptions(cfg), false, zap.New(core))
	assert.Equal(t, 1, logs.Len())
}

func TestSelector(t *testing.T) {
	assert.Equal(t, "css=#go", selector(browser.CSS("#go")))
	assert.Equal(t, `xpath=//button[contains(., "Go")]`, selector(browser.XPath(`//button[contains(., "Go")]`)))
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, float64(fallbackTimeout.Milliseconds()), *timeoutMillis(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	ms := *timeoutMillis(ctx)
	assert.InDelta(t, float64(time.Hour.Milliseconds()), ms, 5000)

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Equal(t, float64(1), *timeoutMillis(expired))
}

func TestAwait(t *testing.T) {
	boom := errors.New("boom")
	assert.ErrorIs(t, await(context.Background(), func() error { return boom }), boom)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := await(canceled, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)

	ctx, cancel3 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel3()
	release := make(chan struct{})
	defer close(release)
	err = await(ctx, func() error { <-release; return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitValue(t *testing.T) {
	v, err := awaitValue(context.Background(), func() (string, error) { return "<html></html>", nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", v)

	t.Run("LateValueIsDiscarded", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		release := make(chan struct{})
		discarded := make(chan int, 1)

		v, err := awaitValue(ctx, func() (int, error) {
			<-release
			return 42, nil
		}, func(late int) { discarded <- late })

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, v)
		close(release)
		select {
		case late := <-discarded:
			assert.Equal(t, 42, late)
		case <-time.After(time.Second):
			t.Fatal("late value was never handed to discard")
		}
	})

	t.Run("LateErrorIsNotDiscarded", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		release := make(chan struct{})
		finished := make(chan struct{})
		discarded := make(chan int, 1)

		_, err := awaitValue(ctx, func() (int, error) {
			defer close(finished)
			<-release
			return 0, errors.New("target closed")
		}, func(late int) { discarded <- late })

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		close(release)
		<-finished
		assert.Never(t, func() bool { return len(discarded) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})
}
