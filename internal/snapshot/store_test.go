// internal/snapshot/store_test.go
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/clickrender/internal/config"
	"github.com/xkilldash9x/clickrender/internal/interaction"
	"github.com/xkilldash9x/clickrender/internal/mocks"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStore(t *testing.T, cfg config.DebugConfig) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if cfg.Dir == "" {
		cfg.Dir = "/snapshots"
	}
	s := NewStore(fs, cfg, zaptest.NewLogger(t))
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, fs
}

func TestStore_WritesNamedSnapshots(t *testing.T) {
	s, fs := newTestStore(t, config.DebugConfig{MaxRuns: 5})
	shot := testPNG(t, 4, 4)
	page := &mocks.MockPage{}
	page.On("Screenshot", mock.Anything).Return(shot, nil)

	capture := s.Begin("req-1")
	capture.Initial(context.Background(), page)
	capture.Before(context.Background(), page, 0)
	capture.After(context.Background(), page, 0)
	capture.Before(context.Background(), page, 12)

	for _, name := range []string{"initial.png", "step-000-before.png", "step-000-after.png", "step-012-before.png"} {
		data, err := afero.ReadFile(fs, filepath.Join("/snapshots", "req-1", name))
		require.NoError(t, err, name)
		assert.Equal(t, shot, data, name)
	}
	page.AssertNumberOfCalls(t, "Screenshot", 4)
}

func TestStore_ScreenshotFailureIsSwallowed(t *testing.T) {
	s, fs := newTestStore(t, config.DebugConfig{MaxRuns: 5})
	page := &mocks.MockPage{}
	page.On("Screenshot", mock.Anything).Return(nil, errors.New("target closed"))

	capture := s.Begin("req-2")
	assert.NotPanics(t, func() {
		capture.Before(context.Background(), page, 0)
		capture.After(context.Background(), page, 0)
	})

	exists, err := afero.Exists(fs, "/snapshots/req-2/step-000-before.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_WriteFailureIsSwallowed(t *testing.T) {
	s, _ := newTestStore(t, config.DebugConfig{MaxRuns: 5})
	s.fs = afero.NewReadOnlyFs(afero.NewMemMapFs())
	page := &mocks.MockPage{}
	page.On("Screenshot", mock.Anything).Return(testPNG(t, 2, 2), nil).Maybe()

	assert.NotPanics(t, func() {
		capture := s.Begin("req-3")
		capture.Initial(context.Background(), page)
	})
	page.AssertNotCalled(t, "Screenshot", mock.Anything)
}

func TestStore_Retention(t *testing.T) {
	s, fs := newTestStore(t, config.DebugConfig{MaxRuns: 3})
	page := &mocks.MockPage{}
	page.On("Screenshot", mock.Anything).Return(testPNG(t, 2, 2), nil)

	for i := 0; i < 5; i++ {
		s.Begin(fmt.Sprintf("run-%d", i)).Initial(context.Background(), page)
	}

	entries, err := afero.ReadDir(fs, "/snapshots")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"run-2", "run-3", "run-4"}, names, "only the newest runs are kept")
}

func TestStore_UnlimitedRetention(t *testing.T) {
	s, fs := newTestStore(t, config.DebugConfig{MaxRuns: 0})
	for i := 0; i < 4; i++ {
		s.Begin(fmt.Sprintf("run-%d", i))
	}
	entries, err := afero.ReadDir(fs, "/snapshots")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestStore_Downscale(t *testing.T) {
	s, fs := newTestStore(t, config.DebugConfig{MaxRuns: 5, MaxWidth: 40})
	page := &mocks.MockPage{}
	page.On("Screenshot", mock.Anything).Return(testPNG(t, 200, 100), nil)

	s.Begin("wide").Initial(context.Background(), page)

	data, err := afero.ReadFile(fs, "/snapshots/wide/initial.png")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestStore_DownscaleKeepsNarrowAndInvalidImages(t *testing.T) {
	s, _ := newTestStore(t, config.DebugConfig{MaxWidth: 40})
	log := zaptest.NewLogger(t)

	narrow := testPNG(t, 10, 10)
	assert.Equal(t, narrow, s.downscale(narrow, log))

	garbage := []byte("not a png")
	assert.Equal(t, garbage, s.downscale(garbage, log))
}

func TestRunDirName(t *testing.T) {
	assert.Equal(t, "abc", runDirName("abc"))
	assert.Equal(t, "passwd", runDirName("../../etc/passwd"))
	assert.Equal(t, "run", runDirName(""))
	assert.Equal(t, "run", runDirName("/"))
}

func TestNewRecorder(t *testing.T) {
	log := zaptest.NewLogger(t)
	assert.IsType(t, interaction.NopRecorder{}, NewRecorder(config.DebugConfig{Enabled: false}, log))
	assert.IsType(t, &Store{}, NewRecorder(config.DebugConfig{Enabled: true, Dir: t.TempDir()}, log))
}
