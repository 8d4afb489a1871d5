// internal/snapshot/store.go
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/browser"
	"github.com/xkilldash9x/clickrender/internal/config"
	"github.com/xkilldash9x/clickrender/internal/interaction"
)

const captureTimeout = 10 * time.Second

// Store writes full-page screenshots for each interaction run into its own
// directory under the root. Only the newest maxRuns run directories are kept.
type Store struct {
	fs       afero.Fs
	root     string
	maxRuns  int
	maxWidth uint
	logger   *zap.Logger

	// mu serialises directory creation and pruning.
	mu sync.Mutex
	// now is swapped in tests.
	now func() time.Time
}

// NewStore creates a snapshot store on fs.
func NewStore(fs afero.Fs, cfg config.DebugConfig, logger *zap.Logger) *Store {
	maxWidth := uint(0)
	if cfg.MaxWidth > 0 {
		maxWidth = uint(cfg.MaxWidth)
	}
	return &Store{
		fs:       fs,
		root:     cfg.Dir,
		maxRuns:  cfg.MaxRuns,
		maxWidth: maxWidth,
		logger:   logger.Named("snapshot"),
		now:      time.Now,
	}
}

// NewRecorder returns a Store on the OS filesystem when capture is enabled,
// and a no-op recorder otherwise.
func NewRecorder(cfg config.DebugConfig, logger *zap.Logger) interaction.Recorder {
	if !cfg.Enabled {
		return interaction.NopRecorder{}
	}
	return NewStore(afero.NewOsFs(), cfg, logger)
}

// Begin prepares the run directory and prunes old runs.
func (s *Store) Begin(runID string) interaction.Capture {
	dir := filepath.Join(s.root, runDirName(runID))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("Could not create snapshot directory.", zap.String("dir", dir), zap.Error(err))
		return &run{store: s, dir: dir, broken: true}
	}
	// Stamp the directory so pruning orders runs by start time.
	stamp := s.now()
	if err := s.fs.Chtimes(dir, stamp, stamp); err != nil {
		s.logger.Debug("Could not stamp snapshot directory.", zap.Error(err))
	}
	s.prune(dir)
	return &run{store: s, dir: dir}
}

// prune removes the oldest run directories beyond the retention limit.
// keep is never removed.
func (s *Store) prune(keep string) {
	if s.maxRuns <= 0 {
		return
	}
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		s.logger.Debug("Could not list snapshot root.", zap.Error(err))
		return
	}

	dirs := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	if len(dirs) <= s.maxRuns {
		return
	}

	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].ModTime().Equal(dirs[j].ModTime()) {
			return dirs[i].Name() < dirs[j].Name()
		}
		return dirs[i].ModTime().Before(dirs[j].ModTime())
	})

	excess := len(dirs) - s.maxRuns
	for _, d := range dirs {
		if excess == 0 {
			break
		}
		path := filepath.Join(s.root, d.Name())
		if path == keep {
			continue
		}
		if err := s.fs.RemoveAll(path); err != nil {
			s.logger.Warn("Could not prune snapshot run.", zap.String("dir", path), zap.Error(err))
			continue
		}
		excess--
	}
}

// run is the Capture for one sequence.
type run struct {
	store  *Store
	dir    string
	broken bool
}

func (r *run) Initial(ctx context.Context, page browser.Page) {
	r.write(ctx, page, "initial.png")
}

func (r *run) Before(ctx context.Context, page browser.Page, index int) {
	r.write(ctx, page, StepFileName(index, "before"))
}

func (r *run) After(ctx context.Context, page browser.Page, index int) {
	r.write(ctx, page, StepFileName(index, "after"))
}

// StepFileName names a step snapshot by index and phase.
func StepFileName(index int, phase string) string {
	return fmt.Sprintf("step-%03d-%s.png", index, phase)
}

func (r *run) write(ctx context.Context, page browser.Page, name string) {
	if r.broken || page == nil {
		return
	}
	log := r.store.logger.With(zap.String("file", name))
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn("Snapshot panicked.", zap.Any("panic", rec))
		}
	}()

	shotCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	data, err := page.Screenshot(shotCtx)
	if err != nil {
		log.Warn("Snapshot failed.", zap.Error(err))
		return
	}
	data = r.store.downscale(data, log)

	path := filepath.Join(r.dir, name)
	if err := afero.WriteFile(r.store.fs, path, data, 0o644); err != nil {
		log.Warn("Could not write snapshot.", zap.String("path", path), zap.Error(err))
		return
	}
	log.Debug("Snapshot written.", zap.String("path", path), zap.Int("bytes", len(data)))
}

// downscale shrinks wide screenshots to maxWidth, keeping the aspect ratio.
// On any decode or encode failure the original bytes are returned.
func (s *Store) downscale(data []byte, log *zap.Logger) []byte {
	if s.maxWidth == 0 {
		return data
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug("Snapshot is not a decodable PNG; keeping original.", zap.Error(err))
		return data
	}
	if uint(img.Bounds().Dx()) <= s.maxWidth {
		return data
	}

	var resized image.Image = resize.Resize(s.maxWidth, 0, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		log.Debug("Could not encode downscaled snapshot; keeping original.", zap.Error(err))
		return data
	}
	return buf.Bytes()
}

// runDirName keeps run IDs from escaping the snapshot root.
func runDirName(runID string) string {
	name := filepath.Base(filepath.Clean("/" + runID))
	if name == "/" || name == "." || name == "" {
		return "run"
	}
	return name
}
