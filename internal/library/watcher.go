package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/sirupsen/logrus"

	"github.com/tessro/cadence/internal/core"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before rescanning.
const DefaultDebounce = 500 * time.Millisecond

// Fingerprint hashes a track list so rescans that change nothing can be
// ignored.
func Fingerprint(tracks []core.Track) (uint64, error) {
	return hashstructure.Hash(tracks, hashstructure.FormatV2, nil)
}

// Watcher rescans a library directory when its contents change and hands the
// new track list to a callback.
type Watcher struct {
	scanner  *Scanner
	dir      string
	debounce time.Duration
	onChange func([]core.Track)
	logger   logrus.FieldLogger

	mu   sync.Mutex
	last uint64
}

// NewWatcher creates a watcher over dir. onChange runs on the watcher's
// goroutine whenever a rescan produces a different track list.
func NewWatcher(scanner *Scanner, dir string, onChange func([]core.Track)) *Watcher {
	return &Watcher{
		scanner:  scanner,
		dir:      dir,
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   scanner.logger,
	}
}

// SetDebounce overrides the settle interval.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Baseline records the track list the caller already has, so the first
// rescan only fires when something differs from it.
func (w *Watcher) Baseline(tracks []core.Track) {
	fp, err := Fingerprint(tracks)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.last = fp
	w.mu.Unlock()
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.dir); err != nil {
		return err
	}
	w.logger.WithField("dir", w.dir).Info("Library watcher started")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fsw, event) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("Library watcher error")

		case <-timer.C:
			w.rescan(ctx)
		}
	}
}

// relevant filters events down to audio files and new directories.
func (w *Watcher) relevant(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	if event.Has(fsnotify.Create) && !w.scanner.IsAudioFile(event.Name) {
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() {
			return false
		}
		// New directories need their own watch.
		if err := w.addTree(fsw, event.Name); err != nil {
			w.logger.WithError(err).WithField("dir", event.Name).Warn("Failed to watch directory")
			return false
		}
		return true
	}
	return w.scanner.IsAudioFile(event.Name) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) rescan(ctx context.Context) {
	result, err := w.scanner.Scan(ctx, w.dir)
	if err != nil {
		w.logger.WithError(err).Error("Library rescan failed")
		return
	}
	fp, err := Fingerprint(result.Data)
	if err != nil {
		w.logger.WithError(err).Error("Failed to fingerprint library")
		return
	}

	w.mu.Lock()
	changed := fp != w.last
	w.last = fp
	w.mu.Unlock()

	if !changed {
		return
	}
	w.logger.WithFields(logrus.Fields{
		"dir":    w.dir,
		"tracks": len(result.Data),
	}).Info("Library changed")
	if w.onChange != nil {
		w.onChange(result.Data)
	}
}
