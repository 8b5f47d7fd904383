package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tessro/cadence/internal/audio"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/library"
	"github.com/tessro/cadence/internal/session"
)

// shutdownTimeout bounds releasing the audio resource on exit.
const shutdownTimeout = 5 * time.Second

// player bundles a backend, a session coordinator, and the scanned library.
type player struct {
	dir     string
	logger  logrus.FieldLogger
	scanner *library.Scanner
	backend core.Backend
	session *session.Coordinator
	tracks  []core.Track
}

// libraryDir resolves the directory argument, falling back to library.path.
func libraryDir(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Library.Path != "" {
		return cfg.Library.Path, nil
	}
	return "", errors.WithSuggestion(
		errors.ErrLibraryNotFound,
		"Pass a directory, or run 'cadence config set library.path <dir>'",
	)
}

// scanLibrary scans dir and reports unreadable files on stderr.
func scanLibrary(ctx context.Context, scanner *library.Scanner, dir string) ([]core.Track, error) {
	result, err := scanner.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	if result.HasErrors() {
		if Verbose() {
			fmt.Fprintln(os.Stderr, result.ErrorSummary())
		} else {
			fmt.Fprintf(os.Stderr, "Warning: skipped %d unreadable file(s); use --verbose for details\n", len(result.Errors))
		}
	}
	return result.Data, nil
}

// openPlayer scans dir and starts a session over the configured backend.
// The playlist is set but nothing plays until the caller asks.
func openPlayer(ctx context.Context, dir string, log logrus.FieldLogger) (*player, error) {
	scanner := library.NewScanner(cfg.Library.Formats, log)
	tracks, err := scanLibrary(ctx, scanner, dir)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, errors.WithSuggestion(
			fmt.Errorf("%w: no audio files in %s", errors.ErrEmptyPlaylist, dir),
			"Supported formats are "+fmt.Sprint(cfg.Library.Formats),
		)
	}

	backend, err := audio.New(cfg, log)
	if err != nil {
		return nil, err
	}

	sess := session.New(backend,
		session.WithLogger(log),
		session.WithLoadTimeout(cfg.Playback.LoadTimeoutDuration()),
		session.WithVolume(cfg.Playback.Volume),
		session.WithShuffle(cfg.Playback.Shuffle),
		session.WithRepeat(cfg.Playback.Repeat),
	)
	sess.SetPlaylist(tracks)

	return &player{
		dir:     dir,
		logger:  log,
		scanner: scanner,
		backend: backend,
		session: sess,
		tracks:  tracks,
	}, nil
}

// watch rescans the library on file changes and hands new track lists to the
// session. It returns when ctx is cancelled.
func (p *player) watch(ctx context.Context) {
	w := library.NewWatcher(p.scanner, p.dir, func(tracks []core.Track) {
		p.logger.WithField("tracks", len(tracks)).Info("Library changed")
		p.session.SetPlaylist(tracks)
	})
	w.Baseline(p.tracks)

	go func() {
		if err := w.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
			p.logger.WithError(err).Warn("Library watcher stopped")
		}
	}()
}

// Close ends the session and releases the backend.
func (p *player) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return stderrors.Join(p.session.Close(ctx), p.backend.Close())
}
