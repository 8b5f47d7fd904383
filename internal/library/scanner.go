// Package library turns a directory of audio files into a playlist.
package library

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/logging"
)

// DefaultFormats are the extensions a Scanner keeps when none are configured.
var DefaultFormats = []string{".mp3", ".wav", ".flac"}

var coverNames = []string{"cover.jpg", "cover.png", "folder.jpg", "front.jpg"}

// Scanner reads track metadata from audio files.
type Scanner struct {
	formats []string
	logger  logrus.FieldLogger
}

// NewScanner creates a scanner for the given extensions.
func NewScanner(formats []string, logger logrus.FieldLogger) *Scanner {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	normalized := make([]string, len(formats))
	for i, f := range formats {
		normalized[i] = strings.ToLower(f)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scanner{formats: normalized, logger: logger}
}

// IsAudioFile reports whether path has a supported extension.
func (s *Scanner) IsAudioFile(path string) bool {
	return slices.Contains(s.formats, strings.ToLower(filepath.Ext(path)))
}

type scanned struct {
	track  core.Track
	number int
}

// Scan walks dir and returns its tracks ordered by album, track number, and
// path. Files that cannot be read are reported in the result's Errors and
// skipped. A path that is a single audio file yields a one-track playlist.
func (s *Scanner) Scan(ctx context.Context, dir string) (*errors.PartialResult[[]core.Track], error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.WithSuggestion(
			fmt.Errorf("%w: %s", errors.ErrLibraryNotFound, dir),
			"Check the path or set library.path in the config",
		)
	}

	result := &errors.PartialResult[[]core.Track]{}
	var found []scanned

	if !info.IsDir() {
		if !s.IsAudioFile(dir) {
			return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedFormat, dir)
		}
		t, _, err := s.ReadTrack(dir)
		if err != nil {
			return nil, err
		}
		result.Data = []core.Track{t}
		return result, nil
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.AddError(err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !s.IsAudioFile(path) {
			return nil
		}

		t, n, err := s.ReadTrack(path)
		if err != nil {
			result.AddError(err)
			return nil
		}
		found = append(found, scanned{track: t, number: n})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(found, func(a, b scanned) int {
		return cmp.Or(
			cmp.Compare(a.track.Album, b.track.Album),
			cmp.Compare(a.number, b.number),
			cmp.Compare(a.track.AudioRef, b.track.AudioRef),
		)
	})

	result.Data = make([]core.Track, len(found))
	for i, f := range found {
		result.Data[i] = f.track
	}

	s.logger.WithFields(logrus.Fields{
		"dir":    dir,
		"tracks": len(result.Data),
		"errors": len(result.Errors),
	}).Debug("Library scanned")

	return result, nil
}

// ReadTrack builds a Track for one file, returning its tag track number for
// ordering. Missing tags fall back to the file name.
func (s *Scanner) ReadTrack(path string) (core.Track, int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return core.Track{}, 0, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return core.Track{}, 0, err
	}
	defer f.Close()

	t := core.Track{
		ID:       TrackID(abs),
		Title:    strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)),
		AudioRef: abs,
		ImageRef: findCover(filepath.Dir(abs)),
	}

	duration, err := ProbeDuration(abs)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"file":  abs,
			"error": err.Error(),
		}).Warn("Failed to calculate duration")
	}
	t.Duration = duration
	t.DurationLabel = FormatDuration(duration)

	number := 0
	md, err := tag.ReadFrom(f)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"file":  abs,
			"error": err.Error(),
		}).Debug("No tags, using file name")
		return t, number, nil
	}

	if title := md.Title(); title != "" {
		t.Title = title
	}
	t.Artist = md.Artist()
	t.Album = md.Album()
	number, _ = md.Track()

	return t, number, nil
}

// TrackID derives a stable ID from an absolute file path.
func TrackID(absPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(absPath))).String()
}

func findCover(dir string) string {
	for _, name := range coverNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
