package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/sirupsen/logrus"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/logging"
)

// resampleQuality trades CPU for fidelity when the file rate differs from
// the device rate.
const resampleQuality = 4

var (
	speakerOnce sync.Once
	speakerErr  error
	speakerRate beep.SampleRate
)

// SpeakerOptions configures the sound device backend.
type SpeakerOptions struct {
	SampleRate int
	Buffer     time.Duration
	Interval   time.Duration
	Logger     logrus.FieldLogger
}

// Speaker is a Backend that plays through the default sound device. The
// device is opened once per process.
type Speaker struct {
	rate     beep.SampleRate
	interval time.Duration
	logger   logrus.FieldLogger

	mu        sync.Mutex
	next      core.Handle
	resources map[core.Handle]*resource
	handler   core.StatusHandler
	closed    bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// resource fields other than handle and ref are guarded by speaker.Lock.
type resource struct {
	handle core.Handle
	ref    string
	stream beep.StreamSeekCloser
	format beep.Format
	loop   *loopStreamer
	volume *effects.Volume
	ctrl   *beep.Ctrl

	unloaded bool
	finished bool
}

// NewSpeaker opens the sound device and starts the status loop.
func NewSpeaker(opts SpeakerOptions) (*Speaker, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	speakerOnce.Do(func() {
		speakerRate = beep.SampleRate(opts.SampleRate)
		speakerErr = speaker.Init(speakerRate, speakerRate.N(opts.Buffer))
	})
	if speakerErr != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrAudioDevice, speakerErr)
	}

	s := &Speaker{
		rate:      speakerRate,
		interval:  opts.Interval,
		logger:    opts.Logger,
		resources: make(map[core.Handle]*resource),
		stop:      make(chan struct{}),
	}

	if s.interval > 0 {
		s.wg.Add(1)
		go s.loop()
	}

	s.logger.WithFields(logrus.Fields{
		"sample_rate": int(s.rate),
		"buffer":      opts.Buffer,
	}).Debug("Sound device ready")

	return s, nil
}

func decode(ref string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(ref))
	switch ext {
	case ".mp3", ".wav", ".flac":
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(ref)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".flac":
		stream, format, err = flac.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return stream, format, nil
}

// Load implements core.Backend.
func (s *Speaker) Load(ctx context.Context, ref string, autoplay bool) (core.Handle, error) {
	if err := ctx.Err(); err != nil {
		return core.NoHandle, err
	}

	stream, format, err := decode(ref)
	if err != nil {
		return core.NoHandle, err
	}
	if err := ctx.Err(); err != nil {
		stream.Close()
		return core.NoHandle, err
	}

	r := &resource{
		ref:    ref,
		stream: stream,
		format: format,
	}
	r.loop = &loopStreamer{
		stream: stream,
		onLoop: func() { go s.report(r, true) },
	}
	var src beep.Streamer = r.loop
	if format.SampleRate != s.rate {
		src = beep.Resample(resampleQuality, format.SampleRate, s.rate, r.loop)
	}
	r.volume = &effects.Volume{Streamer: src, Base: 2}
	r.ctrl = &beep.Ctrl{Streamer: r.volume, Paused: !autoplay}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stream.Close()
		return core.NoHandle, errors.ErrAudioDevice
	}
	s.next++
	r.handle = s.next
	s.resources[r.handle] = r
	s.mu.Unlock()

	speaker.Play(s.sequence(r))

	s.logger.WithFields(logrus.Fields{
		"ref":         ref,
		"handle":      r.handle,
		"sample_rate": int(format.SampleRate),
	}).Debug("Resource loaded")

	s.report(r, false)
	return r.handle, nil
}

// sequence plays r and then marks it finished.
func (s *Speaker) sequence(r *resource) beep.Streamer {
	return beep.Seq(r.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine with the speaker lock held.
		if r.unloaded {
			return
		}
		r.finished = true
		go s.report(r, true)
	}))
}

// Unload implements core.Backend.
func (s *Speaker) Unload(ctx context.Context, h core.Handle) error {
	s.mu.Lock()
	r, ok := s.resources[h]
	delete(s.resources, h)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: handle %d", errors.ErrNoResource, h)
	}

	speaker.Lock()
	r.unloaded = true
	r.ctrl.Streamer = nil
	speaker.Unlock()

	return r.stream.Close()
}

// Play implements core.Backend.
func (s *Speaker) Play(ctx context.Context, h core.Handle) error {
	r, err := s.lookup(h)
	if err != nil {
		return err
	}

	speaker.Lock()
	replay := r.finished
	if replay {
		r.finished = false
		if err := r.stream.Seek(0); err != nil {
			speaker.Unlock()
			return err
		}
	}
	r.ctrl.Paused = false
	speaker.Unlock()

	if replay {
		speaker.Play(s.sequence(r))
	}
	s.report(r, false)
	return nil
}

// Pause implements core.Backend.
func (s *Speaker) Pause(ctx context.Context, h core.Handle) error {
	r, err := s.lookup(h)
	if err != nil {
		return err
	}

	speaker.Lock()
	r.ctrl.Paused = true
	speaker.Unlock()

	s.report(r, false)
	return nil
}

// Stop implements core.Backend.
func (s *Speaker) Stop(ctx context.Context, h core.Handle) error {
	r, err := s.lookup(h)
	if err != nil {
		return err
	}

	speaker.Lock()
	r.ctrl.Paused = true
	err = r.stream.Seek(0)
	speaker.Unlock()

	s.report(r, false)
	return err
}

// Seek implements core.Backend.
func (s *Speaker) Seek(ctx context.Context, h core.Handle, positionMs int64) error {
	r, err := s.lookup(h)
	if err != nil {
		return err
	}

	speaker.Lock()
	n := r.format.SampleRate.N(time.Duration(positionMs) * time.Millisecond)
	if n < 0 {
		n = 0
	}
	if length := r.stream.Len(); length > 0 && n >= length {
		n = length - 1
	}
	err = r.stream.Seek(n)
	speaker.Unlock()

	if err != nil {
		return fmt.Errorf("seek %s: %w", r.ref, err)
	}
	s.report(r, false)
	return nil
}

// SetLooping implements core.Backend.
func (s *Speaker) SetLooping(ctx context.Context, h core.Handle, looping bool) error {
	r, err := s.lookup(h)
	if err != nil {
		return err
	}

	speaker.Lock()
	r.loop.looping = looping
	speaker.Unlock()
	return nil
}

// SetVolume implements core.Backend. Volume is linear in [0, 1].
func (s *Speaker) SetVolume(ctx context.Context, h core.Handle, volume float64) error {
	r, err := s.lookup(h)
	if err != nil {
		return err
	}

	speaker.Lock()
	if volume <= 0 {
		r.volume.Silent = true
	} else {
		r.volume.Silent = false
		r.volume.Volume = math.Log2(volume)
	}
	speaker.Unlock()
	return nil
}

// SetStatusHandler implements core.Backend.
func (s *Speaker) SetStatusHandler(fn core.StatusHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Close stops reporting and releases every resource. The device stays open
// for the life of the process.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handles := make([]core.Handle, 0, len(s.resources))
	for h := range s.resources {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()

	for _, h := range handles {
		_ = s.Unload(context.Background(), h)
	}
	speaker.Clear()
	return nil
}

func (s *Speaker) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			live := make([]*resource, 0, len(s.resources))
			for _, r := range s.resources {
				live = append(live, r)
			}
			s.mu.Unlock()

			for _, r := range live {
				s.report(r, false)
			}
		}
	}
}

func (s *Speaker) lookup(h core.Handle) (*resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[h]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", errors.ErrNoResource, h)
	}
	return r, nil
}

// report pushes r's status. ended marks a natural end of stream.
func (s *Speaker) report(r *resource, ended bool) {
	speaker.Lock()
	if r.unloaded {
		speaker.Unlock()
		return
	}
	st := core.Status{
		Handle:         r.handle,
		PositionMillis: r.format.SampleRate.D(r.stream.Position()).Milliseconds(),
		DurationMillis: r.format.SampleRate.D(r.stream.Len()).Milliseconds(),
		IsPlaying:      !r.ctrl.Paused && !r.finished,
		IsLoaded:       true,
		JustFinished:   ended,
		IsLooping:      r.loop.looping,
	}
	speaker.Unlock()

	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(st)
	}
}

// loopStreamer rewinds its source at the end while looping is on.
type loopStreamer struct {
	stream  beep.StreamSeeker
	looping bool
	onLoop  func()
}

func (l *loopStreamer) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	rewound := false
	for filled < len(samples) {
		n, ok := l.stream.Stream(samples[filled:])
		filled += n
		if ok && n > 0 {
			rewound = false
			continue
		}
		if !l.looping || rewound || l.stream.Len() == 0 {
			return filled, filled > 0
		}
		if err := l.stream.Seek(0); err != nil {
			return filled, filled > 0
		}
		rewound = true
		if l.onLoop != nil {
			l.onLoop()
		}
	}
	return filled, true
}

func (l *loopStreamer) Err() error {
	return l.stream.Err()
}
