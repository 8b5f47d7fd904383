package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/errors"
)

// DefaultSimulatedDuration is the length given to resources when no probe
// is configured.
const DefaultSimulatedDuration = 3 * time.Minute

// Simulator is a Backend that plays nothing. Positions advance with a clock,
// so sessions behave as they would against a sound device.
type Simulator struct {
	probe    func(ref string) (time.Duration, error)
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	next      core.Handle
	resources map[core.Handle]*simResource
	handler   core.StatusHandler
	closed    bool

	stop chan struct{}
	wg   sync.WaitGroup
}

type simResource struct {
	ref       string
	duration  time.Duration
	offset    time.Duration
	startedAt time.Time
	playing   bool
	looping   bool
	volume    float64
}

func (r *simResource) position(now time.Time) time.Duration {
	if !r.playing {
		return r.offset
	}
	return r.offset + now.Sub(r.startedAt)
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithProbe sets how resource durations are determined.
func WithProbe(probe func(ref string) (time.Duration, error)) SimulatorOption {
	return func(s *Simulator) {
		s.probe = probe
	}
}

// WithInterval sets the status report period. Zero disables periodic
// reports; call Tick to advance manually.
func WithInterval(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		s.interval = d
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		s.now = now
	}
}

// NewSimulator creates a simulator and starts its report loop.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		probe: func(string) (time.Duration, error) {
			return DefaultSimulatedDuration, nil
		},
		now:       time.Now,
		resources: make(map[core.Handle]*simResource),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.interval > 0 {
		s.wg.Add(1)
		go s.loop()
	}
	return s
}

func (s *Simulator) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances every resource to the current clock and reports its status.
func (s *Simulator) Tick() {
	s.mu.Lock()
	now := s.now()
	var reports []core.Status
	for h, r := range s.resources {
		st := s.statusLocked(h, r, now)
		if r.playing && r.duration > 0 && r.position(now) >= r.duration {
			st.JustFinished = true
			if r.looping {
				r.offset = r.position(now) % r.duration
				r.startedAt = now
				st.IsLooping = true
			} else {
				r.offset = r.duration
				r.playing = false
				st.IsPlaying = false
			}
			st.PositionMillis = r.offset.Milliseconds()
		}
		reports = append(reports, st)
	}
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		return
	}
	for _, st := range reports {
		handler(st)
	}
}

// Load implements core.Backend.
func (s *Simulator) Load(ctx context.Context, ref string, autoplay bool) (core.Handle, error) {
	if err := ctx.Err(); err != nil {
		return core.NoHandle, err
	}
	d, err := s.probe(ref)
	if err != nil {
		return core.NoHandle, fmt.Errorf("open %s: %w", ref, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.NoHandle, errors.ErrAudioDevice
	}
	s.next++
	h := s.next
	r := &simResource{
		ref:       ref,
		duration:  d,
		startedAt: s.now(),
		playing:   autoplay,
		volume:    1,
	}
	s.resources[h] = r
	st := s.statusLocked(h, r, s.now())
	s.mu.Unlock()

	s.emit(st)
	return h, nil
}

// Unload implements core.Backend.
func (s *Simulator) Unload(ctx context.Context, h core.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[h]; !ok {
		return fmt.Errorf("%w: handle %d", errors.ErrNoResource, h)
	}
	delete(s.resources, h)
	return nil
}

// Play implements core.Backend.
func (s *Simulator) Play(ctx context.Context, h core.Handle) error {
	return s.update(h, func(r *simResource, now time.Time) {
		if r.playing {
			return
		}
		if r.duration > 0 && r.offset >= r.duration {
			r.offset = 0
		}
		r.playing = true
		r.startedAt = now
	})
}

// Pause implements core.Backend.
func (s *Simulator) Pause(ctx context.Context, h core.Handle) error {
	return s.update(h, func(r *simResource, now time.Time) {
		r.offset = r.position(now)
		r.playing = false
	})
}

// Stop implements core.Backend.
func (s *Simulator) Stop(ctx context.Context, h core.Handle) error {
	return s.update(h, func(r *simResource, now time.Time) {
		r.offset = 0
		r.playing = false
	})
}

// Seek implements core.Backend.
func (s *Simulator) Seek(ctx context.Context, h core.Handle, positionMs int64) error {
	return s.update(h, func(r *simResource, now time.Time) {
		pos := time.Duration(positionMs) * time.Millisecond
		if pos < 0 {
			pos = 0
		}
		if r.duration > 0 && pos > r.duration {
			pos = r.duration
		}
		r.offset = pos
		r.startedAt = now
	})
}

// SetLooping implements core.Backend.
func (s *Simulator) SetLooping(ctx context.Context, h core.Handle, looping bool) error {
	return s.update(h, func(r *simResource, now time.Time) {
		r.looping = looping
	})
}

// SetVolume implements core.Backend.
func (s *Simulator) SetVolume(ctx context.Context, h core.Handle, volume float64) error {
	return s.update(h, func(r *simResource, now time.Time) {
		r.volume = volume
	})
}

// SetStatusHandler implements core.Backend.
func (s *Simulator) SetStatusHandler(fn core.StatusHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Close stops the report loop and drops every resource.
func (s *Simulator) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.resources = make(map[core.Handle]*simResource)
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	return nil
}

// Loaded returns the number of live resources.
func (s *Simulator) Loaded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

func (s *Simulator) update(h core.Handle, fn func(r *simResource, now time.Time)) error {
	s.mu.Lock()
	r, ok := s.resources[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: handle %d", errors.ErrNoResource, h)
	}
	now := s.now()
	fn(r, now)
	st := s.statusLocked(h, r, now)
	s.mu.Unlock()

	s.emit(st)
	return nil
}

func (s *Simulator) statusLocked(h core.Handle, r *simResource, now time.Time) core.Status {
	pos := r.position(now)
	if r.duration > 0 && pos > r.duration {
		pos = r.duration
	}
	return core.Status{
		Handle:         h,
		PositionMillis: pos.Milliseconds(),
		DurationMillis: r.duration.Milliseconds(),
		IsPlaying:      r.playing,
		IsLoaded:       true,
		IsLooping:      r.looping,
	}
}

func (s *Simulator) emit(st core.Status) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(st)
	}
}
