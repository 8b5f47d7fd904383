// Package session coordinates a single playback session: the current track,
// transport state, playlist position, and shuffle/repeat flags, mediating
// between transport controls and a core.Backend.
package session

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/logging"
)

// restartThreshold is the position (ms) past which PlayPrevious restarts the
// current track instead of moving back.
const restartThreshold = 3000

// DefaultLoadTimeout bounds a single backend Load call.
const DefaultLoadTimeout = 10 * time.Second

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for backend failures and auto-advance.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLoadTimeout bounds each backend load. Zero disables the timeout.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.loadTimeout = d
	}
}

// WithRand sets the random source used for shuffle.
func WithRand(r *rand.Rand) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.intn = r.IntN
		}
	}
}

// WithVolume sets the initial volume (0-1) applied to every loaded resource.
func WithVolume(v float64) Option {
	return func(c *Coordinator) {
		c.volume = clampVolume(v)
	}
}

// WithShuffle sets the initial shuffle flag.
func WithShuffle(enabled bool) Option {
	return func(c *Coordinator) {
		c.shuffled = enabled
	}
}

// WithRepeat sets the initial repeat flag.
func WithRepeat(enabled bool) Option {
	return func(c *Coordinator) {
		c.repeating = enabled
	}
}

// Coordinator owns one playback session and the single backend resource
// behind it. Operations are serialized; state reads never wait on the backend.
type Coordinator struct {
	backend     core.Backend
	logger      logrus.FieldLogger
	loadTimeout time.Duration
	intn        func(int) int

	// opMu serializes every operation and every status report, so at most
	// one backend command is outstanding at a time.
	opMu sync.Mutex

	mu        sync.RWMutex
	playlist  *core.Playlist
	track     *core.Track
	index     int
	state     core.TransportState
	handle    core.Handle
	position  int64
	duration  int64
	shuffled  bool
	repeating bool
	volume    float64
	lastErr   error
	closed    bool

	// epoch increments after every acknowledged transport command. Reports
	// queued under an older epoch do not override the acknowledged state.
	epoch  atomic.Uint64
	events *statusQueue

	lmu       sync.Mutex
	listeners []chan core.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a Coordinator driving backend and starts its status loop.
// Call Close when the session ends to release any loaded resource.
func New(backend core.Backend, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		backend:     backend,
		logger:      logging.Discard(),
		loadTimeout: DefaultLoadTimeout,
		intn:        rand.IntN,
		playlist:    core.NewPlaylist(nil),
		index:       -1,
		state:       core.StateIdle,
		volume:      1,
		events:      newStatusQueue(),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	backend.SetStatusHandler(c.enqueueStatus)

	c.wg.Add(1)
	go c.run()

	return c
}

// Close unloads the active resource, stops the status loop, and closes all
// subscriptions. It is safe to call more than once.
func (c *Coordinator) Close(ctx context.Context) error {
	c.opMu.Lock()
	if c.isClosed() {
		c.opMu.Unlock()
		return nil
	}
	err := c.unloadLocked(ctx)

	c.mu.Lock()
	c.closed = true
	c.state = core.StateIdle
	c.position = 0
	c.mu.Unlock()

	c.cancel()
	close(c.done)
	c.opMu.Unlock()

	c.wg.Wait()
	c.backend.SetStatusHandler(nil)

	c.lmu.Lock()
	for _, ch := range c.listeners {
		close(ch)
	}
	c.listeners = nil
	c.lmu.Unlock()

	return err
}

// Snapshot returns a copy of the current session state.
func (c *Coordinator) Snapshot() core.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// CurrentTrack returns the current track, or nil if none.
func (c *Coordinator) CurrentTrack() *core.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.track == nil {
		return nil
	}
	t := *c.track
	return &t
}

// CurrentIndex returns the current playlist index, or -1. The index can
// outlive the track: after a failed load CurrentTrack is nil but next and
// previous still step from here.
func (c *Coordinator) CurrentIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// State returns the transport state.
func (c *Coordinator) State() core.TransportState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsPlaying returns true once the backend has confirmed playback.
func (c *Coordinator) IsPlaying() bool {
	return c.State() == core.StatePlaying
}

// Position returns the last reported playback position in milliseconds.
func (c *Coordinator) Position() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

// Duration returns the current track's duration in milliseconds, or 0 if unknown.
func (c *Coordinator) Duration() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.duration
}

// IsShuffled returns the shuffle flag.
func (c *Coordinator) IsShuffled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shuffled
}

// IsRepeating returns the repeat flag.
func (c *Coordinator) IsRepeating() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repeating
}

// Volume returns the session volume (0-1).
func (c *Coordinator) Volume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// Playlist returns a copy of the active playlist.
func (c *Coordinator) Playlist() []core.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playlist.Tracks()
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Slow subscribers only miss intermediate snapshots, never the latest one.
func (c *Coordinator) Subscribe() <-chan core.Snapshot {
	c.lmu.Lock()
	defer c.lmu.Unlock()

	ch := make(chan core.Snapshot, 16)
	if c.isClosed() {
		close(ch)
		return ch
	}
	c.listeners = append(c.listeners, ch)
	return ch
}

// Unsubscribe removes and closes a subscription.
func (c *Coordinator) Unsubscribe(ch <-chan core.Snapshot) {
	c.lmu.Lock()
	defer c.lmu.Unlock()

	for i, listener := range c.listeners {
		if listener == ch {
			close(listener)
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			break
		}
	}
}

// notify publishes the current snapshot to subscribers without blocking.
func (c *Coordinator) notify() {
	snap := c.Snapshot()

	c.lmu.Lock()
	defer c.lmu.Unlock()

	for _, ch := range c.listeners {
		select {
		case ch <- snap:
		default:
			// Full: drop the oldest so the latest state always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// snapshotLocked must be called with mu held.
func (c *Coordinator) snapshotLocked() core.Snapshot {
	snap := core.Snapshot{
		Index:     c.index,
		State:     c.state,
		Position:  c.position,
		Duration:  c.duration,
		Shuffled:  c.shuffled,
		Repeating: c.repeating,
		Volume:    c.volume,
		Loaded:    c.handle != core.NoHandle,
		LastError: c.lastErr,
	}
	if c.track != nil {
		t := *c.track
		snap.Track = &t
	}
	return snap
}

func (c *Coordinator) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Coordinator) activeHandle() core.Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
