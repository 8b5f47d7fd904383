package tail

import (
	"context"
	"sync"
	"time"

	"github.com/tessro/cadence/internal/core"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventTrackSkip
	EventPause
	EventResume
	EventStop
	EventShuffleChange
	EventRepeatChange
	EventVolumeChange
	EventError
)

// completionRatio is how far into a track it must be for a change to count
// as a natural completion rather than a skip.
const completionRatio = 0.95

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.Snapshot
	Current   *core.Snapshot
}

// Source is a session that publishes snapshots.
type Source interface {
	Snapshot() core.Snapshot
	Subscribe() <-chan core.Snapshot
	Unsubscribe(ch <-chan core.Snapshot)
}

// Watcher turns session snapshots into events.
type Watcher struct {
	source Source
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewWatcher creates a new state watcher.
func NewWatcher(source Source) *Watcher {
	return &Watcher{
		source: source,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
}

// Events returns the channel of playback events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start consumes snapshots until ctx is cancelled, Stop is called, or the
// session closes.
func (w *Watcher) Start(ctx context.Context) error {
	defer close(w.events)

	updates := w.source.Subscribe()
	defer w.source.Unsubscribe(updates)

	prev := w.source.Snapshot()
	if prev.HasTrack() {
		w.send(Event{Type: EventTrackChange, Timestamp: time.Now(), Current: &prev})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case curr, ok := <-updates:
			if !ok {
				return nil
			}
			for _, e := range diffSnapshots(&prev, &curr) {
				w.send(e)
			}
			prev = curr
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *Watcher) send(e Event) {
	select {
	case w.events <- e:
	default:
		// Drop event if channel is full
	}
}

// diffSnapshots compares two snapshots and returns detected events.
func diffSnapshots(prev, curr *core.Snapshot) []Event {
	if curr == nil {
		return nil
	}

	now := time.Now()
	var events []Event
	add := func(t EventType) {
		p, c := *prev, *curr
		events = append(events, Event{Type: t, Timestamp: now, Previous: &p, Current: &c})
	}

	if trackChanged(prev, curr) && curr.HasTrack() {
		switch {
		case !prev.HasTrack():
			add(EventTrackChange)
		case wasCompleted(prev):
			add(EventTrackComplete)
		default:
			add(EventTrackSkip)
		}
	}

	switch {
	case prev.State == core.StatePlaying && curr.State == core.StatePaused:
		add(EventPause)
	case prev.State == core.StatePaused && curr.State == core.StatePlaying:
		add(EventResume)
	case prev.State != core.StateStopped && curr.State == core.StateStopped:
		add(EventStop)
	}

	if prev.Shuffled != curr.Shuffled {
		add(EventShuffleChange)
	}
	if prev.Repeating != curr.Repeating {
		add(EventRepeatChange)
	}
	if prev.Volume != curr.Volume {
		add(EventVolumeChange)
	}
	if errorChanged(prev, curr) {
		add(EventError)
	}

	return events
}

// trackChanged returns true if the track changed.
func trackChanged(prev, curr *core.Snapshot) bool {
	if prev.Track == nil && curr.Track == nil {
		return false
	}
	if prev.Track == nil || curr.Track == nil {
		return true
	}
	return prev.Track.ID != curr.Track.ID
}

// wasCompleted returns true if the track likely completed naturally.
func wasCompleted(s *core.Snapshot) bool {
	if s.Track == nil || s.Duration == 0 {
		return false
	}
	return float64(s.Position) >= float64(s.Duration)*completionRatio
}

func errorChanged(prev, curr *core.Snapshot) bool {
	if curr.LastError == nil {
		return false
	}
	return prev.LastError == nil || prev.LastError.Error() != curr.LastError.Error()
}
