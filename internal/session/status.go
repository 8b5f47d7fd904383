package session

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tessro/cadence/internal/core"
)

type queuedStatus struct {
	status core.Status
	epoch  uint64
}

// statusQueue is an unbounded FIFO so backend callbacks never block.
type statusQueue struct {
	mu    sync.Mutex
	items []queuedStatus
	wake  chan struct{}
}

func newStatusQueue() *statusQueue {
	return &statusQueue{wake: make(chan struct{}, 1)}
}

func (q *statusQueue) push(item queuedStatus) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *statusQueue) drain() []queuedStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// enqueueStatus is the backend status handler.
func (c *Coordinator) enqueueStatus(s core.Status) {
	c.events.push(queuedStatus{status: s, epoch: c.epoch.Load()})
}

func (c *Coordinator) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case <-c.events.wake:
			for _, item := range c.events.drain() {
				c.handleStatus(item)
			}
		}
	}
}

// handleStatus applies one backend report. Reports for a handle other than
// the active one are discarded; a natural end of track that the backend is
// not looping advances the playlist exactly once.
func (c *Coordinator) handleStatus(item queuedStatus) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	s := item.status

	c.mu.Lock()
	if c.closed || s.Handle == core.NoHandle || s.Handle != c.handle || !s.IsLoaded {
		c.mu.Unlock()
		return
	}

	current := item.epoch == c.epoch.Load()
	duration := s.DurationMillis
	if duration < 0 {
		duration = 0
	}
	position := s.PositionMillis
	if position < 0 {
		position = 0
	}
	if duration > 0 && position > duration {
		position = duration
	}

	finished := s.JustFinished && !s.IsLooping
	if current || finished {
		c.duration = duration
		c.position = position
		switch {
		case s.IsPlaying:
			c.state = core.StatePlaying
		case c.state == core.StatePlaying:
			c.state = core.StatePaused
		}
	}

	var track string
	if c.track != nil {
		track = c.track.ID
	}
	c.mu.Unlock()
	c.notify()

	if !finished {
		return
	}

	c.logger.WithFields(logrus.Fields{
		"track":  track,
		"handle": s.Handle,
	}).Info("Track finished, advancing")

	if err := c.playNextLocked(c.ctx); err != nil {
		c.logger.WithError(err).Error("Auto-advance failed")
	}
}
