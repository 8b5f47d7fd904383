package session

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/errors"
)

// PlayTrack unloads any active resource and loads track, resolving its
// playlist index by ID (first match, -1 when absent). A failed load returns
// an error wrapping errors.ErrResourceLoad and leaves the session idle.
func (c *Coordinator) PlayTrack(ctx context.Context, track core.Track) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.isClosed() {
		return errors.ErrSessionClosed
	}

	c.mu.RLock()
	index := c.playlist.IndexOf(track.ID)
	c.mu.RUnlock()

	return c.loadLocked(ctx, track, index)
}

// PlayIndex plays the playlist entry at index.
func (c *Coordinator) PlayIndex(ctx context.Context, index int) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.isClosed() {
		return errors.ErrSessionClosed
	}

	c.mu.RLock()
	track := c.playlist.At(index)
	c.mu.RUnlock()

	if track == nil {
		return fmt.Errorf("%w: index %d", errors.ErrTrackNotFound, index)
	}
	return c.loadLocked(ctx, *track, index)
}

// Pause pauses playback. It is a no-op when nothing is loaded.
func (c *Coordinator) Pause(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.pauseLocked(ctx)
}

// Resume resumes playback. It is a no-op when nothing is loaded.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.resumeLocked(ctx)
}

// TogglePlayPause pauses when playing, resumes when paused, and reloads the
// current track when it was stopped.
func (c *Coordinator) TogglePlayPause(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.isClosed() {
		return errors.ErrSessionClosed
	}

	c.mu.RLock()
	state, handle, index := c.state, c.handle, c.index
	var track *core.Track
	if c.track != nil {
		t := *c.track
		track = &t
	}
	c.mu.RUnlock()

	switch {
	case handle != core.NoHandle && (state == core.StatePlaying || state == core.StateLoading):
		return c.pauseLocked(ctx)
	case handle != core.NoHandle:
		return c.resumeLocked(ctx)
	case track != nil:
		return c.loadLocked(ctx, *track, index)
	default:
		return nil
	}
}

// Stop unloads the active resource and resets the position to zero.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	handle := c.activeHandle()
	if handle == core.NoHandle {
		c.mu.Lock()
		c.position = 0
		c.mu.Unlock()
		return nil
	}

	stopErr := c.backend.Stop(ctx, handle)
	if stopErr != nil {
		c.logger.WithFields(logrus.Fields{
			"handle": handle,
			"error":  stopErr.Error(),
		}).Warn("Backend stop failed, unloading anyway")
	}
	unloadErr := c.unloadLocked(ctx)

	c.mu.Lock()
	c.state = core.StateStopped
	c.position = 0
	c.mu.Unlock()
	c.epoch.Add(1)
	c.notify()

	return stderrors.Join(stopErr, unloadErr)
}

// SeekTo moves the playback position, clamped to [0, duration] once the
// duration is known. It is a no-op when nothing is loaded.
func (c *Coordinator) SeekTo(ctx context.Context, positionMs int64) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.seekLocked(ctx, positionMs)
}

// PlayNext advances to the next track, wrapping at the end of the playlist.
// With shuffle on, it picks a random track other than the current one.
// It is a no-op on an empty playlist.
func (c *Coordinator) PlayNext(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.isClosed() {
		return errors.ErrSessionClosed
	}
	return c.playNextLocked(ctx)
}

// PlayPrevious restarts the current track when more than three seconds in,
// otherwise moves back one track, wrapping to the end. It is a no-op on an
// empty playlist.
func (c *Coordinator) PlayPrevious(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.isClosed() {
		return errors.ErrSessionClosed
	}

	c.mu.RLock()
	n := c.playlist.Len()
	position, index := c.position, c.index
	c.mu.RUnlock()

	if n == 0 {
		return nil
	}

	if position > restartThreshold {
		return c.seekLocked(ctx, 0)
	}

	prev := index - 1
	if prev < 0 {
		prev = n - 1
	}

	c.mu.RLock()
	track := c.playlist.At(prev)
	c.mu.RUnlock()

	return c.loadLocked(ctx, *track, prev)
}

// ToggleShuffle flips the shuffle flag and returns the new value.
func (c *Coordinator) ToggleShuffle() bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.shuffled = !c.shuffled
	shuffled := c.shuffled
	c.mu.Unlock()
	c.notify()

	return shuffled
}

// ToggleRepeat flips the repeat flag and applies native looping to the loaded
// resource. If the backend rejects the change the flag is left unchanged.
func (c *Coordinator) ToggleRepeat(ctx context.Context) (bool, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	repeating := !c.repeating
	handle := c.handle
	c.mu.RUnlock()

	if handle != core.NoHandle {
		if err := c.backend.SetLooping(ctx, handle, repeating); err != nil {
			c.logger.WithFields(logrus.Fields{
				"handle":  handle,
				"looping": repeating,
				"error":   err.Error(),
			}).Error("Failed to set looping")
			return !repeating, fmt.Errorf("failed to set repeat: %w", err)
		}
	}

	c.mu.Lock()
	c.repeating = repeating
	c.mu.Unlock()
	c.notify()

	return repeating, nil
}

// SetVolume sets the session volume (clamped to 0-1) and applies it to the
// loaded resource.
func (c *Coordinator) SetVolume(ctx context.Context, volume float64) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	volume = clampVolume(volume)
	handle := c.activeHandle()
	if handle != core.NoHandle {
		if err := c.backend.SetVolume(ctx, handle, volume); err != nil {
			return fmt.Errorf("failed to set volume: %w", err)
		}
	}

	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()
	c.notify()

	return nil
}

// SetPlaylist replaces the playlist and relocates the current track in it by
// ID. The index becomes -1 when the current track is no longer present.
func (c *Coordinator) SetPlaylist(tracks []core.Track) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.playlist = core.NewPlaylist(tracks)
	c.index = -1
	if c.track != nil {
		c.index = c.playlist.IndexOf(c.track.ID)
	}
	c.mu.Unlock()
	c.notify()
}

// loadLocked must be called with opMu held.
func (c *Coordinator) loadLocked(ctx context.Context, track core.Track, index int) error {
	if err := c.unloadLocked(ctx); err != nil {
		c.logger.WithError(err).Warn("Failed to unload previous resource")
	}

	c.mu.Lock()
	c.track = &track
	c.index = index
	c.state = core.StateLoading
	c.position = 0
	c.duration = 0
	c.lastErr = nil
	repeating, volume := c.repeating, c.volume
	c.mu.Unlock()
	c.notify()

	handle, err := c.loadWithTimeout(ctx, track.AudioRef)
	if err != nil {
		loadErr := errors.NewLoadError(track.AudioRef, err)
		c.logger.WithFields(logrus.Fields{
			"track": track.ID,
			"ref":   track.AudioRef,
			"error": err.Error(),
		}).Error("Failed to load track")

		c.mu.Lock()
		c.track = nil
		c.state = core.StateIdle
		c.lastErr = loadErr
		c.mu.Unlock()
		c.notify()
		return loadErr
	}

	c.mu.Lock()
	c.handle = handle
	c.mu.Unlock()

	if repeating {
		if err := c.backend.SetLooping(ctx, handle, true); err != nil {
			c.logger.WithError(err).Warn("Failed to enable looping on new resource")
		}
	}
	if err := c.backend.SetVolume(ctx, handle, volume); err != nil {
		c.logger.WithError(err).Warn("Failed to apply volume to new resource")
	}

	c.logger.WithFields(logrus.Fields{
		"track":  track.ID,
		"title":  track.Title,
		"index":  index,
		"handle": handle,
	}).Info("Track loaded")
	c.notify()

	return nil
}

type loadResult struct {
	handle core.Handle
	err    error
}

// loadWithTimeout runs Load and gives up after loadTimeout even when the
// backend ignores its context. A load that completes after the deadline is
// unloaded in the background.
func (c *Coordinator) loadWithTimeout(ctx context.Context, ref string) (core.Handle, error) {
	loadCtx := ctx
	if c.loadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, c.loadTimeout)
		defer cancel()
	}

	results := make(chan loadResult, 1)
	go func() {
		h, err := c.backend.Load(loadCtx, ref, true)
		results <- loadResult{handle: h, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil && stderrors.Is(loadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return core.NoHandle, fmt.Errorf("%w after %s: %v", errors.ErrLoadTimeout, c.loadTimeout, r.err)
		}
		return r.handle, r.err
	case <-loadCtx.Done():
		go func() {
			if r := <-results; r.err == nil {
				_ = c.backend.Unload(context.Background(), r.handle)
			}
		}()
		if ctx.Err() != nil {
			return core.NoHandle, ctx.Err()
		}
		return core.NoHandle, fmt.Errorf("%w after %s", errors.ErrLoadTimeout, c.loadTimeout)
	}
}

// unloadLocked releases the active resource, if any. The handle is cleared
// even when the backend reports an error.
func (c *Coordinator) unloadLocked(ctx context.Context) error {
	c.mu.Lock()
	handle := c.handle
	c.handle = core.NoHandle
	c.mu.Unlock()

	if handle == core.NoHandle {
		return nil
	}
	if err := c.backend.Unload(ctx, handle); err != nil {
		return fmt.Errorf("failed to unload resource %d: %w", handle, err)
	}
	return nil
}

func (c *Coordinator) pauseLocked(ctx context.Context) error {
	handle := c.activeHandle()
	if handle == core.NoHandle {
		return nil
	}
	if err := c.backend.Pause(ctx, handle); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	c.mu.Lock()
	c.state = core.StatePaused
	c.mu.Unlock()
	c.epoch.Add(1)
	c.notify()
	return nil
}

func (c *Coordinator) resumeLocked(ctx context.Context) error {
	handle := c.activeHandle()
	if handle == core.NoHandle {
		return nil
	}
	if err := c.backend.Play(ctx, handle); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}

	c.mu.Lock()
	c.state = core.StatePlaying
	c.mu.Unlock()
	c.epoch.Add(1)
	c.notify()
	return nil
}

func (c *Coordinator) seekLocked(ctx context.Context, positionMs int64) error {
	handle := c.activeHandle()
	if handle == core.NoHandle {
		return nil
	}

	c.mu.RLock()
	duration := c.duration
	c.mu.RUnlock()

	if positionMs < 0 {
		positionMs = 0
	}
	if duration > 0 && positionMs > duration {
		positionMs = duration
	}

	if err := c.backend.Seek(ctx, handle, positionMs); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	c.mu.Lock()
	c.position = positionMs
	c.mu.Unlock()
	c.epoch.Add(1)
	c.notify()
	return nil
}

func (c *Coordinator) playNextLocked(ctx context.Context) error {
	c.mu.RLock()
	n := c.playlist.Len()
	index, shuffled := c.index, c.shuffled
	c.mu.RUnlock()

	if n == 0 {
		return nil
	}

	var next int
	if shuffled {
		next = c.shuffleIndex(n, index)
	} else {
		next = (index + 1) % n
	}

	c.mu.RLock()
	track := c.playlist.At(next)
	c.mu.RUnlock()

	return c.loadLocked(ctx, *track, next)
}

// shuffleIndex picks uniformly among all indexes except current.
func (c *Coordinator) shuffleIndex(n, current int) int {
	if n == 1 {
		return 0
	}
	if current < 0 || current >= n {
		return c.intn(n)
	}
	i := c.intn(n - 1)
	if i >= current {
		i++
	}
	return i
}
