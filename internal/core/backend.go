package core

import "context"

// Handle is an opaque token for a loaded backend resource.
type Handle uint64

// NoHandle is the zero handle; no resource is loaded.
const NoHandle Handle = 0

// Status is a report pushed by a Backend whenever a loaded resource changes:
// a position tick, load completion, or natural end of track.
type Status struct {
	Handle         Handle
	PositionMillis int64
	DurationMillis int64
	IsPlaying      bool
	IsLoaded       bool
	JustFinished   bool
	IsLooping      bool
}

// StatusHandler receives backend status reports. Backends may call it from
// any goroutine and it must not block.
type StatusHandler func(Status)

// Backend defines the media playback capability a session drives. It holds
// at most the resources it was asked to load; the session guarantees only one
// is alive at a time.
type Backend interface {
	// Resource lifecycle
	Load(ctx context.Context, ref string, autoplay bool) (Handle, error)
	Unload(ctx context.Context, h Handle) error

	// Transport control
	Play(ctx context.Context, h Handle) error
	Pause(ctx context.Context, h Handle) error
	Stop(ctx context.Context, h Handle) error
	Seek(ctx context.Context, h Handle, positionMs int64) error
	SetLooping(ctx context.Context, h Handle, looping bool) error
	SetVolume(ctx context.Context, h Handle, volume float64) error

	// Status reporting
	SetStatusHandler(fn StatusHandler)

	Close() error
}
