package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
)

func TestPlaylistScenario(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	tracks := makeTracks("A", "B", "C")
	c.SetPlaylist(tracks)

	if err := c.PlayTrack(ctx, tracks[1]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	if c.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", c.CurrentIndex())
	}

	steps := []struct {
		id    string
		index int
	}{
		{"C", 2},
		{"A", 0},
	}
	for _, step := range steps {
		if err := c.PlayNext(ctx); err != nil {
			t.Fatalf("PlayNext() error = %v", err)
		}
		if got := c.CurrentTrack(); got == nil || got.ID != step.id {
			t.Errorf("CurrentTrack() = %v, want %s", got, step.id)
		}
		if c.CurrentIndex() != step.index {
			t.Errorf("CurrentIndex() = %d, want %d", c.CurrentIndex(), step.index)
		}
	}
}

func TestPlayNextFullCycleReturnsToStart(t *testing.T) {
	for n := 1; n <= 5; n++ {
		c, _ := newTestCoordinator(t)
		ctx := context.Background()

		ids := []string{"a", "b", "c", "d", "e"}[:n]
		tracks := makeTracks(ids...)
		c.SetPlaylist(tracks)

		start := tracks[n/2]
		if err := c.PlayTrack(ctx, start); err != nil {
			t.Fatalf("PlayTrack() error = %v", err)
		}
		for i := 0; i < n; i++ {
			if err := c.PlayNext(ctx); err != nil {
				t.Fatalf("PlayNext() error = %v", err)
			}
		}
		if got := c.CurrentTrack(); got == nil || got.ID != start.ID {
			t.Errorf("n=%d: CurrentTrack() = %v, want %s", n, got, start.ID)
		}
	}
}

func TestPlayPreviousMovesBack(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		wantIndex int
	}{
		{"middle", 2, 1},
		{"wraps at zero", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCoordinator(t)
			ctx := context.Background()

			tracks := makeTracks("a", "b", "c", "d")
			c.SetPlaylist(tracks)
			if err := c.PlayTrack(ctx, tracks[tt.start]); err != nil {
				t.Fatalf("PlayTrack() error = %v", err)
			}

			if err := c.PlayPrevious(ctx); err != nil {
				t.Fatalf("PlayPrevious() error = %v", err)
			}
			if c.CurrentIndex() != tt.wantIndex {
				t.Errorf("CurrentIndex() = %d, want %d", c.CurrentIndex(), tt.wantIndex)
			}
			if got := c.CurrentTrack(); got == nil || got.ID != tracks[tt.wantIndex].ID {
				t.Errorf("CurrentTrack() = %v, want %s", got, tracks[tt.wantIndex].ID)
			}
		})
	}
}

func TestPlayPreviousRestartThreshold(t *testing.T) {
	tests := []struct {
		name        string
		position    int64
		wantIndex   int
		wantRestart bool
	}{
		{"at threshold moves back", 3000, 0, false},
		{"past threshold restarts", 3001, 1, true},
		{"well past threshold restarts", 90000, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fb := newTestCoordinator(t)
			ctx := context.Background()

			tracks := makeTracks("a", "b", "c")
			c.SetPlaylist(tracks)
			if err := c.PlayTrack(ctx, tracks[1]); err != nil {
				t.Fatalf("PlayTrack() error = %v", err)
			}

			fb.emit(core.Status{
				Handle:         fb.lastHandle(),
				IsLoaded:       true,
				IsPlaying:      true,
				PositionMillis: tt.position,
				DurationMillis: 180000,
			})
			waitFor(t, "position report", func() bool { return c.Position() == tt.position })

			fb.resetCalls()
			if err := c.PlayPrevious(ctx); err != nil {
				t.Fatalf("PlayPrevious() error = %v", err)
			}

			if c.CurrentIndex() != tt.wantIndex {
				t.Errorf("CurrentIndex() = %d, want %d", c.CurrentIndex(), tt.wantIndex)
			}
			calls := fb.callLog()
			if tt.wantRestart {
				if !slices.Equal(calls, []string{"seek b.mp3 0"}) {
					t.Errorf("calls = %v, want a single seek to 0", calls)
				}
				if c.Position() != 0 {
					t.Errorf("Position() = %d, want 0", c.Position())
				}
			} else if slices.Contains(calls, "seek b.mp3 0") {
				t.Errorf("calls = %v, want no restart", calls)
			}
		})
	}
}

func TestStopReleasesResource(t *testing.T) {
	c, fb := newTestCoordinator(t)
	ctx := context.Background()

	tracks := makeTracks("a")
	c.SetPlaylist(tracks)
	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	fb.emit(core.Status{Handle: fb.lastHandle(), IsLoaded: true, IsPlaying: true, PositionMillis: 42000, DurationMillis: 180000})
	waitFor(t, "position report", func() bool { return c.Position() == 42000 })

	fb.resetCalls()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if c.Position() != 0 {
		t.Errorf("Position() = %d, want 0", c.Position())
	}
	if fb.alive() != 0 {
		t.Errorf("alive resources = %d, want 0", fb.alive())
	}
	if c.State() != core.StateStopped {
		t.Errorf("State() = %v, want stopped", c.State())
	}
	if want := []string{"stop a.mp3", "unload a.mp3"}; !slices.Equal(fb.callLog(), want) {
		t.Errorf("calls = %v, want %v", fb.callLog(), want)
	}
	if c.Snapshot().Loaded {
		t.Error("Snapshot().Loaded = true after stop")
	}
}

func TestStopWithoutResource(t *testing.T) {
	c, fb := newTestCoordinator(t)

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(fb.callLog()) != 0 {
		t.Errorf("calls = %v, want none", fb.callLog())
	}
	if c.State() != core.StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
}

func TestPlayTrackUnloadsBeforeLoad(t *testing.T) {
	c, fb := newTestCoordinator(t)
	ctx := context.Background()

	tracks := makeTracks("t", "t2")
	c.SetPlaylist(tracks)

	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	if err := c.PlayTrack(ctx, tracks[1]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	want := []string{"load t.mp3", "unload t.mp3", "load t2.mp3"}
	if got := fb.callLog(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if fb.maxAlive != 1 {
		t.Errorf("max alive resources = %d, want 1", fb.maxAlive)
	}
}

func TestToggleRepeatTwice(t *testing.T) {
	c, fb := newTestCoordinator(t)
	ctx := context.Background()

	tracks := makeTracks("a", "b")
	c.SetPlaylist(tracks)
	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	h := fb.lastHandle()

	on, err := c.ToggleRepeat(ctx)
	if err != nil || !on {
		t.Fatalf("ToggleRepeat() = %v, %v; want true, nil", on, err)
	}
	if !fb.loopingFor(h) {
		t.Error("resource looping = false after first toggle")
	}

	off, err := c.ToggleRepeat(ctx)
	if err != nil || off {
		t.Fatalf("ToggleRepeat() = %v, %v; want false, nil", off, err)
	}
	if fb.loopingFor(h) {
		t.Error("resource looping = true after second toggle")
	}
	if c.IsRepeating() {
		t.Error("IsRepeating() = true, want original false")
	}
}

func TestRepeatAppliesToNewResources(t *testing.T) {
	c, fb := newTestCoordinator(t)
	ctx := context.Background()

	tracks := makeTracks("a", "b")
	c.SetPlaylist(tracks)

	if on, _ := c.ToggleRepeat(ctx); !on {
		t.Fatal("ToggleRepeat() = false, want true")
	}
	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	if !fb.loopingFor(fb.lastHandle()) {
		t.Error("new resource should loop while repeating")
	}
}

func TestToggleRepeatBackendFailure(t *testing.T) {
	c, fb := newTestCoordinator(t)
	ctx := context.Background()

	tracks := makeTracks("a")
	c.SetPlaylist(tracks)
	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	fb.loopErr = errors.New("looping unsupported")
	got, err := c.ToggleRepeat(ctx)
	if err == nil {
		t.Fatal("ToggleRepeat() expected error")
	}
	if got || c.IsRepeating() {
		t.Error("repeat flag should be unchanged after backend failure")
	}
}

func TestToggleShuffle(t *testing.T) {
	c, _ := newTestCoordinator(t)

	if !c.ToggleShuffle() || !c.IsShuffled() {
		t.Error("first ToggleShuffle() should enable shuffle")
	}
	if c.ToggleShuffle() || c.IsShuffled() {
		t.Error("second ToggleShuffle() should disable shuffle")
	}
}

func TestEmptyPlaylistNoops(t *testing.T) {
	c, fb := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.PlayNext(ctx); err != nil {
		t.Errorf("PlayNext() error = %v", err)
	}
	if err := c.PlayPrevious(ctx); err != nil {
		t.Errorf("PlayPrevious() error = %v", err)
	}
	if c.CurrentTrack() != nil {
		t.Errorf("CurrentTrack() = %v, want nil", c.CurrentTrack())
	}
	if calls := fb.callLog(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestLoadFailureDegradesToIdle(t *testing.T) {
	c, fb := newTestCoordinator(t)
	ctx := context.Background()

	tracks := makeTracks("good", "bad")
	fb.loadErr["bad.mp3"] = errors.New("decode failed")
	c.SetPlaylist(tracks)

	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack(good) error = %v", err)
	}

	err := c.PlayTrack(ctx, tracks[1])
	if !errors.Is(err, cerrors.ErrResourceLoad) {
		t.Fatalf("PlayTrack(bad) error = %v, want ErrResourceLoad", err)
	}

	snap := c.Snapshot()
	if snap.State != core.StateIdle {
		t.Errorf("State = %v, want idle", snap.State)
	}
	if snap.Track != nil {
		t.Errorf("Track = %v, want nil", snap.Track)
	}
	if snap.Loaded || fb.alive() != 0 {
		t.Error("no resource should be loaded after a failed load")
	}
	if !errors.Is(snap.LastError, cerrors.ErrResourceLoad) {
		t.Errorf("LastError = %v, want ErrResourceLoad", snap.LastError)
	}
	if got := c.CurrentIndex(); got != 1 {
		t.Errorf("CurrentIndex() = %d, want 1 kept after failed load", got)
	}

	if err := c.PlayNext(ctx); err != nil {
		t.Fatalf("PlayNext() error = %v", err)
	}
	if got := c.CurrentTrack(); got == nil || got.ID != "good" {
		t.Errorf("CurrentTrack() after next = %v, want good", got)
	}
}

func TestLoadTimeout(t *testing.T) {
	c, fb := newTestCoordinator(t, WithLoadTimeout(20*time.Millisecond))
	ctx := context.Background()

	tracks := makeTracks("slow")
	fb.blockRef = "slow.mp3"
	c.SetPlaylist(tracks)

	err := c.PlayTrack(ctx, tracks[0])
	if !errors.Is(err, cerrors.ErrLoadTimeout) {
		t.Fatalf("PlayTrack() error = %v, want ErrLoadTimeout", err)
	}
	if !errors.Is(err, cerrors.ErrResourceLoad) {
		t.Errorf("PlayTrack() error = %v, want ErrResourceLoad", err)
	}
	if c.State() != core.StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
}

func TestPlayTrackNotInPlaylist(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	c.SetPlaylist(makeTracks("a", "b"))
	stray := makeTracks("z")[0]

	if err := c.PlayTrack(ctx, stray); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	if c.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", c.CurrentIndex())
	}

	if err := c.PlayNext(ctx); err != nil {
		t.Fatalf("PlayNext() error = %v", err)
	}
	if got := c.CurrentTrack(); got == nil || got.ID != "a" {
		t.Errorf("CurrentTrack() = %v, want a", got)
	}
}

func TestPlayIndex(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	c.SetPlaylist(makeTracks("a", "b", "c"))

	if err := c.PlayIndex(ctx, 2); err != nil {
		t.Fatalf("PlayIndex() error = %v", err)
	}
	if c.CurrentIndex() != 2 {
		t.Errorf("CurrentIndex() = %d, want 2", c.CurrentIndex())
	}
	if err := c.PlayIndex(ctx, 7); !errors.Is(err, cerrors.ErrTrackNotFound) {
		t.Errorf("PlayIndex(7) error = %v, want ErrTrackNotFound", err)
	}
}

func TestSetPlaylistRelocatesIndex(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	tracks := makeTracks("a", "b", "c")
	c.SetPlaylist(tracks)
	if err := c.PlayTrack(ctx, tracks[1]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	c.SetPlaylist(makeTracks("x", "y", "b"))
	if c.CurrentIndex() != 2 {
		t.Errorf("CurrentIndex() = %d, want 2 after relocation", c.CurrentIndex())
	}

	c.SetPlaylist(makeTracks("x", "y"))
	if c.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1 when current track removed", c.CurrentIndex())
	}
	if got := c.CurrentTrack(); got == nil || got.ID != "b" {
		t.Errorf("CurrentTrack() = %v, want b to keep playing", got)
	}

	if err := c.PlayNext(ctx); err != nil {
		t.Fatalf("PlayNext() error = %v", err)
	}
	if got := c.CurrentTrack(); got == nil || got.ID != "x" {
		t.Errorf("CurrentTrack() = %v, want x", got)
	}
}

func TestShuffleExcludesCurrent(t *testing.T) {
	c, _ := newTestCoordinator(t, WithRand(rand.New(rand.NewPCG(1, 2))))
	ctx := context.Background()

	tracks := makeTracks("a", "b", "c", "d", "e")
	c.SetPlaylist(tracks)
	c.ToggleShuffle()

	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		prev := c.CurrentIndex()
		if err := c.PlayNext(ctx); err != nil {
			t.Fatalf("PlayNext() error = %v", err)
		}
		cur := c.CurrentIndex()
		if cur == prev {
			t.Fatalf("shuffle repeated index %d", cur)
		}
		if cur < 0 || cur >= len(tracks) {
			t.Fatalf("shuffle index %d out of range", cur)
		}
		seen[cur] = true
	}
	if len(seen) != len(tracks) {
		t.Errorf("shuffle visited %d distinct tracks, want %d", len(seen), len(tracks))
	}
}

func TestShuffleSingleTrack(t *testing.T) {
	c, _ := newTestCoordinator(t, WithShuffle(true))
	ctx := context.Background()

	tracks := makeTracks("only")
	c.SetPlaylist(tracks)
	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	if err := c.PlayNext(ctx); err != nil {
		t.Fatalf("PlayNext() error = %v", err)
	}
	if c.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", c.CurrentIndex())
	}
}

func TestSeekTo(t *testing.T) {
	c, fb := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.SeekTo(ctx, 1000); err != nil {
		t.Fatalf("SeekTo() without resource error = %v", err)
	}
	if len(fb.callLog()) != 0 {
		t.Errorf("calls = %v, want none without a resource", fb.callLog())
	}

	tracks := makeTracks("a")
	c.SetPlaylist(tracks)
	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	waitFor(t, "duration report", func() bool { return c.Duration() == 180000 })

	tests := []struct {
		seek int64
		want int64
	}{
		{-500, 0},
		{60000, 60000},
		{999999, 180000},
	}
	for _, tt := range tests {
		if err := c.SeekTo(ctx, tt.seek); err != nil {
			t.Fatalf("SeekTo(%d) error = %v", tt.seek, err)
		}
		if c.Position() != tt.want {
			t.Errorf("SeekTo(%d): Position() = %d, want %d", tt.seek, c.Position(), tt.want)
		}
	}
}

func TestSetVolume(t *testing.T) {
	c, fb := newTestCoordinator(t, WithVolume(0.3))
	ctx := context.Background()

	tracks := makeTracks("a")
	c.SetPlaylist(tracks)
	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}
	h := fb.lastHandle()
	if got := fb.volume[h]; got != 0.3 {
		t.Errorf("initial resource volume = %v, want 0.3", got)
	}

	if err := c.SetVolume(ctx, 1.5); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if c.Volume() != 1 {
		t.Errorf("Volume() = %v, want clamped 1", c.Volume())
	}
	if got := fb.volume[h]; got != 1 {
		t.Errorf("resource volume = %v, want 1", got)
	}
}

func TestCloseReleasesResource(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb)
	ctx := context.Background()

	sub := c.Subscribe()
	tracks := makeTracks("a")
	c.SetPlaylist(tracks)
	if err := c.PlayTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("PlayTrack() error = %v", err)
	}

	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fb.alive() != 0 {
		t.Errorf("alive resources = %d after Close, want 0", fb.alive())
	}
	if err := c.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := c.PlayTrack(ctx, tracks[0]); !errors.Is(err, cerrors.ErrSessionClosed) {
		t.Errorf("PlayTrack() after Close error = %v, want ErrSessionClosed", err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscription not closed by Close")
		}
	}
}
