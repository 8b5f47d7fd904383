package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tessro/cadence/internal/core"
)

// fakeBackend records every call and enforces the one-resource rule so tests
// can assert on ordering.
type fakeBackend struct {
	mu       sync.Mutex
	next     core.Handle
	refs     map[core.Handle]string
	looping  map[core.Handle]bool
	volume   map[core.Handle]float64
	calls    []string
	maxAlive int
	handler  core.StatusHandler

	loadErr  map[string]error
	blockRef string
	pauseErr error
	loopErr  error
	// silent suppresses the automatic loaded+playing report after Load.
	silent bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		refs:    make(map[core.Handle]string),
		looping: make(map[core.Handle]bool),
		volume:  make(map[core.Handle]float64),
		loadErr: make(map[string]error),
	}
}

func (f *fakeBackend) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) Load(ctx context.Context, ref string, autoplay bool) (core.Handle, error) {
	f.mu.Lock()
	f.record("load %s", ref)
	block := ref == f.blockRef
	err := f.loadErr[ref]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return core.NoHandle, ctx.Err()
	}
	if err != nil {
		return core.NoHandle, err
	}

	f.mu.Lock()
	f.next++
	h := f.next
	f.refs[h] = ref
	if len(f.refs) > f.maxAlive {
		f.maxAlive = len(f.refs)
	}
	handler, silent := f.handler, f.silent
	f.mu.Unlock()

	if handler != nil && !silent {
		handler(core.Status{Handle: h, IsLoaded: true, IsPlaying: autoplay, DurationMillis: 180000})
	}
	return h, nil
}

func (f *fakeBackend) Unload(ctx context.Context, h core.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("unload %s", f.refs[h])
	if _, ok := f.refs[h]; !ok {
		return errors.New("unknown handle")
	}
	delete(f.refs, h)
	delete(f.looping, h)
	return nil
}

func (f *fakeBackend) Play(ctx context.Context, h core.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("play %s", f.refs[h])
	return nil
}

func (f *fakeBackend) Pause(ctx context.Context, h core.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pause %s", f.refs[h])
	return f.pauseErr
}

func (f *fakeBackend) Stop(ctx context.Context, h core.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop %s", f.refs[h])
	return nil
}

func (f *fakeBackend) Seek(ctx context.Context, h core.Handle, positionMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("seek %s %d", f.refs[h], positionMs)
	return nil
}

func (f *fakeBackend) SetLooping(ctx context.Context, h core.Handle, looping bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loopErr != nil {
		return f.loopErr
	}
	f.record("loop %s %t", f.refs[h], looping)
	f.looping[h] = looping
	return nil
}

func (f *fakeBackend) SetVolume(ctx context.Context, h core.Handle, volume float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume[h] = volume
	return nil
}

func (f *fakeBackend) SetStatusHandler(fn core.StatusHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
}

func (f *fakeBackend) Close() error { return nil }

// emit pushes a status report as the backend would.
func (f *fakeBackend) emit(s core.Status) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(s)
	}
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeBackend) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeBackend) alive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refs)
}

func (f *fakeBackend) lastHandle() core.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

func (f *fakeBackend) loopingFor(h core.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.looping[h]
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func makeTracks(ids ...string) []core.Track {
	tracks := make([]core.Track, len(ids))
	for i, id := range ids {
		tracks[i] = core.Track{
			ID:       id,
			Title:    "Track " + id,
			Artist:   "Artist",
			AudioRef: id + ".mp3",
		}
	}
	return tracks
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	c := New(fb, opts...)
	t.Cleanup(func() {
		_ = c.Close(context.Background())
	})
	return c, fb
}
