package core

import (
	"fmt"
	"strings"
)

// TransportState is the play/pause/stop status of a playback session.
type TransportState int

const (
	StateIdle TransportState = iota
	StateLoading
	StatePlaying
	StatePaused
	StateStopped
)

var stateNames = [...]string{"idle", "loading", "playing", "paused", "stopped"}

func (s TransportState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s TransportState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TransportState) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range stateNames {
		if n == name {
			*s = TransportState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown transport state: %q", text)
}

// Snapshot is a read-only copy of a playback session's state.
type Snapshot struct {
	Track     *Track         `json:"track"`
	Index     int            `json:"index"`
	State     TransportState `json:"state"`
	Position  int64          `json:"position_ms"`
	Duration  int64          `json:"duration_ms"`
	Shuffled  bool           `json:"shuffled"`
	Repeating bool           `json:"repeating"`
	Volume    float64        `json:"volume"`
	Loaded    bool           `json:"loaded"`
	LastError error          `json:"-"`
}

// HasTrack returns true if there is a current track.
func (s *Snapshot) HasTrack() bool {
	return s != nil && s.Track != nil
}

// IsPlaying returns true if the backend has confirmed playback.
func (s *Snapshot) IsPlaying() bool {
	return s != nil && s.State == StatePlaying
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *Snapshot) ProgressPercent() float64 {
	if s == nil || s.Duration <= 0 {
		return 0
	}
	p := float64(s.Position) / float64(s.Duration) * 100
	if p > 100 {
		p = 100
	}
	return p
}
