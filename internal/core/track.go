package core

import "time"

// Track represents a playable audio track. Tracks are values and are never
// mutated once built.
type Track struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Artist        string        `json:"artist"`
	Album         string        `json:"album"`
	DurationLabel string        `json:"duration_label"`
	AudioRef      string        `json:"audio_ref"`
	ImageRef      string        `json:"image_ref,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// Label returns "Artist - Title", or just the title when the artist is unknown.
func (t Track) Label() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
