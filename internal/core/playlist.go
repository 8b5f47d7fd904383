package core

// Playlist is an ordered sequence of tracks. It is replaced wholesale, never
// edited in place.
type Playlist struct {
	tracks []Track
}

// NewPlaylist creates a playlist holding a copy of tracks.
func NewPlaylist(tracks []Track) *Playlist {
	p := &Playlist{tracks: make([]Track, len(tracks))}
	copy(p.tracks, tracks)
	return p
}

// Len returns the number of tracks in the playlist.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.tracks)
}

// IsEmpty returns true if the playlist has no tracks.
func (p *Playlist) IsEmpty() bool {
	return p.Len() == 0
}

// At returns the track at index i, or nil if i is out of range.
func (p *Playlist) At(i int) *Track {
	if p == nil || i < 0 || i >= len(p.tracks) {
		return nil
	}
	t := p.tracks[i]
	return &t
}

// IndexOf returns the index of the first track with the given ID, or -1.
func (p *Playlist) IndexOf(id string) int {
	if p == nil {
		return -1
	}
	for i, t := range p.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Tracks returns a copy of all tracks.
func (p *Playlist) Tracks() []Track {
	if p == nil {
		return nil
	}
	result := make([]Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}
