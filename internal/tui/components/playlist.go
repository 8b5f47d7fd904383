package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/tui/styles"
)

// Playlist displays the session playlist with a selection cursor.
type Playlist struct {
	offset   int
	selected int
}

// NewPlaylist creates a new Playlist component
func NewPlaylist() *Playlist {
	return &Playlist{}
}

// SelectNext moves the cursor down.
func (p *Playlist) SelectNext(n int) {
	if p.selected < n-1 {
		p.selected++
	}
}

// SelectPrev moves the cursor up.
func (p *Playlist) SelectPrev() {
	if p.selected > 0 {
		p.selected--
	}
}

// Select moves the cursor to i.
func (p *Playlist) Select(i int) {
	if i >= 0 {
		p.selected = i
	}
}

// Selected returns the selected index
func (p *Playlist) Selected() int {
	return p.selected
}

// Render renders the playlist panel. current is the playing index, or -1.
func (p *Playlist) Render(tracks []core.Track, current, width, height int, focused bool) string {
	title := styles.PanelTitle(fmt.Sprintf("Playlist (%d)", len(tracks)), focused)

	var content string
	if len(tracks) == 0 {
		content = styles.Muted.Render("Playlist is empty")
	} else {
		content = p.renderTracks(tracks, current, width-4, height-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (p *Playlist) renderTracks(tracks []core.Track, current, width, maxLines int) string {
	if p.selected >= len(tracks) {
		p.selected = len(tracks) - 1
	}

	visible := maxLines - 1 // Leave room for "more" indicator
	if visible < 1 {
		visible = 1
	}

	// Keep the cursor on screen
	if p.selected < p.offset {
		p.offset = p.selected
	}
	if p.selected >= p.offset+visible {
		p.offset = p.selected - visible + 1
	}

	start := p.offset
	end := start + visible
	if end > len(tracks) {
		end = len(tracks)
	}

	lines := make([]string, 0, end-start+1)

	// "XX. " (4) + "▶ " (2) + " — " (3) + " m:ss" (6)
	const overhead = 15

	for i := start; i < end; i++ {
		track := tracks[i]
		num := fmt.Sprintf("%2d.", i+1)
		title, artist := fit(track.Title, track.Artist, width-overhead)
		length := styles.Dim.Render(" " + track.DurationLabel)

		var line string
		if i == current {
			line = styles.Playing.Render(fmt.Sprintf("%s ▶ %s — %s", num, title, artist)) + length
		} else {
			line = fmt.Sprintf("%s   %s — %s%s",
				styles.Dim.Render(num),
				title,
				styles.Muted.Render(artist),
				length)
		}
		if i == p.selected {
			line = styles.Selected.Render(line)
		}

		lines = append(lines, line)
	}

	if end < len(tracks) {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(tracks)-end)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// fit truncates title and artist to share available columns, giving the
// artist at least a third.
func fit(title, artist string, available int) (string, string) {
	if len(title)+len(artist) <= available {
		return title, artist
	}

	minArtist := available / 3
	if minArtist < 8 {
		minArtist = 8
	}
	if minArtist > available-8 {
		minArtist = available - 8
	}

	artistSpace := minArtist
	if len(artist) < artistSpace {
		artistSpace = len(artist)
	}
	return truncate(title, available-artistSpace), truncate(artist, artistSpace)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
