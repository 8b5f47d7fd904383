package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/tui/styles"
)

// maxHistory bounds the recently played list.
const maxHistory = 50

// HistoryEntry represents a track in play history
type HistoryEntry struct {
	Track    core.Track
	PlayedAt time.Time
	Skipped  bool
}

// History displays recently played tracks
type History struct {
	entries []HistoryEntry
}

// NewHistory creates a new History component
func NewHistory() *History {
	return &History{}
}

// Add records a newly started track. When the previous entry ended early it
// is marked skipped.
func (h *History) Add(track core.Track, prevSkipped bool, at time.Time) {
	if len(h.entries) > 0 && prevSkipped {
		h.entries[0].Skipped = true
	}
	h.entries = append([]HistoryEntry{{Track: track, PlayedAt: at}}, h.entries...)
	if len(h.entries) > maxHistory {
		h.entries = h.entries[:maxHistory]
	}
}

// Entries returns the history, newest first.
func (h *History) Entries() []HistoryEntry {
	return h.entries
}

// Render renders the history panel
func (h *History) Render(width, height int, focused bool) string {
	title := styles.PanelTitle("History", focused)

	var content string
	if len(h.entries) == 0 {
		content = styles.Muted.Render("No history yet")
	} else {
		content = h.renderHistory(width-4, height-4)
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

func (h *History) renderHistory(width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	// icon (2) + " — " (3) + gap (1)
	const overhead = 6

	for i, entry := range h.entries {
		if i >= maxLines {
			break
		}

		ago := humanize.Time(entry.PlayedAt)
		icon := "✓"
		if entry.Skipped {
			icon = "⏭"
		}

		title, artist := fit(entry.Track.Title, entry.Track.Artist, width-overhead-len(ago))
		info := title + " — " + artist

		padding := width - 2 - lipgloss.Width(info) - len(ago)
		if padding < 1 {
			padding = 1
		}

		lines = append(lines, styles.Dim.Render(icon)+" "+info+
			lipgloss.NewStyle().Width(padding).Render("")+
			styles.Dim.Render(ago))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
