package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/library"
	"github.com/tessro/cadence/internal/tui/styles"
)

// PlayerBar displays the current track, progress, and session flags.
type PlayerBar struct{}

// NewPlayerBar creates a new PlayerBar component
func NewPlayerBar() *PlayerBar {
	return &PlayerBar{}
}

// Render renders the player bar panel
func (p *PlayerBar) Render(snap core.Snapshot, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if !snap.HasTrack() {
		content = styles.Muted.Render("No track playing")
		if snap.LastError != nil {
			content = styles.Failure.Render(snap.LastError.Error())
		}
	} else {
		content = p.renderTrack(snap, width-4)
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

func (p *PlayerBar) renderTrack(snap core.Snapshot, width int) string {
	track := snap.Track

	icon := styles.StatusIcon(snap.IsPlaying())
	if snap.State == core.StateLoading {
		icon = styles.Dim.Render("…")
	}
	title := styles.Title.Width(width - 4).Render(track.Title)

	artist := styles.Subtitle.Render(track.Artist)
	album := styles.Dim.Render(track.Album)

	progressWidth := width - 14
	if progressWidth < 10 {
		progressWidth = 10
	}
	total := snap.Duration
	if total == 0 {
		total = track.Duration.Milliseconds()
	}
	bar := styles.ProgressBar(snap.ProgressPercent(), progressWidth)
	progress := fmt.Sprintf("%s %s %s", library.FormatMillis(snap.Position), bar, library.FormatMillis(total))

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+artist,
		"  "+album,
		"",
		progress,
		"",
		p.renderControls(snap),
	)
}

func (p *PlayerBar) renderControls(snap core.Snapshot) string {
	controls := styles.Toggle("🔀", snap.Shuffled) + "  " + styles.Dim.Render("⏮ ")

	if snap.IsPlaying() {
		controls += styles.Playing.Render("⏸")
	} else {
		controls += styles.Paused.Render("▶")
	}

	controls += styles.Dim.Render(" ⏭") + "  " + styles.Toggle("🔁", snap.Repeating)
	controls += styles.Muted.Render(fmt.Sprintf("   🔊 %d%%", int(math.Round(snap.Volume*100))))

	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Render(controls)
}
