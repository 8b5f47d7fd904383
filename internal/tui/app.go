package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/tui/components"
	"github.com/tessro/cadence/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelPlaylist Panel = iota
	PanelHistory
)

// actionTimeout bounds a single transport command issued from a key press.
const actionTimeout = 15 * time.Second

// completionRatio separates finished tracks from skipped ones in history.
const completionRatio = 0.95

// Session is the playback session the UI drives.
type Session interface {
	Snapshot() core.Snapshot
	Playlist() []core.Track
	Subscribe() <-chan core.Snapshot
	Unsubscribe(ch <-chan core.Snapshot)

	TogglePlayPause(ctx context.Context) error
	PlayIndex(ctx context.Context, index int) error
	PlayNext(ctx context.Context) error
	PlayPrevious(ctx context.Context) error
	Stop(ctx context.Context) error
	SeekTo(ctx context.Context, positionMs int64) error
	SetVolume(ctx context.Context, volume float64) error
	ToggleShuffle() bool
	ToggleRepeat(ctx context.Context) (bool, error)
}

// Options configures the UI.
type Options struct {
	Theme       string
	RefreshRate time.Duration
}

// Model is the main TUI model
type Model struct {
	session Session
	updates <-chan core.Snapshot
	refresh time.Duration
	keys    keyMap
	help    help.Model

	width        int
	height       int
	focusedPanel Panel

	// State
	snap   core.Snapshot
	tracks []core.Track

	// Components
	playerBar    *components.PlayerBar
	playlistView *components.Playlist
	historyView  *components.History

	// Overlays
	showHelp bool

	// Filter state
	showFilter  bool
	filterInput textinput.Model
	filtered    []int

	// Error handling
	lastError   error
	errorExpiry time.Time

	quitting bool
}

// NewModel creates a new TUI model subscribed to session.
func NewModel(session Session, opts Options) Model {
	styles.Use(opts.Theme)
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = 250 * time.Millisecond
	}

	ti := textinput.New()
	ti.Placeholder = "Filter by title, artist, album..."
	ti.CharLimit = 100
	ti.Width = 50

	m := Model{
		session:      session,
		updates:      session.Subscribe(),
		refresh:      opts.RefreshRate,
		keys:         defaultKeyMap(),
		help:         help.New(),
		focusedPanel: PanelPlaylist,
		snap:         session.Snapshot(),
		tracks:       session.Playlist(),
		playerBar:    components.NewPlayerBar(),
		playlistView: components.NewPlaylist(),
		historyView:  components.NewHistory(),
		filterInput:  ti,
	}
	if m.snap.Track != nil {
		m.historyView.Add(*m.snap.Track, false, time.Now())
		m.playlistView.Select(m.snap.Index)
	}
	return m
}

// Messages
type tickMsg time.Time
type snapshotMsg core.Snapshot
type sessionClosedMsg struct{}
type errMsg error

// Commands
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForSnapshot() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return sessionClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// do runs a session command off the UI goroutine.
func (m Model) do(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return errMsg(err)
		}
		return nil
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForSnapshot())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if time.Now().After(m.errorExpiry) {
			m.lastError = nil
		}
		return m, m.tick()

	case snapshotMsg:
		m.applySnapshot(core.Snapshot(msg))
		return m, m.waitForSnapshot()

	case sessionClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case errMsg:
		m.lastError = msg
		m.errorExpiry = time.Now().Add(5 * time.Second) // Show error for 5 seconds
		return m, nil
	}

	if m.showFilter {
		var inputCmd tea.Cmd
		m.filterInput, inputCmd = m.filterInput.Update(msg)
		return m, inputCmd
	}

	return m, nil
}

func (m *Model) applySnapshot(next core.Snapshot) {
	prev := m.snap
	m.snap = next
	m.tracks = m.session.Playlist()
	if m.showFilter {
		m.applyFilter()
	}

	if next.Track != nil && (prev.Track == nil || prev.Track.ID != next.Track.ID) {
		skipped := prev.Track != nil && !finished(prev)
		m.historyView.Add(*next.Track, skipped, time.Now())
		if !m.showFilter && next.Index >= 0 {
			m.playlistView.Select(next.Index)
		}
	}
}

func finished(s core.Snapshot) bool {
	return s.Duration > 0 && float64(s.Position) >= float64(s.Duration)*completionRatio
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// Help overlay
	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	if m.showFilter {
		return m.handleFilterKeyPress(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.showFilter = true
		m.filterInput.SetValue("")
		m.filterInput.Focus()
		m.applyFilter()
		m.playlistView.Select(0)
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Panel):
		m.focusedPanel = (m.focusedPanel + 1) % 2
		return m, nil
	}

	if cmd := m.transportKey(msg); cmd != nil {
		return m, cmd
	}

	if m.focusedPanel == PanelPlaylist {
		switch {
		case key.Matches(msg, m.keys.Down):
			m.playlistView.SelectNext(len(m.tracks))
		case key.Matches(msg, m.keys.Up):
			m.playlistView.SelectPrev()
		case key.Matches(msg, m.keys.Play):
			index := m.playlistView.Selected()
			return m, m.do(func(ctx context.Context) error {
				return m.session.PlayIndex(ctx, index)
			})
		}
	}

	return m, nil
}

// transportKey maps playback keys to session commands.
func (m Model) transportKey(msg tea.KeyMsg) tea.Cmd {
	s := m.session
	snap := m.snap

	switch {
	case key.Matches(msg, m.keys.PlayPause):
		return m.do(s.TogglePlayPause)
	case key.Matches(msg, m.keys.Next):
		return m.do(s.PlayNext)
	case key.Matches(msg, m.keys.Prev):
		return m.do(s.PlayPrevious)
	case key.Matches(msg, m.keys.Stop):
		return m.do(s.Stop)
	case key.Matches(msg, m.keys.Shuffle):
		return func() tea.Msg {
			s.ToggleShuffle()
			return nil
		}
	case key.Matches(msg, m.keys.Repeat):
		return m.do(func(ctx context.Context) error {
			_, err := s.ToggleRepeat(ctx)
			return err
		})
	case key.Matches(msg, m.keys.SeekBack):
		return m.do(func(ctx context.Context) error {
			return s.SeekTo(ctx, snap.Position-seekStep)
		})
	case key.Matches(msg, m.keys.SeekFwd):
		return m.do(func(ctx context.Context) error {
			return s.SeekTo(ctx, snap.Position+seekStep)
		})
	case key.Matches(msg, m.keys.VolUp):
		return m.do(func(ctx context.Context) error {
			return s.SetVolume(ctx, snap.Volume+volumeStep)
		})
	case key.Matches(msg, m.keys.VolDown):
		return m.do(func(ctx context.Context) error {
			return s.SetVolume(ctx, snap.Volume-volumeStep)
		})
	}
	return nil
}

func (m Model) handleFilterKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showFilter = false
		m.filterInput.Blur()
		m.filtered = nil
		if m.snap.Index >= 0 {
			m.playlistView.Select(m.snap.Index)
		}
		return m, nil

	case "enter":
		sel := m.playlistView.Selected()
		if sel < 0 || sel >= len(m.filtered) {
			return m, nil
		}
		index := m.filtered[sel]
		m.showFilter = false
		m.filterInput.Blur()
		m.filtered = nil
		m.playlistView.Select(index)
		return m, m.do(func(ctx context.Context) error {
			return m.session.PlayIndex(ctx, index)
		})

	case "up", "ctrl+p":
		m.playlistView.SelectPrev()
		return m, nil

	case "down", "ctrl+n":
		m.playlistView.SelectNext(len(m.filtered))
		return m, nil
	}

	var inputCmd tea.Cmd
	m.filterInput, inputCmd = m.filterInput.Update(msg)
	m.applyFilter()
	return m, inputCmd
}

// applyFilter recomputes which playlist entries match the filter text.
func (m *Model) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filterInput.Value()))
	m.filtered = m.filtered[:0]
	for i, t := range m.tracks {
		if query == "" || matches(t, query) {
			m.filtered = append(m.filtered, i)
		}
	}
}

func matches(t core.Track, query string) bool {
	for _, field := range []string{t.Title, t.Artist, t.Album} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	// Left: player bar (top), playlist (bottom). Right: history.
	leftWidth := m.width * 65 / 100
	rightWidth := m.width - leftWidth - 2
	topHeight := 12
	bodyHeight := m.height - 2
	bottomHeight := bodyHeight - topHeight

	tracks, current := m.tracks, m.snap.Index
	if m.showFilter {
		tracks, current = m.filteredTracks()
	}

	playerBar := m.playerBar.Render(m.snap, leftWidth-2, topHeight-2, false)
	playlist := m.playlistView.Render(tracks, current, leftWidth-2, bottomHeight-2, m.focusedPanel == PanelPlaylist)
	history := m.historyView.Render(rightWidth-2, bodyHeight-2, m.focusedPanel == PanelHistory)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, playerBar, playlist)
	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, history)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

// filteredTracks returns the visible tracks and the playing track's position
// among them, or -1.
func (m Model) filteredTracks() ([]core.Track, int) {
	tracks := make([]core.Track, len(m.filtered))
	current := -1
	for i, idx := range m.filtered {
		tracks[i] = m.tracks[idx]
		if idx == m.snap.Index {
			current = i
		}
	}
	return tracks, current
}

func (m Model) renderStatusBar() string {
	status := m.help.View(m.keys)

	switch {
	case m.showFilter:
		status = m.filterInput.View() + "  " + styles.Dim.Render("↑/↓:nav  enter:play  esc:close")
	case m.lastError != nil:
		status = styles.Failure.Render("Error: " + m.lastError.Error())
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	full := m.help
	full.ShowAll = true

	title := styles.Highlight.Render("Cadence - Keyboard Shortcuts")
	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		full.View(m.keys),
		"",
		styles.Dim.Render("Press ? or Esc to close"),
	)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Padding(1, 2).Render(body))
}

// Close releases the model's session subscription.
func (m Model) Close() {
	m.session.Unsubscribe(m.updates)
}

// Run starts the TUI application
func Run(session Session, opts Options) error {
	model := NewModel(session, opts)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
