package tui

import "github.com/charmbracelet/bubbles/key"

// seekStep is how far left/right move the playhead.
const seekStep = 5000

// volumeStep is the +/- volume increment.
const volumeStep = 0.05

type keyMap struct {
	PlayPause key.Binding
	Next      key.Binding
	Prev      key.Binding
	Shuffle   key.Binding
	Repeat    key.Binding
	SeekBack  key.Binding
	SeekFwd   key.Binding
	VolUp     key.Binding
	VolDown   key.Binding
	Stop      key.Binding
	Up        key.Binding
	Down      key.Binding
	Play      key.Binding
	Filter    key.Binding
	Panel     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		PlayPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		Prev:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		Shuffle:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		Repeat:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
		SeekBack:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "-5s")),
		SeekFwd:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "+5s")),
		VolUp:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		VolDown:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		Stop:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Play:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play selected")),
		Filter:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Panel:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch panel")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Next, k.Prev, k.Shuffle, k.Repeat, k.Filter, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Next, k.Prev, k.Stop},
		{k.SeekBack, k.SeekFwd, k.VolUp, k.VolDown},
		{k.Shuffle, k.Repeat, k.Up, k.Down, k.Play},
		{k.Filter, k.Panel, k.Help, k.Quit},
	}
}
