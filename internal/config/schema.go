package config

// Config is the root configuration structure.
type Config struct {
	Library  LibraryConfig  `toml:"library"`
	Playback PlaybackConfig `toml:"playback"`
	Audio    AudioConfig    `toml:"audio"`
	TUI      TUIConfig      `toml:"tui"`
	Log      LogConfig      `toml:"log"`
}

// LibraryConfig holds music library settings.
type LibraryConfig struct {
	Path    string   `toml:"path"`
	Formats []string `toml:"formats"`
	Watch   bool     `toml:"watch"`
}

// PlaybackConfig holds session defaults. Durations are in milliseconds.
type PlaybackConfig struct {
	LoadTimeout    int     `toml:"load_timeout"`
	StatusInterval int     `toml:"status_interval"`
	Volume         float64 `toml:"volume"`
	Shuffle        bool    `toml:"shuffle"`
	Repeat         bool    `toml:"repeat"`
}

// AudioConfig selects and tunes the media backend.
type AudioConfig struct {
	Driver     string `toml:"driver"`
	SampleRate int    `toml:"sample_rate"`
	BufferMs   int    `toml:"buffer_ms"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme           string `toml:"theme"`
	RefreshInterval int    `toml:"refresh_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	File   string `toml:"file"`
	Format string `toml:"format"`
}
