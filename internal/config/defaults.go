package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Library: LibraryConfig{
			Formats: []string{".mp3", ".wav", ".flac"},
			Watch:   false,
		},
		Playback: PlaybackConfig{
			LoadTimeout:    10000,
			StatusInterval: 500,
			Volume:         0.7,
			Shuffle:        false,
			Repeat:         false,
		},
		Audio: AudioConfig{
			Driver:     "speaker",
			SampleRate: 44100,
			BufferMs:   100,
		},
		TUI: TUIConfig{
			Theme:           "mocha",
			RefreshInterval: 250,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Library
	if len(c.Library.Formats) == 0 {
		c.Library.Formats = d.Library.Formats
	}

	// Playback
	if c.Playback.LoadTimeout == 0 {
		c.Playback.LoadTimeout = d.Playback.LoadTimeout
	}
	if c.Playback.StatusInterval == 0 {
		c.Playback.StatusInterval = d.Playback.StatusInterval
	}
	if c.Playback.Volume == 0 {
		c.Playback.Volume = d.Playback.Volume
	}

	// Audio
	if c.Audio.Driver == "" {
		c.Audio.Driver = d.Audio.Driver
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.BufferMs == 0 {
		c.Audio.BufferMs = d.Audio.BufferMs
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RefreshInterval == 0 {
		c.TUI.RefreshInterval = d.TUI.RefreshInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}
