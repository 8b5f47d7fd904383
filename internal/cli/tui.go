package cli

import (
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/tui"
)

var (
	tuiRefresh  int
	tuiTheme    string
	tuiAutoplay bool
)

var tuiCmd = &cobra.Command{
	Use:     "ui [path]",
	Aliases: []string{"tui"},
	Short:   "Launch interactive player",
	Long: `Launch the interactive terminal player over a directory.

The player shows:
  • Now Playing - current track, progress, shuffle/repeat, volume
  • Playlist - every track, with the playing one marked
  • History - recently played tracks

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  /            Filter playlist
  Space        Play/Pause
  Enter        Play selected
  n / p        Next / previous track
  ← / →        Seek 5s
  +/-          Volume up/down
  s / r        Shuffle / repeat
  x            Stop
  Tab          Switch panel`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVar(&tuiRefresh, "refresh", 0, "refresh interval in milliseconds (default: tui.refresh_interval)")
	tuiCmd.Flags().StringVar(&tuiTheme, "theme", "", "catppuccin flavor: latte, frappe, macchiato, mocha")
	tuiCmd.Flags().BoolVar(&tuiAutoplay, "autoplay", false, "start playing the first track")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	dir, err := libraryDir(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer cancel()

	// The UI owns the terminal.
	if cfg.Log.File == "" {
		logger.SetOutput(io.Discard)
	}

	p, err := openPlayer(ctx, dir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release audio resource")
		}
	}()

	if cfg.Library.Watch {
		p.watch(ctx)
	}

	if tuiAutoplay {
		if err := p.session.PlayIndex(ctx, 0); err != nil {
			return err
		}
	}

	refresh := tuiRefresh
	if refresh <= 0 {
		refresh = cfg.TUI.RefreshInterval
	}
	theme := tuiTheme
	if theme == "" {
		theme = cfg.TUI.Theme
	}

	return tui.Run(p.session, tui.Options{
		Theme:       theme,
		RefreshRate: time.Duration(refresh) * time.Millisecond,
	})
}
