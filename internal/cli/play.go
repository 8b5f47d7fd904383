package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/library"
	"github.com/tessro/cadence/internal/session"
	"github.com/tessro/cadence/internal/tail"
)

var (
	playTrack     int
	playShuffle   bool
	playWatch     bool
	playNoEmoji   bool
	playTimestamp bool
	playFormat    string
)

var playCmd = &cobra.Command{
	Use:   "play [path]",
	Short: "Play a directory or file",
	Long: `Scan a directory (or a single file) into a playlist and start playing.
Without a path, library.path from the config is used.

Playback is controlled from an interactive prompt; type 'help' for commands.
Playback events are printed as they happen.

Examples:
  cadence play ~/Music/albums       # Play everything under a directory
  cadence play ~/Music --track 3    # Start from the third track
  cadence play ~/Music --shuffle    # Shuffle from the start
  cadence play song.flac            # Play one file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().IntVarP(&playTrack, "track", "n", 1, "track number to start from")
	playCmd.Flags().BoolVar(&playShuffle, "shuffle", false, "enable shuffle mode")
	playCmd.Flags().BoolVarP(&playWatch, "watch", "w", false, "rescan the library when files change")
	playCmd.Flags().BoolVar(&playNoEmoji, "no-emoji", false, "disable emoji output")
	playCmd.Flags().BoolVarP(&playTimestamp, "timestamp", "t", false, "show timestamps on events")
	playCmd.Flags().StringVarP(&playFormat, "format", "f", "", "custom event format template")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	dir, err := libraryDir(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := openPlayer(ctx, dir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release audio resource")
		}
	}()

	if playWatch || cfg.Library.Watch {
		p.watch(ctx)
	}

	if playShuffle && !p.session.IsShuffled() {
		p.session.ToggleShuffle()
	}

	if playTrack < 1 || playTrack > len(p.tracks) {
		return fmt.Errorf("track %d out of range (1-%d)", playTrack, len(p.tracks))
	}
	if err := p.session.PlayIndex(ctx, playTrack-1); err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cadence> ",
		AutoComplete:    consoleCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer rl.Close()

	// Log lines would tear through the prompt.
	if cfg.Log.File == "" && !Verbose() {
		logger.SetOutput(io.Discard)
	}

	go printEvents(ctx, p.session, rl.Stdout())

	c := &console{session: p.session, out: rl.Stdout()}
	for {
		line, err := rl.Readline()
		if stderrors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := c.exec(ctx, line)
		if err != nil {
			fmt.Fprintln(c.out, "Error:", err)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

// printEvents writes playback events to out until ctx is cancelled or the
// session closes.
func printEvents(ctx context.Context, source tail.Source, out io.Writer) {
	formatter := tail.NewFormatter(
		tail.WithEmoji(!playNoEmoji),
		tail.WithTimestamp(playTimestamp),
		tail.WithTemplate(playFormat),
	)
	watcher := tail.NewWatcher(source)
	go func() {
		<-ctx.Done()
		watcher.Stop()
	}()
	go func() { _ = watcher.Start(ctx) }()

	for event := range watcher.Events() {
		if JSONOutput() {
			_ = json.NewEncoder(out).Encode(map[string]any{
				"type":      event.Type.String(),
				"timestamp": event.Timestamp,
				"state":     event.Current,
			})
			continue
		}
		fmt.Fprintln(out, formatter.Format(event))
	}
}

var consoleCommands = []string{
	"pause", "resume", "next", "prev", "stop", "seek", "shuffle",
	"repeat", "volume", "status", "list", "play", "help", "quit",
}

func consoleCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, len(consoleCommands))
	for i, name := range consoleCommands {
		items[i] = readline.PcItem(name)
	}
	return readline.NewPrefixCompleter(items...)
}

// maxSeekSeconds bounds seek input so the millisecond position fits an int64.
const maxSeekSeconds = 1e9

// console runs prompt commands against a session.
type console struct {
	session *session.Coordinator
	out     io.Writer
}

// exec runs one command line. It reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	s := c.session

	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "pause":
		return false, s.Pause(ctx)
	case "resume":
		return false, s.Resume(ctx)
	case "toggle", "space":
		return false, s.TogglePlayPause(ctx)
	case "next", "n":
		return false, s.PlayNext(ctx)
	case "prev", "previous", "p":
		return false, s.PlayPrevious(ctx)
	case "stop":
		return false, s.Stop(ctx)

	case "seek":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: seek <seconds>")
		}
		secs, err := strconv.ParseFloat(args[0], 64)
		if err != nil || math.IsNaN(secs) || math.Abs(secs) > maxSeekSeconds {
			return false, fmt.Errorf("invalid position %q", args[0])
		}
		return false, s.SeekTo(ctx, int64(math.Round(secs*1000)))

	case "volume", "vol":
		if len(args) == 0 {
			fmt.Fprintf(c.out, "Volume: %d%%\n", int(math.Round(s.Volume()*100)))
			return false, nil
		}
		pct, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
		if err != nil || pct < 0 || pct > 100 {
			return false, fmt.Errorf("volume must be 0-100")
		}
		return false, s.SetVolume(ctx, float64(pct)/100)

	case "shuffle":
		fmt.Fprintf(c.out, "Shuffle %s\n", onOff(s.ToggleShuffle()))
		return false, nil

	case "repeat":
		on, err := s.ToggleRepeat(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Repeat %s\n", onOff(on))
		return false, nil

	case "play":
		if len(args) == 0 {
			if st := s.State(); st == core.StatePlaying || st == core.StateLoading {
				return false, nil
			}
			return false, s.TogglePlayPause(ctx)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("invalid track number %q", args[0])
		}
		return false, s.PlayIndex(ctx, n-1)

	case "status":
		snap := s.Snapshot()
		fmt.Fprintln(c.out, statusLine(&snap))
		return false, nil

	case "list", "ls":
		c.list()
		return false, nil

	case "help", "?":
		c.help()
		return false, nil
	}

	return false, fmt.Errorf("unknown command %q (type 'help')", name)
}

func (c *console) list() {
	current := c.session.CurrentIndex()
	table := NewTableWriter(c.out, "", "#", "TITLE", "ARTIST", "LENGTH")
	for i, t := range c.session.Playlist() {
		marker := ""
		if i == current {
			marker = "▶"
		}
		table.Row(marker, strconv.Itoa(i+1), TruncateString(t.Title, 40), TruncateString(t.Artist, 30), t.DurationLabel)
	}
	table.Flush()
}

func (c *console) help() {
	fmt.Fprint(c.out, `Commands:
  pause, resume        Pause or resume playback
  next, prev           Skip forward or back
  stop                 Stop and release the track
  play [n]             Play track n, or restart after stop
  seek <seconds>       Jump to a position
  volume <0-100>       Set volume
  shuffle, repeat      Toggle shuffle or repeat
  status               Show what's playing
  list                 Show the playlist
  quit                 Exit
`)
}

// statusLine renders a one-line summary of a snapshot.
func statusLine(snap *core.Snapshot) string {
	if !snap.HasTrack() {
		if snap.LastError != nil {
			return "Nothing playing (" + snap.LastError.Error() + ")"
		}
		return "Nothing playing"
	}
	return fmt.Sprintf("%s %s  %s / %s  [%s]  shuffle:%s repeat:%s volume:%d%%",
		StatusIcon(snap.IsPlaying()),
		snap.Track.Label(),
		library.FormatMillis(snap.Position),
		library.FormatMillis(snap.Duration),
		snap.State,
		onOff(snap.Shuffled),
		onOff(snap.Repeating),
		int(math.Round(snap.Volume*100)),
	)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
