package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/library"
)

var libraryCmd = &cobra.Command{
	Use:     "library [path]",
	Aliases: []string{"ls"},
	Short:   "List the tracks in a directory",
	Long: `Scan a directory and list the tracks cadence would play, in playlist order.
Without a path, library.path from the config is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLibrary,
}

func init() {
	rootCmd.AddCommand(libraryCmd)
}

// libraryEntry is a track plus its file size.
type libraryEntry struct {
	core.Track
	Size uint64 `json:"size"`
}

func runLibrary(cmd *cobra.Command, args []string) error {
	dir, err := libraryDir(args)
	if err != nil {
		return err
	}

	scanner := library.NewScanner(cfg.Library.Formats, logger)
	tracks, err := scanLibrary(cmd.Context(), scanner, dir)
	if err != nil {
		return err
	}

	entries := make([]libraryEntry, len(tracks))
	for i, t := range tracks {
		entries[i] = libraryEntry{Track: t}
		if info, err := os.Stat(t.AudioRef); err == nil {
			entries[i].Size = uint64(info.Size())
		}
	}

	if JSONOutput() {
		return PrintJSON(entries)
	}
	writeLibrary(cmd.OutOrStdout(), entries)
	return nil
}

func writeLibrary(out io.Writer, entries []libraryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No tracks found")
		return
	}

	var total uint64
	var length time.Duration

	table := NewTableWriter(out, "#", "TITLE", "ARTIST", "ALBUM", "LENGTH", "SIZE")
	for i, e := range entries {
		total += e.Size
		length += e.Duration
		table.Row(
			strconv.Itoa(i+1),
			TruncateString(e.Title, 40),
			TruncateString(e.Artist, 25),
			TruncateString(e.Album, 25),
			e.DurationLabel,
			humanize.Bytes(e.Size),
		)
	}
	table.Flush()

	fmt.Fprintf(out, "\n%s tracks, %s, %s\n",
		humanize.Comma(int64(len(entries))),
		library.FormatDuration(length),
		humanize.Bytes(total))
}
