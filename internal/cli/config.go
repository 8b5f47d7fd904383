package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/config"
	"github.com/tessro/cadence/internal/errors"
)

const configHeader = "# Cadence Configuration\n\n"

var configInteractive bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing cadence configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, including defaults and environment overrides.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a new configuration file with default values.

With --interactive, asks for the library path, audio driver, theme and volume.`,
	RunE: runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Supported keys:
  library.path              Default music directory
  library.formats           Comma-separated extensions (.mp3,.wav,.flac)
  library.watch             Rescan on file changes (true/false)
  playback.volume           Initial volume (0-1)
  playback.shuffle          Start with shuffle on (true/false)
  playback.repeat           Start with repeat on (true/false)
  playback.load_timeout     Track load timeout in milliseconds
  playback.status_interval  Backend status interval in milliseconds
  audio.driver              speaker or null
  audio.sample_rate         Output sample rate in Hz
  audio.buffer_ms           Output buffer in milliseconds
  tui.theme                 latte, frappe, macchiato, or mocha
  tui.refresh_interval      UI refresh in milliseconds
  log.level                 debug, info, warn, or error
  log.file                  Log file path
  log.format                text or json

Examples:
  cadence config set library.path ~/Music
  cadence config set playback.volume 0.5`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInteractive, "interactive", "i", false, "answer prompts instead of writing defaults")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if JSONOutput() {
		return PrintJSON(cfg)
	}

	encoder := toml.NewEncoder(cmd.OutOrStdout())
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	_, err := os.Stat(path)
	exists := err == nil

	if JSONOutput() {
		return PrintJSON(map[string]any{"path": path, "exists": exists})
	}
	if exists {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (not created)\n", path)
	}
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return errors.WithSuggestion(
			fmt.Errorf("%w at %s", errors.ErrConfigNotFound, configPath),
			"Run 'cadence config init' first",
		)
	}

	// Find editor
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi", "notepad"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	newCfg := config.Default()
	if configInteractive {
		if err := askConfig(newCfg); err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
	}

	if err := writeConfig(configPath, newCfg); err != nil {
		return err
	}

	if JSONOutput() {
		return PrintJSON(map[string]string{
			"status": "created",
			"path":   configPath,
		})
	}

	fmt.Printf("Created config file: %s\n", configPath)
	if newCfg.Library.Path == "" {
		fmt.Println("\nNext steps:")
		fmt.Println("  1. Set your music directory: cadence config set library.path ~/Music")
		fmt.Println("  2. Start playing: cadence play")
	}
	return nil
}

// askConfig fills cfg from an interactive form.
func askConfig(c *config.Config) error {
	volume := strconv.Itoa(int(c.Playback.Volume * 100))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Music directory").
				Description("Used when 'cadence play' is run without a path").
				Value(&c.Library.Path).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					info, err := os.Stat(expandHome(s))
					if err != nil || !info.IsDir() {
						return fmt.Errorf("not a directory")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Watch the directory for changes?").
				Value(&c.Library.Watch),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Audio output").
				Options(
					huh.NewOption("Sound device", "speaker"),
					huh.NewOption("None (silent, for testing)", "null"),
				).
				Value(&c.Audio.Driver),
			huh.NewInput().
				Title("Starting volume (0-100)").
				Value(&volume).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 0 || n > 100 {
						return fmt.Errorf("enter a number from 0 to 100")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Latte", "latte"),
					huh.NewOption("Frappé", "frappe"),
					huh.NewOption("Macchiato", "macchiato"),
					huh.NewOption("Mocha", "mocha"),
				).
				Value(&c.TUI.Theme),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	c.Library.Path = expandHome(c.Library.Path)
	if n, err := strconv.Atoi(volume); err == nil {
		c.Playback.Volume = float64(n) / 100
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if path := config.FindConfigFile(); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".cadencerc"
	}
	return filepath.Join(home, ".cadencerc")
}

func writeConfig(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	encoder := toml.NewEncoder(&buf)
	encoder.Indent = "  "
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	configPath := getConfigPath()

	rawConfig := make(map[string]any)
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, &rawConfig); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := setValue(rawConfig, key, value); err != nil {
		return err
	}

	// Reject values the loader would refuse.
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(rawConfig); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	var check config.Config
	if _, err := toml.Decode(buf.String(), &check); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}

	if err := writeConfig(configPath, rawConfig); err != nil {
		return err
	}

	if JSONOutput() {
		return PrintJSON(map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
		})
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// setValue stores value under a "section.field" key, typed by field.
func setValue(raw map[string]any, key, value string) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" || strings.Contains(field, ".") {
		return fmt.Errorf("invalid key format. Use 'section.key' (e.g., library.path)")
	}

	var typed any
	switch key {
	case "playback.load_timeout", "playback.status_interval",
		"audio.sample_rate", "audio.buffer_ms", "tui.refresh_interval":
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("value must be an integer for %s", key)
		}
		typed = i
	case "playback.volume":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("value must be a number for %s", key)
		}
		typed = f
	case "library.watch", "playback.shuffle", "playback.repeat":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("value must be true or false for %s", key)
		}
		typed = b
	case "library.formats":
		var formats []string
		for _, f := range strings.Split(value, ",") {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, f)
			}
		}
		typed = formats
	case "library.path", "log.file":
		typed = expandHome(value)
	case "audio.driver", "tui.theme", "log.level", "log.format":
		typed = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	sectionMap, ok := raw[section].(map[string]any)
	if !ok {
		sectionMap = make(map[string]any)
		raw[section] = sectionMap
	}
	sectionMap[field] = typed
	return nil
}
