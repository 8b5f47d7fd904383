package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrResourceLoad      = errors.New("failed to load audio resource")
	ErrLoadTimeout       = errors.New("audio resource load timed out")
	ErrNoResource        = errors.New("no audio resource loaded")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyPlaylist     = errors.New("playlist is empty")
	ErrTrackNotFound     = errors.New("track not found")
	ErrSessionClosed     = errors.New("playback session closed")
	ErrAudioDevice       = errors.New("audio device unavailable")
	ErrLibraryNotFound   = errors.New("library path not found")
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// CadenceError wraps an error with a user-friendly suggestion.
type CadenceError struct {
	Err        error
	Suggestion string
}

func (e *CadenceError) Error() string {
	return e.Err.Error()
}

func (e *CadenceError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &CadenceError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// LoadError describes a resource that the backend could not load.
type LoadError struct {
	Ref string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Ref, e.Err)
}

// Unwrap exposes both ErrResourceLoad and the backend cause.
func (e *LoadError) Unwrap() []error {
	return []error{ErrResourceLoad, e.Err}
}

// NewLoadError wraps a backend load failure for ref.
func NewLoadError(ref string, err error) error {
	return &LoadError{Ref: ref, Err: err}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var cadenceErr *CadenceError
	if errors.As(err, &cadenceErr) && cadenceErr.Suggestion != "" {
		return cadenceErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrLoadTimeout) {
		return "The audio backend did not respond. Raise playback.load_timeout or check the file"
	}

	if errors.Is(err, ErrUnsupportedFormat) || strings.Contains(errStr, "unsupported") {
		return "Supported formats are mp3, wav and flac"
	}

	if errors.Is(err, ErrResourceLoad) || strings.Contains(errStr, "no such file") {
		return "Check that the file exists and is readable"
	}

	if errors.Is(err, ErrAudioDevice) {
		return "Set audio.driver = \"null\" to run without a sound device"
	}

	if errors.Is(err, ErrEmptyPlaylist) || errors.Is(err, ErrLibraryNotFound) {
		return "Point 'cadence play' at a directory containing audio files"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) || strings.Contains(errStr, "config") {
		return "Run 'cadence config init' to create a configuration file"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
