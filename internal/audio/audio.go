// Package audio provides media backends for a playback session: a sound
// device backend built on beep and a device-free simulator.
package audio

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tessro/cadence/internal/config"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/library"
)

// Driver names accepted by New.
const (
	DriverSpeaker = "speaker"
	DriverNull    = "null"
)

// New returns the backend selected by cfg.Audio.Driver.
func New(cfg *config.Config, logger logrus.FieldLogger) (core.Backend, error) {
	interval := cfg.Playback.StatusIntervalDuration()

	switch cfg.Audio.Driver {
	case DriverNull:
		return NewSimulator(
			WithProbe(library.ProbeDuration),
			WithInterval(interval),
		), nil
	case DriverSpeaker, "":
		return NewSpeaker(SpeakerOptions{
			SampleRate: cfg.Audio.SampleRate,
			Buffer:     time.Duration(cfg.Audio.BufferMs) * time.Millisecond,
			Interval:   interval,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown audio driver: %s", cfg.Audio.Driver)
	}
}
