// package tonegen generates a continuous, click-free tone whose pitch,
// loudness and shape can be changed at any time from any goroutine.
//
// A Generator owns a single render goroutine which repeatedly renders a block
// of samples and writes it to a Sink. Everything else talks to it through the
// control methods, which publish immutable parameter snapshots; the render
// goroutine picks up the latest one at the start of every block.
package tonegen

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/viterin/vek/vek32"

	"github.com/pfcm/tonegen/flo"
	"github.com/pfcm/tonegen/osc"
)

var (
	// ErrInvalidParameter is returned by control calls given out of range
	// values. The previous state is left unchanged.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDeviceFault wraps failures writing to or closing the output.
	ErrDeviceFault = errors.New("device fault")

	ErrAlreadyRunning = errors.New("generator already running")
	ErrNotRunning     = errors.New("generator not running")
)

// Sink accepts blocks of mono float32 samples in [-1, 1].
type Sink interface {
	// WriteAudio transmits a block. It may block for as long as the
	// device's own buffering requires. The buffer is reused by the caller
	// once WriteAudio returns.
	WriteAudio(buffer []float32) error
	// Close flushes and releases the device.
	Close() error
}

// Device opens Sinks.
type Device interface {
	Open(samplerate, blockSize int) (Sink, error)
}

// Config holds the static configuration of a Generator along with the initial
// values of its parameters.
type Config struct {
	SampleRate    int           `yaml:"sample_rate"`
	BlockDuration time.Duration `yaml:"block_duration"`

	Wave      osc.Wave `yaml:"wave"`
	Frequency float64  `yaml:"frequency"`
	Amplitude float64  `yaml:"amplitude"`
	Volume    float64  `yaml:"volume"`

	Attack  time.Duration `yaml:"attack"`
	Release time.Duration `yaml:"release"`
	Glide   time.Duration `yaml:"glide"`

	// Logger defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the configuration used for anything left unset.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		BlockDuration: 30 * time.Millisecond,
		Wave:          osc.Sine,
		Frequency:     440,
		Amplitude:     0,
		Volume:        0.8,
		Attack:        10 * time.Millisecond,
		Release:       30 * time.Millisecond,
		Glide:         20 * time.Millisecond,
	}
}

// Validate checks that c describes a usable generator.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidParameter, c.SampleRate)
	case c.BlockDuration <= 0:
		return fmt.Errorf("%w: block duration %v must be positive", ErrInvalidParameter, c.BlockDuration)
	case !c.Wave.Valid():
		return fmt.Errorf("%w: wave %v", ErrInvalidParameter, c.Wave)
	}
	if err := checkFrequency(c.Frequency); err != nil {
		return err
	}
	for _, l := range []struct {
		name string
		v    float64
	}{{"amplitude", c.Amplitude}, {"volume", c.Volume}} {
		if !flo.Finite(l.v) || l.v < 0 || l.v > 1 {
			return fmt.Errorf("%w: %s %v must be in [0, 1]", ErrInvalidParameter, l.name, l.v)
		}
	}
	return checkTimes(&c.Attack, &c.Release, &c.Glide)
}

// BlockSize is the number of samples in each rendered block.
func (c Config) BlockSize() int {
	return max(1, int(int64(c.SampleRate)*int64(c.BlockDuration)/int64(time.Second)))
}

func (c Config) snapshot() Snapshot {
	return Snapshot{
		Frequency: c.Frequency,
		Amplitude: c.Amplitude,
		Wave:      c.Wave,
		Volume:    c.Volume,
		Attack:    c.Attack,
		Release:   c.Release,
		Glide:     c.Glide,
	}
}

// RMS returns the root mean square of a block, zero for an empty block.
func RMS(block []float32) float32 {
	if len(block) == 0 {
		return 0
	}
	return float32(math.Sqrt(float64(vek32.Dot(block, block)) / float64(len(block))))
}
