// package osc provides the oscillator: waveform shapes and a phase
// accumulator.
package osc

import (
	"errors"
	"fmt"
	"math"

	"github.com/pfcm/tonegen/flo"
	"github.com/pfcm/tonegen/interp"
)

// Wave selects the shape of an oscillator.
type Wave uint8

const (
	Sine Wave = iota
	Square
	Sawtooth
	Triangle

	numWaves
)

var waveNames = [...]string{
	Sine:     "sine",
	Square:   "square",
	Sawtooth: "sawtooth",
	Triangle: "triangle",
}

// ErrUnknownWave is returned when parsing a name that is not a Wave.
var ErrUnknownWave = errors.New("unknown wave type")

func (w Wave) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Wave(%d)", uint8(w))
	}
	return waveNames[w]
}

// Valid reports whether w is one of the defined shapes.
func (w Wave) Valid() bool { return w < numWaves }

// Waves returns every defined shape, in order.
func Waves() []Wave {
	return []Wave{Sine, Square, Sawtooth, Triangle}
}

// ParseWave returns the Wave with the given name.
func ParseWave(name string) (Wave, error) {
	for i, n := range waveNames {
		if n == name {
			return Wave(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q, want one of %v", ErrUnknownWave, name, waveNames)
}

func (w Wave) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWave, uint8(w))
	}
	return []byte(w.String()), nil
}

func (w *Wave) UnmarshalText(b []byte) error {
	p, err := ParseWave(string(b))
	if err != nil {
		return err
	}
	*w = p
	return nil
}

// Sample evaluates one cycle of the wave at the given phase. Phases outside of
// [0, 1) are wrapped, so Sample is periodic with period 1 and always returns a
// value in [-1, 1]. Unknown shapes produce silence.
func Sample(phase float64, w Wave) float64 {
	p := flo.Wrap(phase)
	switch w {
	case Sine:
		return math.Sin(2 * math.Pi * p)
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return interp.L(-1, 1, p)
	case Triangle:
		// Lines up with the sine: zero at 0 and 0.5, +1 at 0.25 and -1 at
		// 0.75.
		switch {
		case p < 0.25:
			return interp.Segment(p, 0, 0.25, 0, 1)
		case p < 0.75:
			return interp.Segment(p, 0.25, 0.75, 1, -1)
		default:
			return interp.Segment(p, 0.75, 1, -1, 0)
		}
	}
	return 0
}

// Osc is a phase accumulator. The zero value starts at phase 0.
type Osc struct {
	// Phase is the position within the current cycle, in [0, 1).
	Phase float64
}

// Advance moves the phase on by one sample at the given frequency and returns
// the new phase.
func (o *Osc) Advance(freq, samplerate float64) float64 {
	o.Phase = flo.Wrap(o.Phase + freq/samplerate)
	return o.Phase
}

// NoteFrequency converts a (possibly fractional) MIDI note number into a
// frequency in Hz, using A4 = note 69 = 440Hz.
func NoteFrequency(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}
