// package hid plays a tone generator from a MIDI controller: the keys pick
// the note, and knobs set the envelope and volume.
package hid

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pfcm/tonegen"
	"github.com/pfcm/tonegen/midi"
	"github.com/pfcm/tonegen/osc"
)

// Controls is what a Keyboard drives. *tonegen.Generator implements it.
type Controls interface {
	SetFrequency(float64) error
	SetAmplitude(float64) error
	SetWave(osc.Wave) error
	SetVolume(float64) error
	SetEnvelope(tonegen.EnvelopeParams) error
}

var _ Controls = (*tonegen.Generator)(nil)

// Target is a parameter a controller can be bound to.
type Target uint8

const (
	Glide Target = iota
	Attack
	Release
	Volume
	Wave
)

func (t Target) String() string {
	switch t {
	case Glide:
		return "glide"
	case Attack:
		return "attack"
	case Release:
		return "release"
	case Volume:
		return "volume"
	case Wave:
		return "wave"
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

// Binding maps a controller onto a Target. Controller values scale linearly
// from 0 to Max for the times, and to [0, 1] for the volume. Wave splits the
// range evenly between the waveforms.
type Binding struct {
	Target Target
	// Controller is a raw controller number, used unless Knob is set.
	Controller int
	// Knob is a knob name in the dispatcher's profile.
	Knob string
	Max  time.Duration
}

// DefaultBindings are the usual controllers: mod wheel for glide, sound
// controllers 74 and 71 for attack and release, and channel volume.
func DefaultBindings() []Binding {
	return []Binding{
		{Target: Glide, Controller: 1, Max: 100 * time.Millisecond},
		{Target: Attack, Controller: 74, Max: 200 * time.Millisecond},
		{Target: Release, Controller: 71, Max: 500 * time.Millisecond},
		{Target: Volume, Controller: 7},
	}
}

// DefaultBendRange is the pitch bend range in semitones either way.
const DefaultBendRange = 2

// Keyboard plays one note at a time, the most recently pressed of those held
// down. Releasing it falls back to the previous held note.
type Keyboard struct {
	c   Controls
	log *slog.Logger
	// BendRange is how many semitones a full pitch bend moves the note.
	BendRange float64

	mu   sync.Mutex
	held []int
	bend float64 // in semitones
}

func NewKeyboard(c Controls, log *slog.Logger) *Keyboard {
	if log == nil {
		log = slog.Default()
	}
	return &Keyboard{c: c, log: log, BendRange: DefaultBendRange}
}

// Bind registers the keyboard's handlers with d.
func (k *Keyboard) Bind(d *midi.Dispatcher, bindings []Binding) error {
	if err := d.OnNoteOn(k.noteOn); err != nil {
		return err
	}
	if err := d.OnNoteOff(k.noteOff); err != nil {
		return err
	}
	if err := d.OnPitchBend(k.pitchBend); err != nil {
		return err
	}
	for _, b := range bindings {
		h := k.control(b)
		var err error
		if b.Knob != "" {
			err = d.OnKnob(b.Knob, h)
		} else {
			err = d.OnController(b.Controller, h)
		}
		if err != nil {
			return fmt.Errorf("binding %v: %w", b.Target, err)
		}
	}
	return nil
}

func (k *Keyboard) noteOn(ev midi.Event) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.held = slices.DeleteFunc(k.held, func(n int) bool { return n == ev.Number })
	k.held = append(k.held, ev.Number)
	if err := k.c.SetFrequency(k.frequency(ev.Number)); err != nil {
		return err
	}
	return k.c.SetAmplitude(float64(ev.Value) / 127)
}

func (k *Keyboard) noteOff(ev midi.Event) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	i := slices.Index(k.held, ev.Number)
	if i < 0 {
		return nil
	}
	top := i == len(k.held)-1
	k.held = slices.Delete(k.held, i, i+1)
	switch {
	case !top:
		return nil
	case len(k.held) == 0:
		return k.c.SetAmplitude(0)
	}
	return k.c.SetFrequency(k.frequency(k.held[len(k.held)-1]))
}

func (k *Keyboard) pitchBend(ev midi.Event) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.bend = float64(ev.Bend) / 8192 * k.BendRange
	if len(k.held) == 0 {
		return nil
	}
	return k.c.SetFrequency(k.frequency(k.held[len(k.held)-1]))
}

// frequency is the bent frequency of a note. Must hold mu.
func (k *Keyboard) frequency(note int) float64 {
	return osc.NoteFrequency(float64(note) + k.bend)
}

func (k *Keyboard) control(b Binding) midi.Handler {
	return func(ev midi.Event) error {
		x := float64(ev.Value) / 127
		d := time.Duration(x * float64(b.Max))
		switch b.Target {
		case Glide:
			return k.c.SetEnvelope(tonegen.EnvelopeParams{Glide: &d})
		case Attack:
			return k.c.SetEnvelope(tonegen.EnvelopeParams{Attack: &d})
		case Release:
			return k.c.SetEnvelope(tonegen.EnvelopeParams{Release: &d})
		case Volume:
			return k.c.SetVolume(x)
		case Wave:
			waves := osc.Waves()
			return k.c.SetWave(waves[min(ev.Value*len(waves)/128, len(waves)-1)])
		}
		return fmt.Errorf("unknown target %v", b.Target)
	}
}

// Release lets go of every held note, for when the controller goes away
// mid-note.
func (k *Keyboard) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.held) > 0 {
		k.log.Info("releasing held notes", "notes", k.held)
	}
	k.held = k.held[:0]
	return k.c.SetAmplitude(0)
}
