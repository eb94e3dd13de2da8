package tonegen

import "github.com/pfcm/tonegen/osc"

// SetFrequency sets the frequency to glide to, in Hz. It must be positive.
func (g *Generator) SetFrequency(freq float64) error { return g.params.SetFrequency(freq) }

// SetAmplitude sets the amplitude to ramp to. Values are clamped to [0, 1].
func (g *Generator) SetAmplitude(a float64) error { return g.params.SetAmplitude(a) }

// SetWave changes the waveform.
func (g *Generator) SetWave(w osc.Wave) error { return g.params.SetWave(w) }

// SetVolume sets the master volume. Values are clamped to [0, 1].
func (g *Generator) SetVolume(v float64) error { return g.params.SetVolume(v) }

// SetEnvelope changes the attack, release and glide times. Nil fields are left
// alone.
func (g *Generator) SetEnvelope(e EnvelopeParams) error { return g.params.SetEnvelope(e) }

// Targets returns the current target parameters.
func (g *Generator) Targets() Snapshot { return g.params.Snapshot() }

// State returns what is currently being produced: the frequency and amplitude
// after glide and envelope, and the oscillator phase, as of the last block.
func (g *Generator) State() State { return g.renderer.State() }
