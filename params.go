package tonegen

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/pfcm/tonegen/flo"
	"github.com/pfcm/tonegen/osc"
)

// Snapshot is one consistent set of target parameters. Snapshots are never
// modified once published.
type Snapshot struct {
	Frequency float64 // Hz, > 0
	Amplitude float64 // [0, 1]
	Wave      osc.Wave
	Volume    float64 // [0, 1]

	Attack, Release time.Duration
	Glide           time.Duration
}

// EnvelopeParams holds optional new time constants. Nil fields are left as
// they are.
type EnvelopeParams struct {
	Attack, Release, Glide *time.Duration
}

// Duration is a convenience for filling in EnvelopeParams.
func Duration(d time.Duration) *time.Duration { return &d }

// Params is the store shared between control goroutines and the render
// goroutine. Writers publish a whole new Snapshot with a compare-and-swap, so
// concurrent writes are linearized and a reader always sees exactly one of
// them. Reading never blocks or allocates.
type Params struct {
	p atomic.Pointer[Snapshot]
}

// NewParams creates a store holding initial. It is not validated.
func NewParams(initial Snapshot) *Params {
	var p Params
	p.p.Store(&initial)
	return &p
}

// Snapshot returns the most recently published snapshot.
func (p *Params) Snapshot() Snapshot {
	return *p.p.Load()
}

// update applies f to a copy of the current snapshot and publishes it,
// retrying if another writer got in first.
func (p *Params) update(f func(*Snapshot)) {
	for {
		old := p.p.Load()
		s := *old
		f(&s)
		if p.p.CompareAndSwap(old, &s) {
			return
		}
	}
}

// SetFrequency sets the target frequency, which must be positive and finite.
func (p *Params) SetFrequency(freq float64) error {
	if err := checkFrequency(freq); err != nil {
		return err
	}
	p.update(func(s *Snapshot) { s.Frequency = freq })
	return nil
}

// SetAmplitude sets the target amplitude, clamped to [0, 1].
func (p *Params) SetAmplitude(a float64) error {
	if math.IsNaN(a) {
		return fmt.Errorf("%w: amplitude is NaN", ErrInvalidParameter)
	}
	a = flo.Clamp(a, 0, 1)
	p.update(func(s *Snapshot) { s.Amplitude = a })
	return nil
}

// SetVolume sets the master volume, clamped to [0, 1].
func (p *Params) SetVolume(v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("%w: volume is NaN", ErrInvalidParameter)
	}
	v = flo.Clamp(v, 0, 1)
	p.update(func(s *Snapshot) { s.Volume = v })
	return nil
}

// SetWave changes the waveform. The change is immediate, at the start of the
// next block.
func (p *Params) SetWave(w osc.Wave) error {
	if !w.Valid() {
		return fmt.Errorf("%w: wave %v", ErrInvalidParameter, w)
	}
	p.update(func(s *Snapshot) { s.Wave = w })
	return nil
}

// SetEnvelope changes any of the attack, release and glide time constants.
// Negative values are rejected and nothing is changed.
func (p *Params) SetEnvelope(e EnvelopeParams) error {
	if err := checkTimes(e.Attack, e.Release, e.Glide); err != nil {
		return err
	}
	p.update(func(s *Snapshot) {
		if e.Attack != nil {
			s.Attack = *e.Attack
		}
		if e.Release != nil {
			s.Release = *e.Release
		}
		if e.Glide != nil {
			s.Glide = *e.Glide
		}
	})
	return nil
}

func checkFrequency(f float64) error {
	if !flo.Finite(f) || f <= 0 {
		return fmt.Errorf("%w: frequency %v must be positive", ErrInvalidParameter, f)
	}
	return nil
}

func checkTimes(attack, release, glide *time.Duration) error {
	for _, t := range []struct {
		name string
		d    *time.Duration
	}{{"attack", attack}, {"release", release}, {"glide", glide}} {
		if t.d != nil && *t.d < 0 {
			return fmt.Errorf("%w: %s time %v is negative", ErrInvalidParameter, t.name, *t.d)
		}
	}
	return nil
}
