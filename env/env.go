// package env provides the smoothing controllers that keep parameter changes
// click-free: a frequency glide and an attack/release amplitude envelope.
//
// Both use the same one-pole update, once per sample:
//
//	current += (target - current) * (1 - exp(-dt/tau))
//
// which converges monotonically and never overshoots. A time constant of zero
// snaps straight to the target.
package env

import (
	"fmt"
	"math"
	"time"

	"github.com/pfcm/tonegen/flo"
)

// epsilon is how close a controller has to get before it snaps onto its
// target.
const epsilon = 1e-9

// Coeff returns the per-sample coefficient for a time constant at the given
// sample rate. Non-positive time constants give 1, meaning snap immediately.
func Coeff(tau time.Duration, samplerate float64) float64 {
	if tau <= 0 || samplerate <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/(tau.Seconds()*samplerate))
}

// step moves cur towards target by the coefficient c.
func step(cur, target, c float64) float64 {
	d := target - cur
	if math.Abs(d) <= epsilon*math.Max(1, math.Abs(target)) {
		return target
	}
	return cur + d*c
}

// Glide is a portamento: it ramps the current frequency towards a target.
// Setting Target mid-ramp re-targets from wherever Current is.
type Glide struct {
	Current, Target float64

	tau        time.Duration
	samplerate float64
	c          float64
}

// NewGlide creates a Glide resting at freq.
func NewGlide(freq float64, tau time.Duration, samplerate float64) *Glide {
	g := &Glide{Current: freq, Target: freq, samplerate: samplerate}
	g.SetTime(tau)
	return g
}

// SetTime changes the time constant. The coefficient is only recomputed when
// the value actually changes.
func (g *Glide) SetTime(tau time.Duration) {
	if tau == g.tau && g.c != 0 {
		return
	}
	g.tau = tau
	g.c = Coeff(tau, g.samplerate)
}

// Time returns the current time constant.
func (g *Glide) Time() time.Duration { return g.tau }

// Step advances the glide by one sample and returns the new frequency.
func (g *Glide) Step() float64 {
	g.Current = step(g.Current, g.Target, g.c)
	return g.Current
}

func (g *Glide) String() string {
	return fmt.Sprintf("Glide(%v)", g.tau)
}

// Envelope ramps an amplitude in [0, 1] towards a target, using the attack
// time constant while rising and the release time constant while falling.
type Envelope struct {
	Current float64

	target            float64
	attack, release   time.Duration
	samplerate        float64
	cAttack, cRelease float64
}

// NewEnvelope creates a silent Envelope.
func NewEnvelope(attack, release time.Duration, samplerate float64) *Envelope {
	e := &Envelope{samplerate: samplerate}
	e.SetTimes(attack, release)
	return e
}

// SetTimes changes the attack and release time constants.
func (e *Envelope) SetTimes(attack, release time.Duration) {
	if attack != e.attack || e.cAttack == 0 {
		e.attack = attack
		e.cAttack = Coeff(attack, e.samplerate)
	}
	if release != e.release || e.cRelease == 0 {
		e.release = release
		e.cRelease = Coeff(release, e.samplerate)
	}
}

// Times returns the attack and release time constants.
func (e *Envelope) Times() (attack, release time.Duration) {
	return e.attack, e.release
}

// SetTarget sets the amplitude to ramp towards, clamped to [0, 1].
func (e *Envelope) SetTarget(a float64) {
	e.target = flo.Clamp(a, 0, 1)
}

// Target returns the current target amplitude.
func (e *Envelope) Target() float64 { return e.target }

// Step advances the envelope by one sample and returns the new amplitude.
// The time constant is picked from the direction of travel on every sample, so
// dropping the target in the middle of an attack releases from where the
// attack had got to.
func (e *Envelope) Step() float64 {
	c := e.cRelease
	if e.target > e.Current {
		c = e.cAttack
	}
	e.Current = flo.Clamp(step(e.Current, e.target, c), 0, 1)
	return e.Current
}

func (e *Envelope) String() string {
	return fmt.Sprintf("Envelope(%v,%v)", e.attack, e.release)
}
