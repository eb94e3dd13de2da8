package env

import (
	"math"
	"testing"
	"time"
)

const samplerate = 16000

func TestCoeff(t *testing.T) {
	for _, c := range []struct {
		tau  time.Duration
		want float64
	}{
		{0, 1},
		{-time.Second, 1},
		{time.Second, 1 - math.Exp(-1.0/samplerate)},
		{10 * time.Millisecond, 1 - math.Exp(-1.0/160)},
	} {
		if got := Coeff(c.tau, samplerate); math.Abs(got-c.want) > 1e-15 {
			t.Errorf("Coeff(%v) = %v, want: %v", c.tau, got, c.want)
		}
	}
}

func TestGlideSnapsWithZeroTime(t *testing.T) {
	g := NewGlide(440, 0, samplerate)
	g.Target = 880
	if got := g.Step(); got != 880 {
		t.Errorf("Step() with zero glide = %v, want: 880", got)
	}
}

func TestGlideConvergesWithoutOvershoot(t *testing.T) {
	for _, c := range []struct {
		from, to float64
	}{
		{440, 880},
		{880, 220},
		{100, 100.5},
	} {
		g := NewGlide(c.from, 20*time.Millisecond, samplerate)
		g.Target = c.to
		last := math.Abs(g.Current - g.Target)
		n := 0
		for g.Current != g.Target {
			g.Step()
			d := math.Abs(g.Current - g.Target)
			if d >= last && d != 0 {
				t.Fatalf("%v->%v: distance went from %v to %v at sample %d", c.from, c.to, last, d, n)
			}
			if (c.to > c.from && g.Current > c.to) || (c.to < c.from && g.Current < c.to) {
				t.Fatalf("%v->%v: overshot to %v", c.from, c.to, g.Current)
			}
			last = d
			n++
			if n > 10*samplerate {
				t.Fatalf("%v->%v: not converged after 10s, at %v", c.from, c.to, g.Current)
			}
		}
	}
}

func TestGlideRetargetKeepsProgress(t *testing.T) {
	g := NewGlide(440, 20*time.Millisecond, samplerate)
	g.Target = 880
	for i := 0; i < 100; i++ {
		g.Step()
	}
	mid := g.Current
	g.Target = 220
	got := g.Step()
	if got >= mid || mid-got > (mid-220)*0.01 {
		t.Errorf("after retarget Step() = %v, want slightly below %v", got, mid)
	}
}

func TestEnvelopeBounded(t *testing.T) {
	e := NewEnvelope(0, 0, samplerate)
	for _, target := range []float64{2, -1, 0.5, 10, math.Inf(-1), 1, 0} {
		e.SetTarget(target)
		for i := 0; i < 10; i++ {
			if a := e.Step(); a < 0 || a > 1 {
				t.Fatalf("amplitude %v out of [0, 1] for target %v", a, target)
			}
		}
	}
	e = NewEnvelope(time.Millisecond, 3*time.Millisecond, samplerate)
	targets := []float64{1.5, -0.5, 0.3, 0.9, 0, 1}
	for i := 0; i < 2000; i++ {
		if i%37 == 0 {
			e.SetTarget(targets[(i/37)%len(targets)])
		}
		if a := e.Step(); a < 0 || a > 1 {
			t.Fatalf("amplitude %v out of [0, 1] at sample %d", a, i)
		}
	}
}

func TestEnvelopeAttackAndRelease(t *testing.T) {
	const attack, release = 10 * time.Millisecond, 30 * time.Millisecond
	e := NewEnvelope(attack, release, samplerate)
	e.SetTarget(1)
	// After one attack time constant we should be about 1-1/e of the way.
	for i := 0; i < samplerate/100; i++ {
		e.Step()
	}
	if want := 1 - math.Exp(-1); math.Abs(e.Current-want) > 0.01 {
		t.Errorf("after one attack time amplitude = %v, want: ~%v", e.Current, want)
	}
	e.SetTarget(0)
	before := e.Current
	e.Step()
	drop := before - e.Current
	if want := before * Coeff(release, samplerate); math.Abs(drop-want) > 1e-12 {
		t.Errorf("first release step dropped %v, want: %v (release coefficient)", drop, want)
	}
}

func TestEnvelopeReleaseMidAttackIsSmooth(t *testing.T) {
	e := NewEnvelope(5*time.Millisecond, 50*time.Millisecond, samplerate)
	e.SetTarget(1)
	maxStep := Coeff(5*time.Millisecond, samplerate)
	prev := e.Current
	for i := 0; i < 40; i++ {
		e.Step()
		prev = e.Current
	}
	e.SetTarget(0)
	for i := 0; i < samplerate; i++ {
		a := e.Step()
		if d := math.Abs(a - prev); d > maxStep {
			t.Fatalf("jump of %v at sample %d after release, want at most %v", d, i, maxStep)
		}
		if a > prev {
			t.Fatalf("amplitude rose from %v to %v while releasing", prev, a)
		}
		prev = a
	}
}
