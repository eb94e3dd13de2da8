package osc

import (
	"errors"
	"math"
	"testing"
)

func TestSampleShapes(t *testing.T) {
	for _, c := range []struct {
		w     Wave
		phase float64
		out   float64
	}{
		{Sine, 0, 0},
		{Sine, 0.25, 1},
		{Sine, 0.5, 0},
		{Sine, 0.75, -1},
		{Square, 0, 1},
		{Square, 0.49, 1},
		{Square, 0.5, -1},
		{Square, 0.99, -1},
		{Sawtooth, 0, -1},
		{Sawtooth, 0.5, 0},
		{Sawtooth, 0.75, 0.5},
		{Triangle, 0, 0},
		{Triangle, 0.125, 0.5},
		{Triangle, 0.25, 1},
		{Triangle, 0.5, 0},
		{Triangle, 0.75, -1},
		{Triangle, 0.875, -0.5},
	} {
		got := Sample(c.phase, c.w)
		if math.Abs(got-c.out) > 1e-9 {
			t.Errorf("Sample(%v, %v) = %v, want: %v", c.phase, c.w, got, c.out)
		}
	}
}

func TestSamplePeriodicAndBounded(t *testing.T) {
	const steps = 4096
	for _, w := range Waves() {
		for i := 0; i < steps; i++ {
			p := float64(i) / steps
			s := Sample(p, w)
			if s < -1 || s > 1 {
				t.Fatalf("Sample(%v, %v) = %v, out of [-1, 1]", p, w, s)
			}
			for _, k := range []float64{1, 2, -1, 17} {
				if got := Sample(p+k, w); math.Abs(got-s) > 1e-9 {
					t.Fatalf("Sample(%v, %v) = %v, want: %v (same as phase %v)", p+k, w, got, s, p)
				}
			}
		}
	}
}

func TestTriangleSymmetric(t *testing.T) {
	for i := 0; i <= 100; i++ {
		d := float64(i) / 400
		a, b := Sample(0.25-d, Triangle), Sample(0.25+d, Triangle)
		if math.Abs(a-b) > 1e-9 {
			t.Errorf("triangle not symmetric around 0.25: %v vs %v at ±%v", a, b, d)
		}
	}
}

func TestParseWave(t *testing.T) {
	for _, w := range Waves() {
		got, err := ParseWave(w.String())
		if err != nil {
			t.Errorf("ParseWave(%q): %v", w, err)
		}
		if got != w {
			t.Errorf("ParseWave(%q) = %v, want: %v", w, got, w)
		}
	}
	if _, err := ParseWave("noise"); !errors.Is(err, ErrUnknownWave) {
		t.Errorf("ParseWave(noise) error = %v, want: %v", err, ErrUnknownWave)
	}
	var w Wave
	if err := w.UnmarshalText([]byte("triangle")); err != nil || w != Triangle {
		t.Errorf("UnmarshalText(triangle) = %v, %v", w, err)
	}
	if _, err := Wave(9).MarshalText(); err == nil {
		t.Error("MarshalText(Wave(9)) succeeded, want error")
	}
}

func TestAdvance(t *testing.T) {
	var o Osc
	const samplerate = 16000
	for i := 0; i < samplerate; i++ {
		p := o.Advance(440, samplerate)
		if p < 0 || p >= 1 {
			t.Fatalf("phase %v out of [0, 1) after %d samples", p, i)
		}
	}
	// 440 whole cycles in one second, so we should be (nearly) back at 0.
	if d := math.Min(o.Phase, 1-o.Phase); d > 1e-6 {
		t.Errorf("phase after one second = %v, want: ~0", o.Phase)
	}
}

func TestNoteFrequency(t *testing.T) {
	for _, c := range []struct {
		note, freq float64
	}{
		{69, 440},
		{81, 880},
		{57, 220},
		{60, 261.6255653},
	} {
		if got := NoteFrequency(c.note); math.Abs(got-c.freq) > 1e-6 {
			t.Errorf("NoteFrequency(%v) = %v, want: %v", c.note, got, c.freq)
		}
	}
}
