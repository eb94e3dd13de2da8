package buffer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func seq(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}

func TestRingOrderAndWrap(t *testing.T) {
	r := NewRing(8)
	var got []float32
	next := 0
	for i := 0; i < 10; i++ {
		if err := r.Write(seq(next, 5), time.Second); err != nil {
			t.Fatalf("Write: %v", err)
		}
		next += 5
		out := make([]float32, 5)
		if n := r.Read(out); n != 5 {
			t.Fatalf("Read got %d samples, want: 5", n)
		}
		got = append(got, out...)
	}
	if diff := cmp.Diff(seq(0, 50), got); diff != "" {
		t.Errorf("samples out of order (-want +got):\n%s", diff)
	}
	if u := r.Underruns(); u != 0 {
		t.Errorf("Underruns() = %d, want: 0", u)
	}
}

func TestRingUnderrunPadsWithSilence(t *testing.T) {
	r := NewRing(8)
	if err := r.Write([]float32{1, 2, 3}, time.Second); err != nil {
		t.Fatal(err)
	}
	out := []float32{9, 9, 9, 9, 9}
	if n := r.Read(out); n != 3 {
		t.Errorf("Read() = %d, want: 3", n)
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 0, 0}, out); diff != "" {
		t.Errorf("Read output (-want +got):\n%s", diff)
	}
	if u := r.Underruns(); u != 1 {
		t.Errorf("Underruns() = %d, want: 1", u)
	}
}

func TestRingWriteTimesOutWhenFull(t *testing.T) {
	r := NewRing(4)
	start := time.Now()
	err := r.Write(seq(0, 6), 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Write() = %v, want: %v", err, ErrTimeout)
	}
	if d := time.Since(start); d < 20*time.Millisecond {
		t.Errorf("Write gave up after %v, want at least 20ms", d)
	}
	if n := r.Len(); n != 4 {
		t.Errorf("Len() = %d, want: 4", n)
	}
}

func TestRingWriterWaitsForReader(t *testing.T) {
	r := NewRing(4)
	done := make(chan error)
	go func() { done <- r.Write(seq(0, 12), 5*time.Second) }()

	var got []float32
	out := make([]float32, 2)
	for len(got) < 12 {
		if n := r.Read(out); n > 0 {
			got = append(got, out[:n]...)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if diff := cmp.Diff(seq(0, 12), got); diff != "" {
		t.Errorf("samples (-want +got):\n%s", diff)
	}
}

func TestRingClose(t *testing.T) {
	r := NewRing(2)
	done := make(chan error)
	go func() { done <- r.Write(seq(0, 4), 5*time.Second) }()
	for r.Len() < 2 {
		time.Sleep(time.Millisecond)
	}
	r.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("blocked Write() after Close = %v, want: %v", err, ErrClosed)
	}
	if err := r.Write([]float32{1}, time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after Close = %v, want: %v", err, ErrClosed)
	}
	out := make([]float32, 2)
	if n := r.Read(out); n != 2 {
		t.Errorf("Read() after Close = %d, want the 2 buffered samples", n)
	}
}
