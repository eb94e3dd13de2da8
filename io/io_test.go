package io

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pfcm/tonegen"
	"github.com/pfcm/tonegen/internal/buffer"
)

func decode(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func TestRingReader(t *testing.T) {
	ring := buffer.NewRing(16)
	if err := ring.Write([]float32{0.5, -0.25, 1}, 0); err != nil {
		t.Fatal(err)
	}
	r := &ringReader{ring: ring}
	p := make([]byte, 4*5+3) // trailing partial sample is left alone
	n, err := r.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 20 {
		t.Errorf("Read() = %d, want: 20", n)
	}
	if diff := cmp.Diff([]float32{0.5, -0.25, 1, 0, 0}, decode(p[:n])); diff != "" {
		t.Errorf("decoded samples (-want +got):\n%s", diff)
	}
	if u := ring.Underruns(); u != 1 {
		t.Errorf("Underruns() = %d, want: 1", u)
	}
}

func TestRingSinkFaultsWhenNothingReads(t *testing.T) {
	s := newRingSink(16000, 16, 2)
	block := make([]float32, 16)
	for i := 0; i < 2; i++ {
		if err := s.WriteAudio(block); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := s.WriteAudio(block); !errors.Is(err, tonegen.ErrDeviceFault) {
		t.Errorf("WriteAudio() into a full ring = %v, want: %v", err, tonegen.ErrDeviceFault)
	}
}

func TestRingSinkDrainGivesUp(t *testing.T) {
	s := newRingSink(16000, 16, 2)
	if err := s.WriteAudio(make([]float32, 16)); err != nil {
		t.Fatal(err)
	}
	// Nothing reads, so drain has to time out and close the ring anyway.
	s.drain()
	if n := s.ring.Len(); n != 16 {
		t.Errorf("Len() after drain = %d, want: 16", n)
	}
	if err := s.WriteAudio(make([]float32, 1)); !errors.Is(err, buffer.ErrClosed) {
		t.Errorf("WriteAudio() after drain = %v, want: %v", err, buffer.ErrClosed)
	}
}
