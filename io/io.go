// package io does audio out. Each device here is pull based: the driver asks
// for samples from its own thread, so a Ring sits between it and the
// generator's render loop, which pushes.
package io

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/pfcm/tonegen"
	"github.com/pfcm/tonegen/internal/buffer"
)

// DefaultBlocks is how many blocks may be queued ahead of a device when the
// device's Blocks field is unset.
const DefaultBlocks = 4

// ringSink is the push side shared by the devices.
type ringSink struct {
	ring    *buffer.Ring
	timeout time.Duration
	latency time.Duration
}

func newRingSink(samplerate, blockSize, blocks int) ringSink {
	if blocks <= 0 {
		blocks = DefaultBlocks
	}
	// Writing a block should never take much longer than playing one.
	block := time.Duration(blockSize) * time.Second / time.Duration(samplerate)
	return ringSink{
		ring:    buffer.NewRing(blockSize * blocks),
		timeout: 2 * block,
		latency: time.Duration(blocks) * block,
	}
}

func (s ringSink) WriteAudio(b []float32) error {
	if err := s.ring.Write(b, s.timeout); err != nil {
		return fmt.Errorf("%w: %w", tonegen.ErrDeviceFault, err)
	}
	return nil
}

// drain waits for the device to play whatever is queued, giving up after
// roughly the time it should take.
func (s ringSink) drain() {
	deadline := time.Now().Add(s.latency + s.timeout)
	for s.ring.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.ring.Close()
}

// Underruns returns how many times the device asked for more than was queued.
func (s ringSink) Underruns() uint64 { return s.ring.Underruns() }

// putFloats encodes samples as little-endian IEEE float32s. out must have room
// for 4 bytes per sample.
func putFloats(out []byte, in []float32) {
	for i, f := range in {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
}

// pull reads n samples from the ring into scratch, growing it if needed, and
// encodes them into out.
func pull(r *buffer.Ring, scratch *[]float32, out []byte, n int) {
	if n > len(*scratch) {
		*scratch = make([]float32, n)
	}
	f := (*scratch)[:n]
	r.Read(f)
	putFloats(out, f)
}
