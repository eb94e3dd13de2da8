// package buffer provides some audio buffer primitives.
package buffer

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrTimeout = errors.New("timed out waiting for buffer space")
	ErrClosed  = errors.New("buffer closed")
)

// Ring is a bounded FIFO of samples between one pushing writer and one pulling
// reader, typically a render loop and an audio driver callback. The mutex is
// only ever held while copying.
type Ring struct {
	mu     sync.Mutex
	buf    []float32
	r, n   int // read position and number of buffered samples
	closed bool

	// space gets a token whenever the reader frees some room.
	space chan struct{}
	// timer is only used by the writer.
	timer *time.Timer

	underruns atomic.Uint64
}

// NewRing allocates a ring holding up to size samples.
func NewRing(size int) *Ring {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &Ring{
		buf:   make([]float32, max(1, size)),
		space: make(chan struct{}, 1),
		timer: t,
	}
}

// Write copies all of in into the ring, waiting up to timeout in total for the
// reader to make room. On timeout whatever fitted stays buffered and the rest
// is dropped. Write must not be called concurrently with itself.
func (r *Ring) Write(in []float32, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return ErrClosed
		}
		k := r.put(in)
		r.mu.Unlock()
		in = in[k:]
		if len(in) == 0 {
			return nil
		}
		if k > 0 {
			continue
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return ErrTimeout
		}
		r.timer.Reset(wait)
		select {
		case <-r.space:
			r.timer.Stop()
		case <-r.timer.C:
			return ErrTimeout
		}
	}
}

// put copies as much of in as fits and returns how much that was.
func (r *Ring) put(in []float32) int {
	k := min(len(r.buf)-r.n, len(in))
	w := (r.r + r.n) % len(r.buf)
	c := copy(r.buf[w:], in[:k])
	copy(r.buf, in[c:k])
	r.n += k
	return k
}

// Read fills out with the oldest buffered samples. If there are not enough the
// remainder is filled with silence and counted as an underrun. It returns the
// number of real samples read.
func (r *Ring) Read(out []float32) int {
	r.mu.Lock()
	k := min(r.n, len(out))
	c := copy(out[:k], r.buf[r.r:])
	copy(out[c:k], r.buf)
	r.r = (r.r + k) % len(r.buf)
	r.n -= k
	closed := r.closed
	r.mu.Unlock()

	for i := k; i < len(out); i++ {
		out[i] = 0
	}
	if k < len(out) && !closed {
		r.underruns.Add(1)
	}
	if k > 0 {
		select {
		case r.space <- struct{}{}:
		default:
		}
	}
	return k
}

// Close wakes up any waiting writer and makes further writes fail. Buffered
// samples can still be read.
func (r *Ring) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	select {
	case r.space <- struct{}{}:
	default:
	}
}

// Len returns the number of buffered samples.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Cap returns the size of the ring.
func (r *Ring) Cap() int { return len(r.buf) }

// Underruns returns how many reads came up short.
func (r *Ring) Underruns() uint64 { return r.underruns.Load() }
