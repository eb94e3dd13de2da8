package tonegen

import (
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/pfcm/tonegen/env"
	"github.com/pfcm/tonegen/osc"
)

// State is what the generator is actually producing, as opposed to the
// targets in a Snapshot.
type State struct {
	Frequency float64
	Amplitude float64
	Wave      osc.Wave
	Volume    float64
	Phase     float64
}

// Renderer turns parameter snapshots into blocks of samples. It is not safe for
// concurrent use, apart from State which may be called from anywhere.
type Renderer struct {
	params     *Params
	samplerate float64
	buf        []float32

	osc   osc.Osc
	glide *env.Glide
	env   *env.Envelope

	state published
}

// NewRenderer creates a Renderer producing blocks of blockSize samples. The
// glide starts at the store's current frequency and the envelope starts
// silent.
func NewRenderer(params *Params, samplerate, blockSize int) *Renderer {
	s := params.Snapshot()
	sr := float64(samplerate)
	r := &Renderer{
		params:     params,
		samplerate: sr,
		buf:        make([]float32, max(1, blockSize)),
		glide:      env.NewGlide(s.Frequency, s.Glide, sr),
		env:        env.NewEnvelope(s.Attack, s.Release, sr),
	}
	r.publish(s)
	return r
}

// Render fills the next block and returns it. The returned slice is reused by
// the next call.
func (r *Renderer) Render() []float32 {
	// One snapshot per block: targets are stable for the whole block.
	s := r.params.Snapshot()
	r.glide.SetTime(s.Glide)
	r.glide.Target = s.Frequency
	r.env.SetTimes(s.Attack, s.Release)
	r.env.SetTarget(s.Amplitude)

	for i := range r.buf {
		freq := r.glide.Step()
		amp := r.env.Step()
		phase := r.osc.Advance(freq, r.samplerate)
		r.buf[i] = float32(osc.Sample(phase, s.Wave) * amp * s.Volume)
	}
	r.publish(s)
	return r.buf
}

// BlockSize returns the number of samples in each block.
func (r *Renderer) BlockSize() int { return len(r.buf) }

// State returns the state as of the end of the last rendered block.
func (r *Renderer) State() State { return r.state.load() }

func (r *Renderer) publish(s Snapshot) {
	r.state.store(State{
		Frequency: r.glide.Current,
		Amplitude: r.env.Current,
		Wave:      s.Wave,
		Volume:    s.Volume,
		Phase:     r.osc.Phase,
	})
}

func (r *Renderer) String() string {
	return fmt.Sprintf("Renderer(%v, %d, %v, %v)", r.samplerate, len(r.buf), r.glide, r.env)
}

// published is a sequence lock with a single writer. The writer never blocks
// or allocates; readers retry if they overlap a write.
type published struct {
	seq                   atomic.Uint64
	freq, amp, vol, phase atomic.Uint64
	wave                  atomic.Uint32
}

func (p *published) store(s State) {
	p.seq.Add(1) // odd: write in progress
	p.freq.Store(math.Float64bits(s.Frequency))
	p.amp.Store(math.Float64bits(s.Amplitude))
	p.vol.Store(math.Float64bits(s.Volume))
	p.phase.Store(math.Float64bits(s.Phase))
	p.wave.Store(uint32(s.Wave))
	p.seq.Add(1)
}

func (p *published) load() State {
	for {
		seq := p.seq.Load()
		if seq&1 == 1 {
			runtime.Gosched()
			continue
		}
		s := State{
			Frequency: math.Float64frombits(p.freq.Load()),
			Amplitude: math.Float64frombits(p.amp.Load()),
			Volume:    math.Float64frombits(p.vol.Load()),
			Phase:     math.Float64frombits(p.phase.Load()),
			Wave:      osc.Wave(p.wave.Load()),
		}
		if p.seq.Load() == seq {
			return s
		}
	}
}
