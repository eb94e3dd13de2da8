package io

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/pfcm/tonegen"
	"github.com/pfcm/tonegen/internal/buffer"
)

// Oto plays through oto. Oto only allows one context per process, so every
// Oto device shares it, and they must all agree on the sample rate.
type Oto struct {
	// Blocks is how many blocks may be queued ahead of the device.
	Blocks int
	// BufferSize is oto's own buffer; zero lets oto choose.
	BufferSize time.Duration
	Logger     *slog.Logger
}

var _ tonegen.Device = Oto{}

var shared struct {
	mu         sync.Mutex
	ctx        *oto.Context
	samplerate int
}

func otoContext(samplerate int, bufferSize time.Duration) (*oto.Context, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.ctx != nil {
		if shared.samplerate != samplerate {
			return nil, fmt.Errorf("oto context already running at %dHz, not %dHz", shared.samplerate, samplerate)
		}
		return shared.ctx, nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   samplerate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	shared.ctx, shared.samplerate = ctx, samplerate
	return ctx, nil
}

type otoSink struct {
	ringSink
	player *oto.Player
}

// Open starts a player reading from a fresh ring.
func (o Oto) Open(samplerate, blockSize int) (tonegen.Sink, error) {
	ctx, err := otoContext(samplerate, o.BufferSize)
	if err != nil {
		return nil, err
	}
	s := &otoSink{ringSink: newRingSink(samplerate, blockSize, o.Blocks)}
	s.player = ctx.NewPlayer(&ringReader{ring: s.ring})
	s.player.Play()
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("opened oto output", "sample_rate", samplerate, "block_size", blockSize)
	return s, nil
}

func (s *otoSink) WriteAudio(b []float32) error {
	if err := s.player.Err(); err != nil {
		return fmt.Errorf("%w: %w", tonegen.ErrDeviceFault, err)
	}
	return s.ringSink.WriteAudio(b)
}

// Close plays out what is queued and closes the player. The shared context
// stays open for the next Open.
func (s *otoSink) Close() error {
	s.drain()
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// ringReader adapts a Ring to the io.Reader oto pulls from. It never runs dry:
// missing samples come out as silence.
type ringReader struct {
	ring    *buffer.Ring
	scratch []float32
}

func (r *ringReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	pull(r.ring, &r.scratch, p, n)
	return 4 * n, nil
}
