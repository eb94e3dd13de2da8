package io

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/pfcm/tonegen"
)

// Malgo plays through the default output of miniaudio.
type Malgo struct {
	// Blocks is how many blocks may be queued ahead of the device.
	Blocks int
	Logger *slog.Logger
}

var _ tonegen.Device = Malgo{}

type malgoSink struct {
	ringSink
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	scratch []float32
}

// Open initialises a mono float32 playback device and starts it.
func (m Malgo) Open(samplerate, blockSize int) (tonegen.Sink, error) {
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("miniaudio", "msg", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("initialising miniaudio: %w", err)
	}
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(samplerate)
	cfg.PeriodSizeInFrames = uint32(blockSize)

	s := &malgoSink{
		ringSink: newRingSink(samplerate, blockSize, m.Blocks),
		ctx:      mctx,
		scratch:  make([]float32, blockSize),
	}
	recv := func(out, _ []byte, framecount uint32) {
		pull(s.ring, &s.scratch, out, int(framecount))
	}
	s.device, err = malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: recv,
	})
	if err != nil {
		s.freeContext()
		return nil, fmt.Errorf("initialising playback device: %w", err)
	}
	if err := s.device.Start(); err != nil {
		s.device.Uninit()
		s.freeContext()
		return nil, fmt.Errorf("starting playback device: %w", err)
	}
	log.Info("opened miniaudio output", "sample_rate", samplerate, "period", blockSize)
	return s, nil
}

// WriteAudio queues a block, restarting the device first if it has stopped
// (for instance because it was unplugged and came back).
func (s *malgoSink) WriteAudio(b []float32) error {
	if !s.device.IsStarted() {
		if err := s.device.Start(); err != nil {
			return fmt.Errorf("%w: restarting playback device: %w", tonegen.ErrDeviceFault, err)
		}
	}
	return s.ringSink.WriteAudio(b)
}

// Close plays out what is queued and releases the device.
func (s *malgoSink) Close() error {
	s.drain()
	err := s.device.Stop()
	s.device.Uninit()
	s.freeContext()
	if err != nil {
		return fmt.Errorf("stopping playback device: %w", err)
	}
	return nil
}

func (s *malgoSink) freeContext() {
	_ = s.ctx.Uninit()
	s.ctx.Free()
}
