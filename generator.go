package tonegen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type runState byte

const (
	idle runState = iota
	running
	stopped
)

func (s runState) String() string {
	return []string{
		idle:    "idle",
		running: "running",
		stopped: "stopped",
	}[s]
}

// Generator streams rendered blocks to an output device on its own goroutine.
type Generator struct {
	cfg      Config
	log      *slog.Logger
	dev      Device
	params   *Params
	renderer *Renderer
	period   time.Duration

	// mu serialises Start and Stop. The render goroutine never takes it.
	mu     sync.Mutex
	state  runState
	sink   Sink
	cancel context.CancelFunc
	done   chan struct{}

	blocks atomic.Uint64
	faults atomic.Uint64
}

// Stats are running totals since the Generator was created.
type Stats struct {
	Blocks       uint64 // blocks rendered
	DeviceFaults uint64 // failed writes
}

// New creates an idle Generator that will write to dev once started.
func New(dev Device, cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	params := NewParams(cfg.snapshot())
	return &Generator{
		cfg:      cfg,
		log:      log,
		dev:      dev,
		params:   params,
		renderer: NewRenderer(params, cfg.SampleRate, cfg.BlockSize()),
		period:   time.Duration(float64(time.Second) * float64(cfg.BlockSize()) / float64(cfg.SampleRate)),
	}, nil
}

// Start opens the device and starts streaming. It returns ErrAlreadyRunning if
// the generator is running already. A stopped generator can be started again,
// carrying on from where it left off.
func (g *Generator) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == running {
		return ErrAlreadyRunning
	}
	sink, err := g.dev.Open(g.cfg.SampleRate, g.renderer.BlockSize())
	if err != nil {
		return fmt.Errorf("%w: opening output: %w", ErrDeviceFault, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.sink, g.cancel, g.done = sink, cancel, make(chan struct{})
	g.state = running
	go g.run(ctx, sink, g.done)
	g.log.Info("generator started",
		"sample_rate", g.cfg.SampleRate,
		"block_size", g.renderer.BlockSize(),
		"period", g.period)
	return nil
}

// Stop stops streaming and closes the device. It is safe to call from any
// goroutine and only returns once the render goroutine has exited, which
// includes finishing the write of any block in flight. It returns
// ErrNotRunning if the generator is not running.
func (g *Generator) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != running {
		return ErrNotRunning
	}
	g.cancel()
	<-g.done
	g.state = stopped
	sink := g.sink
	g.sink, g.cancel, g.done = nil, nil, nil
	if err := sink.Close(); err != nil {
		return fmt.Errorf("%w: closing output: %w", ErrDeviceFault, err)
	}
	g.log.Info("generator stopped", "blocks", g.blocks.Load())
	return nil
}

// Running reports whether the generator is currently streaming.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == running
}

// Stats returns the running totals.
func (g *Generator) Stats() Stats {
	return Stats{Blocks: g.blocks.Load(), DeviceFaults: g.faults.Load()}
}

// run is the render loop. It renders and transmits one block per period until
// ctx is cancelled. Write failures are counted and otherwise ignored: the next
// block is tried as normal.
func (g *Generator) run(ctx context.Context, sink Sink, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(g.period)
	defer timer.Stop()

	var (
		next    = time.Now()
		faulted bool
		streak  uint64
	)
	for {
		buf := g.renderer.Render()
		g.blocks.Add(1)
		if err := sink.WriteAudio(buf); err != nil {
			g.faults.Add(1)
			streak++
			if !faulted {
				faulted = true
				g.log.Warn("output fault, continuing", "err", err)
			}
		} else if faulted {
			g.log.Info("output recovered", "failed_blocks", streak)
			faulted, streak = false, 0
		}

		next = next.Add(g.period)
		wait := time.Until(next)
		if wait <= 0 {
			// Behind schedule: start counting again from now rather than
			// trying to catch up.
			next = time.Now()
			select {
			case <-ctx.Done():
				return
			default:
			}
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
