// command play is a monophonic synth: a tone generator played from a MIDI
// controller.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/pfcm/tonegen"
	"github.com/pfcm/tonegen/cmd"
	"github.com/pfcm/tonegen/hid"
	"github.com/pfcm/tonegen/io"
	"github.com/pfcm/tonegen/midi"
	"github.com/pfcm/tonegen/osc"
)

var (
	configFlag  = flag.String("config", "", "YAML file of settings. Flags given explicitly override it.")
	debugFlag   = flag.Bool("debug", false, "whether to log at debug level")
	pprofFlag   = flag.Bool("pprof", false, "whether to write pprof profiles to the current working directory")
	backendFlag = flag.String("backend", "malgo", "audio output, malgo or oto")

	rateFlag      = flag.Int("rate", tonegen.DefaultConfig().SampleRate, "sample rate in Hz")
	blockFlag     = flag.Duration("block", tonegen.DefaultConfig().BlockDuration, "duration of each rendered block")
	freqFlag      = flag.Float64("freq", tonegen.DefaultConfig().Frequency, "initial frequency in Hz")
	amplitudeFlag = flag.Float64("amplitude", 0, "initial amplitude, nonzero to play a tone without MIDI")
	volumeFlag    = flag.Float64("volume", tonegen.DefaultConfig().Volume, "master volume")
	waveFlag      = osc.Sine

	portFlag      = flag.String("port", "", "MIDI input port name prefix; empty for the first port")
	profileFlag   = flag.String("profile", "auto", "controller profile, or auto to guess from the port name")
	profileFile   = flag.String("profile-file", "", "YAML controller profile to use instead of a built in one")
	channelFlag   = flag.Int("channel", 0, "MIDI channel to listen to, 0 for all")
	bendRangeFlag = flag.Float64("bend", hid.DefaultBendRange, "pitch bend range in semitones")
)

func init() {
	flag.TextVar(&waveFlag, "wave", osc.Sine, fmt.Sprintf("waveform, one of %v", osc.Waves()))
}

// config is the file format of -config.
type config struct {
	tonegen.Config `yaml:",inline"`
	Backend        string `yaml:"backend"`
	MIDI           struct {
		Port        string  `yaml:"port"`
		Profile     string  `yaml:"profile"`
		ProfileFile string  `yaml:"profile_file"`
		Channel     int     `yaml:"channel"`
		BendRange   float64 `yaml:"bend_range"`
	} `yaml:"midi"`
}

func main() {
	flag.Parse()
	log := cmd.Logger(*debugFlag)
	slog.SetDefault(log)
	if err := run(log); err != nil {
		log.Error("play failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	if *pprofFlag {
		finish, err := startProfiles()
		if err != nil {
			return fmt.Errorf("starting profiling: %w", err)
		}
		defer func() {
			if err := finish(); err != nil {
				log.Error("finishing profiles", "err", err)
			}
		}()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Logger = log

	var dev tonegen.Device
	switch cfg.Backend {
	case "malgo":
		dev = io.Malgo{Logger: log}
	case "oto":
		dev = io.Oto{Logger: log}
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	m := &meter{dev: dev}
	g, err := tonegen.New(m, cfg.Config)
	if err != nil {
		return err
	}

	profile, err := loadProfile(cfg)
	if err != nil {
		return err
	}
	d, err := midi.NewDispatcher(
		midi.WithChannel(cfg.MIDI.Channel),
		midi.WithProfile(profile),
		midi.WithLogger(log),
	)
	if err != nil {
		return err
	}
	kb := hid.NewKeyboard(g, log)
	kb.BendRange = cfg.MIDI.BendRange
	if err := kb.Bind(d, hid.DefaultBindings()); err != nil {
		return err
	}
	log.Info("using controller profile", "profile", profile.Title(), "channel", cfg.MIDI.Channel)

	if err := g.Start(); err != nil {
		return err
	}
	eg, ctx := errgroup.WithContext(cmd.InterruptContext())
	eg.Go(func() error {
		<-ctx.Done()
		return g.Stop()
	})
	eg.Go(func() error {
		// Losing MIDI leaves the synth running, but silent.
		if err := d.Listen(ctx, cmd.MIDIListener(cfg.MIDI.Port)); err != nil {
			log.Warn("MIDI input stopped", "err", err)
			return kb.Release()
		}
		return nil
	})
	eg.Go(func() error {
		t0 := time.Now()
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				fmt.Println()
				return nil
			case <-t.C:
				s := g.State()
				fmt.Printf("\r%.4f: %v %7.2fHz amp %.2f rms %.2f", time.Since(t0).Seconds(), s.Wave, s.Frequency, s.Amplitude, m.rms())
			}
		}
	})
	err = eg.Wait()
	st, ds := g.Stats(), d.Stats()
	log.Info("all done",
		"blocks", st.Blocks,
		"device_faults", st.DeviceFaults,
		"midi_events", ds.Events,
		"midi_dropped", ds.Dropped,
		"midi_faults", ds.Faults)
	return err
}

// loadConfig reads -config, if there is one, then applies any flags set on the
// command line.
func loadConfig() (config, error) {
	var cfg config
	cfg.Config = tonegen.DefaultConfig()
	cfg.Backend = *backendFlag
	cfg.MIDI.Port = *portFlag
	cfg.MIDI.Profile = *profileFlag
	cfg.MIDI.ProfileFile = *profileFile
	cfg.MIDI.Channel = *channelFlag
	cfg.MIDI.BendRange = *bendRangeFlag
	cfg.Config.Amplitude = *amplitudeFlag
	if *configFlag != "" {
		b, err := os.ReadFile(*configFlag)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", *configFlag, err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backendFlag
		case "rate":
			cfg.SampleRate = *rateFlag
		case "block":
			cfg.BlockDuration = *blockFlag
		case "freq":
			cfg.Frequency = *freqFlag
		case "amplitude":
			cfg.Amplitude = *amplitudeFlag
		case "volume":
			cfg.Volume = *volumeFlag
		case "wave":
			cfg.Wave = waveFlag
		case "port":
			cfg.MIDI.Port = *portFlag
		case "profile":
			cfg.MIDI.Profile = *profileFlag
		case "profile-file":
			cfg.MIDI.ProfileFile = *profileFile
		case "channel":
			cfg.MIDI.Channel = *channelFlag
		case "bend":
			cfg.MIDI.BendRange = *bendRangeFlag
		}
	})
	return cfg, cfg.Validate()
}

func loadProfile(cfg config) (*midi.Profile, error) {
	switch {
	case cfg.MIDI.ProfileFile != "":
		return midi.ReadProfile(cfg.MIDI.ProfileFile)
	case cfg.MIDI.Profile == "auto", cfg.MIDI.Profile == "":
		return midi.LoadProfile(midi.DetectProfile(cfg.MIDI.Port))
	}
	p, err := midi.LoadProfile(cfg.MIDI.Profile)
	if errors.Is(err, midi.ErrUnknownProfile) {
		return nil, fmt.Errorf("%w (or use -profile-file)", err)
	}
	return p, err
}

// meter wraps a device to keep a running RMS of what is written to it.
type meter struct {
	dev   tonegen.Device
	level atomic.Uint32 // float32 bits
}

type meterSink struct {
	tonegen.Sink
	m *meter
}

func (m *meter) Open(samplerate, blockSize int) (tonegen.Sink, error) {
	s, err := m.dev.Open(samplerate, blockSize)
	if err != nil {
		return nil, err
	}
	return meterSink{Sink: s, m: m}, nil
}

func (m *meter) rms() float32 { return math.Float32frombits(m.level.Load()) }

func (s meterSink) WriteAudio(b []float32) error {
	// Only the render goroutine writes, so this needn't be a CAS.
	s.m.level.Store(math.Float32bits(0.01*s.m.rms() + 0.99*tonegen.RMS(b)))
	return s.Sink.WriteAudio(b)
}

func startProfiles() (func() error, error) {
	cpu, err := os.Create("cpu.pprof")
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(cpu); err != nil {
		return nil, fmt.Errorf("starting cpu profile: %w", err)
	}

	mem, err := os.Create("mem.pprof")
	if err != nil {
		return nil, err
	}
	return func() error {
		pprof.StopCPUProfile()
		if err := cpu.Close(); err != nil {
			return err
		}
		runtime.GC()
		if err := pprof.WriteHeapProfile(mem); err != nil {
			return err
		}
		return mem.Close()
	}, nil
}
