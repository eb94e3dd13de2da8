//go:build cgo

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/pfcm/tonegen/midi"
)

// MIDIPorts lists the MIDI input ports.
func MIDIPorts() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("cannot open rtmidi: %w", err)
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("cannot list MIDI inputs: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// MIDIListener listens to the first input port whose name starts with
// prefix. An empty prefix takes the first port there is.
func MIDIListener(prefix string) midi.Listener {
	return func(ctx context.Context, emit func([]byte)) error {
		drv, err := rtmididrv.New()
		if err != nil {
			return fmt.Errorf("cannot open rtmidi: %w", err)
		}
		defer drv.Close()
		in, err := findIn(drv, prefix)
		if err != nil {
			return err
		}
		if err := in.Open(); err != nil {
			return fmt.Errorf("cannot open MIDI input %v: %w", in, err)
		}
		defer in.Close()

		errc := make(chan error, 1)
		stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
			emit(msg)
		}, gomidi.HandleError(func(err error) {
			select {
			case errc <- err:
			default:
			}
		}))
		if err != nil {
			return fmt.Errorf("cannot listen to %v: %w", in, err)
		}
		defer stop()

		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return fmt.Errorf("listening to %v: %w", in, err)
		}
	}
}

func findIn(drv *rtmididrv.Driver, prefix string) (drivers.In, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("cannot list MIDI inputs: %w", err)
	}
	for _, in := range ins {
		if strings.HasPrefix(in.String(), prefix) {
			return in, nil
		}
	}
	if prefix == "" {
		return nil, errors.New("no MIDI inputs")
	}
	return nil, fmt.Errorf("no MIDI input starting with %q", prefix)
}
