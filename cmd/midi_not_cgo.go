//go:build !cgo

package cmd

import (
	"context"
	"errors"

	"github.com/pfcm/tonegen/midi"
)

// rtmidi needs cgo, so without it there is no MIDI input.
var errNoMIDI = errors.New("built without cgo, no MIDI input available")

func MIDIPorts() ([]string, error) { return nil, errNoMIDI }

func MIDIListener(string) midi.Listener {
	return func(context.Context, func([]byte)) error { return errNoMIDI }
}
