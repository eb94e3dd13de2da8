package midi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestDecodeBytes(t *testing.T) {
	for _, c := range []struct {
		name string
		in   []byte
		want Event
		ok   bool
	}{{
		name: "note on",
		in:   gomidi.NoteOn(2, 60, 100),
		want: Event{Kind: NoteOn, Channel: 3, Number: 60, Value: 100},
		ok:   true,
	}, {
		name: "note on without velocity",
		in:   gomidi.NoteOn(0, 60, 0),
		want: Event{Kind: NoteOff, Channel: 1, Number: 60},
		ok:   true,
	}, {
		name: "note off",
		in:   gomidi.NoteOffVelocity(15, 61, 64),
		want: Event{Kind: NoteOff, Channel: 16, Number: 61, Value: 64},
		ok:   true,
	}, {
		name: "control change",
		in:   gomidi.ControlChange(0, 74, 127),
		want: Event{Kind: ControlChange, Channel: 1, Number: 74, Value: 127},
		ok:   true,
	}, {
		name: "bend down",
		in:   gomidi.Pitchbend(4, -8192),
		want: Event{Kind: PitchBend, Channel: 5, Number: Any, Bend: -8192},
		ok:   true,
	}, {
		name: "bend up",
		in:   gomidi.Pitchbend(4, 8191),
		want: Event{Kind: PitchBend, Channel: 5, Number: Any, Bend: 8191},
		ok:   true,
	}, {
		name: "channel pressure",
		in:   gomidi.AfterTouch(1, 90),
		want: Event{Kind: Aftertouch, Channel: 2, Number: Any, Value: 90},
		ok:   true,
	}, {
		name: "poly pressure",
		in:   gomidi.PolyAfterTouch(0, 36, 50),
		want: Event{Kind: Aftertouch, Channel: 1, Number: 36, Value: 50},
		ok:   true,
	}, {
		name: "program change",
		in:   gomidi.ProgramChange(0, 3),
	}, {
		name: "truncated",
		in:   []byte{0x90, 60},
	}, {
		name: "empty",
	}} {
		t.Run(c.name, func(t *testing.T) {
			got, ok := DecodeBytes(c.in)
			if ok != c.ok {
				t.Fatalf("DecodeBytes(% x) ok = %v, want: %v", c.in, ok, c.ok)
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("DecodeBytes(% x) (-want +got):\n%s", c.in, diff)
			}
		})
	}
}

func TestDecodeUMP(t *testing.T) {
	raw := []uint32{
		0x20904064, // note on, group 0, ch1, note 64, vel 100
		0x10F80000, // system real time, skipped
		0x2B933C00, // note on vel 0, group 11, ch4
		0x40904000, // MIDI 2.0 note on, two words, skipped
		0xFFFF0000,
		0x20B54A7F, // cc 74 = 127 on ch6
		0x20E00040, // pitch bend centre
		0x20E07F7F, // pitch bend max
		0x20D02A00, // channel pressure 42
		0x20C00500, // program change, skipped
	}
	got, err := DecodeUMP(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{
		{Kind: NoteOn, Channel: 1, Number: 0x40, Value: 100},
		{Kind: NoteOff, Channel: 4, Number: 0x3C},
		{Kind: ControlChange, Channel: 6, Number: 74, Value: 127},
		{Kind: PitchBend, Channel: 1, Number: Any, Bend: 0},
		{Kind: PitchBend, Channel: 1, Number: Any, Bend: 8191},
		{Kind: Aftertouch, Channel: 1, Number: Any, Value: 42},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeUMP() (-want +got):\n%s", diff)
	}
}

func TestDecodeUMPTruncated(t *testing.T) {
	got, err := DecodeUMP([]uint32{0x20904064, 0x40904000})
	if !errors.Is(err, ErrDecode) {
		t.Errorf("DecodeUMP() err = %v, want: %v", err, ErrDecode)
	}
	if len(got) != 1 {
		t.Errorf("DecodeUMP() decoded %d events before the error, want: 1", len(got))
	}
}
