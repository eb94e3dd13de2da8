package midi

import (
	"errors"
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ErrDecode is returned for malformed raw input.
var ErrDecode = errors.New("cannot decode midi")

// Kind is the kind of a channel voice event.
type Kind uint8

const (
	NoteOn Kind = iota
	NoteOff
	ControlChange
	PitchBend
	Aftertouch
	numKinds
)

var kindNames = [numKinds]string{
	NoteOn:        "note_on",
	NoteOff:       "note_off",
	ControlChange: "control_change",
	PitchBend:     "pitch_bend",
	Aftertouch:    "aftertouch",
}

func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Any stands in for "no number": the number of a pitch bend or channel
// pressure event, or the wildcard in a Key.
const Any = -1

// Event is a decoded channel voice message.
type Event struct {
	Kind Kind
	// Channel is 1 based, 1..16.
	Channel int
	// Number is the note for note and polyphonic pressure events, the
	// controller for control changes and Any otherwise.
	Number int
	// Value is the velocity, controller value or pressure, 0..127.
	Value int
	// Bend is only set for pitch bends, -8192..8191.
	Bend int
}

func (e Event) String() string {
	switch e.Kind {
	case PitchBend:
		return fmt.Sprintf("ch%d %v %d", e.Channel, e.Kind, e.Bend)
	case Aftertouch:
		if e.Number == Any {
			return fmt.Sprintf("ch%d %v %d", e.Channel, e.Kind, e.Value)
		}
	}
	return fmt.Sprintf("ch%d %v %d=%d", e.Channel, e.Kind, e.Number, e.Value)
}

// channelVoiceLen is the length of a channel voice message by the top nibble
// of its status byte. Anything else only needs a status.
var channelVoiceLen = [16]int{0x8: 3, 0x9: 3, 0xA: 3, 0xB: 3, 0xC: 2, 0xD: 2, 0xE: 3}

// DecodeBytes decodes a single MIDI 1.0 message. It reports false for
// anything that isn't one of the channel voice messages Event can hold,
// including malformed input. A note on with zero velocity is a note off.
func DecodeBytes(b []byte) (Event, bool) {
	if len(b) == 0 || len(b) < channelVoiceLen[b[0]>>4] {
		return Event{}, false
	}
	msg := gomidi.Message(b)
	var ch, key, val uint8
	var rel int16
	var abs uint16
	ev := Event{Number: Any}
	switch {
	case msg.GetNoteStart(&ch, &key, &val):
		ev.Kind, ev.Number, ev.Value = NoteOn, int(key), int(val)
	case msg.GetNoteEnd(&ch, &key):
		ev.Kind, ev.Number = NoteOff, int(key)
		if msg.GetNoteOff(&ch, &key, &val) {
			ev.Value = int(val)
		}
	case msg.GetControlChange(&ch, &key, &val):
		ev.Kind, ev.Number, ev.Value = ControlChange, int(key), int(val)
	case msg.GetPitchBend(&ch, &rel, &abs):
		ev.Kind, ev.Bend = PitchBend, int(rel)
	case msg.GetPolyAfterTouch(&ch, &key, &val):
		ev.Kind, ev.Number, ev.Value = Aftertouch, int(key), int(val)
	case msg.GetAfterTouch(&ch, &val):
		ev.Kind, ev.Value = Aftertouch, int(val)
	default:
		return Event{}, false
	}
	ev.Channel = int(ch) + 1
	return ev, true
}

// mtChannelVoice1 is the UMP message type, the top 4 bits of the first word,
// of MIDI 1.0 channel voice messages.
const mtChannelVoice1 = 0x2

// umpSizes is the size in words of each message type, indexed by the type.
// Reserved types are sized as the UMP standard groups them.
var umpSizes = [16]int{1, 1, 1, 2, 2, 4, 1, 1, 2, 2, 2, 3, 3, 4, 4, 4}

// DecodeUMP decodes a stream of Universal MIDI Packets. Only MIDI 1.0 channel
// voice messages become events, everything else is skipped.
func DecodeUMP(raw []uint32) ([]Event, error) {
	var events []Event
	for len(raw) > 0 {
		t := raw[0] >> 28
		n := umpSizes[t]
		if len(raw) < n {
			return events, fmt.Errorf("%w: type %#x message needs %d words, have %d", ErrDecode, t, n, len(raw))
		}
		if t == mtChannelVoice1 {
			if ev, ok := decodeChannelVoice1(raw[0]); ok {
				events = append(events, ev)
			}
		}
		raw = raw[n:]
	}
	return events, nil
}

func decodeChannelVoice1(p uint32) (Event, bool) {
	// Below the type and group the word carries the classic status and data
	// bytes. The high bit of the data bytes should be zero.
	status := byte(p>>20) & 0xF
	a, b := int(p>>8)&0x7F, int(p)&0x7F
	ev := Event{Channel: int(p>>16&0xF) + 1, Number: Any}
	switch status {
	case 0x8:
		ev.Kind, ev.Number, ev.Value = NoteOff, a, b
	case 0x9:
		ev.Kind, ev.Number, ev.Value = NoteOn, a, b
		if b == 0 {
			ev.Kind = NoteOff
		}
	case 0xA:
		ev.Kind, ev.Number, ev.Value = Aftertouch, a, b
	case 0xB:
		ev.Kind, ev.Number, ev.Value = ControlChange, a, b
	case 0xD:
		ev.Kind, ev.Value = Aftertouch, a
	case 0xE:
		ev.Kind, ev.Bend = PitchBend, (b<<7|a)-8192
	default:
		// Program change, or not a channel voice status at all.
		return Event{}, false
	}
	return ev, true
}
