package midi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownProfile = errors.New("unknown profile")
	ErrUnknownControl = errors.New("unknown control")
)

// Profile names the pads and knobs of a particular controller. Profiles are
// immutable once made, so one can be shared by any number of dispatchers.
type Profile struct {
	name, title   string
	hasAftertouch bool
	hasPitchBend  bool

	pads, knobs map[string]int
	// notes and controllers are the reverse of pads and knobs.
	notes, controllers [128]string
}

// NewProfile checks and builds a profile. Every pad needs a distinct note and
// every knob a distinct controller, all in 0..127.
func NewProfile(name, title string, pads, knobs map[string]int, aftertouch, pitchBend bool) (*Profile, error) {
	if name == "" {
		return nil, errors.New("profile has no name")
	}
	p := &Profile{
		name:          name,
		title:         title,
		hasAftertouch: aftertouch,
		hasPitchBend:  pitchBend,
		pads:          make(map[string]int, len(pads)),
		knobs:         make(map[string]int, len(knobs)),
	}
	if err := reverse(p.pads, &p.notes, pads); err != nil {
		return nil, fmt.Errorf("profile %q pads: %w", name, err)
	}
	if err := reverse(p.knobs, &p.controllers, knobs); err != nil {
		return nil, fmt.Errorf("profile %q knobs: %w", name, err)
	}
	return p, nil
}

func reverse(dst map[string]int, rev *[128]string, src map[string]int) error {
	// Sorted so that which of two clashing names gets reported is stable.
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		n := src[name]
		switch {
		case name == "":
			return errors.New("empty control name")
		case n < 0 || n > 127:
			return fmt.Errorf("%q: number %d out of range", name, n)
		case rev[n] != "":
			return fmt.Errorf("%q and %q both use %d", rev[n], name, n)
		}
		rev[n] = name
		dst[name] = n
	}
	return nil
}

// Name is the name the profile is registered under, like "akai_mpc_mini".
func (p *Profile) Name() string { return p.name }

// Title is a human readable name, falling back to Name.
func (p *Profile) Title() string {
	if p.title == "" {
		return p.name
	}
	return p.title
}

func (p *Profile) HasAftertouch() bool { return p.hasAftertouch }
func (p *Profile) HasPitchBend() bool  { return p.hasPitchBend }

// Pad returns the note for a pad name.
func (p *Profile) Pad(name string) (int, bool) {
	n, ok := p.pads[name]
	return n, ok
}

// Knob returns the controller for a knob name.
func (p *Profile) Knob(name string) (int, bool) {
	n, ok := p.knobs[name]
	return n, ok
}

// Pads returns the pad names in order.
func (p *Profile) Pads() []string { return sortedKeys(p.pads) }

// Knobs returns the knob names in order.
func (p *Profile) Knobs() []string { return sortedKeys(p.knobs) }

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Resolve returns the semantic name for an event, if it has one. Note and
// polyphonic pressure events resolve through the pads, control changes
// through the knobs.
func (p *Profile) Resolve(ev Event) (string, bool) {
	if ev.Number < 0 || ev.Number > 127 {
		return "", false
	}
	var name string
	switch ev.Kind {
	case NoteOn, NoteOff, Aftertouch:
		name = p.notes[ev.Number]
	case ControlChange:
		name = p.controllers[ev.Number]
	}
	return name, name != ""
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s(%d pads, %d knobs)", p.name, len(p.pads), len(p.knobs))
}

// profileFile is the on-disk form of a Profile.
type profileFile struct {
	Name          string         `yaml:"name"`
	Title         string         `yaml:"title,omitempty"`
	Pads          map[string]int `yaml:"pads,omitempty"`
	Knobs         map[string]int `yaml:"knobs,omitempty"`
	HasAftertouch bool           `yaml:"has_aftertouch"`
	HasPitchBend  bool           `yaml:"has_pitchbend"`
}

// MarshalYAML writes the profile in the form ParseProfile reads.
func (p *Profile) MarshalYAML() (any, error) {
	return profileFile{
		Name:          p.name,
		Title:         p.title,
		Pads:          p.pads,
		Knobs:         p.knobs,
		HasAftertouch: p.hasAftertouch,
		HasPitchBend:  p.hasPitchBend,
	}, nil
}

// ParseProfile reads a YAML profile table.
func ParseProfile(b []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var f profileFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("cannot parse profile: %w", err)
	}
	return NewProfile(f.Name, f.Title, f.Pads, f.Knobs, f.HasAftertouch, f.HasPitchBend)
}

// ReadProfile reads a YAML profile table from a file.
func ReadProfile(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := ParseProfile(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// LoadProfile returns a built in profile. Names are matched ignoring case.
func LoadProfile(name string) (*Profile, error) {
	if p, ok := builtins()[fold(name)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w %q, have %v", ErrUnknownProfile, name, ProfileNames())
}

// ProfileNames lists the built in profiles.
func ProfileNames() []string {
	b := builtins()
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// signatures map substrings of a port name to the profile for it, first match
// wins.
var signatures = []struct{ sub, profile string }{
	{"mpk mini", "akai_mpk_mini_plus"},
	{"mpc mini", "akai_mpc_mini"},
	{"maschine mikro", "ni_maschine_mikro"},
	{"launchpad mini", "launchpad_mini"},
}

// DetectProfile guesses a profile name from a MIDI port name, falling back to
// "generic".
func DetectProfile(port string) string {
	port = fold(port)
	for _, s := range signatures {
		if strings.Contains(port, s.sub) {
			return s.profile
		}
	}
	return "generic"
}

// fold makes a fresh Caser each time, they aren't safe to share.
func fold(s string) string { return cases.Fold().String(s) }

// numbered makes names prefix1..prefixN for consecutive numbers from first.
func numbered(m map[string]int, prefix string, first, n int) {
	for i := 0; i < n; i++ {
		m[fmt.Sprintf("%s%d", prefix, i+1)] = first + i
	}
}

func mustProfile(p *Profile, err error) *Profile {
	if err != nil {
		panic(err)
	}
	return p
}

var builtins = sync.OnceValue(func() map[string]*Profile {
	ps := []*Profile{
		mustProfile(NewProfile("generic", "Generic", nil, nil, false, false)),
		akaiMPKMiniPlus(),
		akaiMPCMini(),
		maschineMikro(),
		launchpadMini(),
		gmDrums(),
	}
	m := make(map[string]*Profile, len(ps))
	for _, p := range ps {
		m[p.name] = p
	}
	return m
})

func akaiMPKMiniPlus() *Profile {
	// The 25 keys pass through unnamed. Pads are bank A.
	pads := map[string]int{}
	numbered(pads, "pad_", 36, 8)
	knobs := map[string]int{"modwheel": 1}
	numbered(knobs, "knob_", 70, 8)
	return mustProfile(NewProfile("akai_mpk_mini_plus", "Akai MPK Mini Plus", pads, knobs, false, true))
}

func akaiMPCMini() *Profile {
	pads := map[string]int{}
	numbered(pads, "pad_", 36, 16)
	numbered(pads, "pad_b_", 52, 16)
	knobs := map[string]int{}
	numbered(knobs, "knob_", 70, 8)
	return mustProfile(NewProfile("akai_mpc_mini", "Akai MPC Mini", pads, knobs, false, false))
}

func maschineMikro() *Profile {
	// MIDI mode only; Maschine mode doesn't send standard messages.
	pads := map[string]int{}
	numbered(pads, "pad_", 36, 16)
	knobs := map[string]int{"encoder": 22, "touch_strip": 1}
	return mustProfile(NewProfile("ni_maschine_mikro", "NI Maschine Mikro MK3", pads, knobs, true, true))
}

func launchpadMini() *Profile {
	// The grid is addressed 16 notes to a row.
	pads := map[string]int{}
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			pads[fmt.Sprintf("pad_%d_%d", row, col)] = row*16 + col
		}
	}
	knobs := map[string]int{}
	for i := 0; i < 8; i++ {
		pads[fmt.Sprintf("top_button_%d", i)] = 104 + i
		knobs[fmt.Sprintf("side_button_%d", i)] = 104 + i
	}
	return mustProfile(NewProfile("launchpad_mini", "Novation Launchpad Mini", pads, knobs, false, false))
}

func gmDrums() *Profile {
	pads := map[string]int{
		"kick_acoustic":  35,
		"kick":           36,
		"side_stick":     37,
		"snare_acoustic": 38,
		"clap":           39,
		"snare_electric": 40,
		"tom_low_floor":  41,
		"hihat_closed":   42,
		"tom_low":        43,
		"hihat_pedal":    44,
		"tom_mid":        45,
		"hihat_open":     46,
		"tom_mid_low":    47,
		"tom_mid_high":   48,
		"crash_1":        49,
		"tom_high":       50,
		"ride_1":         51,
		"chinese":        52,
		"ride_bell":      53,
		"tambourine":     54,
		"splash":         55,
		"cowbell":        56,
		"crash_2":        57,
		"vibraslap":      58,
		"ride_2":         59,
	}
	return mustProfile(NewProfile("gm_drums", "General MIDI Drum Map", pads, nil, false, false))
}
