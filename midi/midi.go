// package midi turns raw MIDI into events and routes them to callbacks,
// by kind, by raw number and by the names a controller profile gives them.
package midi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrPanic is wrapped by the CallbackFault of a handler that panicked.
var ErrPanic = errors.New("handler panicked")

// DefaultQueueSize is how many raw messages Listen buffers between the
// listener and dispatch.
const DefaultQueueSize = 1024

// Listener blocks until ctx is done or it fails, calling emit with each raw
// MIDI 1.0 message it receives. emit does not keep the slice.
type Listener func(ctx context.Context, emit func([]byte)) error

// Handler is a callback for events. A returned error is reported as a
// CallbackFault.
type Handler func(Event) error

// CallbackFault describes a handler that failed or panicked.
type CallbackFault struct {
	Key   Key
	Event Event
	Err   error
}

func (f *CallbackFault) Error() string {
	return fmt.Sprintf("handler for %v failed on %v: %v", f.Key, f.Event, f.Err)
}

func (f *CallbackFault) Unwrap() error { return f.Err }

// Key selects the events a handler is registered for. Number is Any unless
// the key is for one raw number, and a key with a Name has no Number. Build
// them with KindKey, NumberKey and NameKey.
type Key struct {
	Kind   Kind
	Number int
	Name   string
}

// KindKey matches every event of a kind.
func KindKey(k Kind) Key { return Key{Kind: k, Number: Any} }

// NumberKey matches events of a kind with a raw note or controller number.
func NumberKey(k Kind, n int) Key { return Key{Kind: k, Number: n} }

// NameKey matches events of a kind whose number the profile names.
func NameKey(k Kind, name string) Key { return Key{Kind: k, Number: Any, Name: name} }

func (k Key) String() string {
	switch {
	case k.Name != "":
		return fmt.Sprintf("%v[%s]", k.Kind, k.Name)
	case k.Number != Any:
		return fmt.Sprintf("%v[%d]", k.Kind, k.Number)
	}
	return k.Kind.String()
}

func (k Key) validate() error {
	switch {
	case k.Kind >= numKinds:
		return fmt.Errorf("invalid kind %d", k.Kind)
	case k.Number < Any || k.Number > 127:
		return fmt.Errorf("number %d out of range", k.Number)
	case k.Name != "" && k.Number != Any:
		return errors.New("key has both a number and a name")
	}
	return nil
}

// Registry holds handlers by key. Handlers are only ever added, and run in
// the order they were registered.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Key][]Handler
}

// Register adds h for events matching k.
func (r *Registry) Register(k Key, h Handler) error {
	if err := k.validate(); err != nil {
		return err
	}
	if h == nil {
		return errors.New("nil handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[Key][]Handler)
	}
	r.handlers[k] = append(r.handlers[k], h)
	return nil
}

// lookup returns the handlers for exactly k. Since the slices are only
// appended to, the result stays valid after the lock is dropped.
func (r *Registry) lookup(k Key) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[k]
}

// Stats counts what a Dispatcher has done.
type Stats struct {
	Events  uint64 // dispatched after the channel filter
	Dropped uint64 // raw messages lost to a full queue
	Faults  uint64 // handler failures
}

// Dispatcher routes events to handlers. Dispatch may be called from several
// goroutines, but handlers then run concurrently too; Listen feeds it from a
// single goroutine so that events arrive in order.
type Dispatcher struct {
	Registry

	channel   int
	profile   *Profile
	log       *slog.Logger
	onFault   func(*CallbackFault)
	queueSize int

	events, dropped, faults atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithChannel only lets through events on channel 1..16. 0 means all of them.
func WithChannel(ch int) Option {
	return func(d *Dispatcher) error {
		if ch < 0 || ch > 16 {
			return fmt.Errorf("channel %d out of range", ch)
		}
		d.channel = ch
		return nil
	}
}

// WithProfile sets the profile used to name pads and knobs.
func WithProfile(p *Profile) Option {
	return func(d *Dispatcher) error {
		d.profile = p
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.log = l
		return nil
	}
}

// WithFaultHandler replaces the default, which logs a warning. f is called
// on the dispatching goroutine.
func WithFaultHandler(f func(*CallbackFault)) Option {
	return func(d *Dispatcher) error {
		d.onFault = f
		return nil
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) error {
		if n <= 0 {
			return fmt.Errorf("queue size %d must be positive", n)
		}
		d.queueSize = n
		return nil
	}
}

func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		log:       slog.Default(),
		queueSize: DefaultQueueSize,
	}
	for _, o := range opts {
		if err := o(d); err != nil {
			return nil, err
		}
	}
	if d.onFault == nil {
		d.onFault = func(f *CallbackFault) {
			d.log.Warn("midi handler failed", "key", f.Key, "event", f.Event, "err", f.Err)
		}
	}
	return d, nil
}

// Profile returns the active profile, which may be nil.
func (d *Dispatcher) Profile() *Profile { return d.profile }

// Channel returns the channel filter, 0 for all channels.
func (d *Dispatcher) Channel() int { return d.channel }

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Events:  d.events.Load(),
		Dropped: d.dropped.Load(),
		Faults:  d.faults.Load(),
	}
}

// Dispatch runs every handler matching ev: first those for the kind, then
// those for its raw number, then those for its name in the profile. Events
// on other channels, or that nothing handles, are dropped.
func (d *Dispatcher) Dispatch(ev Event) {
	if d.channel != 0 && ev.Channel != d.channel {
		return
	}
	d.events.Add(1)
	d.run(KindKey(ev.Kind), ev)
	if ev.Number != Any {
		d.run(NumberKey(ev.Kind, ev.Number), ev)
	}
	if d.profile == nil {
		return
	}
	if name, ok := d.profile.Resolve(ev); ok {
		d.run(NameKey(ev.Kind, name), ev)
	}
}

func (d *Dispatcher) run(k Key, ev Event) {
	for _, h := range d.lookup(k) {
		if err := call(h, ev); err != nil {
			d.faults.Add(1)
			d.onFault(&CallbackFault{Key: k, Event: ev, Err: err})
		}
	}
}

func call(h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return h(ev)
}

// HandleBytes decodes and dispatches one MIDI 1.0 message.
func (d *Dispatcher) HandleBytes(b []byte) {
	ev, ok := DecodeBytes(b)
	if !ok {
		d.log.Debug("ignoring midi message", "bytes", fmt.Sprintf("% x", b))
		return
	}
	d.Dispatch(ev)
}

// HandleUMP decodes and dispatches a stream of UMP words. Events decoded
// before a malformed message are still dispatched.
func (d *Dispatcher) HandleUMP(raw []uint32) error {
	events, err := DecodeUMP(raw)
	for _, ev := range events {
		d.Dispatch(ev)
	}
	return err
}

// Listen runs l until ctx is done or l returns, dispatching what it emits in
// order from one goroutine. Messages that arrive while the queue is full are
// dropped rather than blocking the listener.
func (d *Dispatcher) Listen(ctx context.Context, l Listener) error {
	queue := make(chan []byte, d.queueSize)
	done := make(chan struct{})
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		return l(ctx, func(b []byte) {
			select {
			case queue <- append([]byte(nil), b...):
			default:
				if d.dropped.Add(1) == 1 {
					d.log.Warn("midi queue full, dropping messages", "size", d.queueSize)
				}
			}
		})
	})
	g.Go(func() error {
		for {
			select {
			case b := <-queue:
				d.HandleBytes(b)
			case <-done:
				for {
					select {
					case b := <-queue:
						d.HandleBytes(b)
					default:
						return nil
					}
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	return g.Wait()
}

// OnNoteOn registers h for every note on.
func (d *Dispatcher) OnNoteOn(h Handler) error { return d.Register(KindKey(NoteOn), h) }

// OnNoteOff registers h for every note off.
func (d *Dispatcher) OnNoteOff(h Handler) error { return d.Register(KindKey(NoteOff), h) }

func (d *Dispatcher) OnControlChange(h Handler) error {
	return d.Register(KindKey(ControlChange), h)
}

func (d *Dispatcher) OnPitchBend(h Handler) error { return d.Register(KindKey(PitchBend), h) }

func (d *Dispatcher) OnAftertouch(h Handler) error { return d.Register(KindKey(Aftertouch), h) }

// OnNote registers h for note ons of note n.
func (d *Dispatcher) OnNote(n int, h Handler) error { return d.Register(NumberKey(NoteOn, n), h) }

// OnController registers h for changes to controller n.
func (d *Dispatcher) OnController(n int, h Handler) error {
	return d.Register(NumberKey(ControlChange, n), h)
}

// OnPad registers h for note ons of a pad the profile names.
func (d *Dispatcher) OnPad(name string, h Handler) error {
	if d.profile == nil {
		return fmt.Errorf("%w: pad %q with no profile", ErrUnknownControl, name)
	}
	if _, ok := d.profile.Pad(name); !ok {
		return fmt.Errorf("%w: %s has no pad %q", ErrUnknownControl, d.profile.Name(), name)
	}
	return d.Register(NameKey(NoteOn, name), h)
}

// OnKnob registers h for changes to a knob the profile names.
func (d *Dispatcher) OnKnob(name string, h Handler) error {
	if d.profile == nil {
		return fmt.Errorf("%w: knob %q with no profile", ErrUnknownControl, name)
	}
	if _, ok := d.profile.Knob(name); !ok {
		return fmt.Errorf("%w: %s has no knob %q", ErrUnknownControl, d.profile.Name(), name)
	}
	return d.Register(NameKey(ControlChange, name), h)
}
