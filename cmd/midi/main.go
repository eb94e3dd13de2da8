// command midi checks that midi is working: it prints every event it gets,
// along with the name the controller profile gives it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pfcm/tonegen/cmd"
	"github.com/pfcm/tonegen/midi"
)

var (
	listFlag    = flag.Bool("list", false, "list the input ports and built in profiles, then exit")
	portFlag    = flag.String("port", "", "MIDI input port name prefix; empty for the first port")
	profileFlag = flag.String("profile", "auto", "controller profile, or auto to guess from the port name")
	channelFlag = flag.Int("channel", 0, "MIDI channel to show, 0 for all")
	debugFlag   = flag.Bool("debug", false, "whether to log at debug level, which shows ignored messages")
)

func main() {
	flag.Parse()
	log := cmd.Logger(*debugFlag)
	if err := run(log); err != nil {
		log.Error("midi failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	if *listFlag {
		return list()
	}
	name := *profileFlag
	if name == "auto" {
		name = midi.DetectProfile(*portFlag)
	}
	p, err := midi.LoadProfile(name)
	if err != nil {
		return err
	}
	d, err := midi.NewDispatcher(
		midi.WithChannel(*channelFlag),
		midi.WithProfile(p),
		midi.WithLogger(log),
	)
	if err != nil {
		return err
	}
	for k := midi.NoteOn; k <= midi.Aftertouch; k++ {
		if err := d.Register(midi.KindKey(k), func(ev midi.Event) error {
			if name, ok := p.Resolve(ev); ok {
				fmt.Printf("%v (%s)\n", ev, name)
			} else {
				fmt.Println(ev)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	log.Info("listening", "port", *portFlag, "profile", p.Title())
	err = d.Listen(cmd.InterruptContext(), cmd.MIDIListener(*portFlag))
	log.Info("all done", "events", d.Stats().Events, "dropped", d.Stats().Dropped)
	return err
}

func list() error {
	ports, err := cmd.MIDIPorts()
	if err != nil {
		return err
	}
	fmt.Println("ports:")
	for _, port := range ports {
		fmt.Printf("  %s (profile %s)\n", port, midi.DetectProfile(port))
	}
	fmt.Println("profiles:")
	for _, name := range midi.ProfileNames() {
		p, err := midi.LoadProfile(name)
		if err != nil {
			return err
		}
		fmt.Printf("  %-20s %v\n", name, p)
	}
	return nil
}
