// savedump prints the contents of marionette save games.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/marionette/bus"
	"github.com/chazu/marionette/config"
	"github.com/chazu/marionette/logic"
	"github.com/chazu/marionette/luascript"
	"github.com/chazu/marionette/savegame"
)

var log = commonlog.GetLogger("marionette.savedump")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	dbPath := flag.String("db", "", "Save database (default from marionette.toml)")
	list := flag.Bool("list", false, "List save slots in the database")
	slot := flag.Int("slot", -1, "Dump the latest save of a slot")
	id := flag.String("id", "", "Dump the save with this id")
	asCBOR := flag.Bool("cbor", false, "Write the snapshot as canonical CBOR to stdout")
	script := flag.String("script", "", "Lua script whose handler names annotate the dump")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: savedump [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Prints a save file, or a save from the slot database.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  savedump game.sav                 # Dump a save file\n")
		fmt.Fprintf(os.Stderr, "  savedump -list                    # List slots in the configured database\n")
		fmt.Fprintf(os.Stderr, "  savedump -slot 1 -script cast.lua # Latest save of slot 1, with handler names\n")
		fmt.Fprintf(os.Stderr, "  savedump -cbor game.sav > game.cbor\n")
	}
	flag.Parse()

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if *verbose {
		cfg.Log.Verbosity = 2
	}
	cfg.ConfigureLogging()

	if *dbPath == "" {
		*dbPath = cfg.DatabasePath()
	}

	if err := run(context.Background(), options{
		db:     *dbPath,
		list:   *list,
		slot:   *slot,
		id:     *id,
		cbor:   *asCBOR,
		script: *script,
		paths:  flag.Args(),
	}, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	db     string
	list   bool
	slot   int
	id     string
	cbor   bool
	script string
	paths  []string
}

func run(ctx context.Context, opts options, w io.Writer) error {
	var program *logic.Program
	if opts.script != "" {
		program = logic.NewProgram()
		s := luascript.New(program)
		defer s.Close()
		if err := s.LoadFile(opts.script); err != nil {
			return err
		}
	}

	switch {
	case len(opts.paths) > 0:
		for _, path := range opts.paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			log.Debugf("read %s (%d bytes)", path, len(data))
			if err := dump(w, path, data, program, opts.cbor); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil

	case opts.list || opts.slot >= 0 || opts.id != "":
		store, err := savegame.OpenStore(opts.db)
		if err != nil {
			return err
		}
		defer store.Close()

		if opts.list {
			return listSlots(ctx, w, store)
		}
		var (
			data []byte
			info *savegame.SlotInfo
		)
		if opts.id != "" {
			data, info, err = store.Get(ctx, opts.id)
		} else {
			data, info, err = store.Latest(ctx, opts.slot)
		}
		if err != nil {
			return err
		}
		return dump(w, info.ID, data, program, opts.cbor)
	}

	return fmt.Errorf("nothing to dump: give a file, -list, -slot or -id")
}

func listSlots(ctx context.Context, w io.Writer, store *savegame.Store) error {
	slots, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range slots {
		fmt.Fprintf(w, "%-36s slot %-3d chapter %-3d time %-8d %s %q\n",
			s.ID, s.Slot, s.Chapter, s.Time, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Label)
	}
	return nil
}

func dump(w io.Writer, name string, data []byte, p *logic.Program, asCBOR bool) error {
	snap, err := savegame.SnapshotFromSave(data, p)
	if err != nil {
		return err
	}
	if asCBOR {
		out, err := savegame.MarshalSnapshot(snap)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	hdr, err := savegame.ReadHeader(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s v%d, chapter %d, time %d\n", name, hdr.Magic, hdr.Version, snap.Chapter, snap.Time)
	for _, c := range snap.Characters {
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("character %d", c.ID)
		}
		fmt.Fprintf(w, "  %s: car %d, location %d, position %d\n", label, c.Car, c.Location, c.Position)
		for depth, f := range c.Stack {
			fmt.Fprintf(w, "    %d %s %s\n", depth, handlerLabel(f), slotsText(f.Slots))
		}
	}
	for _, a := range snap.AutoMessages {
		once := ""
		if a.Once {
			once = " once"
		}
		fmt.Fprintf(w, "  auto %d/%s -> %d/%s%s\n", a.Receiver, bus.Action(a.Action), a.Target, bus.Action(a.TargetAction), once)
	}
	for _, m := range snap.Messages {
		fmt.Fprintf(w, "  queued %d -> %d %s %s\n", m.Sender, m.Receiver, bus.Action(m.Action), m.Param)
	}
	return nil
}

func handlerLabel(f savegame.FrameSnapshot) string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("#%d", f.Handler)
}

func slotsText(slots []int32) string {
	if len(slots) == 0 {
		return ""
	}
	parts := make([]string, len(slots))
	for i, v := range slots {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
