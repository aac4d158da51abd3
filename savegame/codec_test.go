package savegame

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/chazu/marionette/behavior"
	"github.com/chazu/marionette/bus"
	"github.com/chazu/marionette/logic"
)

const (
	anna  bus.CharacterID = 3
	boris bus.CharacterID = 5
)

// heldDialog records lines; the test decides when they end.
type heldDialog struct {
	played []string
}

func (d *heldDialog) PlayDialog(ch bus.CharacterID, name string) {
	d.played = append(d.played, name)
}

// newCast builds the same program every time, as a freshly started game
// would. Anna walks down the corridor into Boris and has to ask him to move.
func newCast() (*logic.Engine, *heldDialog) {
	p := logic.NewProgram()
	p.Character(anna, "Anna")
	p.Character(boris, "Boris")

	var set behavior.Set
	p.Handle(anna, "Main", func(e *logic.Engine, ch bus.CharacterID, msg bus.Message) {
		switch msg.Action {
		case bus.ActionStart:
			set.StartWalk(e, 20, 5)
		case bus.ActionCallback:
			e.Frame(ch).SetInt(0, e.Frame(ch).Int(0)+1)
			e.Send(ch, boris, 300, bus.String("arrived"))
		}
	})
	set = behavior.Install(p, anna)

	p.Handle(boris, "Stand", func(e *logic.Engine, ch bus.CharacterID, msg bus.Message) {
		if msg.Action == 300 {
			e.Frame(ch).SetString(0, msg.Param.Str)
		}
	})
	p.Chapter(anna, func(e *logic.Engine, ch bus.CharacterID, chapter int) {
		c := e.Character(ch)
		c.Car, c.Location, c.Position = 4, 1, 0
		e.SetStateByName(ch, "Main")
	})
	p.Chapter(boris, func(e *logic.Engine, ch bus.CharacterID, chapter int) {
		c := e.Character(ch)
		c.Car, c.Location, c.Position = 4, 1, 10
		e.SetStateByName(ch, "Stand")
	})

	e := logic.NewEngine(p)
	d := &heldDialog{}
	e.Services.Dialog = d
	return e, d
}

type step func(e *logic.Engine)

var script = []step{
	func(e *logic.Engine) { e.StartChapter(1) },
	func(e *logic.Engine) { e.Flush() },
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() }, // 0 -> 5, blocked at 10
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() },
	// save point: anna is Main -> Walk -> WaitClear -> Dialog and the end
	// of her line is still sitting in the ring.
	func(e *logic.Engine) { e.Send(bus.NoCharacter, anna, bus.ActionEndSound, bus.Param{}) },
	func(e *logic.Engine) { e.Flush() },
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() },
	func(e *logic.Engine) { e.Character(boris).Position = 90 },
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() },
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() },
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() },
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() },
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() },
	func(e *logic.Engine) { e.AdvanceTime(1); e.FlushTime() },
}

const savePoint = 5

func run(e *logic.Engine, steps []step) []logic.Dispatch {
	var trace []logic.Dispatch
	e.SetTrace(func(d logic.Dispatch) { trace = append(trace, d) })
	for _, s := range steps {
		s(e)
	}
	e.SetTrace(nil)
	return trace
}

func TestSaveLoadResumesMidChain(t *testing.T) {
	// Reference run, never saved.
	ref, _ := newCast()
	run(ref, script[:savePoint])
	want := run(ref, script[savePoint:])

	// Second run, saved at the same point and resumed in a brand new engine.
	first, _ := newCast()
	run(first, script[:savePoint])

	if d := first.Depth(anna); d != 3 {
		t.Fatalf("depth at save point = %d, want 3", d)
	}
	if first.Queue().Len() == 0 {
		t.Fatal("expected an in-flight message at the save point")
	}

	data, err := Encode(first)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != Size {
		t.Fatalf("len = %d, want %d", len(data), Size)
	}

	second, _ := newCast()
	if err := Decode(data, second); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := run(second, script[savePoint:])

	if len(got) != len(want) {
		t.Fatalf("resumed run made %d dispatches, reference %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dispatch %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if ref.State() != second.State() {
		t.Error("final states differ")
	}
	if s := second.Frame(boris).String(0); s != "arrived" {
		t.Errorf("boris slot = %q, want arrived", s)
	}
	if second.Character(anna).Position != 20 {
		t.Errorf("anna position = %d", second.Character(anna).Position)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a, _ := newCast()
	b, _ := newCast()
	run(a, script)
	run(b, script)
	da, _ := Encode(a)
	db, _ := Encode(b)
	if string(da) != string(db) {
		t.Error("same run encoded differently")
	}
}

func TestAutoMessagesAndClockRoundTrip(t *testing.T) {
	e, _ := newCast()
	run(e, script[:2])
	e.SetTime(123456)
	e.AddAutoMessage(logic.AutoMessage{Receiver: anna, Action: bus.ActionKnock, Target: boris, TargetAction: 301, Param: bus.String("knock"), Once: true})

	data, err := Encode(e)
	if err != nil {
		t.Fatal(err)
	}
	h, err := ReadHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if h.Time != 123456 || h.Chapter != 1 {
		t.Errorf("header = %+v", h)
	}

	restored, _ := newCast()
	if err := Decode(data, restored); err != nil {
		t.Fatal(err)
	}
	autos := restored.AutoMessages()
	if len(autos) != 1 || autos[0].Param.Str != "knock" || !autos[0].Once || autos[0].TargetAction != 301 {
		t.Errorf("auto messages = %+v", autos)
	}
	if restored.Time() != 123456 || restored.Chapter() != 1 {
		t.Errorf("time %d chapter %d", restored.Time(), restored.Chapter())
	}
}

// reseal recomputes the checksum after a test edits the payload.
func reseal(data []byte) {
	binary.LittleEndian.PutUint32(data[Size-checksumSize:], crc32.ChecksumIEEE(data[:Size-checksumSize]))
}

func TestDecodeFailuresLeaveEngineUntouched(t *testing.T) {
	src, _ := newCast()
	run(src, script[:savePoint])
	good, err := Encode(src)
	if err != nil {
		t.Fatal(err)
	}

	charOffset := func(ch bus.CharacterID) int { return HeaderSize + int(ch)*CharacterSize }
	autoOffset := func(i int) int { return HeaderSize + bus.MaxCharacters*CharacterSize + i*AutoMessageSize }
	ringOffset := autoOffset(logic.MaxAutoMessages)
	// firstQueued is the offset of the oldest live message in the ring.
	firstQueued := func(b []byte) int {
		head := int(binary.LittleEndian.Uint16(b[ringOffset+2:]))
		return ringOffset + 6 + head*bus.MessageSlotSize
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrInvalidMagic},
		{"version", func(b []byte) []byte { b[4] = 99; return b }, ErrVersionMismatch},
		{"layout", func(b []byte) []byte { b[17] = 12; return b }, ErrLayoutMismatch},
		{"truncated", func(b []byte) []byte { return b[:Size-100] }, ErrCorruptData},
		{"short", func(b []byte) []byte { return b[:8] }, ErrCorruptData},
		{"checksum", func(b []byte) []byte { b[HeaderSize+50] ^= 0xFF; return b }, ErrChecksum},
		{"depth", func(b []byte) []byte {
			b[charOffset(anna)] = logic.MaxCallDepth
			reseal(b)
			return b
		}, ErrCorruptData},
		{"unknown handler", func(b []byte) []byte {
			b[charOffset(anna)+1] = 200
			reseal(b)
			return b
		}, ErrUnknownHandler},
		{"unregistered character", func(b []byte) []byte {
			b[charOffset(9)+1] = 1
			reseal(b)
			return b
		}, ErrUnknownHandler},
		{"ring", func(b []byte) []byte {
			b[ringOffset] = 7
			reseal(b)
			return b
		}, ErrCorruptData},
		{"queued to no character", func(b []byte) []byte {
			b[firstQueued(b)] = 0
			reseal(b)
			return b
		}, ErrCorruptData},
		{"queued outside the cast", func(b []byte) []byte {
			b[firstQueued(b)] = bus.MaxCharacters
			reseal(b)
			return b
		}, ErrCorruptData},
		{"queued to inactive character", func(b []byte) []byte {
			b[firstQueued(b)] = 9
			reseal(b)
			return b
		}, ErrCorruptData},
		{"auto message target", func(b []byte) []byte {
			off := autoOffset(0)
			binary.LittleEndian.PutUint32(b[off+1:], uint32(bus.ActionEndSound))
			b[off+5] = 200
			reseal(b)
			return b
		}, ErrCorruptData},
		{"auto message receiver", func(b []byte) []byte {
			off := autoOffset(0)
			b[off] = 200
			b[off+5] = byte(boris)
			reseal(b)
			return b
		}, ErrCorruptData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), good...))

			target, _ := newCast()
			run(target, script[:2])
			beforeState := target.State()
			beforeQueue := target.Queue().Peek()

			err := Decode(data, target)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
			if target.State() != beforeState {
				t.Error("engine state changed by failed load")
			}
			after := target.Queue().Peek()
			if len(after) != len(beforeQueue) {
				t.Errorf("queue changed by failed load: %d -> %d", len(beforeQueue), len(after))
			}
		})
	}
}

func TestDecodeAcceptsInterceptedMessageToInactiveCharacter(t *testing.T) {
	src, _ := newCast()
	run(src, script[:savePoint])
	src.AddAutoMessage(logic.AutoMessage{Action: 400, Target: boris, TargetAction: 300})
	src.Send(anna, 9, 400, bus.String("redirected"))
	data, err := Encode(src)
	if err != nil {
		t.Fatal(err)
	}

	dst, _ := newCast()
	if err := Decode(data, dst); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dst.Flush()
	if got := dst.Frame(boris).String(0); got != "redirected" {
		t.Errorf("boris slot 0 = %q, want the redirected param", got)
	}
}
