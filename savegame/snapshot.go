package savegame

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/marionette/bus"
	"github.com/chazu/marionette/logic"
)

// cborEncMode uses canonical encoding so identical states produce identical
// bytes and snapshots can be diffed or hashed.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("savegame: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is a readable rendering of a save, for tools and bug reports.
// It is not a save format: it cannot be loaded back into an engine.
type Snapshot struct {
	Version      uint32              `cbor:"version"`
	Time         uint32              `cbor:"time"`
	Chapter      uint8               `cbor:"chapter"`
	Characters   []CharacterSnapshot `cbor:"characters"`
	AutoMessages []AutoSnapshot      `cbor:"autoMessages,omitempty"`
	Messages     []MessageSnapshot   `cbor:"messages,omitempty"`
}

// CharacterSnapshot describes one constructed character.
type CharacterSnapshot struct {
	ID       uint8           `cbor:"id"`
	Name     string          `cbor:"name,omitempty"`
	Stack    []FrameSnapshot `cbor:"stack"`
	Car      uint8           `cbor:"car"`
	Location uint8           `cbor:"location"`
	Position uint16          `cbor:"position"`
	Flags    uint32          `cbor:"flags,omitempty"`
}

// FrameSnapshot is one call frame; trailing zero slots are omitted.
type FrameSnapshot struct {
	Handler uint8   `cbor:"handler"`
	Name    string  `cbor:"name,omitempty"`
	Slots   []int32 `cbor:"slots,omitempty"`
}

// AutoSnapshot is one installed auto message.
type AutoSnapshot struct {
	Receiver     uint8  `cbor:"receiver"`
	Action       uint32 `cbor:"action"`
	Target       uint8  `cbor:"target"`
	TargetAction uint32 `cbor:"targetAction"`
	Param        string `cbor:"param,omitempty"`
	Once         bool   `cbor:"once,omitempty"`
}

// MessageSnapshot is one pending message, oldest first.
type MessageSnapshot struct {
	Receiver uint8  `cbor:"receiver"`
	Action   uint32 `cbor:"action"`
	Sender   uint8  `cbor:"sender"`
	Param    string `cbor:"param,omitempty"`
}

// NewSnapshot renders the state of e. Handler and character names come from
// e.Program when it knows them.
func NewSnapshot(e *logic.Engine) *Snapshot {
	state := e.State()
	return buildSnapshot(&state, e.Queue().Peek(), e.Program)
}

// SnapshotFromSave decodes data and renders it without touching any engine.
// p may be nil, in which case names are left empty.
func SnapshotFromSave(data []byte, p *logic.Program) (*Snapshot, error) {
	if p == nil {
		p = logic.NewProgram()
	}
	state, queue, err := decodeState(data)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(state, queue.Peek(), p), nil
}

func buildSnapshot(state *logic.State, pending []bus.Message, p *logic.Program) *Snapshot {
	s := &Snapshot{Version: Version, Time: state.Time, Chapter: state.Chapter}

	for i := range state.Cast.Characters {
		c := &state.Cast.Characters[i]
		ch := bus.CharacterID(i)
		if c.Callbacks[0] == logic.HandlerNone {
			continue
		}
		cs := CharacterSnapshot{
			ID:       uint8(i),
			Car:      c.Car,
			Location: c.Location,
			Position: c.Position,
			Flags:    c.Flags,
		}
		if p.Registered(ch) {
			cs.Name = p.Name(ch)
		}
		for d := 0; d <= int(c.CurrentCall); d++ {
			fs := FrameSnapshot{Handler: uint8(c.Callbacks[d]), Slots: trimSlots(c.Params[d][:])}
			if p.Registered(ch) {
				fs.Name = p.HandlerName(ch, c.Callbacks[d])
			}
			cs.Stack = append(cs.Stack, fs)
		}
		s.Characters = append(s.Characters, cs)
	}

	for _, a := range state.AutoMessages {
		if a.Target == bus.NoCharacter {
			continue
		}
		s.AutoMessages = append(s.AutoMessages, AutoSnapshot{
			Receiver:     uint8(a.Receiver),
			Action:       uint32(a.Action),
			Target:       uint8(a.Target),
			TargetAction: uint32(a.TargetAction),
			Param:        paramText(a.Param),
			Once:         a.Once,
		})
	}

	for _, m := range pending {
		s.Messages = append(s.Messages, MessageSnapshot{
			Receiver: uint8(m.Receiver),
			Action:   uint32(m.Action),
			Sender:   uint8(m.Sender),
			Param:    paramText(m.Param),
		})
	}
	return s
}

func trimSlots(slots []int32) []int32 {
	n := len(slots)
	for n > 0 && slots[n-1] == 0 {
		n--
	}
	if n == 0 {
		return nil
	}
	return append([]int32(nil), slots[:n]...)
}

func paramText(p bus.Param) string {
	if p.IsZero() {
		return ""
	}
	return p.String()
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("savegame: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
