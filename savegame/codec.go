// Package savegame persists the logic engine: the whole cast with every
// call frame, the auto-message table, the game clock and the message ring,
// so that a game saved in the middle of a chain of sub-behaviors resumes
// exactly where it stopped.
package savegame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/tliron/commonlog"

	"github.com/chazu/marionette/bus"
	"github.com/chazu/marionette/logic"
)

var log = commonlog.GetLogger("marionette.savegame")

// ---------------------------------------------------------------------------
// Format constants
// ---------------------------------------------------------------------------

// Magic identifies a save blob.
var Magic = [4]byte{'M', 'R', 'N', 'T'}

// Version of the binary layout.
// v1: initial layout
const Version uint32 = 1

// Save flags
const (
	FlagNone uint32 = 0
)

// HeaderSize is magic(4) + version(4) + flags(4) + time(4) + chapter(1) +
// characters(1) + autoMessages(1) + frameSlots(1).
const HeaderSize = 20

// CharacterSize is the encoded width of one logic.CharacterState:
// currentCall(1) + callbacks(16) + params(9*32*4) + car, location,
// direction, clothes, inventory(5) + position(2) + flags(4).
const CharacterSize = 1 + logic.CallbackSlots + logic.MaxCallDepth*logic.FrameSlots*4 + 5 + 2 + 4

// AutoMessageSize is receiver(1) + action(4) + target(1) + targetAction(4) +
// once(1) + param.
const AutoMessageSize = 11 + bus.ParamSize

const checksumSize = 4

// Size is the exact length of an encoded save.
const Size = HeaderSize +
	bus.MaxCharacters*CharacterSize +
	logic.MaxAutoMessages*AutoMessageSize +
	bus.EncodedRingSize +
	checksumSize

var (
	ErrInvalidMagic    = errors.New("invalid magic number: expected MRNT")
	ErrVersionMismatch = errors.New("save version mismatch")
	ErrLayoutMismatch  = errors.New("save layout mismatch")
	ErrCorruptData     = errors.New("corrupt save data")
	ErrChecksum        = errors.New("save checksum mismatch")
	ErrUnknownHandler  = errors.New("save references an unknown handler")
)

// Header is the parsed header of a save.
type Header struct {
	Magic        string
	Version      uint32
	Flags        uint32
	Time         uint32
	Chapter      uint8
	Characters   uint8
	AutoMessages uint8
	FrameSlots   uint8
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode serializes the durable state of e.
func Encode(e *logic.Engine) ([]byte, error) {
	state := e.State()

	buf := bytes.NewBuffer(make([]byte, 0, Size))
	var hdr [HeaderSize]byte
	copy(hdr[0:4], Magic[:])
	binary.LittleEndian.PutUint32(hdr[4:], Version)
	binary.LittleEndian.PutUint32(hdr[8:], FlagNone)
	binary.LittleEndian.PutUint32(hdr[12:], state.Time)
	hdr[16] = state.Chapter
	hdr[17] = bus.MaxCharacters
	hdr[18] = logic.MaxAutoMessages
	hdr[19] = logic.FrameSlots
	buf.Write(hdr[:])

	var cbuf [CharacterSize]byte
	for i := range state.Cast.Characters {
		encodeCharacter(cbuf[:], &state.Cast.Characters[i])
		buf.Write(cbuf[:])
	}

	var abuf [AutoMessageSize]byte
	for i := range state.AutoMessages {
		encodeAutoMessage(abuf[:], &state.AutoMessages[i])
		buf.Write(abuf[:])
	}

	if err := e.Queue().Save(buf); err != nil {
		return nil, err
	}

	var sum [checksumSize]byte
	binary.LittleEndian.PutUint32(sum[:], crc32.ChecksumIEEE(buf.Bytes()))
	buf.Write(sum[:])

	log.Debugf("encoded save: chapter %d, time %d, %d pending messages", state.Chapter, state.Time, e.Queue().Len())
	return buf.Bytes(), nil
}

func encodeCharacter(buf []byte, c *logic.CharacterState) {
	off := 0
	buf[off] = c.CurrentCall
	off++
	for _, id := range c.Callbacks {
		buf[off] = byte(id)
		off++
	}
	for d := range c.Params {
		for _, v := range c.Params[d] {
			binary.LittleEndian.PutUint32(buf[off:], uint32(v))
			off += 4
		}
	}
	buf[off+0] = c.Car
	buf[off+1] = c.Location
	buf[off+2] = c.Direction
	buf[off+3] = c.Clothes
	buf[off+4] = c.Inventory
	off += 5
	binary.LittleEndian.PutUint16(buf[off:], c.Position)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], c.Flags)
}

func encodeAutoMessage(buf []byte, a *logic.AutoMessage) {
	buf[0] = byte(a.Receiver)
	binary.LittleEndian.PutUint32(buf[1:], uint32(a.Action))
	buf[5] = byte(a.Target)
	binary.LittleEndian.PutUint32(buf[6:], uint32(a.TargetAction))
	buf[10] = 0
	if a.Once {
		buf[10] = 1
	}
	bus.PutParam(buf[11:], a.Param)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// ReadHeader validates and parses the header of data.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptData, len(data))
	}
	magic := string(data[0:4])
	if magic != string(Magic[:]) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}
	h := &Header{
		Magic:        magic,
		Version:      binary.LittleEndian.Uint32(data[4:]),
		Flags:        binary.LittleEndian.Uint32(data[8:]),
		Time:         binary.LittleEndian.Uint32(data[12:]),
		Chapter:      data[16],
		Characters:   data[17],
		AutoMessages: data[18],
		FrameSlots:   data[19],
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, Version, h.Version)
	}
	if h.Characters != bus.MaxCharacters || h.AutoMessages != logic.MaxAutoMessages || h.FrameSlots != logic.FrameSlots {
		return nil, fmt.Errorf("%w: %d characters, %d auto messages, %d frame slots",
			ErrLayoutMismatch, h.Characters, h.AutoMessages, h.FrameSlots)
	}
	return h, nil
}

// Decode restores e from data. Every handler id in the save must exist in
// e.Program. On any error e is left untouched.
func Decode(data []byte, e *logic.Engine) error {
	state, queue, err := decode(data, e.Program)
	if err != nil {
		log.Warningf("rejected save: %s", err)
		return err
	}
	e.Restore(*state)
	e.Queue().CopyFrom(queue)
	log.Infof("restored save: chapter %d, time %d, %d pending messages", state.Chapter, state.Time, queue.Len())
	return nil
}

func decode(data []byte, p *logic.Program) (*logic.State, *bus.MessageQueue, error) {
	state, queue, err := decodeState(data)
	if err != nil {
		return nil, nil, err
	}
	for i := range state.Cast.Characters {
		if err := validateCharacter(p, bus.CharacterID(i), &state.Cast.Characters[i]); err != nil {
			return nil, nil, err
		}
	}
	return state, queue, nil
}

// decodeState checks framing and checksum, then decodes every section
// without looking at the program the ids belong to.
func decodeState(data []byte) (*logic.State, *bus.MessageQueue, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, nil, err
	}
	if len(data) != Size {
		return nil, nil, fmt.Errorf("%w: size %d, want %d", ErrCorruptData, len(data), Size)
	}
	body := data[:Size-checksumSize]
	want := binary.LittleEndian.Uint32(data[Size-checksumSize:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, nil, fmt.Errorf("%w: %08x != %08x", ErrChecksum, got, want)
	}

	state := &logic.State{Time: h.Time, Chapter: h.Chapter}
	off := HeaderSize
	for i := range state.Cast.Characters {
		decodeCharacter(data[off:off+CharacterSize], &state.Cast.Characters[i])
		off += CharacterSize
	}

	for i := range state.AutoMessages {
		a, err := decodeAutoMessage(data[off : off+AutoMessageSize])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: auto message %d: %v", ErrCorruptData, i, err)
		}
		state.AutoMessages[i] = a
		off += AutoMessageSize
	}

	queue := bus.NewMessageQueue()
	if err := queue.Load(bytes.NewReader(data[off : off+bus.EncodedRingSize])); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if err := validateState(state, queue); err != nil {
		return nil, nil, err
	}
	return state, queue, nil
}

// validateState rejects saves that would crash the engine on the next
// flush: stacks deeper than the frame array, auto messages aimed outside the
// cast, and queued messages nobody can receive.
func validateState(state *logic.State, queue *bus.MessageQueue) error {
	for i := range state.Cast.Characters {
		if d := state.Cast.Characters[i].CurrentCall; int(d) >= logic.MaxCallDepth {
			return fmt.Errorf("%w: character %d at depth %d", ErrCorruptData, i, d)
		}
	}

	for i := range state.AutoMessages {
		a := &state.AutoMessages[i]
		if a.Target == bus.NoCharacter {
			continue
		}
		if !a.Target.Valid() {
			return fmt.Errorf("%w: auto message %d targets character %d", ErrCorruptData, i, a.Target)
		}
		if a.Receiver != bus.NoCharacter && !a.Receiver.Valid() {
			return fmt.Errorf("%w: auto message %d filters character %d", ErrCorruptData, i, a.Receiver)
		}
	}

	for i, m := range queue.Peek() {
		if !m.Receiver.Valid() {
			return fmt.Errorf("%w: queued message %d to character %d", ErrCorruptData, i, m.Receiver)
		}
		if state.Cast.Characters[m.Receiver].Active() != logic.HandlerNone || intercepted(state, m) {
			continue
		}
		return fmt.Errorf("%w: queued message %d to inactive character %d", ErrCorruptData, i, m.Receiver)
	}
	return nil
}

func intercepted(state *logic.State, m bus.Message) bool {
	for i := range state.AutoMessages {
		if state.AutoMessages[i].Matches(m) {
			return true
		}
	}
	return false
}

func decodeCharacter(buf []byte, c *logic.CharacterState) {
	off := 0
	c.CurrentCall = buf[off]
	off++
	for i := range c.Callbacks {
		c.Callbacks[i] = logic.HandlerID(buf[off])
		off++
	}
	for d := range c.Params {
		for s := range c.Params[d] {
			c.Params[d][s] = int32(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		}
	}
	c.Car = buf[off+0]
	c.Location = buf[off+1]
	c.Direction = buf[off+2]
	c.Clothes = buf[off+3]
	c.Inventory = buf[off+4]
	off += 5
	c.Position = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.Flags = binary.LittleEndian.Uint32(buf[off:])
}

func validateCharacter(p *logic.Program, ch bus.CharacterID, c *logic.CharacterState) error {
	if ch == bus.NoCharacter {
		if c.Callbacks[0] != logic.HandlerNone || c.CurrentCall != 0 {
			return fmt.Errorf("%w: reserved character slot in use", ErrCorruptData)
		}
		return nil
	}
	for d := 0; d <= int(c.CurrentCall); d++ {
		id := c.Callbacks[d]
		if id == logic.HandlerNone && d == 0 && c.CurrentCall == 0 {
			continue
		}
		if int(id) == 0 || int(id) > p.HandlerCount(ch) {
			return fmt.Errorf("%w: character %d depth %d id %d", ErrUnknownHandler, ch, d, id)
		}
	}
	return nil
}

func decodeAutoMessage(buf []byte) (logic.AutoMessage, error) {
	param, err := bus.ReadParam(buf[11:])
	if err != nil {
		return logic.AutoMessage{}, err
	}
	return logic.AutoMessage{
		Receiver:     bus.CharacterID(buf[0]),
		Action:       bus.Action(binary.LittleEndian.Uint32(buf[1:])),
		Target:       bus.CharacterID(buf[5]),
		TargetAction: bus.Action(binary.LittleEndian.Uint32(buf[6:])),
		Once:         buf[10] != 0,
		Param:        param,
	}, nil
}
