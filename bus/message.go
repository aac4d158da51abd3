// Package bus implements the message and event rings shared by the logic
// engine and its producers (scene, input and sound subsystems).
//
// Both rings are fixed-capacity circular buffers of RingSize slots. A ring
// accepts at most RingSize-1 live entries by default; anything enqueued past
// that limit is dropped without error, so saved games replay identically.
package bus

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("marionette.bus")

// CharacterID identifies a scripted character. Zero is reserved for the
// engine itself and is used as the sender of synthetic messages.
type CharacterID uint8

// NoCharacter is the sender of engine-generated messages such as ticks.
const NoCharacter CharacterID = 0

// MaxCharacters bounds the character table.
const MaxCharacters = 40

// Valid reports whether id addresses a slot in the character table.
func (id CharacterID) Valid() bool {
	return id != NoCharacter && int(id) < MaxCharacters
}

// Action is the numeric code carried by a message.
type Action uint32

// Well-known actions. The numbers are persisted in saved message rings and
// must not change.
const (
	ActionTick      Action = 0  // periodic poll, sent by FlushTime
	ActionEndSound  Action = 2  // a sound or dialog line finished
	ActionKnock     Action = 8  // someone knocked on a door
	ActionOpenDoor  Action = 9  // a door was opened
	ActionStart     Action = 12 // first message of a freshly pushed frame
	ActionDrawScene Action = 17 // the scene layer finished drawing
	ActionCallback  Action = 18 // a sub-state returned to its caller
)

var actionNames = map[Action]string{
	ActionTick:      "tick",
	ActionEndSound:  "end-sound",
	ActionKnock:     "knock",
	ActionOpenDoor:  "open-door",
	ActionStart:     "start",
	ActionDrawScene: "draw-scene",
	ActionCallback:  "callback",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action%d", uint32(a))
}

// ---------------------------------------------------------------------------
// Param: int or short string payload
// ---------------------------------------------------------------------------

// ParamKind tags the variant stored in a Param.
type ParamKind uint8

const (
	ParamNone ParamKind = iota
	ParamInt
	ParamString
)

// MaxParamString is the fixed width of a string payload in bytes.
const MaxParamString = 16

// Param is the variant payload of a message.
type Param struct {
	Kind ParamKind
	Int  int32
	Str  string
}

// Int returns an integer param.
func Int(v int32) Param {
	return Param{Kind: ParamInt, Int: v}
}

// String returns a string param. Strings longer than MaxParamString bytes
// are truncated so the payload fits its fixed-width slot.
func String(s string) Param {
	if len(s) > MaxParamString {
		s = s[:MaxParamString]
	}
	return Param{Kind: ParamString, Str: s}
}

// IsZero reports whether the param carries nothing.
func (p Param) IsZero() bool {
	return p.Kind == ParamNone
}

func (p Param) String() string {
	switch p.Kind {
	case ParamInt:
		return fmt.Sprintf("%d", p.Int)
	case ParamString:
		return fmt.Sprintf("%q", p.Str)
	default:
		return "-"
	}
}

// ---------------------------------------------------------------------------
// Message
// ---------------------------------------------------------------------------

// Message is a single notification travelling on the bus. A message is never
// modified once enqueued.
type Message struct {
	Receiver CharacterID
	Action   Action
	Sender   CharacterID
	Param    Param
}

// NewMessage builds a message.
func NewMessage(receiver CharacterID, action Action, sender CharacterID, param Param) Message {
	return Message{Receiver: receiver, Action: action, Sender: sender, Param: param}
}

func (m Message) String() string {
	return fmt.Sprintf("msg{to=%d action=%d from=%d param=%s}", m.Receiver, m.Action, m.Sender, m.Param)
}
