package logic

import (
	"fmt"

	"github.com/chazu/marionette/bus"
)

// MaxCallDepth is the number of call frames per character. The root state
// lives at depth 0, so at most eight nested sub-states can be pushed on it.
const MaxCallDepth = 9

// CallbackSlots is the width of the per-character callback table. Only the
// first MaxCallDepth entries are ever used; the rest keep the persisted
// layout stable.
const CallbackSlots = 16

// Character flag bits.
const (
	CharacterBusy uint32 = 1 << iota
	CharacterHidden
)

// CharacterState is the resume point of one scripted character. It contains
// only fixed-size values so the whole cast can be copied and serialized
// without walking pointers.
type CharacterState struct {
	CurrentCall uint8
	Callbacks   [CallbackSlots]HandlerID
	Params      [MaxCallDepth]Frame

	// Scene position and bookkeeping read by handlers and the scene layer.
	Car       uint8
	Location  uint8
	Direction uint8
	Clothes   uint8
	Inventory uint8
	Position  uint16
	Flags     uint32
}

// Active returns the handler that receives the character's next message.
func (c *CharacterState) Active() HandlerID {
	return c.Callbacks[c.CurrentCall]
}

// Frame returns the frame of the active handler.
func (c *CharacterState) Frame() *Frame {
	return &c.Params[c.CurrentCall]
}

// Busy reports whether the CharacterBusy flag is set.
func (c *CharacterState) Busy() bool {
	return c.Flags&CharacterBusy != 0
}

// SetBusy sets or clears CharacterBusy.
func (c *CharacterState) SetBusy(v bool) {
	if v {
		c.Flags |= CharacterBusy
	} else {
		c.Flags &^= CharacterBusy
	}
}

// Hidden reports whether the CharacterHidden flag is set. Hidden characters
// are off scene and do not block anyone.
func (c *CharacterState) Hidden() bool {
	return c.Flags&CharacterHidden != 0
}

// SetHidden sets or clears CharacterHidden.
func (c *CharacterState) SetHidden(v bool) {
	if v {
		c.Flags |= CharacterHidden
	} else {
		c.Flags &^= CharacterHidden
	}
}

// resetStack discards every frame and callback, leaving position fields.
func (c *CharacterState) resetStack() {
	c.CurrentCall = 0
	c.Callbacks = [CallbackSlots]HandlerID{}
	c.Params = [MaxCallDepth]Frame{}
}

// Cast is the table of every character, indexed by bus.CharacterID.
type Cast struct {
	Characters [bus.MaxCharacters]CharacterState
}

// Get returns the state for ch. An id outside the table is an authoring
// error and panics.
func (c *Cast) Get(ch bus.CharacterID) *CharacterState {
	if !ch.Valid() {
		fatal(&ScriptError{Kind: ErrUnknownCharacter, Character: ch, Detail: fmt.Sprintf("id %d", ch)})
	}
	return &c.Characters[ch]
}
