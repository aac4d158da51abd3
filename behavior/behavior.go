// Package behavior provides sub-behaviors shared by many characters:
// waiting, walking along a corridor, waiting for a clear path and speaking
// a dialog line. Each one is a handler pair used through logic.Engine.Call
// and returns to its caller with logic.Engine.Return.
package behavior

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/marionette/bus"
	"github.com/chazu/marionette/logic"
)

var log = commonlog.GetLogger("marionette.behavior")

// Handler names as registered in a character's dispatch table.
const (
	NameWait      = "DoWait"
	NameWalk      = "DoWalk"
	NameWaitClear = "DoWaitClear"
	NameDialog    = "DoDialog"
)

// Frame slots used by the handlers below.
const (
	slotArg0     = 0
	slotArg1     = 1
	slotDeadline = 8
	slotDone     = 9
	slotName     = 0 // dialog name, StringSlots wide
)

// ExcuseMe is the dialog line played while waiting for a blocked path.
const ExcuseMe = "excuse-me"

// Set holds the ids of the behaviors installed for one character.
type Set struct {
	Character bus.CharacterID
	Wait      logic.HandlerID
	Walk      logic.HandlerID
	WaitClear logic.HandlerID
	Dialog    logic.HandlerID
}

// Install appends the shared behaviors to the dispatch table of ch. Ids are
// assigned in a fixed order so saved games stay compatible.
func Install(p *logic.Program, ch bus.CharacterID) Set {
	s := &Set{Character: ch}
	s.Wait = p.Handle(ch, NameWait, doWait)
	s.Walk = p.Handle(ch, NameWalk, s.doWalk)
	s.WaitClear = p.Handle(ch, NameWaitClear, s.doWaitClear)
	s.Dialog = p.Handle(ch, NameDialog, doDialog)
	return *s
}

// StartWait pauses ch for ticks game ticks.
func (s Set) StartWait(e *logic.Engine, ticks int32) {
	e.Call(s.Character, s.Wait, logic.Int(ticks))
}

// StartWalk moves ch to position, speed units per tick.
func (s Set) StartWalk(e *logic.Engine, position, speed int32) {
	e.Call(s.Character, s.Walk, logic.Int(position), logic.Int(speed))
}

// Say plays a dialog line and resumes the caller when it ends.
func (s Set) Say(e *logic.Engine, name string) {
	e.Call(s.Character, s.Dialog, logic.Str(name))
}

// doWait: arg0 = ticks.
func doWait(e *logic.Engine, ch bus.CharacterID, msg bus.Message) {
	f := e.Frame(ch)
	switch msg.Action {
	case bus.ActionStart:
		f.SetInt(slotDeadline, int32(e.Time())+f.Int(slotArg0))
	case bus.ActionTick:
		if int32(e.Time()) >= f.Int(slotDeadline) {
			e.Return(ch)
		}
	}
}

// doWalk: arg0 = target position, arg1 = speed.
func (s *Set) doWalk(e *logic.Engine, ch bus.CharacterID, msg bus.Message) {
	c := e.Character(ch)
	f := e.Frame(ch)
	switch msg.Action {
	case bus.ActionStart:
		if f.Int(slotArg1) <= 0 {
			f.SetInt(slotArg1, 1)
		}
		c.SetBusy(true)
		s.stepWalk(e, ch)
	case bus.ActionCallback, bus.ActionTick:
		s.stepWalk(e, ch)
	}
}

func (s *Set) stepWalk(e *logic.Engine, ch bus.CharacterID) {
	c := e.Character(ch)
	f := e.Frame(ch)
	target := f.Int(slotArg0)
	pos := int32(c.Position)
	if pos == target {
		c.SetBusy(false)
		e.Return(ch)
		return
	}

	next := pos + f.Int(slotArg1)
	if target < pos {
		next = pos - f.Int(slotArg1)
	}
	if (target-pos > 0) != (target-next > 0) || next == target {
		next = target
	}

	if Blocked(e, ch, next) {
		log.Debugf("%s blocked at %d", e.Program.Name(ch), next)
		e.Call(ch, s.WaitClear, logic.Int(next))
		return
	}
	c.Position = uint16(next)
}

// doWaitClear: arg0 = position. Asks the way clear once, then polls.
func (s *Set) doWaitClear(e *logic.Engine, ch bus.CharacterID, msg bus.Message) {
	f := e.Frame(ch)
	switch msg.Action {
	case bus.ActionStart:
		e.Call(ch, s.Dialog, logic.Str(ExcuseMe))
	case bus.ActionCallback:
		f.SetBool(slotDone, true)
	case bus.ActionTick:
		if f.Bool(slotDone) && !Blocked(e, ch, f.Int(slotArg0)) {
			e.Return(ch)
		}
	}
}

// doDialog: name packed at slot 0.
func doDialog(e *logic.Engine, ch bus.CharacterID, msg bus.Message) {
	switch msg.Action {
	case bus.ActionStart:
		e.Services.Dialog.PlayDialog(ch, e.Frame(ch).String(slotName))
	case bus.ActionEndSound:
		e.Return(ch)
	}
}

// Blocked reports whether another registered, visible character stands at
// position in the same car and location as ch.
func Blocked(e *logic.Engine, ch bus.CharacterID, position int32) bool {
	self := e.Character(ch)
	for _, other := range e.Program.Characters() {
		if other == ch {
			continue
		}
		o := e.Character(other)
		if o.Active() == logic.HandlerNone || o.Hidden() {
			continue
		}
		if o.Car == self.Car && o.Location == self.Location && int32(o.Position) == position {
			return true
		}
	}
	return false
}
