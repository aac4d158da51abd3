package logic

import (
	"github.com/chazu/marionette/bus"
)

// MaxAutoMessages is the size of the auto-message table.
const MaxAutoMessages = 32

// AutoMessage rewrites a delivery before normal dispatch: when a message with
// Action reaches Receiver (or any receiver, when Receiver is
// bus.NoCharacter), it is swallowed and a message with TargetAction is queued
// to Target instead. A zero Param forwards the intercepted message's param.
type AutoMessage struct {
	Receiver     bus.CharacterID
	Action       bus.Action
	Target       bus.CharacterID
	TargetAction bus.Action
	Param        bus.Param
	Once         bool
}

func (a *AutoMessage) empty() bool {
	return a.Target == bus.NoCharacter
}

// Matches reports whether a intercepts msg.
func (a *AutoMessage) Matches(msg bus.Message) bool {
	return !a.empty() && a.Action == msg.Action &&
		(a.Receiver == bus.NoCharacter || a.Receiver == msg.Receiver)
}

// AddAutoMessage installs a into the first free slot. It returns false when
// the table is full or a has no target.
func (e *Engine) AddAutoMessage(a AutoMessage) bool {
	if !a.Target.Valid() {
		log.Warningf("auto message for action %d has no valid target", a.Action)
		return false
	}
	for i := range e.autos {
		if e.autos[i].empty() {
			e.autos[i] = a
			return true
		}
	}
	log.Warningf("auto message table full, ignoring action %d -> %d", a.Action, a.Target)
	return false
}

// RemoveAutoMessages deletes every entry matching receiver and action and
// returns how many were removed.
func (e *Engine) RemoveAutoMessages(receiver bus.CharacterID, action bus.Action) int {
	n := 0
	for i := range e.autos {
		a := &e.autos[i]
		if !a.empty() && a.Receiver == receiver && a.Action == action {
			*a = AutoMessage{}
			n++
		}
	}
	return n
}

// ClearAutoMessages empties the table.
func (e *Engine) ClearAutoMessages() {
	e.autos = [MaxAutoMessages]AutoMessage{}
}

// AutoMessages returns the installed entries in slot order.
func (e *Engine) AutoMessages() []AutoMessage {
	var out []AutoMessage
	for _, a := range e.autos {
		if !a.empty() {
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) doAutoMessage(msg bus.Message) bool {
	for i := range e.autos {
		a := &e.autos[i]
		if !a.Matches(msg) {
			continue
		}
		param := a.Param
		if param.IsZero() {
			param = msg.Param
		}
		e.Send(msg.Receiver, a.Target, a.TargetAction, param)
		if a.Once {
			*a = AutoMessage{}
		}
		return true
	}
	return false
}
