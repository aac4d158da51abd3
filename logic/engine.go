// Package logic implements the character script interpreter.
//
// Every character owns a small fixed stack of call frames. The handler whose
// id sits at the top of that stack receives the character's messages; a
// handler "calls" a sub-behavior by pushing a frame (Engine.Call) and the
// sub-behavior "returns" by popping it (Engine.Return). Both halves are
// announced by a message the character sends to itself, so a chain of
// nested behaviors advances one message at a time through the shared bus.
// Nothing blocks: waiting is expressed by re-checking a condition on every
// tick delivered by FlushTime.
package logic

import (
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/marionette/bus"
)

var log = commonlog.GetLogger("marionette.logic")

// Dispatch describes one handler invocation, reported to the trace hook.
type Dispatch struct {
	Character bus.CharacterID
	Handler   HandlerID
	Depth     uint8
	Message   bus.Message
}

// Engine is the simulation context: it owns the cast, the message bus and
// the game clock, and is passed explicitly to every handler. It must only be
// driven from one goroutine; the queues it owns accept producers from others.
type Engine struct {
	Program  *Program
	Services Services

	queue  *bus.MessageQueue
	events *bus.EventQueue

	cast    Cast
	autos   [MaxAutoMessages]AutoMessage
	time    uint32
	chapter uint8

	running atomic.Bool
	trace   func(Dispatch)
}

// NewEngine creates an engine for program p with no-op services.
func NewEngine(p *Program) *Engine {
	e := &Engine{
		Program:  p,
		Services: NopServices(),
		queue:    bus.NewMessageQueue(),
		events:   bus.NewEventQueue(),
	}
	e.running.Store(true)
	return e
}

// Queue returns the message queue.
func (e *Engine) Queue() *bus.MessageQueue { return e.queue }

// Events returns the raw event queue.
func (e *Engine) Events() *bus.EventQueue { return e.events }

// Character returns the mutable state of ch.
func (e *Engine) Character(ch bus.CharacterID) *CharacterState {
	return e.cast.Get(ch)
}

// Running reports whether message processing is enabled.
func (e *Engine) Running() bool { return e.running.Load() }

// SetRunning enables or halts message processing. Clearing it from inside a
// handler stops the current Flush after that handler returns.
func (e *Engine) SetRunning(v bool) { e.running.Store(v) }

// SetTrace installs a hook called before every handler invocation.
func (e *Engine) SetTrace(fn func(Dispatch)) { e.trace = fn }

// Time returns the game clock in ticks.
func (e *Engine) Time() uint32 { return e.time }

// SetTime sets the game clock.
func (e *Engine) SetTime(t uint32) { e.time = t }

// AdvanceTime moves the game clock forward.
func (e *Engine) AdvanceTime(ticks uint32) { e.time += ticks }

// Chapter returns the current chapter.
func (e *Engine) Chapter() int { return int(e.chapter) }

// Reset clears the queues, the cast, auto messages and the clock.
func (e *Engine) Reset() {
	e.queue.Clear()
	e.events.Clear()
	e.cast = Cast{}
	e.autos = [MaxAutoMessages]AutoMessage{}
	e.time = 0
	e.chapter = 0
}

// ---------------------------------------------------------------------------
// Sending
// ---------------------------------------------------------------------------

// Send queues a message from one character to another. Delivery is best
// effort: a full queue drops it.
func (e *Engine) Send(from, to bus.CharacterID, action bus.Action, param bus.Param) {
	e.queue.Add(bus.NewMessage(to, action, from, param))
}

// Broadcast queues the message for every registered character.
func (e *Engine) Broadcast(from bus.CharacterID, action bus.Action, param bus.Param) {
	for _, ch := range e.Program.order {
		e.Send(from, ch, action, param)
	}
}

// ForceMessage dispatches msg immediately, ahead of anything queued.
func (e *Engine) ForceMessage(msg bus.Message) {
	e.dispatch(msg)
}

// ---------------------------------------------------------------------------
// Draining
// ---------------------------------------------------------------------------

// Flush dispatches queued messages until the queue is empty, including
// messages queued by the handlers it runs. It stops early once the running
// flag is cleared.
func (e *Engine) Flush() {
	for e.Running() {
		msg, ok := e.queue.Get()
		if !ok {
			return
		}
		e.dispatch(msg)
	}
}

// FlushTime sends a tick to every constructed character in registration
// order, then flushes. Characters that have no active handler yet are
// skipped. Ticks are subject to auto messages like any other message.
func (e *Engine) FlushTime() {
	for _, ch := range e.Program.order {
		if !e.Running() {
			return
		}
		if e.cast.Get(ch).Active() == HandlerNone {
			continue
		}
		e.dispatch(bus.Message{Receiver: ch, Action: bus.ActionTick, Sender: bus.NoCharacter})
	}
	e.Flush()
}

func (e *Engine) dispatch(msg bus.Message) {
	if e.doAutoMessage(msg) {
		return
	}
	e.invoke(msg.Receiver, msg)
}

func (e *Engine) invoke(ch bus.CharacterID, msg bus.Message) {
	c := e.cast.Get(ch)
	id := c.Active()
	h := e.Program.lookup(ch, id)
	if h == nil {
		fatal(&ScriptError{Kind: ErrMissingHandler, Character: ch, Handler: id, Detail: msg.String()})
	}
	if e.trace != nil {
		e.trace(Dispatch{Character: ch, Handler: id, Depth: c.CurrentCall, Message: msg})
	}
	h.fn(e, ch, msg)
}
