package logic

import (
	"github.com/chazu/marionette/bus"
)

// Call pushes sub-behavior id on the stack of ch with a fresh frame holding
// args, then queues ActionStart to ch. The caller's handler stays suspended
// until the callee invokes Return.
func (e *Engine) Call(ch bus.CharacterID, id HandlerID, args ...Arg) {
	c := e.cast.Get(ch)
	e.mustHandler(ch, id)
	if int(c.CurrentCall)+1 >= MaxCallDepth {
		fatal(&ScriptError{Kind: ErrStackOverflow, Character: ch, Handler: id, Detail: e.Program.HandlerName(ch, id)})
	}
	frame := buildFrame(args)

	c.CurrentCall++
	c.Callbacks[c.CurrentCall] = id
	c.Params[c.CurrentCall] = frame

	log.Debugf("%s: call %s at depth %d", e.Program.Name(ch), e.Program.HandlerName(ch, id), c.CurrentCall)
	e.Send(ch, ch, bus.ActionStart, bus.Param{})
}

// CallByName is Call with the handler resolved by name.
func (e *Engine) CallByName(ch bus.CharacterID, name string, args ...Arg) {
	e.Call(ch, e.mustLookup(ch, name), args...)
}

// Return pops the active frame of ch and queues ActionCallback so the
// caller's handler resumes. Results are passed by writing into Caller(ch)
// before returning.
func (e *Engine) Return(ch bus.CharacterID) {
	c := e.cast.Get(ch)
	if c.CurrentCall == 0 {
		fatal(&ScriptError{Kind: ErrStackUnderflow, Character: ch, Handler: c.Active()})
	}
	c.Callbacks[c.CurrentCall] = HandlerNone
	c.CurrentCall--

	log.Debugf("%s: return to %s at depth %d", e.Program.Name(ch), e.Program.HandlerName(ch, c.Active()), c.CurrentCall)
	e.Send(ch, ch, bus.ActionCallback, bus.Param{})
}

// SetState discards the whole stack of ch and installs id as its root state,
// then queues ActionStart. Used for hard transitions such as chapter changes.
func (e *Engine) SetState(ch bus.CharacterID, id HandlerID, args ...Arg) {
	c := e.cast.Get(ch)
	e.mustHandler(ch, id)
	frame := buildFrame(args)

	c.resetStack()
	c.Callbacks[0] = id
	c.Params[0] = frame

	log.Debugf("%s: set state %s", e.Program.Name(ch), e.Program.HandlerName(ch, id))
	e.Send(ch, ch, bus.ActionStart, bus.Param{})
}

// SetStateByName is SetState with the handler resolved by name.
func (e *Engine) SetStateByName(ch bus.CharacterID, name string, args ...Arg) {
	e.SetState(ch, e.mustLookup(ch, name), args...)
}

// Frame returns the active frame of ch.
func (e *Engine) Frame(ch bus.CharacterID) *Frame {
	return e.cast.Get(ch).Frame()
}

// FrameAt returns the frame at depth of ch.
func (e *Engine) FrameAt(ch bus.CharacterID, depth int) *Frame {
	c := e.cast.Get(ch)
	if depth < 0 || depth >= MaxCallDepth {
		fatal(&ScriptError{Kind: ErrFrameOverflow, Character: ch, Handler: c.Active()})
	}
	return &c.Params[depth]
}

// Caller returns the frame of the handler that called the active one.
func (e *Engine) Caller(ch bus.CharacterID) *Frame {
	c := e.cast.Get(ch)
	if c.CurrentCall == 0 {
		fatal(&ScriptError{Kind: ErrStackUnderflow, Character: ch, Handler: c.Active()})
	}
	return &c.Params[c.CurrentCall-1]
}

// Depth returns the current call depth of ch.
func (e *Engine) Depth(ch bus.CharacterID) int {
	return int(e.cast.Get(ch).CurrentCall)
}

// ---------------------------------------------------------------------------
// Chapters
// ---------------------------------------------------------------------------

// Construct hard-resets ch and runs its chapter constructor. A character
// without one is placed in its first registered handler.
func (e *Engine) Construct(ch bus.CharacterID, chapter int) {
	c := e.cast.Get(ch)
	c.resetStack()

	cp := e.Program.chars[ch]
	switch {
	case cp == nil || len(cp.handlers) == 0:
		fatal(&ScriptError{Kind: ErrMissingHandler, Character: ch, Detail: "no handlers registered"})
	case cp.chapter != nil:
		cp.chapter(e, ch, chapter)
	default:
		e.SetState(ch, 1)
	}
}

// StartChapter constructs every registered character for chapter.
func (e *Engine) StartChapter(chapter int) {
	e.chapter = uint8(chapter)
	log.Infof("starting chapter %d", chapter)
	for _, ch := range e.Program.order {
		e.Construct(ch, chapter)
	}
}

func (e *Engine) mustHandler(ch bus.CharacterID, id HandlerID) {
	if e.Program.lookup(ch, id) == nil {
		fatal(&ScriptError{Kind: ErrMissingHandler, Character: ch, Handler: id})
	}
}

func (e *Engine) mustLookup(ch bus.CharacterID, name string) HandlerID {
	id, ok := e.Program.Lookup(ch, name)
	if !ok {
		fatal(&ScriptError{Kind: ErrMissingHandler, Character: ch, Detail: name})
	}
	return id
}
