// Package luascript lets character behaviors be authored in Lua.
//
// A script registers characters and handlers into a logic.Program:
//
//	character(3, "anna")
//	handler(3, "Main", function(ch, action, sender, param)
//	  if action == START then call(ch, "Wait", 30) end
//	end)
//
// Handlers run with the engine that dispatched the message, so the engine
// functions (call, ret, send, slot, ...) are only usable inside a handler or
// a chapter constructor.
package luascript

import (
	"fmt"

	"github.com/tliron/commonlog"
	lua "github.com/yuin/gopher-lua"

	"github.com/chazu/marionette/bus"
	"github.com/chazu/marionette/logic"
)

var log = commonlog.GetLogger("marionette.luascript")

// Script is a Lua state bound to a program. It is not safe for concurrent
// use, matching the single-goroutine engine that drives it.
type Script struct {
	L       *lua.LState
	program *logic.Program

	engine  *logic.Engine
	pending *logic.ScriptError
}

// New creates a script state that registers into p.
func New(p *logic.Program) *Script {
	s := &Script{L: lua.NewState(), program: p}
	s.init()
	return s
}

// Close releases the Lua state.
func (s *Script) Close() {
	s.L.Close()
}

// LoadString runs Lua source, typically a list of registrations.
func (s *Script) LoadString(src string) error {
	return s.loaded("<string>", s.L.DoString(src))
}

// LoadFile runs the Lua file at path.
func (s *Script) LoadFile(path string) error {
	return s.loaded(path, s.L.DoFile(path))
}

func (s *Script) loaded(name string, err error) error {
	if err == nil {
		log.Debugf("loaded %s", name)
		return nil
	}
	if p := s.takePending(); p != nil {
		return fmt.Errorf("%s: %w", name, p)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Script) takePending() *logic.ScriptError {
	p := s.pending
	s.pending = nil
	return p
}

// ---------------------------------------------------------------------------
// Handler bridge
// ---------------------------------------------------------------------------

func (s *Script) handler(name string, fn *lua.LFunction) logic.Handler {
	return func(e *logic.Engine, ch bus.CharacterID, msg bus.Message) {
		s.run(e, ch, name, fn,
			lua.LNumber(ch), lua.LNumber(msg.Action), lua.LNumber(msg.Sender), paramValue(msg.Param))
	}
}

func (s *Script) chapter(fn *lua.LFunction) logic.ChapterFunc {
	return func(e *logic.Engine, ch bus.CharacterID, chapter int) {
		s.run(e, ch, "chapter", fn, lua.LNumber(ch), lua.LNumber(chapter))
	}
}

// run calls fn with e as the current engine. Script errors raised by engine
// calls inside fn are re-panicked unchanged; Lua errors become
// ErrHandlerFailed.
func (s *Script) run(e *logic.Engine, ch bus.CharacterID, name string, fn *lua.LFunction, args ...lua.LValue) {
	prev := s.engine
	s.engine = e
	defer func() { s.engine = prev }()

	err := s.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	if err == nil {
		return
	}
	if p := s.takePending(); p != nil {
		panic(p)
	}
	se := &logic.ScriptError{
		Kind:      logic.ErrHandlerFailed,
		Character: ch,
		Handler:   e.Character(ch).Active(),
		Detail:    name + ": " + err.Error(),
	}
	log.Criticalf("script error: %s", se)
	panic(se)
}

// protect runs fn and captures a *logic.ScriptError panic.
func protect(fn func()) (err *logic.ScriptError) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*logic.ScriptError)
			if !ok {
				panic(r)
			}
			err = se
		}
	}()
	fn()
	return nil
}

// guard runs fn and turns a script error into a Lua error, remembering the
// original so it can be re-raised once control is back in Go.
func (s *Script) guard(l *lua.LState, fn func()) {
	if err := protect(fn); err != nil {
		s.pending = err
		l.RaiseError("%s", err)
	}
}

// withEngine is guard for functions that need the dispatching engine.
func (s *Script) withEngine(l *lua.LState, fn func(e *logic.Engine)) {
	e := s.engine
	if e == nil {
		l.RaiseError("engine functions are only available inside handlers")
	}
	s.guard(l, func() { fn(e) })
}

// ---------------------------------------------------------------------------
// Value conversion
// ---------------------------------------------------------------------------

func paramValue(p bus.Param) lua.LValue {
	switch p.Kind {
	case bus.ParamInt:
		return lua.LNumber(p.Int)
	case bus.ParamString:
		return lua.LString(p.Str)
	}
	return lua.LNil
}

func characterArg(l *lua.LState, argi int) bus.CharacterID {
	n := l.CheckInt(argi)
	if n < 0 || n >= bus.MaxCharacters {
		l.ArgError(argi, fmt.Sprintf("character id %d out of range", n))
	}
	return bus.CharacterID(n)
}

func paramArg(l *lua.LState, argi int) bus.Param {
	switch v := l.Get(argi).(type) {
	case lua.LNumber:
		return bus.Int(int32(v))
	case lua.LString:
		return bus.String(string(v))
	case *lua.LNilType:
		return bus.Param{}
	default:
		l.ArgError(argi, "number, string or nil expected")
	}
	return bus.Param{}
}

// frameArgs converts the Lua values from argi onwards into frame arguments.
func frameArgs(l *lua.LState, argi int) []logic.Arg {
	var args []logic.Arg
	for i := argi; i <= l.GetTop(); i++ {
		switch v := l.Get(i).(type) {
		case lua.LNumber:
			args = append(args, logic.Int(int32(v)))
		case lua.LString:
			args = append(args, logic.Str(string(v)))
		case lua.LBool:
			if v {
				args = append(args, logic.Int(1))
			} else {
				args = append(args, logic.Int(0))
			}
		default:
			l.ArgError(i, "number, string or boolean expected")
		}
	}
	return args
}
