package luascript

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/chazu/marionette/bus"
	"github.com/chazu/marionette/logic"
)

func luaRegister(l *lua.LState, name string, f func(*lua.LState) int) {
	l.Register(name, f)
}

var actionNames = map[string]bus.Action{
	"TICK":       bus.ActionTick,
	"END_SOUND":  bus.ActionEndSound,
	"KNOCK":      bus.ActionKnock,
	"OPEN_DOOR":  bus.ActionOpenDoor,
	"START":      bus.ActionStart,
	"DRAW_SCENE": bus.ActionDrawScene,
	"CALLBACK":   bus.ActionCallback,
}

func (s *Script) init() {
	l := s.L
	for name, action := range actionNames {
		l.SetGlobal(name, lua.LNumber(action))
	}

	// Registration
	luaRegister(l, "character", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		name := l.CheckString(2)
		s.guard(l, func() { s.program.Character(ch, name) })
		return 0
	})
	luaRegister(l, "handler", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		name := l.CheckString(2)
		fn := l.CheckFunction(3)
		var id logic.HandlerID
		s.guard(l, func() { id = s.program.Handle(ch, name, s.handler(name, fn)) })
		l.Push(lua.LNumber(id))
		return 1
	})
	luaRegister(l, "chapter", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		fn := l.CheckFunction(2)
		s.guard(l, func() { s.program.Chapter(ch, s.chapter(fn)) })
		return 0
	})

	// Call stack
	luaRegister(l, "call", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		name := l.CheckString(2)
		args := frameArgs(l, 3)
		s.withEngine(l, func(e *logic.Engine) { e.CallByName(ch, name, args...) })
		return 0
	})
	luaRegister(l, "ret", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		s.withEngine(l, func(e *logic.Engine) { e.Return(ch) })
		return 0
	})
	luaRegister(l, "setstate", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		name := l.CheckString(2)
		args := frameArgs(l, 3)
		s.withEngine(l, func(e *logic.Engine) { e.SetStateByName(ch, name, args...) })
		return 0
	})
	luaRegister(l, "depth", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		var d int
		s.withEngine(l, func(e *logic.Engine) { d = e.Depth(ch) })
		l.Push(lua.LNumber(d))
		return 1
	})

	// Frame slots. Slot indices are zero-based like the frame itself.
	luaRegister(l, "slot", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		i := l.CheckInt(2)
		var v int32
		s.withEngine(l, func(e *logic.Engine) { v = e.Frame(ch).Int(i) })
		l.Push(lua.LNumber(v))
		return 1
	})
	luaRegister(l, "setslot", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		i := l.CheckInt(2)
		v := int32(l.CheckInt(3))
		s.withEngine(l, func(e *logic.Engine) { e.Frame(ch).SetInt(i, v) })
		return 0
	})
	luaRegister(l, "str", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		i := l.CheckInt(2)
		var v string
		s.withEngine(l, func(e *logic.Engine) { v = e.Frame(ch).String(i) })
		l.Push(lua.LString(v))
		return 1
	})
	luaRegister(l, "callerslot", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		i := l.CheckInt(2)
		var v int32
		s.withEngine(l, func(e *logic.Engine) { v = e.Caller(ch).Int(i) })
		l.Push(lua.LNumber(v))
		return 1
	})
	luaRegister(l, "setcallerslot", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		i := l.CheckInt(2)
		v := int32(l.CheckInt(3))
		s.withEngine(l, func(e *logic.Engine) { e.Caller(ch).SetInt(i, v) })
		return 0
	})

	// Messages
	luaRegister(l, "send", func(l *lua.LState) int {
		from := characterArg(l, 1)
		to := characterArg(l, 2)
		action := bus.Action(l.CheckInt(3))
		param := paramArg(l, 4)
		s.withEngine(l, func(e *logic.Engine) { e.Send(from, to, action, param) })
		return 0
	})
	luaRegister(l, "broadcast", func(l *lua.LState) int {
		from := characterArg(l, 1)
		action := bus.Action(l.CheckInt(2))
		param := paramArg(l, 3)
		s.withEngine(l, func(e *logic.Engine) { e.Broadcast(from, action, param) })
		return 0
	})
	luaRegister(l, "halt", func(l *lua.LState) int {
		s.withEngine(l, func(e *logic.Engine) { e.SetRunning(false) })
		return 0
	})

	// World state
	luaRegister(l, "time", func(l *lua.LState) int {
		var t uint32
		s.withEngine(l, func(e *logic.Engine) { t = e.Time() })
		l.Push(lua.LNumber(t))
		return 1
	})
	luaRegister(l, "position", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		var pos uint16
		s.withEngine(l, func(e *logic.Engine) { pos = e.Character(ch).Position })
		l.Push(lua.LNumber(pos))
		return 1
	})
	luaRegister(l, "setposition", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		pos := uint16(l.CheckInt(2))
		s.withEngine(l, func(e *logic.Engine) { e.Character(ch).Position = pos })
		return 0
	})
	luaRegister(l, "dialog", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		name := l.CheckString(2)
		s.withEngine(l, func(e *logic.Engine) { e.Services.Dialog.PlayDialog(ch, name) })
		return 0
	})
	luaRegister(l, "sound", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		name := l.CheckString(2)
		s.withEngine(l, func(e *logic.Engine) { e.Services.Sound.PlaySound(ch, name) })
		return 0
	})
	luaRegister(l, "door", func(l *lua.LState) int {
		door := l.CheckInt(1)
		ch := characterArg(l, 2)
		status := l.CheckInt(3)
		s.withEngine(l, func(e *logic.Engine) { e.Services.Doors.SetDoor(door, ch, status) })
		return 0
	})
	luaRegister(l, "hide", func(l *lua.LState) int {
		ch := characterArg(l, 1)
		hidden := l.OptBool(2, true)
		s.withEngine(l, func(e *logic.Engine) { e.Character(ch).SetHidden(hidden) })
		return 0
	})
}
