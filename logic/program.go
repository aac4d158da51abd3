package logic

import (
	"fmt"

	"github.com/chazu/marionette/bus"
)

// HandlerID is the positional id of a handler in a character's dispatch
// table. Ids are persisted in saved games, so registration order matters.
type HandlerID uint8

// HandlerNone marks an empty callback slot.
const HandlerNone HandlerID = 0

// MaxHandlers is the number of handlers a single character can register.
const MaxHandlers = 255

// Handler is the step function of one sub-behavior. It runs to completion
// for every message delivered to the character while it is the active
// handler, and is free to call other subsystems through the engine.
type Handler func(e *Engine, ch bus.CharacterID, msg bus.Message)

// ChapterFunc installs a character's entry state for a chapter.
type ChapterFunc func(e *Engine, ch bus.CharacterID, chapter int)

type handlerEntry struct {
	name string
	fn   Handler
}

type characterProgram struct {
	name     string
	handlers []handlerEntry
	byName   map[string]HandlerID
	chapter  ChapterFunc
}

// Program holds the dispatch tables of every character. It is built once at
// startup and treated as read-only while the engine runs.
type Program struct {
	chars [bus.MaxCharacters]*characterProgram
	order []bus.CharacterID
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{}
}

// Character registers ch under a display name. Registration order is the
// order in which FlushTime ticks characters. Registering twice only updates
// the name.
func (p *Program) Character(ch bus.CharacterID, name string) {
	cp := p.entry(ch)
	cp.name = name
}

func (p *Program) entry(ch bus.CharacterID) *characterProgram {
	if !ch.Valid() {
		fatal(&ScriptError{Kind: ErrUnknownCharacter, Character: ch})
	}
	cp := p.chars[ch]
	if cp == nil {
		cp = &characterProgram{
			name:   fmt.Sprintf("character%d", ch),
			byName: make(map[string]HandlerID),
		}
		p.chars[ch] = cp
		p.order = append(p.order, ch)
	}
	return cp
}

// Handle appends fn to the dispatch table of ch and returns its id. Ids
// start at 1 and follow registration order.
func (p *Program) Handle(ch bus.CharacterID, name string, fn Handler) HandlerID {
	cp := p.entry(ch)
	if _, dup := cp.byName[name]; dup {
		fatal(&ScriptError{Kind: ErrDuplicateHandler, Character: ch, Detail: name})
	}
	if len(cp.handlers) >= MaxHandlers {
		fatal(&ScriptError{Kind: ErrFrameOverflow, Character: ch, Detail: "too many handlers"})
	}
	cp.handlers = append(cp.handlers, handlerEntry{name: name, fn: fn})
	id := HandlerID(len(cp.handlers))
	cp.byName[name] = id
	return id
}

// Chapter sets the chapter constructor of ch.
func (p *Program) Chapter(ch bus.CharacterID, fn ChapterFunc) {
	p.entry(ch).chapter = fn
}

// Lookup returns the id registered under name.
func (p *Program) Lookup(ch bus.CharacterID, name string) (HandlerID, bool) {
	if !ch.Valid() || p.chars[ch] == nil {
		return HandlerNone, false
	}
	id, ok := p.chars[ch].byName[name]
	return id, ok
}

// HandlerName returns the registered name of id, or a placeholder.
func (p *Program) HandlerName(ch bus.CharacterID, id HandlerID) string {
	if h := p.lookup(ch, id); h != nil {
		return h.name
	}
	return fmt.Sprintf("<handler %d>", id)
}

// Name returns the display name of ch.
func (p *Program) Name(ch bus.CharacterID) string {
	if ch.Valid() && p.chars[ch] != nil {
		return p.chars[ch].name
	}
	return fmt.Sprintf("<character %d>", ch)
}

// Characters returns registered characters in registration order.
func (p *Program) Characters() []bus.CharacterID {
	return append([]bus.CharacterID(nil), p.order...)
}

// Registered reports whether ch has a dispatch table.
func (p *Program) Registered(ch bus.CharacterID) bool {
	return ch.Valid() && p.chars[ch] != nil
}

// HandlerCount returns the number of handlers of ch.
func (p *Program) HandlerCount(ch bus.CharacterID) int {
	if !p.Registered(ch) {
		return 0
	}
	return len(p.chars[ch].handlers)
}

func (p *Program) lookup(ch bus.CharacterID, id HandlerID) *handlerEntry {
	if !ch.Valid() || id == HandlerNone {
		return nil
	}
	cp := p.chars[ch]
	if cp == nil || int(id) > len(cp.handlers) {
		return nil
	}
	return &cp.handlers[id-1]
}
