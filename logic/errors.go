package logic

import (
	"fmt"

	"github.com/chazu/marionette/bus"
)

// ErrorKind classifies a ScriptError.
type ErrorKind int

const (
	ErrMissingHandler ErrorKind = iota + 1
	ErrUnknownCharacter
	ErrStackOverflow
	ErrStackUnderflow
	ErrFrameOverflow
	ErrStringTooLong
	ErrDuplicateHandler
	ErrHandlerFailed
)

var errorKindNames = map[ErrorKind]string{
	ErrMissingHandler:   "missing handler",
	ErrUnknownCharacter: "unknown character",
	ErrStackOverflow:    "call stack overflow",
	ErrStackUnderflow:   "call stack underflow",
	ErrFrameOverflow:    "frame overflow",
	ErrStringTooLong:    "string argument too long",
	ErrDuplicateHandler: "duplicate handler",
	ErrHandlerFailed:    "handler failed",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ScriptError reports a content-authoring mistake: a message for a handler
// that does not exist, a runaway chain of sub-states, and so on. These are
// never returned; the engine panics with a *ScriptError after logging it.
type ScriptError struct {
	Kind      ErrorKind
	Character bus.CharacterID
	Handler   HandlerID
	Detail    string
}

func (e *ScriptError) Error() string {
	msg := fmt.Sprintf("%s (character %d, handler %d)", e.Kind, e.Character, e.Handler)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches another *ScriptError of the same kind, so callers can write
// errors.Is(err, &ScriptError{Kind: ErrStackOverflow}).
func (e *ScriptError) Is(target error) bool {
	t, ok := target.(*ScriptError)
	return ok && t.Kind == e.Kind
}

func fatal(err *ScriptError) {
	log.Criticalf("script error: %s", err)
	panic(err)
}
