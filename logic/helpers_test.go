package logic

import (
	"errors"
	"testing"

	"github.com/chazu/marionette/bus"
)

const (
	anna  bus.CharacterID = 3
	boris bus.CharacterID = 5
	conor bus.CharacterID = 7
)

// expectScriptError runs fn and checks it panics with a *ScriptError of kind.
func expectScriptError(t *testing.T, kind ErrorKind, fn func()) *ScriptError {
	t.Helper()
	var caught *ScriptError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok || !errors.As(err, &caught) {
				t.Fatalf("expected *ScriptError, got %T: %v", r, r)
			}
		}()
		fn()
	}()
	if caught == nil {
		t.Fatalf("expected %s panic, got none", kind)
	}
	if caught.Kind != kind {
		t.Fatalf("panic kind = %s, want %s", caught.Kind, kind)
	}
	return caught
}

// recorder collects dispatches through the engine trace hook.
type recorder struct {
	calls []Dispatch
}

func (r *recorder) hook(d Dispatch) { r.calls = append(r.calls, d) }

func (r *recorder) actions(ch bus.CharacterID) []bus.Action {
	var out []bus.Action
	for _, d := range r.calls {
		if d.Character == ch {
			out = append(out, d.Message.Action)
		}
	}
	return out
}

func idle(*Engine, bus.CharacterID, bus.Message) {}
