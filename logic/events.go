package logic

import (
	"github.com/chazu/marionette/bus"
)

// EventHandler receives raw events drained by Engine.ProcessEvents.
type EventHandler interface {
	HandleEvent(e *Engine, ev bus.Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(e *Engine, ev bus.Event)

func (f EventHandlerFunc) HandleEvent(e *Engine, ev bus.Event) { f(e, ev) }

// ProcessEvents drains the event queue. Timer events advance the clock by
// their X value (at least one tick) and run FlushTime; every other event is
// handed to h, which may be nil.
func (e *Engine) ProcessEvents(h EventHandler) {
	for e.Running() {
		ev, ok := e.events.Get()
		if !ok {
			return
		}
		if ev.Channel == bus.ChannelTimer {
			ticks := uint32(1)
			if ev.X > 0 {
				ticks = uint32(ev.X)
			}
			e.AdvanceTime(ticks)
			e.FlushTime()
			continue
		}
		if h != nil {
			h.HandleEvent(e, ev)
		}
	}
}
