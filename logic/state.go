package logic

// State is the durable part of an engine: everything except the message
// ring, which is persisted by the bus itself, and the event queue, which is
// never persisted.
type State struct {
	Time         uint32
	Chapter      uint8
	Cast         Cast
	AutoMessages [MaxAutoMessages]AutoMessage
}

// State returns a copy of the durable state.
func (e *Engine) State() State {
	return State{
		Time:         e.time,
		Chapter:      e.chapter,
		Cast:         e.cast,
		AutoMessages: e.autos,
	}
}

// Restore replaces the durable state with s. Pending events are discarded.
func (e *Engine) Restore(s State) {
	e.time = s.Time
	e.chapter = s.Chapter
	e.cast = s.Cast
	e.autos = s.AutoMessages
	e.events.Clear()
}
