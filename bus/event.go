package bus

import (
	"fmt"
	"sync"
	"time"
)

// Channel identifies the source of a raw event.
type Channel uint8

const (
	ChannelTimer Channel = 0
	ChannelMouse Channel = 1
)

// Flags is the bitmask carried by an event. Button flags describe held state
// as reported by the input layer; click flags are derived by EventQueue.Add.
type Flags uint32

const (
	FlagLeftButton Flags = 1 << iota
	FlagRightButton
	FlagLeftClick
	FlagRightClick
	FlagDoubleClick
)

const (
	buttonFlags  = FlagLeftButton | FlagRightButton
	derivedFlags = FlagLeftClick | FlagRightClick | FlagDoubleClick
)

// Default double-click detection parameters.
const (
	DefaultDoubleClickWindow = 400 * time.Millisecond
	DefaultDoubleClickRadius = 4
)

// Event is a raw input or timer sample.
type Event struct {
	Channel Channel
	X, Y    int
	Flags   Flags
}

// IsClick reports whether the event carries a derived click.
func (e Event) IsClick() bool {
	return e.Flags&derivedFlags != 0
}

func (e Event) isMove() bool {
	return e.Channel == ChannelMouse && !e.IsClick()
}

func (e Event) String() string {
	return fmt.Sprintf("event{ch=%d x=%d y=%d flags=%#x}", e.Channel, e.X, e.Y, e.Flags)
}

// ---------------------------------------------------------------------------
// EventQueue: fixed ring of raw input
// ---------------------------------------------------------------------------

// EventQueue is the FIFO ring of raw input and timer events. Producers may run
// on other goroutines (the audio callback feeds timer events); every mutation
// happens under one mutex.
type EventQueue struct {
	mu    sync.Mutex
	ring  [RingSize]Event
	head  int
	count int
	limit int

	dropped   uint64
	coalesced uint64

	// mouse edge detection
	buttons   Flags
	hasClick  bool
	lastClick time.Time
	clickX    int
	clickY    int

	window time.Duration
	radius int
	now    func() time.Time
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{
		limit:  DefaultLimit,
		window: DefaultDoubleClickWindow,
		radius: DefaultDoubleClickRadius,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for double-click timing.
func (q *EventQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// SetDoubleClick configures the double-click window and the pixel radius in
// which the second click must land.
func (q *EventQueue) SetDoubleClick(window time.Duration, radius int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.window = window
	q.radius = radius
}

// SetLimit changes the soft cap, clamped to 1..DefaultLimit.
func (q *EventQueue) SetLimit(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.limit = clampLimit(n)
}

// Add enqueues a raw event. Mouse events get their click flags derived from
// the previous button state; a pure move replaces a pending move with the same
// button state instead of taking a new slot. A full queue drops the event.
func (q *EventQueue) Add(ch Channel, x, y int, flags Flags) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ev := Event{Channel: ch, X: x, Y: y, Flags: flags &^ derivedFlags}

	if ch == ChannelMouse {
		held := ev.Flags & buttonFlags
		pressed := held &^ q.buttons
		q.buttons = held

		if pressed&FlagLeftButton != 0 {
			ev.Flags |= FlagLeftClick
			q.trackClick(&ev)
		}
		if pressed&FlagRightButton != 0 {
			ev.Flags |= FlagRightClick
		}

		if ev.isMove() && q.count > 0 {
			last := &q.ring[(q.head+q.count-1)%RingSize]
			if last.isMove() && last.Flags == ev.Flags {
				*last = ev
				q.coalesced++
				return
			}
		}
	}

	if q.count >= q.limit {
		q.dropped++
		log.Debugf("event queue full (%d), dropping %s", q.count, ev)
		return
	}
	q.ring[(q.head+q.count)%RingSize] = ev
	q.count++
}

func (q *EventQueue) trackClick(ev *Event) {
	now := q.now()
	if q.hasClick && now.Sub(q.lastClick) <= q.window &&
		abs(ev.X-q.clickX) <= q.radius && abs(ev.Y-q.clickY) <= q.radius {
		ev.Flags |= FlagDoubleClick
		q.hasClick = false
		return
	}
	q.hasClick = true
	q.lastClick = now
	q.clickX = ev.X
	q.clickY = ev.Y
}

// Get removes and returns the oldest event.
func (q *EventQueue) Get() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Event{}, false
	}
	ev := q.ring[q.head]
	q.ring[q.head] = Event{}
	q.head = (q.head + 1) % RingSize
	q.count--
	return ev, true
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Clear discards pending events and resets button tracking.
func (q *EventQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ring = [RingSize]Event{}
	q.head = 0
	q.count = 0
	q.buttons = 0
	q.hasClick = false
}

// ClearClickEvents removes pending click events, keeping moves and timer
// ticks in order, and forgets the double-click history.
func (q *EventQueue) ClearClickEvents() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := 0
	for i := 0; i < q.count; i++ {
		ev := q.ring[(q.head+i)%RingSize]
		if ev.IsClick() {
			continue
		}
		q.ring[(q.head+kept)%RingSize] = ev
		kept++
	}
	for i := kept; i < q.count; i++ {
		q.ring[(q.head+i)%RingSize] = Event{}
	}
	q.count = kept
	q.hasClick = false
}

// Dropped returns how many events were discarded on a full queue.
func (q *EventQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Coalesced returns how many move events were merged into a pending one.
func (q *EventQueue) Coalesced() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.coalesced
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
