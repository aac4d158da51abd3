package logic

import (
	"testing"

	"github.com/chazu/marionette/bus"
)

func TestAutoMessageTakesPrecedence(t *testing.T) {
	p := NewProgram()
	var annaSaw, borisSaw []bus.Message
	p.Handle(anna, "Main", func(e *Engine, ch bus.CharacterID, msg bus.Message) {
		annaSaw = append(annaSaw, msg)
	})
	p.Handle(boris, "Main", func(e *Engine, ch bus.CharacterID, msg bus.Message) {
		borisSaw = append(borisSaw, msg)
	})
	e := NewEngine(p)
	e.StartChapter(1)
	e.Flush()
	annaSaw, borisSaw = nil, nil

	const knock = bus.ActionKnock
	if !e.AddAutoMessage(AutoMessage{Action: knock, Target: boris, TargetAction: 200}) {
		t.Fatal("AddAutoMessage failed")
	}

	e.Send(conor, anna, knock, bus.Int(4))
	e.Send(conor, anna, 1, bus.Param{})
	e.Flush()

	for _, m := range annaSaw {
		if m.Action == knock {
			t.Fatalf("anna's handler received the intercepted action")
		}
	}
	if len(annaSaw) != 1 {
		t.Errorf("anna saw %d messages, want 1", len(annaSaw))
	}
	if len(borisSaw) != 1 || borisSaw[0].Action != 200 || borisSaw[0].Param.Int != 4 || borisSaw[0].Sender != anna {
		t.Fatalf("boris saw %v", borisSaw)
	}

	// Intercepted on every delivery, not just the first.
	e.Send(conor, boris, knock, bus.Param{})
	e.Flush()
	if len(borisSaw) != 2 || borisSaw[1].Action != 200 {
		t.Errorf("second interception missing: %v", borisSaw)
	}
}

func TestAutoMessageReceiverFilterAndOnce(t *testing.T) {
	p := NewProgram()
	var borisSaw []bus.Action
	p.Handle(anna, "Main", idle)
	p.Handle(boris, "Main", func(e *Engine, ch bus.CharacterID, msg bus.Message) {
		borisSaw = append(borisSaw, msg.Action)
	})
	e := NewEngine(p)
	e.StartChapter(1)
	e.Flush()
	borisSaw = nil

	e.AddAutoMessage(AutoMessage{Receiver: anna, Action: 30, Target: boris, TargetAction: 31, Param: bus.String("x"), Once: true})

	e.Send(conor, boris, 30, bus.Param{}) // not for anna: normal dispatch
	e.Send(conor, anna, 30, bus.Param{})  // intercepted once
	e.Send(conor, anna, 30, bus.Param{})  // hook gone: anna handles it
	e.Flush()

	if len(borisSaw) != 2 || borisSaw[0] != 30 || borisSaw[1] != 31 {
		t.Fatalf("boris saw %v, want [30 31]", borisSaw)
	}
	if len(e.AutoMessages()) != 0 {
		t.Errorf("once hook still installed")
	}
}

func TestAutoMessageTable(t *testing.T) {
	e := NewEngine(NewProgram())
	if e.AddAutoMessage(AutoMessage{Action: 1}) {
		t.Error("accepted hook without target")
	}
	for i := 0; i < MaxAutoMessages; i++ {
		if !e.AddAutoMessage(AutoMessage{Receiver: anna, Action: bus.Action(i % 2), Target: boris, TargetAction: 9}) {
			t.Fatalf("slot %d rejected", i)
		}
	}
	if e.AddAutoMessage(AutoMessage{Action: 1, Target: boris}) {
		t.Error("accepted hook in a full table")
	}
	if n := e.RemoveAutoMessages(anna, 1); n != MaxAutoMessages/2 {
		t.Errorf("removed %d, want %d", n, MaxAutoMessages/2)
	}
	if len(e.AutoMessages()) != MaxAutoMessages/2 {
		t.Errorf("%d left", len(e.AutoMessages()))
	}
	e.ClearAutoMessages()
	if len(e.AutoMessages()) != 0 {
		t.Error("ClearAutoMessages left entries")
	}
}

func TestAutoMessageInterceptsTicks(t *testing.T) {
	p := NewProgram()
	var annaTicks int
	var borisSaw []bus.Message
	p.Handle(anna, "Main", func(e *Engine, ch bus.CharacterID, msg bus.Message) {
		if msg.Action == bus.ActionTick {
			annaTicks++
		}
	})
	p.Handle(boris, "Main", func(e *Engine, ch bus.CharacterID, msg bus.Message) {
		if msg.Action == 77 {
			borisSaw = append(borisSaw, msg)
		}
	})
	e := NewEngine(p)
	e.StartChapter(1)
	e.Flush()

	e.AddAutoMessage(AutoMessage{Receiver: anna, Action: bus.ActionTick, Target: boris, TargetAction: 77, Once: true})
	e.FlushTime()

	if annaTicks != 0 {
		t.Errorf("anna received %d ticks, want the tick intercepted", annaTicks)
	}
	if len(borisSaw) != 1 || borisSaw[0].Sender != anna {
		t.Fatalf("boris saw %v", borisSaw)
	}

	e.FlushTime()
	if annaTicks != 1 || len(borisSaw) != 1 {
		t.Errorf("after once entry: anna ticks %d, boris saw %d", annaTicks, len(borisSaw))
	}
}
