package savegame

import (
	"errors"
	"testing"
)

func TestSnapshotDescribesCallStack(t *testing.T) {
	e, _ := newCast()
	run(e, script[:savePoint])

	s := NewSnapshot(e)
	if s.Chapter != 1 || len(s.Characters) != 2 {
		t.Fatalf("snapshot = %+v", s)
	}
	a := s.Characters[0]
	if a.ID != uint8(anna) || a.Name != "Anna" {
		t.Fatalf("first character = %+v", a)
	}
	names := []string{"Main", "DoWalk", "DoWaitClear", "DoDialog"}
	if len(a.Stack) != len(names) {
		t.Fatalf("stack = %+v", a.Stack)
	}
	for i, n := range names {
		if a.Stack[i].Name != n {
			t.Errorf("frame %d = %s, want %s", i, a.Stack[i].Name, n)
		}
	}
	if len(s.Messages) != 1 || s.Messages[0].Receiver != uint8(anna) {
		t.Errorf("messages = %+v", s.Messages)
	}
}

func TestSnapshotCBORRoundTrip(t *testing.T) {
	e, _ := newCast()
	run(e, script[:savePoint])
	data, err := Encode(e)
	if err != nil {
		t.Fatal(err)
	}

	fromSave, err := SnapshotFromSave(data, e.Program)
	if err != nil {
		t.Fatalf("SnapshotFromSave: %v", err)
	}
	live := NewSnapshot(e)

	a, err := MarshalSnapshot(fromSave)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalSnapshot(live)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("snapshot of the save differs from snapshot of the engine")
	}

	decoded, err := UnmarshalSnapshot(a)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}
	if decoded.Time != live.Time || len(decoded.Characters) != len(live.Characters) {
		t.Errorf("decoded = %+v", decoded)
	}
	if got := decoded.Characters[0].Stack[3].Name; got != "DoDialog" {
		t.Errorf("top frame = %q", got)
	}

	// Without a program, ids survive and names are dropped.
	anon, err := SnapshotFromSave(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if anon.Characters[0].Name != "" || anon.Characters[0].Stack[1].Handler != live.Characters[0].Stack[1].Handler {
		t.Errorf("anonymous snapshot = %+v", anon.Characters[0])
	}

	if _, err := UnmarshalSnapshot([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for garbage CBOR")
	}
}

func TestSnapshotFromSaveRejectsDeepStack(t *testing.T) {
	e, _ := newCast()
	run(e, script[:savePoint])
	data, err := Encode(e)
	if err != nil {
		t.Fatal(err)
	}
	data[HeaderSize+int(anna)*CharacterSize] = 40
	reseal(data)

	if _, err := SnapshotFromSave(data, nil); !errors.Is(err, ErrCorruptData) {
		t.Errorf("SnapshotFromSave() error = %v, want ErrCorruptData", err)
	}
	if _, err := SnapshotFromSave(data, e.Program); !errors.Is(err, ErrCorruptData) {
		t.Errorf("with program: error = %v, want ErrCorruptData", err)
	}
}
