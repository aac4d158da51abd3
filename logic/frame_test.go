package logic

import (
	"testing"
)

func TestFrameStrings(t *testing.T) {
	tests := []string{"", "a", "abcd", "dialog-17", "exactly16bytes!!"}
	for _, s := range tests {
		var f Frame
		f.SetInt(3, 77)
		f.SetString(4, s)
		if got := f.String(4); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
		if f.Int(3) != 77 || f.Int(8) != 0 {
			t.Errorf("neighbouring slots changed for %q", s)
		}
	}
}

func TestFrameStringErrors(t *testing.T) {
	var f Frame
	expectScriptError(t, ErrStringTooLong, func() { f.SetString(0, "seventeen-bytes!!") })
	expectScriptError(t, ErrFrameOverflow, func() { f.SetString(FrameSlots-2, "x") })
}

func TestBuildFrameLayout(t *testing.T) {
	f := buildFrame([]Arg{Int(5), Str("car3"), Int(-1)})
	if f.Int(0) != 5 || f.String(1) != "car3" || f.Int(5) != -1 {
		t.Errorf("layout = %v", f[:6])
	}

	args := make([]Arg, FrameSlots+1)
	for i := range args {
		args[i] = Int(int32(i))
	}
	expectScriptError(t, ErrFrameOverflow, func() { buildFrame(args) })
}

func TestFrameBool(t *testing.T) {
	var f Frame
	f.SetBool(2, true)
	if !f.Bool(2) || f.Int(2) != 1 {
		t.Error("SetBool(true)")
	}
	f.SetBool(2, false)
	if f.Bool(2) {
		t.Error("SetBool(false)")
	}
	f.SetInt(0, 4)
	f.Clear()
	if f != (Frame{}) {
		t.Error("Clear left data")
	}
}
