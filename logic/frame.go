package logic

import (
	"bytes"
	"fmt"
)

// FrameSlots is the number of 32-bit slots in one call frame.
const FrameSlots = 32

// StringSlots is the number of consecutive slots a string argument occupies.
const StringSlots = 4

// MaxStringArg is the longest string a frame can hold.
const MaxStringArg = StringSlots * 4

// Frame holds the saved parameters of one call-stack level. Slots double as
// the handler's locals across re-entries and, by convention of each handler
// pair, as return-value storage written by a callee into its caller's frame.
type Frame [FrameSlots]int32

// Int returns slot i.
func (f *Frame) Int(i int) int32 {
	return f[i]
}

// SetInt stores v in slot i.
func (f *Frame) SetInt(i int, v int32) {
	f[i] = v
}

// Bool reports whether slot i is non-zero.
func (f *Frame) Bool(i int) bool {
	return f[i] != 0
}

// SetBool stores 1 or 0 in slot i.
func (f *Frame) SetBool(i int, v bool) {
	if v {
		f[i] = 1
	} else {
		f[i] = 0
	}
}

// String decodes the NUL-padded string packed into slots i..i+3.
func (f *Frame) String(i int) string {
	var raw [MaxStringArg]byte
	for k := 0; k < StringSlots; k++ {
		v := uint32(f[i+k])
		raw[k*4+0] = byte(v)
		raw[k*4+1] = byte(v >> 8)
		raw[k*4+2] = byte(v >> 16)
		raw[k*4+3] = byte(v >> 24)
	}
	if n := bytes.IndexByte(raw[:], 0); n >= 0 {
		return string(raw[:n])
	}
	return string(raw[:])
}

// SetString packs s into slots i..i+3. It panics if s does not fit.
func (f *Frame) SetString(i int, s string) {
	if len(s) > MaxStringArg {
		fatal(&ScriptError{Kind: ErrStringTooLong, Detail: fmt.Sprintf("%q", s)})
	}
	if i < 0 || i+StringSlots > FrameSlots {
		fatal(&ScriptError{Kind: ErrFrameOverflow, Detail: fmt.Sprintf("string at slot %d", i)})
	}
	var raw [MaxStringArg]byte
	copy(raw[:], s)
	for k := 0; k < StringSlots; k++ {
		f[i+k] = int32(uint32(raw[k*4]) | uint32(raw[k*4+1])<<8 | uint32(raw[k*4+2])<<16 | uint32(raw[k*4+3])<<24)
	}
}

// Clear zeroes every slot.
func (f *Frame) Clear() {
	*f = Frame{}
}

// ---------------------------------------------------------------------------
// Arg: positional frame arguments
// ---------------------------------------------------------------------------

// Arg is one positional argument copied into a fresh frame. Integers take
// one slot, strings take StringSlots.
type Arg struct {
	isStr bool
	i     int32
	s     string
}

// Int is an integer argument.
func Int(v int32) Arg { return Arg{i: v} }

// Str is a string argument of at most MaxStringArg bytes.
func Str(s string) Arg { return Arg{isStr: true, s: s} }

func (a Arg) width() int {
	if a.isStr {
		return StringSlots
	}
	return 1
}

// buildFrame lays args out from slot 0.
func buildFrame(args []Arg) Frame {
	var f Frame
	slot := 0
	for _, a := range args {
		if slot+a.width() > FrameSlots {
			fatal(&ScriptError{Kind: ErrFrameOverflow, Detail: fmt.Sprintf("%d arguments", len(args))})
		}
		if a.isStr {
			f.SetString(slot, a.s)
		} else {
			f[slot] = a.i
		}
		slot += a.width()
	}
	return f
}
