package engine

import "github.com/roach88/irkit/internal/ir"

// Slot is one 8-byte cell of the packed calling convention.
type Slot uint64

// I32 packs an i32 argument.
func I32(v int32) Slot { return Slot(uint32(v)) }

// I64 packs an i64 argument.
func I64(v int64) Slot { return Slot(uint64(v)) }

// Index packs an index argument. Lowered index values are i64.
func Index(v int64) Slot { return I64(v) }

// Bool packs an i1 argument.
func Bool(v bool) Slot {
	if v {
		return 1
	}
	return 0
}

// Int32 reads the slot as an i32.
func (s Slot) Int32() int32 { return int32(uint32(s)) }

// Int64 reads the slot as an i64.
func (s Slot) Int64() int64 { return int64(s) }

// Bool reads the slot as an i1.
func (s Slot) Bool() bool { return s&1 != 0 }

func mask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<width - 1
}

// trunc wraps v to width bits, zero-extended.
func trunc(v uint64, width uint) uint64 { return v & mask(width) }

// sext sign-extends the low width bits of v.
func sext(v uint64, width uint) int64 {
	if width >= 64 {
		return int64(v)
	}
	shift := 64 - width
	return int64(v<<shift) >> shift
}

func widthOf(t ir.Type) uint {
	if t.IsIndex() {
		return ir.IndexWidth
	}
	return t.Width()
}
