// Package mmiotest provides a scriptable in-memory register space for exercising drivers
// without hardware.
package mmiotest

import (
	"fmt"
)

// Access is one logged register access.
type Access struct {
	Write bool
	Off   uintptr
	Val   uint32
}

func (a Access) String() string {
	if a.Write {
		return fmt.Sprintf("W %#x=%08X", a.Off, a.Val)
	}
	return fmt.Sprintf("R %#x=%08X", a.Off, a.Val)
}

// Fake implements mmio.Space over a map. Hooks stand in for hardware: a read hook sees the
// 1-based read count of its register and may rewrite the stored value, a write hook sees the
// value the driver wrote and returns the value the register then holds.
type Fake struct {
	Log     []Access
	regs    map[uintptr]uint32
	reads   map[uintptr]int
	onRead  map[uintptr]func(n int, v uint32) uint32
	onWrite map[uintptr]func(v uint32) uint32
}

func New() *Fake {
	return &Fake{
		regs:    make(map[uintptr]uint32),
		reads:   make(map[uintptr]int),
		onRead:  make(map[uintptr]func(int, uint32) uint32),
		onWrite: make(map[uintptr]func(uint32) uint32),
	}
}

func (f *Fake) Read32(off uintptr) uint32 {
	f.reads[off]++
	v := f.regs[off]
	if h, ok := f.onRead[off]; ok {
		v = h(f.reads[off], v)
		f.regs[off] = v
	}
	f.Log = append(f.Log, Access{false, off, v})
	return v
}

func (f *Fake) Write32(off uintptr, v uint32) {
	f.Log = append(f.Log, Access{true, off, v})
	if h, ok := f.onWrite[off]; ok {
		v = h(v)
	}
	f.regs[off] = v
}

// Set presets a register without logging an access.
func (f *Fake) Set(off uintptr, v uint32) {
	f.regs[off] = v
}

// Get peeks at a register without logging an access or running hooks.
func (f *Fake) Get(off uintptr) uint32 {
	return f.regs[off]
}

// Reads returns how many times off has been read.
func (f *Fake) Reads(off uintptr) int {
	return f.reads[off]
}

// Writes returns the values written to off, in order.
func (f *Fake) Writes(off uintptr) []uint32 {
	var w []uint32
	for _, a := range f.Log {
		if a.Write && a.Off == off {
			w = append(w, a.Val)
		}
	}
	return w
}

// FirstWrite returns the log index of the first write to off, or -1.
func (f *Fake) FirstWrite(off uintptr) int {
	for i, a := range f.Log {
		if a.Write && a.Off == off {
			return i
		}
	}
	return -1
}

// OnRead installs a read hook for off, replacing any previous one.
func (f *Fake) OnRead(off uintptr, h func(n int, v uint32) uint32) {
	f.onRead[off] = h
}

// OnWrite installs a write hook for off, replacing any previous one.
func (f *Fake) OnWrite(off uintptr, h func(v uint32) uint32) {
	f.onWrite[off] = h
}

// ClearAfter makes mask read clear from the n-th read of off onwards.
func (f *Fake) ClearAfter(off uintptr, mask uint32, n int) {
	f.OnRead(off, func(i int, v uint32) uint32 {
		if i >= n {
			return v &^ mask
		}
		return v
	})
}

// SetAfter makes mask read set from the n-th read of off onwards.
func (f *Fake) SetAfter(off uintptr, mask uint32, n int) {
	f.OnRead(off, func(i int, v uint32) uint32 {
		if i >= n {
			return v | mask
		}
		return v
	})
}

// SelfClearing makes bits of mask that the driver writes read back set once and clear from
// then on, like a command bit the hardware acknowledges.
func (f *Fake) SelfClearing(off uintptr, mask uint32) {
	f.OnRead(off, func(i int, v uint32) uint32 {
		if a := f.lastAccess(off); a != nil && a.Write {
			return v
		}
		return v &^ mask
	})
}

func (f *Fake) lastAccess(off uintptr) *Access {
	for i := len(f.Log) - 1; i >= 0; i-- {
		if f.Log[i].Off == off {
			return &f.Log[i]
		}
	}
	return nil
}
