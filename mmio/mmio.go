package mmio

import (
	"errors"
	"fmt"
	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
	"os"
	"sync/atomic"
	"unsafe"
)

const (
	MEM_FILE = "/dev/mem"
)

// ErrHardwareUnresponsive is returned when a bounded poll never sees the bit state it waits for.
var ErrHardwareUnresponsive = errors.New("hardware unresponsive")

// Space is a contiguous range of 32-bit memory-mapped registers belonging to one block.
// Offsets are in bytes from the start of the block.
type Space interface {
	Read32(off uintptr) uint32
	Write32(off uintptr, v uint32)
}

// Window is a Space backed by a /dev/mem mapping of a physical address range.
type Window struct {
	phys uintptr
	size int
	buf  mmap.MMap
	offs uintptr
}

// Map opens /dev/mem and uses mmap to map a given physical address into our address space.
// Since the mapping has to start at a page boundary, the physical address is rounded down to the
// nearest page boundary and the returned Window hides that offset from its users.
func Map(physAddr uintptr, size int) (*Window, error) {
	f, err := os.OpenFile(MEM_FILE, os.O_RDWR|os.O_SYNC, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %v", MEM_FILE, err)
	}
	defer f.Close() // Ignore error, the mapping survives the close

	pageSize := uintptr(unix.Getpagesize())
	pagemask := ^(pageSize - 1)
	mapAddr := physAddr & pagemask
	mapSize := size + int(physAddr-mapAddr)
	mm, err := mmap.MapRegion(f, mapSize, mmap.RDWR, 0, int64(mapAddr))
	if err != nil {
		return nil, fmt.Errorf("couldn't map region (%08X, %v): %v", physAddr, size, err)
	}
	return &Window{
		phys: physAddr,
		size: size,
		buf:  mm,
		offs: physAddr - mapAddr,
	}, nil
}

func (w *Window) reg(off uintptr) *uint32 {
	if off&3 != 0 || off+4 > uintptr(w.size) {
		panic(fmt.Sprintf("register offset %#x outside window %08X+%#x", off, w.phys, w.size))
	}
	return (*uint32)(unsafe.Pointer(&w.buf[w.offs+off]))
}

// Read32 reads the register at off. The atomic load keeps the compiler from caching or
// eliding the access.
func (w *Window) Read32(off uintptr) uint32 {
	return atomic.LoadUint32(w.reg(off))
}

func (w *Window) Write32(off uintptr, v uint32) {
	atomic.StoreUint32(w.reg(off), v)
}

// Phys returns the physical base address of the window.
func (w *Window) Phys() uintptr {
	return w.phys
}

// Close unmaps the window. The Window must not be used afterwards.
func (w *Window) Close() error {
	if w.buf == nil {
		return nil
	}
	err := w.buf.Unmap()
	w.buf = nil
	return err
}

// Read16 reads a 16-bit register through the aligned 32-bit word containing it.
func Read16(s Space, off uintptr) uint16 {
	v := s.Read32(off &^ 3)
	return uint16(v >> ((off & 2) * 8))
}

// SetBits does a read-modify-write setting mask.
func SetBits(s Space, off uintptr, mask uint32) {
	s.Write32(off, s.Read32(off)|mask)
}

// ClearBits does a read-modify-write clearing mask.
func ClearBits(s Space, off uintptr, mask uint32) {
	s.Write32(off, s.Read32(off)&^mask)
}
