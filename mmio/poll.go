package mmio

import (
	"fmt"
)

// Poller busy-waits on register bits. There is nothing else to do while hardware settles, so
// it never yields.
//
// A zero Limit spins forever: a bit that never changes hangs the caller, the same as the
// boot firmware does. A positive Limit gives up after that many reads with
// ErrHardwareUnresponsive.
type Poller struct {
	Limit int
}

// Wait spins until s.Read32(off)&mask == want.
func (p Poller) Wait(s Space, off uintptr, mask, want uint32) error {
	for i := 0; p.Limit <= 0 || i < p.Limit; i++ {
		if s.Read32(off)&mask == want {
			return nil
		}
	}
	return fmt.Errorf("register %#x mask %08X never read %08X after %d polls: %w", off, mask, want, p.Limit, ErrHardwareUnresponsive)
}

// WaitSet waits for all bits of mask to read set.
func (p Poller) WaitSet(s Space, off uintptr, mask uint32) error {
	return p.Wait(s, off, mask, mask)
}

// WaitClear waits for all bits of mask to read clear.
func (p Poller) WaitClear(s Space, off uintptr, mask uint32) error {
	return p.Wait(s, off, mask, 0)
}
