package gcc

import (
	"fmt"
	"github.com/Jon-Bright/msmctl/mmio"
)

// Branch is a gated clock branch, identified by the offset of its CBCR control register.
type Branch uintptr

// EnableBranch turns on a branch clock controlled by a CBC soft macro and waits until the
// hardware reports it running. Enabling a running branch is harmless.
func EnableBranch(s mmio.Space, p mmio.Poller, b Branch) error {
	cbcr := uintptr(b)
	mmio.SetBits(s, cbcr, CBCR_BRANCH_ENABLE_BIT)
	if err := p.WaitClear(s, cbcr, CBCR_BRANCH_OFF_BIT); err != nil {
		return fmt.Errorf("branch %#x didn't turn on: %w", cbcr, err)
	}
	return nil
}

// DisableBranch is the reverse of EnableBranch: it waits until the hardware reports the
// branch off.
func DisableBranch(s mmio.Space, p mmio.Poller, b Branch) error {
	cbcr := uintptr(b)
	mmio.ClearBits(s, cbcr, CBCR_BRANCH_ENABLE_BIT)
	if err := p.WaitSet(s, cbcr, CBCR_BRANCH_OFF_BIT); err != nil {
		return fmt.Errorf("branch %#x didn't turn off: %w", cbcr, err)
	}
	return nil
}
