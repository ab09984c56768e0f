package gcc

import (
	"fmt"
	"github.com/Jon-Bright/msmctl/mmio"
)

// GPLL0Rate is the frequency GPLL0 runs at once voted on.
const GPLL0Rate = 800000000

// EnablePLL votes GPLL0 on and waits for it to lock.
//
// GPLL0 is shared: every consumer (SD slots, UART, ...) votes for it independently and the
// hardware ORs the votes. The ACTIVE bit reflects that OR rather than our own vote, so once it
// is set nothing is written at all.
func EnablePLL(s mmio.Space, p mmio.Poller) error {
	if s.Read32(GPLL0_STATUS)&GPLL0_STATUS_ACTIVE != 0 {
		return nil // already enabled
	}
	mmio.SetBits(s, APCS_GPLL_ENA_VOTE, APCS_GPLL_ENA_VOTE_GPLL0)
	if err := p.WaitSet(s, GPLL0_STATUS, GPLL0_STATUS_ACTIVE); err != nil {
		return fmt.Errorf("GPLL0 didn't become active: %w", err)
	}
	return nil
}
