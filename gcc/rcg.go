package gcc

import (
	"fmt"
	"github.com/Jon-Bright/msmctl/mmio"
	"strings"
)

// Source is the RCG input mux selection, already shifted into CFG_RCGR bits 10:8.
type Source uint32

const (
	SourceCXO   Source = 0 << 8
	SourceGPLL0 Source = 1 << 8
)

func (s Source) String() string {
	switch s {
	case SourceCXO:
		return "CXO"
	case SourceGPLL0:
		return "GPLL0"
	}
	return fmt.Sprintf("Source(%d)", uint32(s)>>8)
}

// DividerConfig is a root clock generator setting: a half-integer pre-divider followed by an
// optional M/N fractional divider.
//
// Div must be at least 1. N == 0 selects plain divider mode, where M is ignored. N > 0 selects
// MND mode and M must not exceed N.
type DividerConfig struct {
	Div    uint32
	M      uint32
	N      uint32
	Source Source
}

// Registers returns the values for the M, N and D registers.
//
// The N register holds NOT(N-M), and only in MND mode; the D register holds NOT(N), which is
// all ones (50% duty) for a plain divider.
func (d DividerConfig) Registers() (m, n, dv uint32) {
	m = d.M
	if d.N != 0 {
		n = ^(d.N - d.M)
	}
	dv = ^d.N
	return m, n, dv
}

// Cfg merges the configuration into a CFG_RCGR value read from hardware. Bits outside the
// 14-bit configuration field are left alone.
func (d DividerConfig) Cfg(prev uint32) uint32 {
	_, n, _ := d.Registers()
	cfg := prev &^ CFG_MASK
	cfg |= uint32(d.Source) & CFG_SRC_MASK
	// The divider field holds 2*div-1, meaning a division by (field+1)/2.
	cfg |= (2*d.Div - 1) & CFG_DIV_MASK
	if n != 0 {
		cfg |= CFG_MODE_DUAL_EDGE
	}
	return cfg
}

// Rate returns the output frequency for a given source frequency.
func (d DividerConfig) Rate(parent uint64) uint64 {
	if d.N == 0 {
		return parent / uint64(d.Div)
	}
	return parent * uint64(d.M) / uint64(d.N) / uint64(d.Div)
}

func (d DividerConfig) String() string {
	if d.N == 0 {
		return fmt.Sprintf("%v/%d", d.Source, d.Div)
	}
	return fmt.Sprintf("%v/%d*%d/%d", d.Source, d.Div, d.M, d.N)
}

// rcgCfg is a CFG_RCGR register value.
type rcgCfg uint32

func (c rcgCfg) GoString() string {
	var out []string
	if c&CFG_MODE_DUAL_EDGE != 0 {
		out = append(out, "DualEdge")
	}
	out = append(out, Source(c&CFG_SRC_MASK).String())
	div := uint32(c & CFG_DIV_MASK)
	if div&1 == 0 {
		out = append(out, fmt.Sprintf("Div(%d.5)", div/2))
	} else {
		out = append(out, fmt.Sprintf("Div(%d)", (div+1)/2))
	}
	if rest := c &^ CFG_MASK; rest != 0 {
		out = append(out, fmt.Sprintf("rcgCfg(%08X)", uint32(rest)))
	}
	return strings.Join(out, "|")
}

// SetRate programs a root clock generator with cfg and waits for the hardware to latch it.
func SetRate(s mmio.Space, p mmio.Poller, g Generator, cfg DividerConfig) error {
	m, n, d := cfg.Registers()
	s.Write32(g.M, m)
	s.Write32(g.N, n)
	s.Write32(g.D, d)

	s.Write32(g.CfgRCGR, cfg.Cfg(s.Read32(g.CfgRCGR)))

	return update(s, p, g.CmdRCGR)
}

// update tells the RCG to switch to the new configuration. The switch happens atomically in
// hardware, so the divider never runs from a half-written configuration; the UPDATE bit reads
// clear once it is done.
func update(s mmio.Space, p mmio.Poller, cmdRCGR uintptr) error {
	mmio.SetBits(s, cmdRCGR, CMD_RCGR_UPDATE)
	if err := p.WaitClear(s, cmdRCGR, CMD_RCGR_UPDATE); err != nil {
		return fmt.Errorf("RCG %#x didn't take the new configuration: %w", cmdRCGR, err)
	}
	return nil
}
