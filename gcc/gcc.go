// Package gcc drives the global clock controller of Qualcomm APQ8016/MSM8916 SoCs: the branch
// gates, the shared GPLL0 vote and the root clock generators feeding the SD controllers and
// the BLSP1 UART.
package gcc

import (
	"fmt"
	"github.com/Jon-Bright/msmctl/mmio"
	"github.com/platinasystems/log"
	"sync"
)

// Periph is a peripheral clock identifier, as used in device tree clock specifiers.
type Periph int

const (
	PeriphSDC1  Periph = 0
	PeriphSDC2  Periph = 1
	PeriphUART2 Periph = 4
)

func (p Periph) String() string {
	switch p {
	case PeriphSDC1:
		return "sdc1"
	case PeriphSDC2:
		return "sdc2"
	case PeriphUART2:
		return "uart2"
	}
	return fmt.Sprintf("periph%d", int(p))
}

const (
	// SDCHighSpeedRate selects the faster SD divider; anything else gets the default.
	SDCHighSpeedRate = 200000000
	sdcDivHighSpeed  = 4 // 800MHz/4
	sdcDivDefault    = 8 // 800MHz/8 = 100MHz

	// UARTRate is what the UART2 block clock is set to, 16x 460800 baud.
	UARTRate = 7372800
)

var uartConfig = DividerConfig{Div: 1, M: 144, N: 15625, Source: SourceGPLL0}

// Controller is the clock tree facade. It holds nothing but the register space; the hardware
// is the state.
type Controller struct {
	s    mmio.Space
	poll mmio.Poller
	// pllMu serialises the read-modify-write of the shared GPLL0 vote.
	pllMu sync.Mutex
}

func New(s mmio.Space, p mmio.Poller) *Controller {
	return &Controller{s: s, poll: p}
}

func (c *Controller) enablePLL() error {
	c.pllMu.Lock()
	defer c.pllMu.Unlock()
	return EnablePLL(c.s, c.poll)
}

// SetPeriphRate sets up the clocks of a peripheral and returns the rate that was configured.
// Unknown peripherals are left alone and get 0.
func (c *Controller) SetPeriphRate(id Periph, rate uint64) (uint64, error) {
	switch id {
	case PeriphSDC1:
		return c.InitSDC(0, rate)
	case PeriphSDC2:
		return c.InitSDC(1, rate)
	case PeriphUART2:
		return 0, c.InitUART()
	}
	log.Printf("info", "gcc: no clock setup for %v, ignoring rate %d", id, rate)
	return 0, nil
}

// InitSDC clocks SD controller slot 0 or 1 from GPLL0 at 200MHz if that is the requested rate,
// otherwise at 100MHz. The requested rate is returned as-is.
//
// The AHB branch comes first since the generator's registers sit behind it, and the
// generator is programmed before the core (apps) branch is opened so it never sees an
// unprogrammed divider.
func (c *Controller) InitSDC(slot int, rate uint64) (uint64, error) {
	sl, ok := sdcSlots[slot]
	if !ok {
		return 0, fmt.Errorf("no SD controller slot %d", slot)
	}
	div := uint32(sdcDivDefault)
	if rate == SDCHighSpeedRate {
		div = sdcDivHighSpeed
	}
	cfg := DividerConfig{Div: div, Source: SourceGPLL0}

	if err := EnableBranch(c.s, c.poll, sl.ahb); err != nil {
		return 0, fmt.Errorf("couldn't enable SDC%d AHB clock: %w", slot+1, err)
	}
	if err := SetRate(c.s, c.poll, sl.gen, cfg); err != nil {
		return 0, fmt.Errorf("couldn't set SDC%d rate: %w", slot+1, err)
	}
	if err := c.enablePLL(); err != nil {
		return 0, fmt.Errorf("couldn't enable GPLL0 for SDC%d: %w", slot+1, err)
	}
	if err := EnableBranch(c.s, c.poll, sl.apps); err != nil {
		return 0, fmt.Errorf("couldn't enable SDC%d apps clock: %w", slot+1, err)
	}
	log.Printf("info", "gcc: SDC%d %v = %dHz, cfg %#v", slot+1, cfg, cfg.Rate(GPLL0Rate), rcgCfg(c.s.Read32(sl.gen.CfgRCGR)))
	return rate, nil
}

// InitUART clocks the BLSP1 UART2 block at UARTRate, enough for 115200 baud.
func (c *Controller) InitUART() error {
	// Enable iface clk
	if err := EnableBranch(c.s, c.poll, BLSP1_AHB_CBCR); err != nil {
		return fmt.Errorf("couldn't enable BLSP1 AHB clock: %w", err)
	}
	if err := SetRate(c.s, c.poll, uart2Generator, uartConfig); err != nil {
		return fmt.Errorf("couldn't set UART2 rate: %w", err)
	}
	if err := c.enablePLL(); err != nil {
		return fmt.Errorf("couldn't enable GPLL0 for UART2: %w", err)
	}
	// Enable core clk
	if err := EnableBranch(c.s, c.poll, BLSP1_UART2_APPS_CBCR); err != nil {
		return fmt.Errorf("couldn't enable UART2 apps clock: %w", err)
	}
	log.Printf("info", "gcc: UART2 %v = %dHz", uartConfig, uartConfig.Rate(GPLL0Rate))
	return nil
}
