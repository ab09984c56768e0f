// Package sdhci brings up the Qualcomm MSM SD host controller (qcom,sdhci-msm-v4) and hands it
// to a generic SDHCI stack.
package sdhci

import (
	"errors"
	"fmt"
	"github.com/Jon-Bright/msmctl/gcc"
	"github.com/Jon-Bright/msmctl/mmio"
	"github.com/platinasystems/log"
	"time"
)

// ErrStuckInReset is returned when the core still reports software reset after the settle
// delay.
var ErrStuckInReset = errors.New("stuck in reset")

// ResetSettle is how long the core gets to leave software reset. The reset takes up to 10 HCLK
// plus 15 MCLK cycles, at least 40us.
const ResetSettle = 2 * time.Millisecond

// State is the bring-up state of a Controller.
type State int

const (
	Uninitialized State = iota
	ClockReady
	Reset
	HostMode
	CapabilityPatched
	Ready
	Fault
)

var stateNames = map[State]string{
	Uninitialized:     "Uninitialized",
	ClockReady:        "ClockReady",
	Reset:             "Reset",
	HostMode:          "HostMode",
	CapabilityPatched: "CapabilityPatched",
	Ready:             "Ready",
	Fault:             "Fault",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Clock sets up a peripheral's clocks. gcc.Controller is one.
type Clock interface {
	SetPeriphRate(id gcc.Periph, rate uint64) (uint64, error)
}

// Host describes a brought-up controller to the SDHCI stack.
type Host struct {
	Name     string
	Regs     mmio.Space
	Quirks   Quirk
	Version  uint16
	BusWidth int
	Index    int
}

// Stack is the generic SDHCI layer that takes over once the controller is up. Zero clocks ask
// it to detect the limits itself.
type Stack interface {
	Add(h *Host, maxClk, minClk uint32) error
}

// Config is what the platform binding knows about one controller.
type Config struct {
	Name string
	// Core holds the MCI registers, Host the standard SDHCI ones.
	Core mmio.Space
	Host mmio.Space

	// Clock may be nil, in which case the clocks are assumed to be running already.
	Clock   Clock
	ClockID gcc.Periph
	Rate    uint64

	BusWidth int
	Index    int

	Stack Stack

	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
	// Notify, if set, is called after every state change.
	Notify func(name string, s State)
}

type Controller struct {
	cfg   Config
	state State
	host  *Host
}

func New(cfg Config) *Controller {
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.BusWidth == 0 {
		cfg.BusWidth = 4
	}
	return &Controller{cfg: cfg}
}

func (c *Controller) State() State {
	return c.state
}

// Host returns what was handed to the stack, or nil before the controller is Ready.
func (c *Controller) Host() *Host {
	if c.state != Ready {
		return nil
	}
	return c.host
}

func (c *Controller) set(s State) {
	c.state = s
	if c.cfg.Notify != nil {
		c.cfg.Notify(c.cfg.Name, s)
	}
}

func (c *Controller) fail(err error) error {
	c.set(Fault)
	log.Printf("err", "%s: %v", c.cfg.Name, err)
	return err
}

// Probe runs the controller from Uninitialized to Ready. Any failure leaves it in Fault,
// from where it can't be probed again.
func (c *Controller) Probe() error {
	if c.state != Uninitialized {
		return fmt.Errorf("%s: can't probe in state %v", c.cfg.Name, c.state)
	}
	c.host = &Host{
		Name:     c.cfg.Name,
		Regs:     c.cfg.Host,
		Quirks:   msmQuirks,
		BusWidth: c.cfg.BusWidth,
		Index:    c.cfg.Index,
	}

	if c.cfg.Clock != nil {
		rate, err := c.cfg.Clock.SetPeriphRate(c.cfg.ClockID, c.cfg.Rate)
		if err != nil {
			return c.fail(fmt.Errorf("couldn't init clocks: %w", err))
		}
		log.Printf("info", "%s: %v clock at %dHz", c.cfg.Name, c.cfg.ClockID, rate)
	}
	c.set(ClockReady)

	if err := c.reset(); err != nil {
		return c.fail(err)
	}
	c.set(Reset)

	c.cfg.Core.Write32(MCI_HC_MODE, 1)
	c.set(HostMode)

	c.patchCapabilities()
	c.set(CapabilityPatched)

	c.host.Version = mmio.Read16(c.cfg.Host, SDHCI_HOST_VERSION)
	if c.cfg.Stack != nil {
		if err := c.cfg.Stack.Add(c.host, 0, 0); err != nil {
			return c.fail(fmt.Errorf("SDHCI stack refused host: %w", err))
		}
	}
	c.set(Ready)
	return nil
}

func (c *Controller) reset() error {
	mmio.SetBits(c.cfg.Core, MCI_POWER, MCI_POWER_SW_RST)
	c.cfg.Sleep(ResetSettle)
	if c.cfg.Core.Read32(MCI_POWER)&MCI_POWER_SW_RST != 0 {
		return fmt.Errorf("MCI_POWER %#x: %w", MCI_POWER, ErrStuckInReset)
	}
	return nil
}

// patchCapabilities makes newer cores advertise 3.0V and 8-bit support, which they have
// but don't report.
func (c *Controller) patchCapabilities() {
	v := c.cfg.Core.Read32(MCI_VERSION)
	major := (v & MCI_VERSION_MAJOR_MASK) >> MCI_VERSION_MAJOR_SHIFT
	minor := v & MCI_VERSION_MINOR_MASK
	if major < 1 || legacyMinors[minor] {
		return
	}
	caps := c.cfg.Host.Read32(SDHCI_CAPABILITIES)
	caps |= SDHCI_CAN_VDD_300 | SDHCI_CAN_DO_8BIT
	c.cfg.Host.Write32(SDHCI_VENDOR_SPEC_CAPABILITIES0, caps)
	log.Printf("info", "%s: core %d.%02x, capabilities %08X", c.cfg.Name, major, minor, caps)
}

// Remove takes the core out of host-controller mode. Clocks stay as they are. A faulted
// controller stays in Fault.
func (c *Controller) Remove() error {
	c.cfg.Core.Write32(MCI_HC_MODE, 0)
	if c.state == Fault {
		return nil
	}
	c.set(Uninitialized)
	return nil
}
