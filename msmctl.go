package main

import (
	"fmt"
	"github.com/Jon-Bright/msmctl/dtb"
	"github.com/Jon-Bright/msmctl/gcc"
	"github.com/Jon-Bright/msmctl/mmio"
	"github.com/Jon-Bright/msmctl/publish"
	"github.com/Jon-Bright/msmctl/sdhci"
	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"os"
	"strconv"
)

const usage = "usage: msmctl [-dtb FILE] [-redis ADDR] [-hash NAME] [-rate HZ] [-polls N] [-uart] [-remove]"

// The device tree's SDHCI reg size stops short of the vendor capabilities register.
const sdhciRegsSize = sdhci.SDHCI_VENDOR_SPEC_CAPABILITIES0 + 4

const redisTries = 5

type options struct {
	dtb    string
	redis  string
	hash   string
	rate   uint64
	polls  int
	uart   bool
	remove bool
}

func parseArgs(args []string) (*options, error) {
	parm, args := parms.New(args, "-dtb", "-redis", "-hash", "-rate", "-polls")
	flag, args := flags.New(args, "-uart", "-remove")
	if len(args) > 0 {
		return nil, fmt.Errorf("unexpected %q", args)
	}
	o := &options{
		dtb:    dtb.DefaultFile,
		redis:  parm.ByName["-redis"],
		hash:   publish.DefaultHash,
		uart:   flag.ByName["-uart"],
		remove: flag.ByName["-remove"],
	}
	if s := parm.ByName["-dtb"]; len(s) > 0 {
		o.dtb = s
	}
	if s := parm.ByName["-hash"]; len(s) > 0 {
		o.hash = s
	}
	if s := parm.ByName["-rate"]; len(s) > 0 {
		r, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad rate %q: %v", s, err)
		}
		o.rate = r
	}
	if s := parm.ByName["-polls"]; len(s) > 0 {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad poll limit %q", s)
		}
		o.polls = n
	}
	return o, nil
}

// mapBlock maps at least min bytes of a register block.
var mapBlock = func(b dtb.Block, min uint64) (mmio.Space, func() error, error) {
	size := b.Size
	if size < min {
		size = min
	}
	w, err := mmio.Map(uintptr(b.Base), int(size))
	if err != nil {
		return nil, nil, err
	}
	return w, w.Close, nil
}

// publishingClock publishes every rate it sets.
type publishingClock struct {
	c   *gcc.Controller
	pub *publish.Publisher
}

func (pc publishingClock) SetPeriphRate(id gcc.Periph, rate uint64) (uint64, error) {
	got, err := pc.c.SetPeriphRate(id, rate)
	if err != nil {
		return got, err
	}
	if err := pc.pub.Rate(id, got); err != nil {
		log.Print("err", err)
	}
	return got, nil
}

// hostList stands in for the SDHCI stack: it keeps the hosts that came up and reports them.
type hostList struct {
	pub   *publish.Publisher
	hosts []*sdhci.Host
}

func (hl *hostList) Add(h *sdhci.Host, maxClk, minClk uint32) error {
	hl.hosts = append(hl.hosts, h)
	log.Printf("info", "%s: SDHCI version %d vendor %d, %d-bit bus, quirks %#x", h.Name, h.Version&0xFF, h.Version>>8, h.BusWidth, uint32(h.Quirks))
	if err := hl.pub.Version(h.Name, h.Version); err != nil {
		log.Print("err", err)
	}
	return nil
}

type machine struct {
	closers []func() error
}

func (m *machine) mapBlock(b dtb.Block, min uint64) (mmio.Space, error) {
	s, closer, err := mapBlock(b, min)
	if err != nil {
		return nil, fmt.Errorf("couldn't map %v: %v", b, err)
	}
	m.closers = append(m.closers, closer)
	return s, nil
}

func (m *machine) close() {
	for _, c := range m.closers {
		c() // Ignore error
	}
}

func apply(o *options, p *dtb.Platform, pub *publish.Publisher) error {
	m := &machine{}
	defer m.close()

	gs, err := m.mapBlock(p.GCC.Regs, gcc.APCS_GPLL_ENA_VOTE+4)
	if err != nil {
		return err
	}
	clk := publishingClock{gcc.New(gs, mmio.Poller{Limit: o.polls}), pub}

	if o.uart {
		if _, err := clk.SetPeriphRate(gcc.PeriphUART2, gcc.UARTRate); err != nil {
			return err
		}
	}

	hl := &hostList{pub: pub}
	var failed int
	for _, s := range p.SDCs {
		err := applySDC(o, m, s, clk, hl, pub)
		if err != nil {
			log.Print("err", s.Name, ": ", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d SD controllers failed", failed, len(p.SDCs))
	}
	return nil
}

func applySDC(o *options, m *machine, s dtb.SDC, clk sdhci.Clock, hl *hostList, pub *publish.Publisher) error {
	core, err := m.mapBlock(s.Core, sdhci.MCI_HC_MODE+4)
	if err != nil {
		return err
	}
	host, err := m.mapBlock(s.Host, sdhciRegsSize)
	if err != nil {
		return err
	}
	cfg := sdhci.Config{
		Name:     s.Name,
		Core:     core,
		Host:     host,
		ClockID:  gcc.Periph(s.ClockID),
		Rate:     s.Rate,
		BusWidth: s.BusWidth,
		Index:    s.Index,
		Stack:    hl,
		Notify: func(name string, st sdhci.State) {
			if err := pub.State(name, st); err != nil {
				log.Print("err", err)
			}
		},
	}
	if o.rate != 0 {
		cfg.Rate = o.rate
	}
	if s.HasClock {
		cfg.Clock = clk
	} else {
		log.Printf("info", "%s: clock %#x isn't the GCC, leaving clocks alone", s.Name, s.ClockPhandle)
	}
	c := sdhci.New(cfg)
	if o.remove {
		return c.Remove()
	}
	return c.Probe()
}

func run(o *options) error {
	p, err := dtb.Load(o.dtb)
	if err != nil {
		return err
	}
	log.Printf("info", "%s (%s), GCC at %v, %d SD controllers", p.Model, p.SoC, p.GCC.Regs, len(p.SDCs))

	var pub *publish.Publisher
	if len(o.redis) > 0 {
		pub, err = publish.Dial(o.redis, o.hash, redisTries)
		if err != nil {
			return err
		}
		defer pub.Close()
	}
	return apply(o, p, pub)
}

func main() {
	o, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(o); err != nil {
		log.Print("err", "msmctl: ", err)
		// Log output lands in syslog or /dev/kmsg, not on the terminal.
		if isatty.IsTerminal(os.Stderr.Fd()) {
			fmt.Fprintln(os.Stderr, "msmctl:", err)
		}
		os.Exit(1)
	}
}
