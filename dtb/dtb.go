// Package dtb finds the clock controller and SD controllers of an APQ8016/MSM8916 board in a
// flattened device tree.
package dtb

import (
	"encoding/binary"
	"fmt"
	"github.com/platinasystems/fdt"
	"io/ioutil"
	"sort"
	"strings"
)

const (
	DefaultFile = "/sys/firmware/fdt"

	GCCCompatible = "qcom,gcc-msm8916"
	SDCCompatible = "qcom,sdhci-msm-v4"

	fdtMagic      = 0xd00dfeed
	fdtHeaderSize = 40

	defaultRate     = 400000
	defaultBusWidth = 4
	// Used when the parent node doesn't set them.
	defaultAddressCells = 2
	defaultSizeCells    = 1
)

// Block is a register range.
type Block struct {
	Base uint64
	Size uint64
}

func (b Block) String() string {
	return fmt.Sprintf("%08X+%X", b.Base, b.Size)
}

type GCC struct {
	Name    string
	Regs    Block
	Phandle uint32
}

// SDC is one SD controller node.
type SDC struct {
	Name string
	// Host is the standard SDHCI register block, Core the MCI one in front of it.
	Host Block
	Core Block
	Rate uint64
	// ClockPhandle and ClockID are the node's clock specifier. HasClock is set when the
	// phandle refers to the GCC.
	ClockPhandle uint32
	ClockID      uint32
	HasClock     bool
	BusWidth     int
	Index        int
}

type Platform struct {
	Model string
	SoC   string
	GCC   *GCC
	SDCs  []SDC
}

var socVariants = map[string]string{
	"qcom,apq8016": "APQ8016",
	"qcom,msm8916": "MSM8916",
}

// Load reads and parses a device tree blob, by default the one the kernel booted with.
func Load(file string) (*Platform, error) {
	b, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("couldn't read device tree: %v", err)
	}
	p, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse %s: %v", file, err)
	}
	return p, nil
}

func checkHeader(b []byte) error {
	if len(b) < fdtHeaderSize {
		return fmt.Errorf("blob too short (%d bytes)", len(b))
	}
	if m := binary.BigEndian.Uint32(b); m != fdtMagic {
		return fmt.Errorf("bad magic %08X", m)
	}
	if sz := binary.BigEndian.Uint32(b[4:]); int(sz) > len(b) {
		return fmt.Errorf("blob truncated, header says %d bytes, have %d", sz, len(b))
	}
	return nil
}

// Parse extracts the platform from a device tree blob.
func Parse(b []byte) (p *Platform, err error) {
	if err := checkHeader(b); err != nil {
		return nil, err
	}
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	defer func() {
		// The parser indexes the blob without bounds checks.
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("malformed device tree: %v", r)
		}
	}()
	if err := t.Parse(b); err != nil {
		return nil, err
	}
	if t.RootNode == nil {
		return nil, fmt.Errorf("no root node")
	}

	p = &Platform{}
	root := t.RootNode
	if v, ok := root.Properties["model"]; ok {
		p.Model = t.PropString(v)
	}
	for _, c := range stringList(t, root.Properties["compatible"]) {
		if soc, ok := socVariants[c]; ok {
			p.SoC = soc
			break
		}
	}
	if p.SoC == "" {
		return nil, fmt.Errorf("couldn't identify SoC from %q", stringList(t, root.Properties["compatible"]))
	}

	var sdcs []SDC
	var walkErr error
	walk(t, root, defaultAddressCells, defaultSizeCells, func(n *fdt.Node, ac, sc int) {
		if walkErr != nil {
			return
		}
		compat := stringList(t, n.Properties["compatible"])
		switch {
		case contains(compat, GCCCompatible):
			g, err := parseGCC(t, n, ac, sc)
			if err != nil {
				walkErr = err
				return
			}
			p.GCC = g
		case contains(compat, SDCCompatible):
			s, err := parseSDC(t, n, ac, sc)
			if err != nil {
				walkErr = err
				return
			}
			sdcs = append(sdcs, s)
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if p.GCC == nil {
		return nil, fmt.Errorf("no %s node", GCCCompatible)
	}

	for i := range sdcs {
		sdcs[i].HasClock = sdcs[i].ClockPhandle != 0 && sdcs[i].ClockPhandle == p.GCC.Phandle
	}
	sort.Slice(sdcs, func(i, j int) bool { return sdcs[i].Host.Base < sdcs[j].Host.Base })
	p.SDCs = sdcs
	return p, nil
}

// walk calls f for every enabled node below n with the cell sizes n gives its children.
// Children are visited in name order; a disabled node hides its whole subtree.
func walk(t *fdt.Tree, n *fdt.Node, ac, sc int, f func(n *fdt.Node, ac, sc int)) {
	cac, csc := ac, sc
	if v, ok := n.Properties["#address-cells"]; ok && len(v) == 4 {
		cac = int(t.PropUint32(v))
	}
	if v, ok := n.Properties["#size-cells"]; ok && len(v) == 4 {
		csc = int(t.PropUint32(v))
	}
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := n.Children[name]
		if !enabled(t, c) {
			continue
		}
		f(c, cac, csc)
		walk(t, c, cac, csc, f)
	}
}

func parseGCC(t *fdt.Tree, n *fdt.Node, ac, sc int) (*GCC, error) {
	regs, err := reg(t, n, ac, sc)
	if err != nil {
		return nil, err
	}
	g := &GCC{Name: n.Name, Regs: regs[0]}
	if v, ok := n.Properties["phandle"]; ok && len(v) == 4 {
		g.Phandle = t.PropUint32(v)
	} else if v, ok := n.Properties["linux,phandle"]; ok && len(v) == 4 {
		g.Phandle = t.PropUint32(v)
	}
	return g, nil
}

func parseSDC(t *fdt.Tree, n *fdt.Node, ac, sc int) (SDC, error) {
	s := SDC{
		Name:     n.Name,
		Rate:     defaultRate,
		BusWidth: defaultBusWidth,
	}
	regs, err := reg(t, n, ac, sc)
	if err != nil {
		return s, err
	}
	if len(regs) < 2 {
		return s, fmt.Errorf("%s: need host and core reg entries, have %d", n.Name, len(regs))
	}
	s.Host, s.Core = regs[0], regs[1]

	if v, ok := n.Properties["clock-frequency"]; ok && len(v) == 4 {
		s.Rate = uint64(t.PropUint32(v))
	}
	if v, ok := n.Properties["clock"]; ok && len(v) == 8 {
		c := t.PropUint32Slice(v)
		s.ClockPhandle, s.ClockID = c[0], c[1]
	}
	if v, ok := n.Properties["bus-width"]; ok && len(v) == 4 {
		s.BusWidth = int(t.PropUint32(v))
	}
	if v, ok := n.Properties["index"]; ok && len(v) == 4 {
		s.Index = int(t.PropUint32(v))
	}
	return s, nil
}

// reg decodes a node's reg property into blocks.
func reg(t *fdt.Tree, n *fdt.Node, ac, sc int) ([]Block, error) {
	v, ok := n.Properties["reg"]
	if !ok {
		return nil, fmt.Errorf("%s: no reg property", n.Name)
	}
	cells := t.PropUint32Slice(v)
	per := ac + sc
	if per == 0 || len(v)%4 != 0 || len(cells)%per != 0 || len(cells) == 0 {
		return nil, fmt.Errorf("%s: reg has %d bytes, not a multiple of %d cells", n.Name, len(v), per)
	}
	var blocks []Block
	for i := 0; i < len(cells); i += per {
		blocks = append(blocks, Block{
			Base: cellValue(cells[i : i+ac]),
			Size: cellValue(cells[i+ac : i+per]),
		})
	}
	return blocks, nil
}

func cellValue(c []uint32) uint64 {
	var v uint64
	for _, x := range c {
		v = v<<32 | uint64(x)
	}
	return v
}

func enabled(t *fdt.Tree, n *fdt.Node) bool {
	v, ok := n.Properties["status"]
	if !ok {
		return true
	}
	s := t.PropString(v)
	return s == "okay" || s == "ok"
}

// stringList decodes a string list property, dropping the empty tail after the last NUL.
func stringList(t *fdt.Tree, b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var out []string
	for _, s := range t.PropStringSlice(b) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(l []string, s string) bool {
	for _, x := range l {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}
