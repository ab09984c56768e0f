package gcc

import (
	"github.com/Jon-Bright/msmctl/mmio"
	"github.com/Jon-Bright/msmctl/mmio/mmiotest"
	"testing"
)

func TestRegistersIntegerMode(t *testing.T) {
	for div := uint32(1); div <= 16; div++ {
		for _, m := range []uint32{0, 1, 144} {
			d := DividerConfig{Div: div, M: m, Source: SourceGPLL0}
			gm, gn, gd := d.Registers()
			if gm != m || gn != 0 || gd != 0xFFFFFFFF {
				t.Errorf("%v m=%d: got: %08X/%08X/%08X, want: %08X/00000000/FFFFFFFF", d, m, gm, gn, gd, m)
			}
			if d.Cfg(0)&CFG_MODE_DUAL_EDGE != 0 {
				t.Errorf("%v: dual edge mode set in integer mode", d)
			}
		}
	}
}

func TestRegistersFractionalMode(t *testing.T) {
	tests := []struct {
		m, n  uint32
		wantN uint32
		wantD uint32
	}{
		{144, 15625, 0xFFFFC386, 0xFFFFC2F6},
		{1, 1, 0xFFFFFFFF, 0xFFFFFFFE},
		{1, 2, 0xFFFFFFFE, 0xFFFFFFFD},
		{3, 0xFFFF, 0xFFFF0003, 0xFFFF0000},
	}

	for _, test := range tests {
		d := DividerConfig{Div: 1, M: test.m, N: test.n, Source: SourceGPLL0}
		gm, gn, gd := d.Registers()
		if gm != test.m || gn != test.wantN || gd != test.wantD {
			t.Errorf("m=%d n=%d: got: %08X/%08X/%08X, want: %08X/%08X/%08X", test.m, test.n, gm, gn, gd, test.m, test.wantN, test.wantD)
		}
		if gn != ^(test.n-test.m) || gd != ^test.n {
			t.Errorf("m=%d n=%d: N/D not the complements of N-M and N", test.m, test.n)
		}
		if d.Cfg(0)&CFG_MODE_DUAL_EDGE == 0 {
			t.Errorf("m=%d n=%d: dual edge mode not set", test.m, test.n)
		}
	}
}

func TestCfgFields(t *testing.T) {
	tests := []struct {
		prev uint32
		d    DividerConfig
		want uint32
	}{
		{0, DividerConfig{Div: 1, Source: SourceCXO}, 0x00000001},
		{0, DividerConfig{Div: 4, Source: SourceGPLL0}, 0x00000107},
		{0, DividerConfig{Div: 8, Source: SourceGPLL0}, 0x0000010F},
		{0, DividerConfig{Div: 16, Source: SourceGPLL0}, 0x0000011F},
		{0x00003FFF, DividerConfig{Div: 8, Source: SourceGPLL0}, 0x0000010F},
		{0xFFFFFFFF, DividerConfig{Div: 4, Source: SourceGPLL0}, 0xFFFFC107},
		{0x80000000, DividerConfig{Div: 1, M: 144, N: 15625, Source: SourceGPLL0}, 0x80002101},
		{0x00F0C000, DividerConfig{Div: 2, M: 1, N: 3, Source: SourceCXO}, 0x00F0E003},
	}

	for _, test := range tests {
		got := test.d.Cfg(test.prev)
		if got != test.want {
			t.Errorf("%v on %08X: got: %08X, want: %08X (%#v)", test.d, test.prev, got, test.want, rcgCfg(got))
		}
		if div := got & CFG_DIV_MASK; div != 2*test.d.Div-1 {
			t.Errorf("%v: divider field got: %d, want: %d", test.d, div, 2*test.d.Div-1)
		}
		if src := Source(got & CFG_SRC_MASK); src != test.d.Source {
			t.Errorf("%v: source field got: %v, want: %v", test.d, src, test.d.Source)
		}
		if outside := got &^ CFG_MASK; outside != test.prev&^CFG_MASK {
			t.Errorf("%v: bits outside the config field got: %08X, want: %08X", test.d, outside, test.prev&^CFG_MASK)
		}
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		d    DividerConfig
		want uint64
	}{
		{DividerConfig{Div: 4, Source: SourceGPLL0}, 200000000},
		{DividerConfig{Div: 8, Source: SourceGPLL0}, 100000000},
		{uartConfig, UARTRate},
	}
	for _, test := range tests {
		if got := test.d.Rate(GPLL0Rate); got != test.want {
			t.Errorf("%v: got: %d, want: %d", test.d, got, test.want)
		}
	}
}

func TestRcgCfgGoString(t *testing.T) {
	tests := []struct {
		c    rcgCfg
		want string
	}{
		{0x107, "GPLL0|Div(4)"},
		{0x2101, "DualEdge|GPLL0|Div(1)"},
		{0x002, "CXO|Div(1.5)"},
		{0x8000010F, "GPLL0|Div(8)|rcgCfg(80000000)"},
	}
	for _, test := range tests {
		if got := test.c.GoString(); got != test.want {
			t.Errorf("%08X: got: %q, want: %q", uint32(test.c), got, test.want)
		}
	}
}

var testGen = Generator{CfgRCGR: 0x108, CmdRCGR: 0x104, M: 0x10C, N: 0x110, D: 0x114}

func TestSetRateSequence(t *testing.T) {
	f := mmiotest.New()
	f.Set(testGen.CfgRCGR, 0xABCD0000|0x3FFF)
	f.SelfClearing(testGen.CmdRCGR, CMD_RCGR_UPDATE)

	err := SetRate(f, mmio.Poller{Limit: 10}, testGen, DividerConfig{Div: 1, M: 144, N: 15625, Source: SourceGPLL0})
	if err != nil {
		t.Fatalf("SetRate: %v", err)
	}

	var writes []uintptr
	for _, a := range f.Log {
		if a.Write {
			writes = append(writes, a.Off)
		}
	}
	want := []uintptr{testGen.M, testGen.N, testGen.D, testGen.CfgRCGR, testGen.CmdRCGR}
	if len(writes) != len(want) {
		t.Fatalf("writes got: %#x, want: %#x", writes, want)
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("write %d got: %#x, want: %#x", i, writes[i], want[i])
		}
	}
	if got := f.Get(testGen.M); got != 144 {
		t.Errorf("M got: %d, want: 144", got)
	}
	if got := f.Get(testGen.N); got != ^uint32(15625-144) {
		t.Errorf("N got: %08X, want: %08X", got, ^uint32(15625-144))
	}
	if got := f.Get(testGen.D); got != ^uint32(15625) {
		t.Errorf("D got: %08X, want: %08X", got, ^uint32(15625))
	}
	if got := f.Get(testGen.CfgRCGR); got != 0xABCD2101 {
		t.Errorf("CFG got: %08X, want: ABCD2101", got)
	}
	if got := f.Get(testGen.CmdRCGR); got&CMD_RCGR_UPDATE != 0 {
		t.Errorf("CMD UPDATE still set: %08X", got)
	}
	// RMW read, the poll that sees UPDATE still set, and the one that sees it clear.
	if got := f.Reads(testGen.CmdRCGR); got != 3 {
		t.Errorf("CMD reads got: %d, want: 3", got)
	}
}

func TestSetRateUpdateNeverLatches(t *testing.T) {
	f := mmiotest.New()
	f.OnWrite(testGen.CmdRCGR, func(v uint32) uint32 { return v })
	err := SetRate(f, mmio.Poller{Limit: 50}, testGen, DividerConfig{Div: 8, Source: SourceGPLL0})
	if err == nil {
		t.Fatalf("SetRate succeeded with a stuck UPDATE bit")
	}
	if got := f.Reads(testGen.CmdRCGR); got != 51 {
		t.Errorf("CMD reads got: %d, want: 51", got)
	}
}
