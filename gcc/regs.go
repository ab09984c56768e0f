package gcc

// Register offsets within the GCC block. See the APQ8016/MSM8916 clock controller layout; the
// values are the ones the boot firmware programs.
const (
	GPLL0_STATUS        = 0x2101C
	GPLL0_STATUS_ACTIVE = 1 << 17

	APCS_GPLL_ENA_VOTE       = 0x45000
	APCS_GPLL_ENA_VOTE_GPLL0 = 1 << 0

	// BLSP1 AHB clock (root clock for BLSP)
	BLSP1_AHB_CBCR = 0x1008

	BLSP1_UART2_APPS_CBCR     = 0x302C
	BLSP1_UART2_APPS_CMD_RCGR = 0x3034
	BLSP1_UART2_APPS_CFG_RCGR = 0x3038
	BLSP1_UART2_APPS_M        = 0x303C
	BLSP1_UART2_APPS_N        = 0x3040
	BLSP1_UART2_APPS_D        = 0x3044

	CBCR_BRANCH_ENABLE_BIT = 1 << 0
	CBCR_BRANCH_OFF_BIT    = 1 << 31

	CMD_RCGR_UPDATE = 1 << 0

	CFG_MODE_DUAL_EDGE = 0x2 << 12 // Counter mode
	CFG_SRC_MASK       = 7 << 8
	CFG_DIV_MASK       = 0x1F
	CFG_MASK           = 0x3FFF
)

// SDC(n) clock control registers; n=1,2

func sdccCmdRCGR(n uintptr) uintptr { return n*0x1000 + 0x41004 }
func sdccCfgRCGR(n uintptr) uintptr { return n*0x1000 + 0x41008 }
func sdccM(n uintptr) uintptr { return n*0x1000 + 0x4100C }
func sdccN(n uintptr) uintptr { return n*0x1000 + 0x41010 }
func sdccD(n uintptr) uintptr { return n*0x1000 + 0x41014 }
func sdccAppsCBCR(n uintptr) uintptr { return n*0x1000 + 0x41018 }
func sdccAhbCBCR(n uintptr) uintptr { return n*0x1000 + 0x4101C }

// Generator is the register layout of one root clock generator (RCG) with an MND divider.
type Generator struct {
	CfgRCGR uintptr
	CmdRCGR uintptr
	M       uintptr
	N       uintptr
	D       uintptr
}

func sdcGenerator(n uintptr) Generator {
	return Generator{
		CfgRCGR: sdccCfgRCGR(n),
		CmdRCGR: sdccCmdRCGR(n),
		M:       sdccM(n),
		N:       sdccN(n),
		D:       sdccD(n),
	}
}

var uart2Generator = Generator{
	CfgRCGR: BLSP1_UART2_APPS_CFG_RCGR,
	CmdRCGR: BLSP1_UART2_APPS_CMD_RCGR,
	M:       BLSP1_UART2_APPS_M,
	N:       BLSP1_UART2_APPS_N,
	D:       BLSP1_UART2_APPS_D,
}

// sdcSlot is everything needed to clock one SD controller slot.
//
// The generators are numbered from 1 while the branches are indexed by the slot itself;
// that is how the boot firmware addresses them and it is kept as-is.
type sdcSlot struct {
	gen  Generator
	ahb  Branch
	apps Branch
}

var sdcSlots = map[int]sdcSlot{
	0: {sdcGenerator(1), Branch(sdccAhbCBCR(0)), Branch(sdccAppsCBCR(0))},
	1: {sdcGenerator(2), Branch(sdccAhbCBCR(1)), Branch(sdccAppsCBCR(1))},
}
