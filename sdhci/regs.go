package sdhci

// MCI core registers, which sit in front of the standard SDHCI block on the MSM controllers.
const (
	MCI_POWER        = 0x0
	MCI_POWER_SW_RST = 1 << 7

	// Not in any public documentation.
	MCI_VERSION             = 0x50
	MCI_VERSION_MAJOR_SHIFT = 28
	MCI_VERSION_MAJOR_MASK  = 0xF << MCI_VERSION_MAJOR_SHIFT
	MCI_VERSION_MINOR_MASK  = 0xFF

	MCI_HC_MODE = 0x78
)

// SDHCI host registers.
const (
	SDHCI_CAPABILITIES = 0x40
	SDHCI_CAN_DO_8BIT  = 1 << 18
	SDHCI_CAN_VDD_300  = 1 << 25

	SDHCI_VENDOR_SPEC_CAPABILITIES0 = 0x11C

	SDHCI_HOST_VERSION = 0xFE
)

// Quirk is a set of SDHCI stack workarounds a host needs.
type Quirk uint32

const (
	QuirkBrokenR1B   Quirk = 1 << 2
	QuirkWaitSendCmd Quirk = 1 << 6
)

// msmQuirks are needed by every MSM SDHCI revision.
const msmQuirks = QuirkWaitSendCmd | QuirkBrokenR1B

// legacyMinors are the v1 core revisions that advertise their capabilities correctly.
var legacyMinors = map[uint32]bool{
	0x11: true,
	0x12: true,
}
