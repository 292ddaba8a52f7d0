// Package si5351 provides constants for register addresses and bitfields used
// in the operation of the Si5351 clock generator.
package si5351

const (
	// 7-bit I2C address.
	AddressDefault = 0x60

	// Crystal frequency fitted to most breakout boards (Hz).
	XtalFreqDefault = 25_000_000

	// --- Status ---
	regDeviceStatus    = 0
	regInterruptStatus = 1

	statusSysInit = 1 << 7
	statusLOLB    = 1 << 6
	statusLOLA    = 1 << 5
	statusLOS     = 1 << 4
	statusRevID   = 0x03

	// --- Output enable / input source ---
	regOutputEnableCtrl = 3
	regPLLInputSource   = 15

	pllInputClkinDivShift = 6
	pllInputPLLBShift     = 3
	pllInputPLLAShift     = 2

	// --- CLKx_CTRL (16..23) ---
	regCLK0Ctrl = 16

	clkCtrlPowerDownShift = 7
	clkCtrlIntModeShift   = 6
	clkCtrlPLLSelectShift = 5
	clkCtrlInvertShift    = 4
	clkCtrlInputShift     = 2
	clkCtrlDriveShift     = 0

	clkCtrlReset   = 0x80 // powered down
	clkCtrlDefault = 0x0C // powered, multisynth source, 2 mA

	// --- Disable state (2 bits per clock) ---
	regCLK3to0DisableState = 24
	regCLK7to4DisableState = 25

	// --- Divider parameters ---
	paramsLength = 8

	regPLLAParams       = 26
	regPLLBParams       = 34
	regCLK0Params       = 42
	regCLK6Params       = 90
	regCLK7Params       = 91
	regCLK6and7OutDiv   = 92
	msRDivShift         = 4
	msDivBy4Shift       = 2
	msDivBy4            = 0x03
	ms67RDivCLK6Shift   = 0
	ms67RDivCLK7Shift   = 4
	msParamsDivByteOffs = 2

	// --- VCXO (Si5351B) ---
	regVCXOParams = 162 // 22-bit pull word, LSB first, through 164

	// --- Phase offset (CLK0..CLK5) ---
	regCLK0PhaseOffset = 165
	phaseMask          = 0x7F

	// --- PLL reset ---
	regPLLReset = 177
	pllResetB   = 1 << 7
	pllResetA   = 1 << 5

	// --- Crystal load ---
	regCrystalLoad       = 183
	crystalLoadShift     = 6
	crystalLoadMask      = 3 << 6
	crystalLoadFixedBits = 0b00010010

	// --- Fanout ---
	regFanoutEnable    = 187
	fanoutCLKInShift   = 7
	fanoutXtalShift    = 6
	fanoutMultiSynShft = 4
)

// Divider limits.
const (
	pllAMin = 15
	pllAMax = 90

	msAMin   = 6
	msAMax   = 1800
	ms67AMax = 254

	p1Max = 1<<18 - 1
	p2Max = 1<<20 - 1
	p3Max = 1<<20 - 1

	// Denominator used for every fractional divider this driver programs.
	rfracDenom = 1_000_000

	vcxoPullMin = 30
	vcxoPullMax = 240
	vcxoMargin  = 103
)
