package gate

import (
	"cascade/kernel/cpu"
	"unsafe"
)

// Local APIC register offsets, relative to the MMIO base read out of
// IA32_APIC_BASE. Only the two registers this kernel actually touches are
// named; the rest of the register block is reserved.
const (
	apicBaseMSR = 0x1b

	apicRegSpuriousInterruptVector = 0x0f0
	apicRegEOI                     = 0x0b0

	apicBaseEnableBit = 1 << 11

	// spuriousVectorEnableBit, when set in the Spurious-Interrupt Vector
	// Register, switches the local APIC from disabled (reset state) to
	// enabled.
	spuriousVectorEnableBit = 1 << 8
)

// apicMMIOBase is the virtual address the local APIC's register block is
// mapped at. It is populated by initAPIC from the physical base the CPU
// reports, translated through the kernel's direct map.
var apicMMIOBase uintptr

// directMapBaseFn lets tests (and, before the direct map is installed,
// early boot code) control how a physical APIC base is translated to a
// virtual address, without kernel/gate importing kernel/vmm.
var directMapBaseFn = func(phys uintptr) uintptr { return phys }

// SetDirectMapTranslator installs the function initAPIC uses to turn the
// APIC's physical MMIO base into a virtual address it can dereference.
func SetDirectMapTranslator(fn func(phys uintptr) uintptr) {
	directMapBaseFn = fn
}

var (
	readMSRFn  = cpu.ReadMSR
	writeMSRFn = cpu.WriteMSR
)

// initAPIC reads the local APIC's MMIO base out of IA32_APIC_BASE, ensures
// the APIC is hardware-enabled, maps apicMMIOBase through the kernel's
// direct map and writes the Spurious-Interrupt Vector Register to enable
// interrupt delivery (spec.md §4.3's "platform APIC setup" step).
func initAPIC() {
	base := readMSRFn(apicBaseMSR)
	if base&apicBaseEnableBit == 0 {
		writeMSRFn(apicBaseMSR, base|apicBaseEnableBit)
	}

	physBase := uintptr(base &^ 0xfff)
	apicMMIOBase = directMapBaseFn(physBase)

	writeAPICReg(apicRegSpuriousInterruptVector, uint32(SpuriousInterrupt)|spuriousVectorEnableBit)
}

// sendEOIFn is the seam schedulerInterrupt calls through; tests substitute
// a recorder so EOI delivery can be asserted without real MMIO.
var sendEOIFn = sendEOI

// sendEOI signals End-Of-Interrupt to the local APIC, letting it deliver
// further interrupts of the same or lower priority.
func sendEOI() {
	writeAPICReg(apicRegEOI, 0)
}

func writeAPICReg(offset uintptr, value uint32) {
	reg := (*uint32)(unsafe.Pointer(apicMMIOBase + offset))
	*reg = value
}
