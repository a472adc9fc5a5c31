package gate

// IdtVector names a slot in the Interrupt Descriptor Table: the 32
// architectural exceptions, the legacy PIC-remapped hardware interrupts,
// the inter-processor scheduler vector and the spurious-interrupt vector.
type IdtVector uint8

// NumberOfHandlers is the number of IDT slots this kernel installs.
const NumberOfHandlers = 256

// Architectural exceptions (vectors 0-31).
const (
	DivideByZero IdtVector = iota
	Debug
	NMI
	Breakpoint
	Overflow
	BoundRangeExceeded
	InvalidOpcode
	DeviceNotAvailable
	DoubleFault
	CoprocessorSegmentOverrun
	InvalidTSS
	SegmentNotPresent
	StackSegmentFault
	GeneralProtectionFault
	PageFault
	reserved15
	FloatingPointException
	AlignmentCheck
	MachineCheck
	SIMDFloatingPointException
	VirtualizationException
	ControlProtectionException
	reserved22
	reserved23
	reserved24
	reserved25
	reserved26
	reserved27
	HypervisorInjectionException
	VMMCommunicationException
	SecurityException
	reserved31
)

// Legacy PIC vectors: the 8259 is remapped so that IRQ0..IRQ15 land at
// vectors 32..47, clear of the CPU-reserved 0..31 range.
const (
	LegacyIRQBase  IdtVector = 32
	LegacyIRQTimer           = LegacyIRQBase + 0
	LegacyIRQKeyboard        = LegacyIRQBase + 1
)

// Scheduler is the platform-assigned vector an executor sends itself (or
// another executor) to request a reschedule.
const Scheduler IdtVector = 48

// SpuriousInterrupt is delivered by the local APIC when an interrupt is
// withdrawn before it can be serviced; the handler must not send an EOI.
const SpuriousInterrupt IdtVector = 255

// IsException reports whether v is one of the 32 CPU-defined exception
// vectors, as opposed to a hardware IRQ or software-assigned vector.
func (v IdtVector) IsException() bool {
	return v < 32
}

// HasErrorCode reports whether the CPU automatically pushes an error code
// onto the stack before invoking the handler for v. This is hard-coded per
// the Intel/AMD architecture manuals, not derivable from the vector number
// alone.
func (v IdtVector) HasErrorCode() bool {
	switch v {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault,
		GeneralProtectionFault, PageFault, AlignmentCheck,
		ControlProtectionException, SecurityException:
		return true
	default:
		return false
	}
}

// String returns a short mnemonic for well-known vectors, and the generic
// string "vector" (without the number) for everything else.
func (v IdtVector) String() string {
	switch v {
	case DivideByZero:
		return "#DE"
	case Debug:
		return "#DB"
	case NMI:
		return "NMI"
	case Breakpoint:
		return "#BP"
	case Overflow:
		return "#OF"
	case BoundRangeExceeded:
		return "#BR"
	case InvalidOpcode:
		return "#UD"
	case DeviceNotAvailable:
		return "#NM"
	case DoubleFault:
		return "#DF"
	case InvalidTSS:
		return "#TS"
	case SegmentNotPresent:
		return "#NP"
	case StackSegmentFault:
		return "#SS"
	case GeneralProtectionFault:
		return "#GP"
	case PageFault:
		return "#PF"
	case FloatingPointException:
		return "#MF"
	case AlignmentCheck:
		return "#AC"
	case MachineCheck:
		return "#MC"
	case SIMDFloatingPointException:
		return "#XM"
	case ControlProtectionException:
		return "#CP"
	case SecurityException:
		return "#SX"
	case Scheduler:
		return "scheduler"
	case SpuriousInterrupt:
		return "spurious"
	default:
		return "vector"
	}
}
