package gate

import "unsafe"

// idtr is the pseudo-descriptor the LIDT instruction loads: a 16-bit table
// limit (size in bytes minus one) followed by the table's 64-bit linear
// base address. In this Go struct base sits at offset 8, so lidt
// (init_amd64.s) repacks the two fields into the packed 10-byte layout on
// its own frame before executing LIDT.
type idtr struct {
	limit uint16
	base  uint64
}

var idtDescriptor idtr

// idtrFor computes the pseudo-descriptor for the package-level idt array.
func idtrFor() idtr {
	return idtr{
		limit: uint16(unsafe.Sizeof(idt)) - 1,
		base:  uint64(uintptr(unsafe.Pointer(&idt[0]))),
	}
}

// lidtFn points LIDT at a pseudo-descriptor; implemented in init_amd64.s.
// A function-variable seam so tests exercising Init (with trampolineAddrFn
// stubbed) never execute a real LIDT instruction.
var lidtFn = lidt

func lidt(descriptor *idtr)

// loadIDT builds the pseudo-descriptor for the current idt array and loads
// it, making every installed gate live.
func loadIDT() {
	idtDescriptor = idtrFor()
	lidtFn(&idtDescriptor)
}
