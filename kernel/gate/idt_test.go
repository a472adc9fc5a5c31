package gate

import (
	"testing"
	"unsafe"
)

func withStubbedInit(t *testing.T) {
	t.Helper()

	origTrampolineAddrFn, origLidtFn := trampolineAddrFn, lidtFn
	origReadMSRFn, origWriteMSRFn := readMSRFn, writeMSRFn
	origSendEOIFn, origDirectMapBaseFn := sendEOIFn, directMapBaseFn
	origMMIOBase := apicMMIOBase

	// initAPIC (called as part of Init) writes real memory through
	// apicMMIOBase; back it with a host buffer instead of the zero
	// address a real identity-mapped phys base of 0 would imply.
	apicRegisters := make([]uint32, 0x1000/4)

	trampolineAddrFn = func(v IdtVector) uintptr { return uintptr(v) * 16 }
	lidtFn = func(*idtr) {}
	readMSRFn = func(uint32) uint64 { return 0 }
	writeMSRFn = func(uint32, uint64) {}
	sendEOIFn = func() {}
	directMapBaseFn = func(phys uintptr) uintptr { return uintptr(unsafe.Pointer(&apicRegisters[0])) }

	t.Cleanup(func() {
		trampolineAddrFn, lidtFn = origTrampolineAddrFn, origLidtFn
		readMSRFn, writeMSRFn = origReadMSRFn, origWriteMSRFn
		sendEOIFn, directMapBaseFn = origSendEOIFn, origDirectMapBaseFn
		apicMMIOBase = origMMIOBase
	})
}

func TestNewGateDescriptorSplitsAddress(t *testing.T) {
	g := newGateDescriptor(0x1122334455667788, 0x08, 1)

	if g.offsetLow != 0x7788 {
		t.Errorf("expected offsetLow 0x7788, got %#x", g.offsetLow)
	}
	if g.offsetMid != 0x5566 {
		t.Errorf("expected offsetMid 0x5566, got %#x", g.offsetMid)
	}
	if g.offsetHigh != 0x11223344 {
		t.Errorf("expected offsetHigh 0x11223344, got %#x", g.offsetHigh)
	}
	if g.selector != 0x08 {
		t.Errorf("expected selector 0x08, got %#x", g.selector)
	}
	if g.istAndZero != 1 {
		t.Errorf("expected ist 1, got %d", g.istAndZero)
	}
	if g.typeAttr != gateTypeInterrupt {
		t.Errorf("expected typeAttr %#x, got %#x", gateTypeInterrupt, g.typeAttr)
	}
}

func TestInitPopulatesTableAndPinsIST(t *testing.T) {
	withStubbedInit(t)

	Init()

	for v := 0; v < NumberOfHandlers; v++ {
		if idt[v].offsetLow == 0 && idt[v].offsetMid == 0 && idt[v].offsetHigh == 0 && v != 0 {
			t.Errorf("vector %d: expected a non-zero trampoline address", v)
		}
		if handlers[v] == nil {
			t.Errorf("vector %d: expected a default handler to be installed", v)
		}
	}

	if idt[DoubleFault].istAndZero != doubleFaultIST {
		t.Errorf("expected #DF to use IST %d, got %d", doubleFaultIST, idt[DoubleFault].istAndZero)
	}
	if idt[NMI].istAndZero != nmiIST {
		t.Errorf("expected NMI to use IST %d, got %d", nmiIST, idt[NMI].istAndZero)
	}
}

func TestInitInstallsSchedulerHandler(t *testing.T) {
	withStubbedInit(t)

	Init()

	if handlers[Scheduler] == nil {
		t.Fatal("expected a handler to be installed for the scheduler vector")
	}
}

func TestSetHandlerOverridesDefault(t *testing.T) {
	withStubbedInit(t)
	Init()

	called := false
	SetHandler(LegacyIRQTimer, func(*InterruptFrame) { called = true })
	handlers[LegacyIRQTimer](&InterruptFrame{})

	if !called {
		t.Error("expected the installed handler to run")
	}
}
