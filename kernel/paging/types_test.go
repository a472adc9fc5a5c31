package paging

import "testing"

func TestNewVirtualAddressSignExtends(t *testing.T) {
	// Bit 47 set => bits 63..48 must all become 1.
	v := NewVirtualAddress(0x0000800000201000)
	if uint64(v) != 0xFFFF800000201000 {
		t.Fatalf("expected sign-extended 0xFFFF800000201000, got %#x", uint64(v))
	}

	// Bit 47 clear => bits 63..48 must all become 0.
	v2 := NewVirtualAddress(0xFFFF7FFFFF201000)
	if uint64(v2) != 0x00007FFFFF201000 {
		t.Fatalf("expected sign-extended 0x00007FFFFF201000, got %#x", uint64(v2))
	}
}

func TestVirtualAddressIsCanonical(t *testing.T) {
	if !NewVirtualAddress(0xFFFF800000201000).IsCanonical() {
		t.Fatal("expected a constructed address to be canonical")
	}

	nonCanonical := VirtualAddress(0x0001800000201000)
	if nonCanonical.IsCanonical() {
		t.Fatal("expected a raw non-canonical bit pattern to be rejected")
	}
}

func TestVirtualAddressRoundTrip(t *testing.T) {
	// scenario 1 from spec.md §8: re-encoding must reproduce v.
	const raw = uint64(0xFFFF800000201000)
	v := NewVirtualAddress(raw)
	if uint64(v) != raw {
		t.Fatalf("expected round-trip to reproduce %#x, got %#x", raw, uint64(v))
	}
}

func TestVirtualAddressAlignedDown(t *testing.T) {
	v := NewVirtualAddress(0xFFFF800000201234)
	got := v.AlignedDown(SmallPageSize)
	if uint64(got) != 0xFFFF800000201000 {
		t.Fatalf("expected 0xFFFF800000201000, got %#x", uint64(got))
	}
}

func TestVirtualAddressAlignedTo(t *testing.T) {
	v := NewVirtualAddress(0xFFFF800000200000)
	if !v.AlignedTo(MediumPageSize) {
		t.Fatal("expected address to be 2 MiB aligned")
	}
	if v.Add(1).AlignedTo(MediumPageSize) {
		t.Fatal("expected address+1 to not be 2 MiB aligned")
	}
}

func TestPhysicalAddressAlignedTo(t *testing.T) {
	p := PhysicalAddress(0x40000000)
	if !p.AlignedTo(LargePageSize) {
		t.Fatal("expected 1 GiB aligned physical address to report aligned")
	}
	if p.Add(1).AlignedTo(LargePageSize) {
		t.Fatal("expected p+1 to not be 1 GiB aligned")
	}
}
