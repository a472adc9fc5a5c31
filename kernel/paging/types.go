package paging

// VirtualAddress is an opaque 64-bit kernel- or user-space address. Values
// built by NewVirtualAddress are canonical: bits 63..48 replicate bit 47, per
// the amd64 48-bit virtual address range this package implements (spec.md §2,
// Non-goals excludes 5-level paging). A plain conversion to VirtualAddress
// is not checked; IsCanonical reports whether a value is canonical.
type VirtualAddress uint64

// PhysicalAddress is an opaque 64-bit physical memory address.
type PhysicalAddress uint64

// NewVirtualAddress sign-extends bit 47 of raw across bits 63..48 and
// returns the resulting canonical address. spec.md §9 flags that one
// revision of the source performs this via a shift-left-16/arithmetic-
// shift-right-16 round trip, which is only correct under two's-complement
// signed-shift semantics; Go guarantees that for int64, so the same trick
// is used here, made explicit rather than left implicit.
func NewVirtualAddress(raw uint64) VirtualAddress {
	return VirtualAddress(uint64(int64(raw<<16) >> 16))
}

// IsCanonical reports whether v already has bits 63..48 equal to a sign
// extension of bit 47.
func (v VirtualAddress) IsCanonical() bool {
	return v == NewVirtualAddress(uint64(v))
}

// Uintptr returns v as a raw pointer-sized value for use in unsafe pointer
// arithmetic.
func (v VirtualAddress) Uintptr() uintptr {
	return uintptr(v)
}

// Add returns v offset by delta bytes, re-canonicalized.
func (v VirtualAddress) Add(delta uint64) VirtualAddress {
	return NewVirtualAddress(uint64(v) + delta)
}

// AlignedDown rounds v down to the nearest multiple of size, which must be
// a power of two.
func (v VirtualAddress) AlignedDown(size uint64) VirtualAddress {
	return VirtualAddress(uint64(v) &^ (size - 1))
}

// AlignedTo reports whether v is aligned to size, which must be a power of
// two.
func (v VirtualAddress) AlignedTo(size uint64) bool {
	return uint64(v)&(size-1) == 0
}

// Uint64 returns the raw bit pattern of p.
func (p PhysicalAddress) Uint64() uint64 {
	return uint64(p)
}

// Add returns p offset by delta bytes.
func (p PhysicalAddress) Add(delta uint64) PhysicalAddress {
	return PhysicalAddress(uint64(p) + delta)
}

// AlignedTo reports whether p is aligned to size, which must be a power of
// two.
func (p PhysicalAddress) AlignedTo(size uint64) bool {
	return uint64(p)&(size-1) == 0
}

// indexAtLevel implements index_at_level: bits [12+9*(level-1), +9) of
// vaddr, truncated to 9 bits. level is 1-based (1=L1 .. 4=L4).
func indexAtLevel(level uint8, vaddr VirtualAddress) uint16 {
	shift := levelShift(level)
	return uint16((uint64(vaddr) >> shift) & (EntriesPerTable - 1))
}
