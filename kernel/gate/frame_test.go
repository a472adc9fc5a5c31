package gate

import (
	"bytes"
	"strings"
	"testing"
)

func TestVectorNumber(t *testing.T) {
	f := &InterruptFrame{Vector: uint64(PageFault)}
	if got := f.VectorNumber(); got != PageFault {
		t.Errorf("expected VectorNumber() = %v; got %v", PageFault, got)
	}
}

func TestDumpToIncludesRegistersAndVector(t *testing.T) {
	f := &InterruptFrame{
		Vector:    uint64(GeneralProtectionFault),
		ErrorCode: 0x10,
		RAX:       0xdeadbeef,
		RIP:       0x1000,
	}

	var buf bytes.Buffer
	f.DumpTo(&buf)

	out := buf.String()
	for _, want := range []string{"#GP", "deadbeef", "1000"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected dump to contain %q, got:\n%s", want, out)
		}
	}
}
