// gengates generates kernel/gate/trampolines_amd64.s: one tiny stub per IDT
// vector that normalizes the CPU's error-code-or-not calling convention onto
// a uniform two-qword prefix before jumping into the shared trampolineCommon
// body, plus the trampolineAddr lookup table the gate package indexes at
// Init time. The shared trampolineCommon body itself is not generated: it
// is hand-written at the end of trampolines_amd64.s, and a regenerated file
// does not contain it. Mirrors tools/makelogo's shape (flag-driven, stdlib text
// generation, go/printer is not applicable to assembly so the output is
// written as-is).
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
)

// numVectors is the size of the IDT this kernel installs (spec.md §6: 32
// reserved exceptions plus enough external/software vectors to cover the
// local APIC's timer and spurious vectors).
const numVectors = 256

// hasErrorCode lists the exception vectors the CPU pushes a hardware
// error code for; every other vector's trampoline pushes a dummy $0 so the
// shared body always finds the error code at the same stack offset. Must
// stay in sync with kernel/gate's IdtVector.HasErrorCode.
var hasErrorCode = map[int]bool{
	8:  true, // double fault
	10: true, // invalid TSS
	11: true, // segment not present
	12: true, // stack-segment fault
	13: true, // general protection fault
	14: true, // page fault
	17: true, // alignment check
	21: true, // control protection exception
	30: true, // security exception
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[gengates] error: %s\n", err.Error())
	os.Exit(1)
}

func genTrampolines(n int) string {
	var buf bytes.Buffer

	fmt.Fprint(&buf, `// Code generated by tools/gengates. DO NOT EDIT.
//
// Each vector gets a tiny stub that pushes a uniform two-qword prefix
// (dummy error code when the CPU doesn't supply one, then the vector
// number) before jumping into the shared body. Vectors that have a
// hardware error code are the ones kernel/gate's HasErrorCode reports.

#include "textflag.h"

`)

	for v := 0; v < n; v++ {
		fmt.Fprintf(&buf, "TEXT ·trampoline%d(SB), NOSPLIT, $0-0\n", v)
		if !hasErrorCode[v] {
			fmt.Fprint(&buf, "\tPUSHQ\t$0\n")
		}
		fmt.Fprintf(&buf, "\tPUSHQ\t$%d\n", v)
		fmt.Fprint(&buf, "\tJMP\t·trampolineCommon(SB)\n\n")
	}

	fmt.Fprint(&buf, `// trampolineAddr returns the entry address of the generated trampoline for
// vector v, read out of the table below.
TEXT ·trampolineAddr(SB), NOSPLIT, $0-16
	MOVBQZX	v+0(FP), AX
	LEAQ	trampolineTable(SB), BX
	MOVQ	(BX)(AX*8), AX
	MOVQ	AX, ret+8(FP)
	RET

`)

	fmt.Fprintf(&buf, "GLOBL trampolineTable(SB), RODATA, $(%d*8)\n", n)
	for v := 0; v < n; v++ {
		fmt.Fprintf(&buf, "DATA trampolineTable+%d(SB)/8, $·trampoline%d(SB)\n", v*8, v)
	}

	return buf.String()
}

func runTool() error {
	output := flag.String("out", "-", "a file to write the generated assembly or - to output to STDOUT")
	vectors := flag.Int("vectors", numVectors, "the number of IDT vectors to generate trampolines for")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "gengates: emit kernel/gate's per-vector interrupt trampolines\n\n")
		fmt.Fprint(os.Stderr, "Usage: gengates [options]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	out := genTrampolines(*vectors)

	switch *output {
	case "-":
		_, err := fmt.Fprint(os.Stdout, out)
		return err
	default:
		fOut, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer fOut.Close()

		_, err = fmt.Fprint(fOut, out)
		return err
	}
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
