package asm

import (
	"strings"
	"testing"

	"github.com/Moonix1/OSVM/vm"
)

func assembleString(t *testing.T, src string) vm.Program {
	t.Helper()
	prog, err := Assemble("test", strings.NewReader(src), "")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return prog
}

func TestAssembleRegisterForm(t *testing.T) {
	prog := assembleString(t, `
		mov r0, #1
		mov r1, #2
		add r2, r0, r1
		hlt
	`)
	if len(prog) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(prog))
	}
	if prog[0].Op != vm.OpMov || prog[0].Imm == nil || prog[0].Imm.U64() != 1 {
		t.Fatalf("unexpected instruction 0: %+v", prog[0])
	}
	if prog[2].Op != vm.OpAdd || len(prog[2].Regs) != 3 {
		t.Fatalf("unexpected instruction 2: %+v", prog[2])
	}
}

func TestAssembleStackForm(t *testing.T) {
	prog := assembleString(t, `
		push #3
		push #4
		adds
		hlt
	`)
	if prog[2].Op != vm.OpAdds || len(prog[2].Regs) != 0 {
		t.Fatalf("unexpected adds instruction: %+v", prog[2])
	}
}

func TestAssembleLabels(t *testing.T) {
	prog := assembleString(t, `
		mov r0, #0
	loop:
		inc r0
		jt r0, loop
		hlt
	`)
	// loop: is defined at index 1, so jt's target immediate must be 1.
	jt := prog[2]
	if jt.Op != vm.OpJt || jt.Imm == nil || jt.Imm.I64() != 1 {
		t.Fatalf("unexpected jt instruction: %+v", jt)
	}
}

func TestAssembleForwardLabel(t *testing.T) {
	prog := assembleString(t, `
		jmp skip
		hlt
	skip:
		nop
	`)
	if prog[0].Imm == nil || prog[0].Imm.I64() != 2 {
		t.Fatalf("expected forward jump target 2, got %+v", prog[0].Imm)
	}
}

func TestAssembleUnknownLabelIsNonFatal(t *testing.T) {
	p := newParser()
	src, err := Preprocess("t", strings.NewReader("jmp nowhere\n"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.parse(src); err != nil {
		t.Fatalf("unknown label should not be a fatal error: %v", err)
	}
	if len(p.warns) == 0 {
		t.Fatal("expected a diagnostic for the unknown label")
	}
	if p.prog[0].Imm.I64() != 0 {
		t.Fatalf("expected unresolved label to default to 0, got %v", p.prog[0].Imm)
	}
}

func TestAssembleArityErrorIsFatal(t *testing.T) {
	_, err := Assemble("t", strings.NewReader("add r0, r1\n"), "")
	if err == nil {
		t.Fatal("expected an arity error")
	}
}

func TestAssembleEquOrgDat(t *testing.T) {
	prog := assembleString(t, `
		.equ BASE 4
		.org BASE
	table:
		.dat 65
		.dat 66
	`)
	if len(prog) != 6 {
		t.Fatalf("expected 6 instructions (4 nop padding + 2 dat), got %d", len(prog))
	}
	for i := 0; i < 4; i++ {
		if prog[i].Op != vm.OpNop {
			t.Fatalf("expected nop padding at %d, got %v", i, prog[i].Op)
		}
	}
	if prog[4].Op != vm.OpData || prog[4].Imm.U64() != 65 {
		t.Fatalf("unexpected table entry 0: %+v", prog[4])
	}
	if prog[5].Op != vm.OpData || prog[5].Imm.U64() != 66 {
		t.Fatalf("unexpected table entry 1: %+v", prog[5])
	}
}

func TestAssembleOrgBackwardIsError(t *testing.T) {
	_, err := Assemble("t", strings.NewReader(`
		nop
		nop
		.org 0
	`), "")
	if err == nil {
		t.Fatal("expected an error relocating .org backward")
	}
}

func TestAssembleComments(t *testing.T) {
	prog := assembleString(t, "nop ; this is a comment\nhlt ; another\n")
	if len(prog) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(prog))
	}
}

func TestAssembleDefine(t *testing.T) {
	prog := assembleString(t, `
		%define ANSWER #42
		mov r0, ANSWER
		hlt
	`)
	if prog[0].Imm == nil || prog[0].Imm.U64() != 42 {
		t.Fatalf("expected %%define substitution to yield 42, got %+v", prog[0].Imm)
	}
}

func TestAssembleLargeU64Immediate(t *testing.T) {
	prog := assembleString(t, "mov r0, #18446744073709551615\nhlt\n")
	if prog[0].Imm == nil || prog[0].Imm.Tag != vm.TagU64 || prog[0].Imm.U64() != 18446744073709551615 {
		t.Fatalf("expected a U64 immediate of max uint64, got %+v", prog[0].Imm)
	}
}

func TestAssembleEntryDefaultsToZero(t *testing.T) {
	_, entry, err := AssembleEntry("t", strings.NewReader("mov r0, #1\nhlt\n"), "")
	if err != nil {
		t.Fatal(err)
	}
	if entry != 0 {
		t.Fatalf("expected default entry point 0, got %d", entry)
	}
}

func TestAssembleEntryHonorsStartLabel(t *testing.T) {
	prog, entry, err := AssembleEntry("t", strings.NewReader(`
		.dat 0
		.dat 0
	_start:
		mov r0, #1
		hlt
	`), "")
	if err != nil {
		t.Fatal(err)
	}
	if entry != 2 {
		t.Fatalf("expected _start entry point 2, got %d", entry)
	}
	if prog[entry].Op != vm.OpMov {
		t.Fatalf("expected entry instruction to be mov, got %+v", prog[entry])
	}
}

func TestDisassembleRoundTrip(t *testing.T) {
	prog := assembleString(t, `
		mov r0, #7
		add r1, r0, r0
		hlt
	`)
	var b strings.Builder
	if err := DisassembleAll(prog, 0, &b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if !strings.Contains(out, "mov") || !strings.Contains(out, "add") || !strings.Contains(out, "hlt") {
		t.Fatalf("unexpected disassembly:\n%s", out)
	}
}
