package vm

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, prog Program, opts ...Option) *Instance {
	t.Helper()
	i, err := New(prog, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return i
}

func imm(w Word) *Word { return &w }

func TestAddU64(t *testing.T) {
	prog := Program{
		{Op: OpMov, Imm: imm(U64(10)), Regs: []int{0}},
		{Op: OpMov, Imm: imm(U64(32)), Regs: []int{1}},
		{Op: OpAdd, Regs: []int{2, 0, 1}},
		{Op: OpHlt},
	}
	i := run(t, prog)
	if got := i.registers[2].U64(); got != 42 {
		t.Fatalf("r2 = %d, want 42", got)
	}
	if i.tsr != TagU64 {
		t.Fatalf("tsr = %v, want u64", i.tsr)
	}
}

func TestLoopCountDown(t *testing.T) {
	// r0 = 5; while r0 != 0 { r0-- }
	prog := Program{
		{Op: OpMov, Imm: imm(U64(5)), Regs: []int{0}},
		{Op: OpDec, Regs: []int{0}},        // 1
		{Op: OpJnz, Imm: imm(I64(1)), Regs: []int{0}},
		{Op: OpHlt},
	}
	i := run(t, prog)
	if got := i.registers[0].U64(); got != 0 {
		t.Fatalf("r0 = %d, want 0", got)
	}
	if i.InstructionCount() == 0 {
		t.Fatal("expected a nonzero instruction count")
	}
}

func TestStackArithmetic(t *testing.T) {
	prog := Program{
		{Op: OpPush, Imm: imm(U64(3))},
		{Op: OpPush, Imm: imm(U64(4))},
		{Op: OpAdds},
		{Op: OpHlt},
	}
	i := run(t, prog)
	s := i.Stack()
	if len(s) != 1 || s[0].U64() != 7 {
		t.Fatalf("stack = %v, want [7]", s)
	}
}

func TestCallRetOneDeep(t *testing.T) {
	// call sub; hlt; sub: inc r0; ret
	prog := Program{
		{Op: OpCall, Imm: imm(I64(2))}, // 0
		{Op: OpHlt},                    // 1
		{Op: OpInc, Regs: []int{0}},    // 2 sub:
		{Op: OpRet},                    // 3
	}
	i, err := New(prog)
	if err != nil {
		t.Fatal(err)
	}
	if err := i.Run(); err != nil {
		t.Fatal(err)
	}
	if got := i.registers[0].U64(); got != 1 {
		t.Fatalf("r0 = %d, want 1", got)
	}
}

func TestCallOverwritesOneDeepReturn(t *testing.T) {
	// A call nested inside another call before its ret discards the
	// outer return address: this is a documented ISA property. r2 would
	// only be incremented if control ever returned to address 1, which
	// it must not: the inner call's ret lands back inside "a", not back
	// at the outer call site.
	prog := Program{
		{Op: OpCall, Imm: imm(I64(2))}, // 0: call a
		{Op: OpInc, Regs: []int{2}},    // 1: must never execute
		{Op: OpCall, Imm: imm(I64(5))}, // 2: a: call b
		{Op: OpInc, Regs: []int{0}},    // 3
		{Op: OpHlt},                    // 4
		{Op: OpInc, Regs: []int{1}},    // 5: b:
		{Op: OpRet},                    // 6
	}
	i, err := New(prog)
	if err != nil {
		t.Fatal(err)
	}
	if err := i.Run(); err != nil {
		t.Fatal(err)
	}
	if got := i.registers[2].U64(); got != 0 {
		t.Fatalf("r2 = %d, want 0 (outer return address should have been discarded)", got)
	}
	if got := i.registers[0].U64(); got != 1 {
		t.Fatalf("r0 = %d, want 1", got)
	}
	if got := i.registers[1].U64(); got != 1 {
		t.Fatalf("r1 = %d, want 1", got)
	}
}

func TestFloatMovAdd(t *testing.T) {
	prog := Program{
		{Op: OpMov, Imm: imm(F64(1.5)), Regs: []int{0}},
		{Op: OpMov, Imm: imm(F64(2.25)), Regs: []int{1}},
		{Op: OpAdd, Regs: []int{2, 0, 1}},
		{Op: OpHlt},
	}
	i := run(t, prog)
	if got := i.registers[2].F64(); got != 3.75 {
		t.Fatalf("r2 = %v, want 3.75", got)
	}
	if i.tsr != TagF64 {
		t.Fatalf("tsr = %v, want f64", i.tsr)
	}
}

func TestDivByZeroTraps(t *testing.T) {
	prog := Program{
		{Op: OpMov, Imm: imm(U64(1)), Regs: []int{0}},
		{Op: OpMov, Imm: imm(U64(0)), Regs: []int{1}},
		{Op: OpDiv, Regs: []int{2, 0, 1}},
	}
	i, err := New(prog)
	if err != nil {
		t.Fatal(err)
	}
	err = i.Run()
	if err == nil {
		t.Fatal("expected a DivByZero trap")
	}
	if !strings.Contains(err.Error(), "DivByZero") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDivByZeroTrapsOnZeroDividend(t *testing.T) {
	prog := Program{
		{Op: OpMov, Imm: imm(U64(0)), Regs: []int{0}},
		{Op: OpMov, Imm: imm(U64(5)), Regs: []int{1}},
		{Op: OpDiv, Regs: []int{2, 0, 1}},
	}
	i, err := New(prog)
	if err != nil {
		t.Fatal(err)
	}
	err = i.Run()
	if err == nil {
		t.Fatal("expected a DivByZero trap when the dividend reads as zero")
	}
	if !strings.Contains(err.Error(), "DivByZero") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStackUnderflowTraps(t *testing.T) {
	prog := Program{{Op: OpAdds}}
	i, err := New(prog)
	if err != nil {
		t.Fatal(err)
	}
	if err := i.Run(); err == nil {
		t.Fatal("expected a StackUnderflow trap")
	}
}

func TestPopRegisterFormDoesNotTouchStack(t *testing.T) {
	prog := Program{
		{Op: OpPush, Imm: imm(U64(9))},
		{Op: OpMov, Imm: imm(U64(123)), Regs: []int{0}},
		{Op: OpPop, Regs: []int{0}},
		{Op: OpHlt},
	}
	i := run(t, prog)
	if got := i.registers[0].U64(); got != 0 {
		t.Fatalf("r0 = %d, want 0", got)
	}
	if len(i.Stack()) != 1 {
		t.Fatalf("stack should be untouched by register-form pop, got %v", i.Stack())
	}
}

func TestEqsPeeksWithoutPopping(t *testing.T) {
	prog := Program{
		{Op: OpPush, Imm: imm(U64(5))},
		{Op: OpPush, Imm: imm(U64(5))},
		{Op: OpEqs},
		{Op: OpHlt},
	}
	i := run(t, prog)
	s := i.Stack()
	if len(s) != 3 {
		t.Fatalf("expected 3 values on stack (2 operands kept + bool result), got %v", s)
	}
	if s[2].U64() != 1 {
		t.Fatalf("expected eqs result 1, got %v", s[2])
	}
}

func TestSysfPrintRegisterForm(t *testing.T) {
	var buf bytes.Buffer
	prog := Program{
		{Op: OpMov, Imm: imm(U64(3)), Regs: []int{7}}, // select print_u64 (table len 6, r7=3 -> idx 3)
		{Op: OpMov, Imm: imm(U64(99)), Regs: []int{0}},
		{Op: OpSysf, Regs: []int{0}},
		{Op: OpHlt},
	}
	run(t, prog, Output(&buf))
	if buf.String() != "99" {
		t.Fatalf("output = %q, want %q", buf.String(), "99")
	}
}

func TestSysfInvalidSelectorTraps(t *testing.T) {
	prog := Program{
		{Op: OpSysf},
	}
	i, err := New(prog)
	if err != nil {
		t.Fatal(err)
	}
	if err := i.Run(); err == nil {
		t.Fatal("expected InvalidSysFunc trap when r7 is 0")
	}
}

func TestAllocFreeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	prog := Program{
		{Op: OpMov, Imm: imm(U64(1)), Regs: []int{7}}, // select alloc (idx 5)
		{Op: OpMov, Imm: imm(U64(16)), Regs: []int{0}},
		{Op: OpSysf, Regs: []int{0}},
		{Op: OpMov, Imm: imm(U64(2)), Regs: []int{7}}, // select free (idx 4)
		{Op: OpSysf, Regs: []int{0}},
		{Op: OpHlt},
	}
	i := run(t, prog, Output(&buf))
	if i.registers[0].Tag != TagPtr {
		t.Fatalf("expected r0 tagged as ptr after alloc, got %v", i.registers[0].Tag)
	}
	if len(i.ptrs) != 0 {
		t.Fatalf("expected the handle to be released, registry has %d entries", len(i.ptrs))
	}
}
