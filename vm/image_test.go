package vm

import (
	"bytes"
	"testing"
)

func TestImageSaveLoadRoundTrip(t *testing.T) {
	src := Program{
		{Op: OpMov, Imm: imm(U64(10)), Regs: []int{0}},
		{Op: OpMov, Imm: imm(F64(3.5)), Regs: []int{1}},
		{Op: OpAdd, Regs: []int{2, 0, 1}},
		{Op: OpPush, Imm: imm(I64(-7))},
		{Op: OpSysf},
		{Op: OpHlt},
	}

	var buf bytes.Buffer
	if err := Save(&buf, src); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(got) != len(src) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(src))
	}
	for i := range src {
		if got[i].Op != src[i].Op {
			t.Fatalf("instruction %d: Op = %v, want %v", i, got[i].Op, src[i].Op)
		}
		if (got[i].Imm == nil) != (src[i].Imm == nil) {
			t.Fatalf("instruction %d: Imm presence mismatch", i)
		}
		if src[i].Imm != nil && (got[i].Imm.Bits() != src[i].Imm.Bits() || got[i].Imm.Tag != src[i].Imm.Tag) {
			t.Fatalf("instruction %d: Imm = %v, want %v", i, got[i].Imm, src[i].Imm)
		}
		if len(got[i].Regs) != len(src[i].Regs) {
			t.Fatalf("instruction %d: Regs = %v, want %v", i, got[i].Regs, src[i].Regs)
		}
		for j := range src[i].Regs {
			if got[i].Regs[j] != src[i].Regs[j] {
				t.Fatalf("instruction %d reg %d: got %d, want %d", i, j, got[i].Regs[j], src[i].Regs[j])
			}
		}
	}
}

func TestImageLoadTruncatedIsError(t *testing.T) {
	var buf bytes.Buffer
	if err := Save(&buf, Program{{Op: OpHlt}}); err != nil {
		t.Fatal(err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:3])
	if _, err := Load(truncated); err == nil {
		t.Fatal("expected an error loading a truncated image")
	}
}
