// This file is part of ngaro - https://github.com/db47h/ngaro
//
// Copyright 2016 Denis Bernard <db047h@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

func (i *Instance) trap(k Kind) *Error {
	return &Error{Kind: k, PC: i.pc}
}

// push appends a value to the top of the value stack.
func (i *Instance) push(w Word) {
	i.stack = append(i.stack, w)
}

// pop removes and returns the top of the value stack.
func (i *Instance) pop() (Word, error) {
	if len(i.stack) == 0 {
		return Word{}, i.trap(StackUnderflow)
	}
	w := i.stack[len(i.stack)-1]
	i.stack = i.stack[:len(i.stack)-1]
	return w, nil
}

// peek returns the k-th value from the top of the stack (0 is the top)
// without removing it.
func (i *Instance) peek(k int) (Word, error) {
	idx := len(i.stack) - 1 - k
	if k < 0 || idx < 0 {
		return Word{}, i.trap(StackUnderflow)
	}
	return i.stack[idx], nil
}

// replaceTop overwrites the top of the stack in place.
func (i *Instance) replaceTop(w Word) error {
	if len(i.stack) == 0 {
		return i.trap(StackUnderflow)
	}
	i.stack[len(i.stack)-1] = w
	return nil
}

// requireRegs checks that an instruction carries exactly n register
// operands. The assembler already guarantees this; the check exists so
// a malformed or hand-built Program fails loudly instead of panicking
// on an out-of-range slice access.
func (i *Instance) requireRegs(ins Instruction, n int) error {
	switch {
	case len(ins.Regs) < n:
		return i.trap(RegisterUnderflow)
	case len(ins.Regs) > n:
		return i.trap(RegisterOverflow)
	}
	return nil
}

// Run executes the program from the current PC until it halts, runs
// off the end of the program, or traps.
//
// If the program finishes by executing hlt, Run returns nil and Halted
// reports true. If PC reaches the end of the program without hlt having
// executed, Run also returns nil. Any trap is returned as an *Error
// with Kind set to the offending condition and PC set to the
// instruction that triggered it.
func (i *Instance) Run() (err error) {
	defer func() {
		if e := recover(); e != nil {
			switch e := e.(type) {
			case error:
				err = errors.Wrapf(e, "recovered error @pc=%d/%d stack depth=%d", i.pc, len(i.program), len(i.stack))
			default:
				panic(e)
			}
		}
	}()
	for i.pc < len(i.program) && !i.halted {
		if err := i.step(); err != nil {
			return err
		}
		i.insCount++
		if i.debug {
			i.dump()
			if !i.debugIn.Scan() {
				return nil
			}
		}
	}
	return nil
}

// step executes a single instruction and advances the program counter,
// unless the instruction itself sets it (branches, call, ret).
func (i *Instance) step() error {
	ins := i.program[i.pc]
	switch ins.Op {
	case OpNop, OpData:
		i.pc++

	case OpMov:
		if ins.Imm != nil {
			if err := i.requireRegs(ins, 1); err != nil {
				return err
			}
			i.registers[ins.Regs[0]] = *ins.Imm
			i.tsr = ins.Imm.Tag
		} else {
			if err := i.requireRegs(ins, 2); err != nil {
				return err
			}
			src := i.registers[ins.Regs[1]]
			i.registers[ins.Regs[0]] = src
			i.tsr = src.Tag
		}
		i.pc++

	case OpMovfs:
		if err := i.requireRegs(ins, 1); err != nil {
			return err
		}
		if ins.Imm == nil {
			return i.trap(InvalidOperand)
		}
		w, err := i.peek(int(ins.Imm.I64()))
		if err != nil {
			return err
		}
		i.registers[ins.Regs[0]] = w
		i.tsr = w.Tag
		i.pc++

	case OpSrg:
		if err := i.requireRegs(ins, 2); err != nil {
			return err
		}
		a, b := ins.Regs[0], ins.Regs[1]
		orig := i.registers[a]
		i.registers[a], i.registers[b] = i.registers[b], i.registers[a]
		i.tsr = orig.Tag
		i.pc++

	case OpClr:
		if err := i.requireRegs(ins, 1); err != nil {
			return err
		}
		i.registers[ins.Regs[0]] = U64(0)
		i.tsr = TagU64
		i.pc++

	case OpAdd, OpSub, OpMul, OpDiv:
		if err := i.requireRegs(ins, 3); err != nil {
			return err
		}
		src1, src2 := i.registers[ins.Regs[1]], i.registers[ins.Regs[2]]
		res, err := binArith(ins.Op, src1, src2)
		if err != nil {
			if e, ok := err.(*Error); ok {
				e.PC = i.pc
			}
			return err
		}
		i.registers[ins.Regs[0]] = res
		i.tsr = src1.Tag
		i.pc++

	case OpDec, OpInc:
		if err := i.requireRegs(ins, 1); err != nil {
			return err
		}
		r := ins.Regs[0]
		v := i.registers[r]
		var res Word
		delta := int64(1)
		if ins.Op == OpDec {
			delta = -1
		}
		switch v.Tag {
		case TagF64:
			res = F64(v.F64() + float64(delta))
		case TagI64:
			res = I64(v.I64() + delta)
		default:
			res = U64(uint64(int64(v.U64()) + delta))
		}
		i.registers[r] = res
		i.tsr = v.Tag
		i.pc++

	case OpEq:
		if err := i.requireRegs(ins, 3); err != nil {
			return err
		}
		src1, src2 := i.registers[ins.Regs[1]], i.registers[ins.Regs[2]]
		i.tsr = src1.Tag
		if eqWord(src1, src2) {
			i.registers[ins.Regs[0]] = U64(1)
		} else {
			i.registers[ins.Regs[0]] = U64(0)
		}
		i.pc++

	case OpJt, OpJz, OpJnz:
		if err := i.requireRegs(ins, 1); err != nil {
			return err
		}
		if ins.Imm == nil {
			return i.trap(InvalidOperand)
		}
		v := i.registers[ins.Regs[0]].U64()
		var take bool
		switch ins.Op {
		case OpJt:
			take = v == 1
		case OpJz:
			take = v == 0
		case OpJnz:
			take = v != 0
		}
		if take {
			i.pc = int(ins.Imm.I64())
		} else {
			i.pc++
		}

	case OpSysf:
		selector := i.registers[7].U64()
		if selector == 0 {
			return i.trap(InvalidSysFunc)
		}
		idx := len(i.sysFuncs) - int(selector)
		if idx < 0 || idx >= len(i.sysFuncs) {
			return i.trap(InvalidSysFunc)
		}
		hasReg := len(ins.Regs) == 1
		regIdx := 0
		if hasReg {
			regIdx = ins.Regs[0]
		} else if len(ins.Regs) != 0 {
			return i.trap(RegisterOverflow)
		}
		if err := i.sysFuncs[idx](i, regIdx, hasReg); err != nil {
			if e, ok := err.(*Error); ok && e.PC == 0 {
				e.PC = i.pc
			}
			return err
		}
		i.pc++

	case OpPush:
		switch {
		case ins.Imm != nil:
			if err := i.requireRegs(ins, 0); err != nil {
				return err
			}
			i.push(*ins.Imm)
		case len(ins.Regs) == 1:
			i.push(i.registers[ins.Regs[0]])
		default:
			return i.trap(InvalidOperand)
		}
		i.pc++

	case OpAdds, OpSubs, OpMuls, OpDivs:
		a, err := i.pop()
		if err != nil {
			return err
		}
		b, err := i.pop()
		if err != nil {
			return err
		}
		res, err := binArith(ins.Op, b, a)
		if err != nil {
			if e, ok := err.(*Error); ok {
				e.PC = i.pc
			}
			return err
		}
		i.tsr = b.Tag
		i.push(res)
		i.pc++

	case OpEqs:
		x, err := i.peek(0)
		if err != nil {
			return err
		}
		y, err := i.peek(1)
		if err != nil {
			return err
		}
		i.tsr = y.Tag
		if eqWord(y, x) {
			i.push(U64(1))
		} else {
			i.push(U64(0))
		}
		i.pc++

	case OpDupl:
		if ins.Imm == nil {
			return i.trap(InvalidOperand)
		}
		w, err := i.peek(int(ins.Imm.I64()))
		if err != nil {
			return err
		}
		i.push(w)
		i.pc++

	case OpJts, OpJzs, OpJnzs:
		if ins.Imm == nil {
			return i.trap(InvalidOperand)
		}
		w, err := i.pop()
		if err != nil {
			return err
		}
		v := w.U64()
		var take bool
		switch ins.Op {
		case OpJts:
			take = v == 1
		case OpJzs:
			take = v == 0
		case OpJnzs:
			take = v != 0
		}
		if take {
			i.pc = int(ins.Imm.I64())
		} else {
			i.pc++
		}

	case OpSwc:
		if ins.Imm == nil {
			return i.trap(InvalidOperand)
		}
		k := int(ins.Imm.I64())
		top := len(i.stack) - 1
		other := top - k
		if k < 0 || other < 0 || top < 0 {
			return i.trap(StackUnderflow)
		}
		i.stack[top], i.stack[other] = i.stack[other], i.stack[top]
		i.pc++

	case OpJmp:
		if ins.Imm == nil {
			return i.trap(InvalidOperand)
		}
		i.pc = int(ins.Imm.I64())

	case OpCall:
		if ins.Imm == nil {
			return i.trap(InvalidOperand)
		}
		i.rspc = i.pc + 1
		i.pc = int(ins.Imm.I64())

	case OpAnd, OpOr, OpXor, OpShl, OpShr:
		switch len(ins.Regs) {
		case 0:
			a, err := i.pop()
			if err != nil {
				return err
			}
			b, err := i.pop()
			if err != nil {
				return err
			}
			i.tsr = b.Tag
			i.push(bitwiseBinary(ins.Op, b, a))
		case 3:
			src1, src2 := i.registers[ins.Regs[1]], i.registers[ins.Regs[2]]
			i.registers[ins.Regs[0]] = bitwiseBinary(ins.Op, src1, src2)
			i.tsr = src1.Tag
		default:
			return i.trap(InvalidOperand)
		}
		i.pc++

	case OpNot:
		switch len(ins.Regs) {
		case 0:
			w, err := i.pop()
			if err != nil {
				return err
			}
			i.tsr = w.Tag
			i.push(notWord(w))
		case 2:
			src := i.registers[ins.Regs[1]]
			i.registers[ins.Regs[0]] = notWord(src)
			i.tsr = src.Tag
		default:
			return i.trap(InvalidOperand)
		}
		i.pc++

	case OpPop:
		switch len(ins.Regs) {
		case 0:
			if _, err := i.pop(); err != nil {
				return err
			}
		case 1:
			i.registers[ins.Regs[0]] = U64(0)
			i.tsr = TagU64
		default:
			return i.trap(InvalidOperand)
		}
		i.pc++

	case OpRet:
		i.pc = i.rspc
		i.rspc = 0

	case OpHlt:
		i.halted = true

	case OpPhsr:
		if err := i.requireRegs(ins, 1); err != nil {
			return err
		}
		w, err := i.peek(0)
		if err != nil {
			return err
		}
		i.registers[ins.Regs[0]] = w
		i.tsr = w.Tag
		i.pc++

	default:
		return i.trap(InvalidOpcodeAccess)
	}
	return nil
}

// dump writes a one-line snapshot of the machine state to the debug
// output, used by DebugIO single-step mode.
func (i *Instance) dump() {
	fmt.Fprintf(i.debugOut, "pc=%d op=%s tsr=%s rspc=%d stack=%v regs=%v\n",
		i.pc, i.program[minInt(i.pc, len(i.program)-1)].Op, i.tsr, i.rspc, i.stack, i.registers)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
