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

package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Moonix1/OSVM/vm"
)

// asmError is a single diagnostic tied to a source line.
type asmError struct {
	Line int
	Msg  string
}

// ErrAsm collects every fatal diagnostic produced while assembling a
// source file. Assemble returns it (rather than a single error) so
// callers can report every mistake in one pass instead of one per
// invocation.
type ErrAsm []asmError

func (e ErrAsm) Error() string {
	var b strings.Builder
	for _, a := range e {
		fmt.Fprintf(&b, "line %d: %s\n", a.Line, a.Msg)
	}
	return strings.TrimRight(b.String(), "\n")
}

type label struct {
	addr    int
	defined bool
}

type labelUse struct {
	imm  *vm.Word
	name string
	line int
}

type parser struct {
	prog   vm.Program
	labels map[string]*label
	consts map[string]vm.Word
	uses   []labelUse
	errs   ErrAsm
	warns  []string
}

func newParser() *parser {
	return &parser{
		labels: make(map[string]*label),
		consts: make(map[string]vm.Word),
	}
}

func (p *parser) error(line int, format string, args ...interface{}) {
	p.errs = append(p.errs, asmError{Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) warn(msg string) {
	p.warns = append(p.warns, msg)
}

func (p *parser) emit(ins vm.Instruction) int {
	idx := len(p.prog)
	p.prog = append(p.prog, ins)
	return idx
}

// useLabel returns an immediate slot that will be patched with name's
// address once the whole program has been scanned. An undefined label
// is not a fatal error: it resolves to address 0 and a diagnostic is
// recorded, per this assembler's forward-reference-friendly design.
func (p *parser) useLabel(name string, line int) *vm.Word {
	w := vm.U64(0)
	p.uses = append(p.uses, labelUse{imm: &w, name: name, line: line})
	return &w
}

func (p *parser) defineLabel(name string, line int) {
	if l, ok := p.labels[name]; ok && l.defined {
		p.error(line, "label %q redefined", name)
		return
	}
	p.labels[name] = &label{addr: len(p.prog), defined: true}
}

func (p *parser) resolve() {
	for _, u := range p.uses {
		if l, ok := p.labels[u.name]; ok && l.defined {
			*u.imm = vm.U64(uint64(l.addr))
			continue
		}
		p.warn(fmt.Sprintf("line %d: unknown label %q, using address 0", u.line, u.name))
		*u.imm = vm.U64(0)
	}
}

// parse scans src line by line, building p.prog, then resolves deferred
// label references.
func (p *parser) parse(src string) error {
	for lineNo, raw := range strings.Split(src, "\n") {
		p.parseLine(raw, lineNo+1)
	}
	p.resolve()
	if len(p.errs) > 0 {
		return p.errs
	}
	return nil
}

func (p *parser) parseLine(raw string, lineNo int) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}
	fields := strings.Fields(line)
	if strings.HasSuffix(fields[0], ":") {
		p.defineLabel(strings.TrimSuffix(fields[0], ":"), lineNo)
		fields = fields[1:]
		if len(fields) == 0 {
			return
		}
	}

	mnemonic := strings.ToLower(fields[0])
	var operandText string
	if len(fields) > 1 {
		operandText = strings.TrimSpace(strings.Join(fields[1:], " "))
	}
	operands := splitOperands(operandText)

	switch mnemonic {
	case ".equ":
		p.parseEqu(operands, lineNo)
		return
	case ".org":
		p.parseOrg(operands, lineNo)
		return
	case ".dat":
		p.parseDat(operands, lineNo)
		return
	}

	op, ok := vm.LookupMnemonic(mnemonic)
	if !ok {
		p.error(lineNo, "unknown mnemonic %q", mnemonic)
		return
	}
	if op == vm.OpPhsr {
		p.warn(fmt.Sprintf("line %d: `phsr` is deprecated, use `movfs rD, $0` instead", lineNo))
	}

	switch op {
	case vm.OpNop, vm.OpAdds, vm.OpSubs, vm.OpMuls, vm.OpDivs, vm.OpEqs,
		vm.OpRet, vm.OpHlt:
		p.requireOperandCount(operands, 0, lineNo, mnemonic)
		p.emit(vm.Instruction{Op: op})

	case vm.OpMov:
		p.parseMov(operands, lineNo)
	case vm.OpMovfs:
		p.parseMovfs(operands, lineNo)
	case vm.OpSrg:
		p.parseTwoReg(op, operands, lineNo, mnemonic)
	case vm.OpClr, vm.OpDec, vm.OpInc, vm.OpPhsr:
		p.parseOneReg(op, operands, lineNo, mnemonic)
	case vm.OpAdd, vm.OpSub, vm.OpMul, vm.OpDiv, vm.OpEq:
		p.parseThreeReg(op, operands, lineNo, mnemonic)
	case vm.OpJt, vm.OpJz, vm.OpJnz:
		p.parseCondJump(op, operands, lineNo, mnemonic)
	case vm.OpSysf:
		p.parseSysf(operands, lineNo)
	case vm.OpPush:
		p.parsePush(operands, lineNo)
	case vm.OpDupl, vm.OpSwc:
		p.parseStackIndexed(op, operands, lineNo, mnemonic)
	case vm.OpJts, vm.OpJzs, vm.OpJnzs, vm.OpJmp, vm.OpCall:
		p.parseBranch(op, operands, lineNo, mnemonic)
	case vm.OpAnd, vm.OpOr, vm.OpXor, vm.OpShl, vm.OpShr:
		p.parseBitwise(op, operands, lineNo, mnemonic)
	case vm.OpNot:
		p.parseNot(operands, lineNo)
	case vm.OpPop:
		p.parsePop(operands, lineNo)
	default:
		p.error(lineNo, "unhandled mnemonic %q", mnemonic)
	}
}

func splitOperands(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *parser) requireOperandCount(operands []string, n, lineNo int, mnemonic string) bool {
	switch {
	case len(operands) < n:
		p.error(lineNo, "%s: too few operands (want %d, got %d)", mnemonic, n, len(operands))
		return false
	case len(operands) > n:
		p.error(lineNo, "%s: too many operands (want %d, got %d)", mnemonic, n, len(operands))
		return false
	}
	return true
}

func (p *parser) reg(tok string, lineNo int, context string) (int, bool) {
	r, ok := vm.RegisterIndex(tok)
	if !ok {
		p.error(lineNo, "%s: %q is not a register", context, tok)
		return 0, false
	}
	return r, true
}

// value parses a bare numeric or character literal, or a name
// previously defined with .equ.
func (p *parser) value(tok string, lineNo int) (vm.Word, bool) {
	if w, ok := p.consts[tok]; ok {
		return w, true
	}
	if len(tok) >= 3 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		r := []rune(tok[1 : len(tok)-1])
		if len(r) == 1 {
			return vm.U64(uint64(r[0])), true
		}
	}
	if strings.ContainsAny(tok, ".eE") {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return vm.F64(f), true
		}
	}
	if !strings.HasPrefix(tok, "-") {
		if u, err := strconv.ParseUint(tok, 0, 64); err == nil {
			return vm.U64(u), true
		}
	}
	if n, err := strconv.ParseInt(tok, 0, 64); err == nil {
		return vm.I64(n), true
	}
	p.error(lineNo, "%q is not a valid value", tok)
	return vm.Word{}, false
}

// immediate parses a '#'-prefixed immediate operand.
func (p *parser) immediate(tok string, lineNo int) (vm.Word, bool) {
	if !strings.HasPrefix(tok, "#") {
		p.error(lineNo, "%q is not an immediate (expected a #-prefixed value)", tok)
		return vm.Word{}, false
	}
	return p.value(tok[1:], lineNo)
}

// stackIndex parses a '$'-prefixed stack index operand.
func (p *parser) stackIndex(tok string, lineNo int) (int64, bool) {
	if !strings.HasPrefix(tok, "$") {
		p.error(lineNo, "%q is not a stack index (expected a $-prefixed value)", tok)
		return 0, false
	}
	n, err := strconv.ParseInt(tok[1:], 0, 64)
	if err != nil {
		p.error(lineNo, "%q is not a valid stack index", tok)
		return 0, false
	}
	return n, true
}

// target resolves a branch/call operand to an immediate word: either a
// literal address or a (possibly forward) label reference.
func (p *parser) target(tok string, lineNo int) *vm.Word {
	if n, err := strconv.ParseInt(tok, 0, 64); err == nil {
		w := vm.I64(n)
		return &w
	}
	if w, ok := p.consts[tok]; ok {
		v := w
		return &v
	}
	return p.useLabel(tok, lineNo)
}

func (p *parser) parseEqu(operands []string, lineNo int) {
	if len(operands) == 1 {
		operands = strings.Fields(operands[0])
	}
	if !p.requireOperandCount(operands, 2, lineNo, ".equ") {
		return
	}
	w, ok := p.value(operands[1], lineNo)
	if !ok {
		return
	}
	p.consts[operands[0]] = w
}

func (p *parser) parseOrg(operands []string, lineNo int) {
	if !p.requireOperandCount(operands, 1, lineNo, ".org") {
		return
	}
	w, ok := p.value(operands[0], lineNo)
	if !ok {
		return
	}
	target := int(w.I64())
	if target < len(p.prog) {
		p.error(lineNo, ".org cannot relocate backward (at %d, target %d)", len(p.prog), target)
		return
	}
	for len(p.prog) < target {
		p.emit(vm.Instruction{Op: vm.OpNop})
	}
}

func (p *parser) parseDat(operands []string, lineNo int) {
	if !p.requireOperandCount(operands, 1, lineNo, ".dat") {
		return
	}
	w, ok := p.value(operands[0], lineNo)
	if !ok {
		return
	}
	p.emit(vm.Instruction{Op: vm.OpData, Imm: &w})
}

func (p *parser) parseMov(operands []string, lineNo int) {
	if !p.requireOperandCount(operands, 2, lineNo, "mov") {
		return
	}
	dst, ok := p.reg(operands[0], lineNo, "mov")
	if !ok {
		return
	}
	if strings.HasPrefix(operands[1], "#") {
		imm, ok := p.immediate(operands[1], lineNo)
		if !ok {
			return
		}
		p.emit(vm.Instruction{Op: vm.OpMov, Imm: &imm, Regs: []int{dst}})
		return
	}
	src, ok := p.reg(operands[1], lineNo, "mov")
	if !ok {
		return
	}
	p.emit(vm.Instruction{Op: vm.OpMov, Regs: []int{dst, src}})
}

func (p *parser) parseMovfs(operands []string, lineNo int) {
	if !p.requireOperandCount(operands, 2, lineNo, "movfs") {
		return
	}
	dst, ok := p.reg(operands[0], lineNo, "movfs")
	if !ok {
		return
	}
	k, ok := p.stackIndex(operands[1], lineNo)
	if !ok {
		return
	}
	imm := vm.I64(k)
	p.emit(vm.Instruction{Op: vm.OpMovfs, Imm: &imm, Regs: []int{dst}})
}

func (p *parser) parseOneReg(op vm.Op, operands []string, lineNo int, mnemonic string) {
	if !p.requireOperandCount(operands, 1, lineNo, mnemonic) {
		return
	}
	r, ok := p.reg(operands[0], lineNo, mnemonic)
	if !ok {
		return
	}
	p.emit(vm.Instruction{Op: op, Regs: []int{r}})
}

func (p *parser) parseTwoReg(op vm.Op, operands []string, lineNo int, mnemonic string) {
	if !p.requireOperandCount(operands, 2, lineNo, mnemonic) {
		return
	}
	a, ok := p.reg(operands[0], lineNo, mnemonic)
	if !ok {
		return
	}
	b, ok := p.reg(operands[1], lineNo, mnemonic)
	if !ok {
		return
	}
	p.emit(vm.Instruction{Op: op, Regs: []int{a, b}})
}

func (p *parser) parseThreeReg(op vm.Op, operands []string, lineNo int, mnemonic string) {
	if !p.requireOperandCount(operands, 3, lineNo, mnemonic) {
		return
	}
	regs := make([]int, 3)
	for i, tok := range operands {
		r, ok := p.reg(tok, lineNo, mnemonic)
		if !ok {
			return
		}
		regs[i] = r
	}
	p.emit(vm.Instruction{Op: op, Regs: regs})
}

func (p *parser) parseCondJump(op vm.Op, operands []string, lineNo int, mnemonic string) {
	if !p.requireOperandCount(operands, 2, lineNo, mnemonic) {
		return
	}
	r, ok := p.reg(operands[0], lineNo, mnemonic)
	if !ok {
		return
	}
	imm := p.target(operands[1], lineNo)
	p.emit(vm.Instruction{Op: op, Imm: imm, Regs: []int{r}})
}

func (p *parser) parseSysf(operands []string, lineNo int) {
	switch len(operands) {
	case 0:
		p.emit(vm.Instruction{Op: vm.OpSysf})
	case 1:
		r, ok := p.reg(operands[0], lineNo, "sysf")
		if !ok {
			return
		}
		p.emit(vm.Instruction{Op: vm.OpSysf, Regs: []int{r}})
	default:
		p.error(lineNo, "sysf: too many operands (want 0 or 1, got %d)", len(operands))
	}
}

func (p *parser) parsePush(operands []string, lineNo int) {
	if !p.requireOperandCount(operands, 1, lineNo, "push") {
		return
	}
	if strings.HasPrefix(operands[0], "#") {
		imm, ok := p.immediate(operands[0], lineNo)
		if !ok {
			return
		}
		p.emit(vm.Instruction{Op: vm.OpPush, Imm: &imm})
		return
	}
	r, ok := p.reg(operands[0], lineNo, "push")
	if !ok {
		return
	}
	p.emit(vm.Instruction{Op: vm.OpPush, Regs: []int{r}})
}

func (p *parser) parseStackIndexed(op vm.Op, operands []string, lineNo int, mnemonic string) {
	if !p.requireOperandCount(operands, 1, lineNo, mnemonic) {
		return
	}
	k, ok := p.stackIndex(operands[0], lineNo)
	if !ok {
		return
	}
	imm := vm.I64(k)
	p.emit(vm.Instruction{Op: op, Imm: &imm})
}

func (p *parser) parseBranch(op vm.Op, operands []string, lineNo int, mnemonic string) {
	if !p.requireOperandCount(operands, 1, lineNo, mnemonic) {
		return
	}
	imm := p.target(operands[0], lineNo)
	p.emit(vm.Instruction{Op: op, Imm: imm})
}

func (p *parser) parseBitwise(op vm.Op, operands []string, lineNo int, mnemonic string) {
	switch len(operands) {
	case 0:
		p.emit(vm.Instruction{Op: op})
	case 3:
		regs := make([]int, 3)
		for i, tok := range operands {
			r, ok := p.reg(tok, lineNo, mnemonic)
			if !ok {
				return
			}
			regs[i] = r
		}
		p.emit(vm.Instruction{Op: op, Regs: regs})
	default:
		p.error(lineNo, "%s: expected 0 operands (stack form) or 3 (register form), got %d", mnemonic, len(operands))
	}
}

func (p *parser) parseNot(operands []string, lineNo int) {
	switch len(operands) {
	case 0:
		p.emit(vm.Instruction{Op: vm.OpNot})
	case 2:
		dst, ok := p.reg(operands[0], lineNo, "not")
		if !ok {
			return
		}
		src, ok := p.reg(operands[1], lineNo, "not")
		if !ok {
			return
		}
		p.emit(vm.Instruction{Op: vm.OpNot, Regs: []int{dst, src}})
	default:
		p.error(lineNo, "not: expected 0 operands (stack form) or 2 (register form), got %d", len(operands))
	}
}

func (p *parser) parsePop(operands []string, lineNo int) {
	switch len(operands) {
	case 0:
		p.emit(vm.Instruction{Op: vm.OpPop})
	case 1:
		r, ok := p.reg(operands[0], lineNo, "pop")
		if !ok {
			return
		}
		p.emit(vm.Instruction{Op: vm.OpPop, Regs: []int{r}})
	default:
		p.error(lineNo, "pop: expected 0 operands (stack form) or 1 (register form), got %d", len(operands))
	}
}
