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
	"io"
	"os"

	"github.com/Moonix1/OSVM/vm"
)

// Assemble reads assembly source from r, preprocesses it (%include,
// %define, comment stripping) using libDir as the first search path for
// %include targets, and compiles it into a vm.Program.
//
// name identifies the source for diagnostics; if r is a file, name
// should be that file's path.
func Assemble(name string, r io.Reader, libDir string) (vm.Program, error) {
	prog, _, err := AssembleEntry(name, r, libDir)
	return prog, err
}

// AssembleEntry behaves like Assemble but also returns the program's
// entry point: the opcode index of the reserved _start label, or 0 if
// the source defines no such label.
func AssembleEntry(name string, r io.Reader, libDir string) (vm.Program, int, error) {
	src, err := Preprocess(name, r, libDir)
	if err != nil {
		return nil, 0, err
	}
	p := newParser()
	err = p.parse(src)
	for _, w := range p.warns {
		fmt.Fprintln(os.Stderr, w)
	}
	if err != nil {
		return nil, 0, err
	}
	entry := 0
	if l, ok := p.labels["_start"]; ok && l.defined {
		entry = l.addr
	}
	return p.prog, entry, nil
}

// Disassemble writes the disassembly of the instruction at pc to w and
// returns the index of the next instruction.
func Disassemble(prog vm.Program, pc int, w io.Writer) (int, error) {
	ins := prog[pc]
	if _, err := io.WriteString(w, ins.Op.String()); err != nil {
		return pc + 1, err
	}
	parts := make([]string, 0, len(ins.Regs)+1)
	for _, r := range ins.Regs {
		parts = append(parts, fmt.Sprintf("r%d", r))
	}
	if ins.Imm != nil {
		parts = append(parts, formatImm(ins.Imm))
	}
	for i, s := range parts {
		sep := " "
		if i > 0 {
			sep = ", "
		}
		if _, err := io.WriteString(w, sep+s); err != nil {
			return pc + 1, err
		}
	}
	return pc + 1, nil
}

// DisassembleAll writes the disassembly of every instruction in prog to
// w, one per line, prefixed with its address relative to base.
func DisassembleAll(prog vm.Program, base int, w io.Writer) error {
	for pc := 0; pc < len(prog); {
		if _, err := fmt.Fprintf(w, "%04d  ", base+pc); err != nil {
			return err
		}
		next, err := Disassemble(prog, pc, w)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		pc = next
	}
	return nil
}

func formatImm(w *vm.Word) string {
	switch w.Tag {
	case vm.TagF64:
		return fmt.Sprintf("#%g", w.F64())
	case vm.TagI64:
		return fmt.Sprintf("#%d", w.I64())
	case vm.TagPtr:
		return fmt.Sprintf("#%#x", w.U64())
	default:
		return fmt.Sprintf("#%d", w.U64())
	}
}
