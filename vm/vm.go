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
	"bufio"
	"io"
)

// Option configures an Instance at construction time.
type Option func(*Instance) error

// Output sets the writer print_* system functions write to. Defaults to
// io.Discard.
func Output(w io.Writer) Option {
	return func(i *Instance) error { i.output = w; return nil }
}

// SysFuncTable overrides the system-function table consulted by sysf.
// Defaults to DefaultSysFuncs().
func SysFuncTable(fns []SysFunc) Option {
	return func(i *Instance) error { i.sysFuncs = fns; return nil }
}

// EntryPoint sets the initial program counter. Defaults to 0.
func EntryPoint(pc int) Option {
	return func(i *Instance) error { i.pc = pc; return nil }
}

// DebugIO enables single-step debug mode: after each instruction a
// summary of the machine state is written to w, and execution pauses
// until a line is read from r.
func DebugIO(r io.Reader, w io.Writer) Option {
	return func(i *Instance) error {
		i.debug = true
		i.debugIn = bufio.NewScanner(r)
		i.debugOut = w
		return nil
	}
}

// Instance is a single running OSVM program: its registers, value
// stack, control state and host collaborators.
type Instance struct {
	registers [NumRegisters]Word
	stack     []Word
	tsr       Tag
	rspc      int
	pc        int

	program  Program
	sysFuncs []SysFunc

	ptrs    map[uint64][]byte
	nextPtr uint64

	halted   bool
	output   io.Writer
	debug    bool
	debugIn  *bufio.Scanner
	debugOut io.Writer
	insCount int64
}

// New creates a new Instance ready to run program.
func New(program Program, opts ...Option) (*Instance, error) {
	i := &Instance{
		program:  program,
		sysFuncs: DefaultSysFuncs(),
		output:   io.Discard,
		ptrs:     make(map[uint64][]byte),
		nextPtr:  1,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Registers returns a copy of the 17 general registers.
func (i *Instance) Registers() [NumRegisters]Word {
	return i.registers
}

// Stack returns the current value stack, bottom first. Mutating the
// returned slice does not affect the instance.
func (i *Instance) Stack() []Word {
	s := make([]Word, len(i.stack))
	copy(s, i.stack)
	return s
}

// PC returns the current program counter.
func (i *Instance) PC() int { return i.pc }

// TSR returns the type-state register's current tag.
func (i *Instance) TSR() Tag { return i.tsr }

// Halted reports whether hlt has executed.
func (i *Instance) Halted() bool { return i.halted }

// InstructionCount returns the number of instructions executed so far.
func (i *Instance) InstructionCount() int64 { return i.insCount }

// newPtr allocates a size-byte buffer and returns an opaque handle for
// it. Handle 0 is never issued; it is reserved as the null/invalid
// pointer value.
func (i *Instance) newPtr(size uint64) uint64 {
	buf := make([]byte, size)
	h := i.nextPtr
	i.nextPtr++
	i.ptrs[h] = buf
	return h
}

// releasePtr forgets a handle previously returned by newPtr. Freeing an
// unknown or already-freed handle is a silent no-op, matching the
// original allocator's forwarding-only contract.
func (i *Instance) releasePtr(h uint64) {
	delete(i.ptrs, h)
}
