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

// Package vm implements the OSVM register-and-stack hybrid virtual
// machine: a tagged 64-bit word, 17 general registers, an unbounded value
// stack, and an interpreter loop over an assembled Program.
//
// Values are never converted between their unsigned, signed and
// floating-point interpretations; the type-state register (TSR) simply
// latches which interpretation last produced a value, and arithmetic
// dispatches on it. A register form and a stack form exist side by side
// for most arithmetic, bitwise and comparison instructions: the register
// form reads its operands from named registers and writes its result to
// one, the stack form pops its operands from (or pushes its result to) the
// top of the value stack.
//
// Control flow is intentionally small: call/ret share a single one-deep
// return slot (rspc), so a call nested inside another call before its
// matching ret silently discards the outer return address. This is a
// documented property of the instruction set, not a bug.
package vm
