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

// Package asm assembles and disassembles OSVM programs.
//
// Grammar:
//
//	[label:] mnemonic [operand[, operand...]]
//
// The bitwise instructions, not and pop have both a register form and a
// stack form under one mnemonic; which one an assembly line compiles to
// is decided by its operand count. Arithmetic, eq and the conditional
// jumps use a separate stack-form mnemonic (add/adds, eq/eqs, jt/jts):
//
//	mnemonic	operands			form
//	nop		(none)
//	mov		rD, rS  |  rD, #imm		register
//	movfs		rD, $k				register, peeks stack index k
//	srg		rA, rB				register, swaps two registers
//	clr		rD				register
//	add sub mul div	rD, rS1, rS2			register
//	dec inc		rD				register
//	eq		rD, rS1, rS2			register
//	jt jz jnz	rD, target			register, conditional branch
//	sysf		(none) | rD			selector taken from r7
//	push		rS  |  #imm
//	adds subs muls divs (none)			stack
//	eqs		(none)				stack
//	dupl swc	$k				stack
//	jts jzs jnzs	target				stack, pops the condition
//	jmp call	target
//	and or xor shl shr (none) | rD, rS1, rS2	stack or register
//	not		(none) | rD, rS			stack or register
//	pop		(none) | rD			stack or register
//	ret hlt		(none)
//	phsr		rD				register, peeks stack top (deprecated)
//
// Operands:
//
//	rN	register reference, r0 through r16
//	#v	immediate value: an integer, float, character literal ('a'), or
//		a name previously bound with .equ
//	$k	stack index, counted from the top (0 is the current top)
//	target	a branch/call destination: an integer literal or a label name
//
// Comments run from the first ';' on a line to the end of the line.
//
// Preprocessing:
//
//	%include "path"		textually inserts another source file, searched
//				first under the configured library directory, then
//				relative to the including file
//	%define NAME value	whole-word text substitution throughout the
//				remaining source
//
// Directives:
//
//	.equ NAME value		binds NAME to value for the rest of assembly;
//				usable anywhere an immediate or target is expected
//	.org value		pads the instruction stream with nop up to the
//				given index; it is an error to specify an index
//				below the current one
//	.dat value		emits value as a standalone word that the
//				interpreter treats as a no-op if control flow
//				ever reaches it; used for embedding tables
//
// Labels are defined with a trailing colon and referenced by name with
// no prefix. Forward references are allowed; a reference to a label
// that is never defined is not a fatal error -- it resolves to address
// 0 and is reported as a diagnostic, since assembling a program with an
// unreachable stub is often more useful than refusing it outright.
package asm
