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
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/Moonix1/OSVM/internal/osio"
)

// Save writes p to w in OSVM's flat binary image format: a little-endian
// uint64 instruction count, followed by each instruction as an opcode
// byte, an immediate presence byte (and, when present, a tag byte plus
// an 8-byte payload), and a register count byte followed by that many
// register-index bytes.
//
// Register operands are saved by index rather than by name: names exist
// only during assembly, and round-trip fidelity is defined over the
// assembled Program, not the original source text.
func Save(w io.Writer, p Program) error {
	ew := osio.NewErrWriter(w)
	binary.Write(ew, binary.LittleEndian, uint64(len(p)))
	for _, ins := range p {
		binary.Write(ew, binary.LittleEndian, byte(ins.Op))
		if ins.Imm != nil {
			binary.Write(ew, binary.LittleEndian, byte(1))
			binary.Write(ew, binary.LittleEndian, byte(ins.Imm.Tag))
			binary.Write(ew, binary.LittleEndian, ins.Imm.Bits())
		} else {
			binary.Write(ew, binary.LittleEndian, byte(0))
		}
		binary.Write(ew, binary.LittleEndian, byte(len(ins.Regs)))
		for _, r := range ins.Regs {
			binary.Write(ew, binary.LittleEndian, byte(r))
		}
	}
	return ew.Err
}

// Load reads a Program previously written by Save.
func Load(r io.Reader) (Program, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(err, "read instruction count")
	}
	p := make(Program, 0, count)
	for n := uint64(0); n < count; n++ {
		var op byte
		if err := binary.Read(r, binary.LittleEndian, &op); err != nil {
			return nil, errors.Wrapf(err, "read opcode %d", n)
		}
		ins := Instruction{Op: Op(op)}

		var hasImm byte
		if err := binary.Read(r, binary.LittleEndian, &hasImm); err != nil {
			return nil, errors.Wrapf(err, "read immediate flag %d", n)
		}
		if hasImm != 0 {
			var tag byte
			var bits uint64
			if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
				return nil, errors.Wrapf(err, "read immediate tag %d", n)
			}
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, errors.Wrapf(err, "read immediate payload %d", n)
			}
			w := Word{bits: bits, Tag: Tag(tag)}
			ins.Imm = &w
		}

		var regCount byte
		if err := binary.Read(r, binary.LittleEndian, &regCount); err != nil {
			return nil, errors.Wrapf(err, "read register count %d", n)
		}
		if regCount > 0 {
			ins.Regs = make([]int, regCount)
			for j := range ins.Regs {
				var rb byte
				if err := binary.Read(r, binary.LittleEndian, &rb); err != nil {
					return nil, errors.Wrapf(err, "read register operand %d/%d", n, j)
				}
				ins.Regs[j] = int(rb)
			}
		}

		p = append(p, ins)
	}
	return p, nil
}
