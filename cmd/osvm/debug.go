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

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Moonix1/OSVM/vm"
)

var debugLibDir string

var debugCmd = &cobra.Command{
	Use:   "debug <INPUT.asm> <OUTPUT.img>",
	Short: "assemble, save, and run a program one instruction at a time",
	Long: "debug assembles a source file, saves the resulting image, and runs it\n" +
		"one instruction at a time. After each instruction a snapshot of the\n" +
		"registers, stack and program counter is written to stdout, and\n" +
		"execution waits for a line of input on stdin before continuing.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, entry, err := assembleFile(args[0], libDir(debugLibDir))
		if err != nil {
			return err
		}
		f, err := os.Create(args[1])
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		if err := vm.Save(f, prog); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "close output file")
		}

		i, err := vm.New(prog, vm.Output(os.Stdout), vm.EntryPoint(entry), vm.DebugIO(os.Stdin, os.Stdout))
		if err != nil {
			return errors.Wrap(err, "create VM instance")
		}
		return i.Run()
	},
}

func init() {
	debugCmd.Flags().StringVar(&debugLibDir, "libs", "", "library search directory for %include (default $OSVM_LIBS_DIR)")
}
