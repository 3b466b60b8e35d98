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
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Moonix1/OSVM/vm"
)

var runLibDir string
var runStats bool

var runCmd = &cobra.Command{
	Use:   "run <INPUT.asm> <OUTPUT.img>",
	Short: "assemble a source file, save the resulting image, and execute it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, entry, err := assembleFile(args[0], libDir(runLibDir))
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

		i, err := newVM(prog, entry, os.Stdout)
		if err != nil {
			return err
		}
		start := time.Now()
		runErr := i.Run()
		if runStats {
			fmt.Fprintf(os.Stderr, "%d instructions executed in %s\n", i.InstructionCount(), time.Since(start))
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runLibDir, "libs", "", "library search directory for %include (default $OSVM_LIBS_DIR)")
	runCmd.Flags().BoolVar(&runStats, "stats", false, "print instruction count and elapsed time to stderr after running")
}

func newVM(prog vm.Program, entry int, out *os.File) (*vm.Instance, error) {
	i, err := vm.New(prog, vm.Output(out), vm.EntryPoint(entry))
	if err != nil {
		return nil, errors.Wrap(err, "create VM instance")
	}
	return i, nil
}
