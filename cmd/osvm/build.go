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

	"github.com/Moonix1/OSVM/asm"
	"github.com/Moonix1/OSVM/vm"
)

var buildLibDir string

var buildCmd = &cobra.Command{
	Use:   "build <INPUT.asm> <OUTPUT.img>",
	Short: "assemble a source file into a binary image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, _, err := assembleFile(args[0], libDir(buildLibDir))
		if err != nil {
			return err
		}
		f, err := os.Create(args[1])
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		defer f.Close()
		return vm.Save(f, prog)
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildLibDir, "libs", "", "library search directory for %include (default $OSVM_LIBS_DIR)")
}

func libDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("OSVM_LIBS_DIR")
}

// assembleFile assembles the source file at path and returns the
// resulting program along with its entry point (the address of the
// reserved _start label, or 0 if the source defines none).
func assembleFile(path, libs string) (vm.Program, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open source")
	}
	defer f.Close()
	prog, entry, err := asm.AssembleEntry(path, f, libs)
	if err != nil {
		return nil, 0, err
	}
	return prog, entry, nil
}
