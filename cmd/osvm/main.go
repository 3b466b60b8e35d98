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

// Command osvm assembles and runs OSVM programs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verboseErrors bool

var rootCmd = &cobra.Command{
	Use:   "osvm",
	Short: "osvm assembles and runs OSVM programs",
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&verboseErrors, "debug", false, "print a full error trace instead of a plain message")
	rootCmd.AddCommand(buildCmd, runCmd, debugCmd)
	if err := rootCmd.Execute(); err != nil {
		atExit(err)
	}
}

// atExit reports a terminal error the way the teacher's CLI does:
// verbosely (with a stack trace, via the %+v verb pkg/errors supports)
// under --debug, tersely otherwise.
func atExit(err error) {
	if err == nil {
		return
	}
	if verboseErrors {
		fmt.Fprintf(os.Stderr, "[Error]: %+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "[Error]: %v\n", err)
	}
	os.Exit(1)
}
