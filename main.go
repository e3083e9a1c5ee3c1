// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/beevik/term"

	"go14asm/asm"
	"go14asm/host"
)

var (
	interactive bool
	verbose     bool
)

func init() {
	flag.BoolVar(&interactive, "i", false, "enter the interactive host after processing files")
	flag.BoolVar(&verbose, "v", false, "verbose assembly output")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: assembler [options] <stem> ..\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	var options asm.Option
	if verbose {
		options |= asm.Verbose
	}

	// Every file stem on the command line is processed, regardless of
	// failures in earlier ones.
	failed := 0
	for _, stem := range flag.Args() {
		if _, err := asm.AssembleFile(stem, options, os.Stdout); err != nil {
			failed++
		}
	}

	if interactive || flag.NArg() == 0 {
		h := host.New()
		h.RunCommands(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	}

	if failed > 0 {
		os.Exit(1)
	}
}
