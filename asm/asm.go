// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements a macro assembler for the 14-bit word machine
// described by the cpu package. Translation of one source file runs as
// a pipeline: macro expansion into an intermediate file, a first pass
// that collects symbols and assigns addresses, a second pass that
// encodes the instruction and data images, and emission of the object,
// entries and externals files.
package asm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var errAssembly = errors.New("assembly failed")

// detailAllocFailed is the one diagnostic detail the pipeline inspects
// programmatically: it escalates a per-line report to a fatal resource
// error for the current file.
const detailAllocFailed = "memory allocation failed"

// Option type used by the AssembleFile function.
type Option uint

// Options for the AssembleFile function.
const (
	Verbose Option = 1 << iota // verbose output during assembly
)

// The assembler is a state object used during the translation of a
// single source file. Nothing survives between files; every call to
// AssembleFile starts from a fresh assembler.
type assembler struct {
	stem     string            // input path without extension
	asName   string            // <stem>.as, the source file
	amName   string            // <stem>.am, the macro-expanded file
	macros   map[string]*macro // macro table built by the pre-processor
	tu       *TranslationUnit
	out      io.Writer // diagnostic and verbose output
	verbose  bool
	errCount int // per-line and per-file diagnostics so far
}

// AssembleFile translates <stem>.as. It writes <stem>.am and, when
// translation succeeds, <stem>.ob plus <stem>.ent and <stem>.ext as
// needed. Diagnostics go to out. On success the translation unit is
// returned for inspection.
func AssembleFile(stem string, options Option, out io.Writer) (*TranslationUnit, error) {
	if out == nil {
		out = os.Stdout
	}

	a := &assembler{
		stem:    stem,
		asName:  stem + ".as",
		amName:  stem + ".am",
		macros:  make(map[string]*macro),
		tu:      newTranslationUnit(),
		out:     out,
		verbose: (options & Verbose) != 0,
	}

	// Translation consists of the following steps. A step with
	// diagnostics stops the pipeline: later stages run only on clean
	// input.
	steps := []func(a *assembler) error{
		(*assembler).preprocess,
		(*assembler).firstPass,
		(*assembler).secondPass,
		(*assembler).writeOutputs,
	}

	for _, step := range steps {
		if err := step(a); err != nil {
			return nil, err
		}
		if a.errCount > 0 {
			return nil, errAssembly
		}
	}
	return a.tu, nil
}

// lineError reports a per-line diagnostic and records it.
func (a *assembler) lineError(file string, line int, detail string) {
	a.errCount++
	fmt.Fprintf(a.out, "Error in: %s, in line number: %d, %s\n", file, line, detail)
}

// fileError reports a file-level diagnostic and records it.
func (a *assembler) fileError(file string, detail string) {
	a.errCount++
	fmt.Fprintf(a.out, "Error in: %s, %s\n", file, detail)
}

// writeOutputs serializes the translation unit. The entries and
// externals files are produced only when there is something to list.
func (a *assembler) writeOutputs() error {
	a.logSection("Writing output files")

	err := a.writeFile(a.stem+".ob", a.tu.WriteObjectTo)
	if err != nil {
		return err
	}

	if len(a.tu.Entries) > 0 {
		err = a.writeFile(a.stem+".ent", a.tu.WriteEntriesTo)
		if err != nil {
			os.Remove(a.stem + ".ob")
			return err
		}
	}

	if a.tu.ExternalCount() > 0 {
		err = a.writeFile(a.stem+".ext", a.tu.WriteExternalsTo)
		if err != nil {
			os.Remove(a.stem + ".ob")
			os.Remove(a.stem + ".ent")
			return err
		}
	}

	a.log("%-12s code=%d data=%d symbols=%d", a.stem,
		len(a.tu.Code), len(a.tu.Data), a.tu.Symbols.Len())
	return nil
}

// writeFile creates name and fills it through write, deleting the
// partial file if writing fails.
func (a *assembler) writeFile(name string, write func(io.Writer) (int64, error)) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		a.fileError(name, "cannot be opened")
		return err
	}

	_, err = write(f)
	if err == nil {
		err = f.Close()
	} else {
		f.Close()
	}
	if err != nil {
		os.Remove(name)
		a.fileError(name, "cannot be written")
		return err
	}
	return nil
}

// In verbose mode, log a string to the output writer.
func (a *assembler) log(format string, args ...any) {
	if a.verbose {
		fmt.Fprintf(a.out, format, args...)
		fmt.Fprintf(a.out, "\n")
	}
}

// In verbose mode, log a string and its associated line of source.
func (a *assembler) logLine(line int, format string, args ...any) {
	if a.verbose {
		detail := fmt.Sprintf(format, args...)
		fmt.Fprintf(a.out, "%-4d | %s\n", line, detail)
	}
}

// In verbose mode, log a section header to the output writer.
func (a *assembler) logSection(name string) {
	if a.verbose {
		fmt.Fprintln(a.out, strings.Repeat("-", len(name)+6))
		fmt.Fprintf(a.out, "-- %s --\n", name)
		fmt.Fprintln(a.out, strings.Repeat("-", len(name)+6))
	}
}
