// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host provides an interactive environment for driving the
// assembler: assembling source files, inspecting the resulting symbol
// table, entry and external lists, and decoding object files.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/beevik/cmd"

	"go14asm/asm"
	"go14asm/cpu"
)

// A Host runs assembler commands read from an input stream and keeps
// the most recently assembled translation unit loaded for inspection.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	lastCmd     *cmd.Selection
	settings    *settings
	stem        string
	tu          *asm.TranslationUnit
}

// New creates a new assembler host environment.
func New() *Host {
	return &Host{
		settings: newSettings(),
	}
}

// RunCommands accepts host commands from a reader and outputs the
// results to a writer. If the commands are interactive, a prompt is
// displayed while the host waits for the next command to be entered.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				h.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}
		} else if h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.Command == nil {
			continue
		}
		h.lastCmd = &c

		handler := c.Command.Data.(func(*Host, cmd.Selection) error)
		err = handler(h, c)
		if err != nil {
			break
		}
	}

	h.flush()
}

func (h *Host) print(args ...any) {
	fmt.Fprint(h.output, args...)
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
		h.flush()
	}
}

func (h *Host) displayUsage(name string) {
	for _, c := range commandList {
		if c.Name == name {
			h.printf("Usage: %s\n", c.Usage)
			return
		}
	}
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.println("Commands:")
		for _, cc := range commandList {
			h.printf("    %-10s %s\n", cc.Name, cc.Brief)
		}
		return nil
	}

	want := strings.ToLower(c.Args[0])
	for _, cc := range commandList {
		if strings.HasPrefix(cc.Name, want) {
			h.printf("Usage: %s\n\n%s\n", cc.Usage, cc.Description)
			return nil
		}
	}
	h.printf("Command '%s' not found.\n", c.Args[0])
	return nil
}

func (h *Host) cmdAssemble(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage("assemble")
		return nil
	}

	stem := c.Args[0]
	if ext := filepath.Ext(stem); ext == ".as" {
		stem = stem[:len(stem)-len(ext)]
	}

	var options asm.Option
	if h.settings.Verbose {
		options |= asm.Verbose
	}

	tu, err := asm.AssembleFile(stem, options, h.output)
	if err != nil {
		h.printf("Failed to assemble '%s.as'.\n", stem)
		return nil
	}

	h.stem, h.tu = stem, tu
	h.printf("Assembled '%s.as': %d code words, %d data words, %d symbols.\n",
		stem, len(tu.Code), len(tu.Data), tu.Symbols.Len())
	return nil
}

func (h *Host) cmdSymbols(c cmd.Selection) error {
	if h.tu == nil {
		h.println("No file assembled.")
		return nil
	}

	h.println("Name                             Kind        Address  Value")
	h.println("-------------------------------- ----------- -------- -----")
	for _, sym := range h.tu.Symbols.All() {
		h.printf("%-32s %-11s 0%-7d %d\n", sym.Name, sym.Kind, sym.Address, sym.Value)
	}
	return nil
}

func (h *Host) cmdEntries(c cmd.Selection) error {
	if h.tu == nil {
		h.println("No file assembled.")
		return nil
	}

	if len(h.tu.Entries) == 0 {
		h.println("No entry symbols.")
		return nil
	}
	for _, sym := range h.tu.Entries {
		h.printf("%s\t0%d\n", sym.Name, sym.Address)
	}
	return nil
}

func (h *Host) cmdExternals(c cmd.Selection) error {
	if h.tu == nil {
		h.println("No file assembled.")
		return nil
	}

	if h.tu.ExternalCount() == 0 {
		h.println("No external references.")
		return nil
	}
	for _, ref := range h.tu.Externals {
		for _, addr := range ref.Addrs {
			h.printf("%s\t0%d\n", ref.Name, addr+cpu.CodeBase)
		}
	}
	return nil
}

func (h *Host) cmdObject(c cmd.Selection) error {
	var filename string
	switch {
	case len(c.Args) > 0:
		filename = c.Args[0]
		if filepath.Ext(filename) == "" {
			filename += ".ob"
		}
	case h.stem != "":
		filename = h.stem + ".ob"
	default:
		h.displayUsage("object")
		return nil
	}

	file, err := os.Open(filename)
	if err != nil {
		h.printf("Failed to open '%s': %v\n", filepath.Base(filename), err)
		return nil
	}
	defer file.Close()

	img, err := asm.ReadObjectFrom(file)
	if err != nil {
		h.printf("Failed to decode '%s': %v\n", filepath.Base(filename), err)
		return nil
	}

	h.printf("%s: %d code words, %d data words\n", filepath.Base(filename),
		img.CodeWords, img.DataWords)
	for i, w := range img.Words {
		if i >= h.settings.MaxDumpLines {
			h.printf("... %d more\n", len(img.Words)-i)
			break
		}
		h.printf("0%d %s  %5d\n", w.Address, w.Encoded(), w.Value)
	}
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayUsage("set")

	default:
		key, value := strings.ToLower(c.Args[0]), strings.Join(c.Args[1:], " ")

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("Setting '%s' not found", key)
		case reflect.String:
			err = h.settings.Set(key, value)
		case reflect.Bool:
			var v bool
			v, err = stringToBool(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v int
			v, err = strconv.Atoi(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		}

		if err == nil {
			h.println("Setting updated.")
		} else {
			h.printf("%v\n", err)
		}
	}

	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return errors.New("Exiting program")
}

func stringToBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, errors.New("invalid boolean value")
}
