package asm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go14asm/cpu"
)

// A macro is a named block of verbatim source lines spliced at each
// invocation site during pre-assembly. Macros live only for the
// pre-processing of one file, but the table is kept afterwards so the
// passes can reject symbols that collide with macro names.
type macro struct {
	name string
	body []string
}

// Source lines are limited to 80 characters before the terminator.
const maxSourceLine = 80

// preprocess streams <stem>.as and writes the macro-expanded text to
// <stem>.am: macro definitions are removed, and each invocation is
// replaced by the stored body of the named macro. On any error the
// partial .am file is deleted and the file is skipped.
func (a *assembler) preprocess() error {
	a.logSection("Expanding macros")

	src, err := os.Open(a.asName)
	if err != nil {
		a.fileError(a.asName, "cannot be opened")
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(a.amName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		a.fileError(a.amName, "cannot be opened")
		return err
	}

	fail := func(line int, detail string) error {
		if line > 0 {
			a.lineError(a.asName, line, detail)
		} else {
			a.fileError(a.asName, detail)
		}
		dst.Close()
		os.Remove(a.amName)
		return errAssembly
	}

	w := bufio.NewWriter(dst)
	r := bufio.NewReader(src)
	var recording *macro
	lineNum := 0

	for {
		text, rerr := r.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			return fail(0, "cannot be read")
		}
		if text == "" && rerr == io.EOF {
			break
		}
		lineNum++

		line := strings.TrimRight(text, "\r\n")
		if len(line) > maxSourceLine {
			return fail(lineNum, "the line contains over 80 characters")
		}

		tokens := splitTokens(line)
		switch {
		case recording != nil:
			switch {
			case len(tokens) > 0 && tokens[0] == "endmcr":
				if len(tokens) > 1 {
					return fail(lineNum, "text exists on the same line after endmcr")
				}
				a.log("macro %s: %d lines", recording.name, len(recording.body))
				recording = nil
			case len(tokens) > 0 && tokens[0] == "mcr":
				return fail(lineNum, "a macro definition inside a macro definition is not allowed")
			default:
				recording.body = append(recording.body, line)
			}

		case isNoteLine(line) || len(tokens) == 0:
			fmt.Fprintln(w, line)

		case tokens[0] == "mcr":
			if len(tokens) == 1 {
				return fail(lineNum, "defining a macro without giving a name")
			}
			if len(tokens) > 2 {
				return fail(lineNum, "there are words in the line of the macro definition except the macro name and mcr")
			}
			name := tokens[1]
			if _, ok := a.macros[name]; ok {
				return fail(lineNum, "attempt to define a macro with the name of a macro that already exists")
			}
			if isKeyword(name) {
				return fail(lineNum, "the macro was given the name of a directive or instruction")
			}
			recording = &macro{name: name}
			a.macros[name] = recording

		case tokens[0] == "endmcr":
			return fail(lineNum, "endmcr without mcr")

		default:
			if m, ok := a.macros[tokens[0]]; ok {
				a.logLine(lineNum, "expanding %s", m.name)
				for _, body := range m.body {
					fmt.Fprintln(w, body)
				}
			} else {
				fmt.Fprintln(w, line)
			}
		}

		if rerr == io.EOF {
			break
		}
	}

	if recording != nil {
		return fail(0, "a macro is defined without closing, i.e. without endmcr")
	}

	if err = w.Flush(); err == nil {
		err = dst.Close()
	} else {
		dst.Close()
	}
	if err != nil {
		os.Remove(a.amName)
		a.fileError(a.amName, "cannot be written")
		return err
	}
	return nil
}

// splitTokens splits a line on whitespace and commas.
func splitTokens(s string) []string {
	var tokens []string
	i := 0
	for i < len(s) {
		for i < len(s) && separator(s[i]) {
			i++
		}
		j := i
		for j < len(s) && !separator(s[j]) {
			j++
		}
		if j > i {
			tokens = append(tokens, s[i:j])
		}
		i = j
	}
	return tokens
}

// isNoteLine reports whether the line's first non-whitespace character
// begins a comment.
func isNoteLine(s string) bool {
	for i := 0; i < len(s); i++ {
		if whitespace(s[i]) {
			continue
		}
		return s[i] == ';'
	}
	return false
}

// isKeyword reports whether s names a directive or instruction, the
// names a macro may not take.
func isKeyword(s string) bool {
	if _, ok := lookupDirective(s); ok {
		return true
	}
	_, ok := cpu.LookupOpcode(s)
	return ok
}
