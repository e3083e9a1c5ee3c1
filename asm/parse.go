// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"strconv"
	"strings"

	"go14asm/cpu"
)

// Labels and constants share a 31-character limit. Macro names are not
// checked against it.
const maxLabelLen = 31

// parseLine parses a single source line into a lineAST. It is a pure
// function of the line text and the fixed keyword tables; the first and
// second passes rely on repeated parses producing equivalent results.
func parseLine(row int, text string) lineAST {
	var ast lineAST
	line := newFstring(row, text)

	// A note line starts with ';' in its first column.
	if line.startsWithChar(';') {
		ast.stmt = noteStmt{}
		return ast
	}

	rest := line
	wordCnt := 0
	for {
		word, r := rest.nextWord()
		if word.isEmpty() {
			break
		}
		wordCnt++

		if name, ok := prelineLabel(word.str); ok {
			if wordCnt > 1 {
				ast.stmt = errorStmt{"a label is in an invalid place"}
				return ast
			}
			ast.label = name
			rest = r
			continue
		}

		if kind, ok := lookupDirective(word.str); ok {
			ast.stmt = parseDirective(r, kind)
			return ast
		}

		if op, ok := cpu.LookupOpcode(word.str); ok {
			ast.stmt = parseInstruction(r, op)
			return ast
		}

		if word.str == ".define" {
			if wordCnt > 1 {
				ast.stmt = errorStmt{"a label must not be defined in a constant definition line"}
				return ast
			}
			ast.stmt = parseConstantDef(r)
			return ast
		}

		if wordCnt == 1 {
			ast.stmt = errorStmt{"the first word must be an instruction or directive or .define or label name"}
		} else {
			ast.stmt = errorStmt{"after defining a label there must be an instruction or directive"}
		}
		return ast
	}

	if wordCnt == 0 {
		ast.stmt = emptyStmt{}
	} else {
		ast.stmt = errorStmt{"the line contains only label name"}
	}
	return ast
}

// operandPrelude consumes whitespace before a statement's operands and
// rejects a comma directly after the statement keyword.
func operandPrelude(rest fstring) (fstring, string) {
	rest = rest.consumeWhitespace()
	if rest.startsWithChar(',') {
		return rest, "there is a comma, after an instruction/directive/define"
	}
	return rest, ""
}

// trailingJunk reports leftover non-whitespace text after the operands.
func trailingJunk(rest fstring) string {
	rest = rest.consumeWhitespace()
	if !rest.isEmpty() {
		return "unexpected characters after operands"
	}
	return ""
}

func parseDirective(rest fstring, kind dirKind) statement {
	rest, detail := operandPrelude(rest)
	if detail != "" {
		return errorStmt{detail}
	}
	if rest.isEmpty() {
		return errorStmt{"a directive word must be followed by an operand"}
	}

	var st directiveStmt
	switch kind {
	case dirEntry, dirExtern:
		st, rest, detail = parseSymbolOperand(rest, kind)
	case dirString:
		st, rest, detail = parseStringOperand(rest)
	case dirData:
		st, rest, detail = parseDataOperands(rest)
	}
	if detail != "" {
		return errorStmt{detail}
	}
	if detail = trailingJunk(rest); detail != "" {
		return errorStmt{detail}
	}
	return st
}

// parseSymbolOperand handles the single label operand of .entry and
// .extern.
func parseSymbolOperand(rest fstring, kind dirKind) (directiveStmt, fstring, string) {
	word, rest := rest.nextWord()
	if !validIdent(word.str) {
		return directiveStmt{}, rest, "an operand of entry and extern must be a proper name of a label"
	}
	return directiveStmt{kind: kind, name: word.str}, rest, ""
}

func parseStringOperand(rest fstring) (directiveStmt, fstring, string) {
	if !rest.startsWithChar('"') {
		return directiveStmt{}, rest, `after the string directive the operand must start with the character "`
	}

	word, rest := rest.consume(1).nextWord()
	if word.isEmpty() {
		return directiveStmt{}, rest, "a string directive must have at least one character after the quotation marks"
	}
	if word.str[len(word.str)-1] != '"' {
		return directiveStmt{}, rest, "in the operand of the directive string there is no closing hyphen"
	}

	text := word.str[:len(word.str)-1]
	for i := 0; i < len(text); i++ {
		if !printable(text[i]) {
			return directiveStmt{}, rest, "the operand of the string directive must include only alphabetic letters between the 2 hyphenes"
		}
	}
	return directiveStmt{kind: dirString, text: text}, rest, ""
}

func parseDataOperands(rest fstring) (directiveStmt, fstring, string) {
	st := directiveStmt{kind: dirData}
	commaCnt := 0
	for !rest.isEmpty() {
		switch {
		case rest.startsWith(whitespace):
			rest = rest.consumeWhitespace()

		case rest.startsWithChar(','):
			if commaCnt > 0 {
				return st, rest, "there are 2 commas between a number and another number"
			}
			commaCnt++
			rest = rest.consume(1)

		default:
			var word fstring
			word, rest = rest.consumeUntil(separator)
			switch {
			case isNumber(word.str):
				n, _ := parseNumber(word.str)
				st.values = append(st.values, dataValue{num: n})
			case validIdent(word.str):
				st.values = append(st.values, dataValue{name: word.str})
			default:
				return st, rest, "for the data directive, you can only enter integers that can be represented in 12 bits by the 2's complement method or or words that meet the syntax requirements of a label"
			}
			commaCnt = 0
		}
	}

	if commaCnt != 0 {
		return st, rest, "there is a comma after the last number"
	}
	return st, rest, ""
}

func parseInstruction(rest fstring, op cpu.Opcode) statement {
	rest, detail := operandPrelude(rest)
	if detail != "" {
		return errorStmt{detail}
	}

	st := instructionStmt{op: op}
	for slot := 2 - op.OperandCount(); slot < 2; slot++ {
		var word fstring
		word, rest = rest.nextWord()
		if word.isEmpty() {
			return errorStmt{"missing operand"}
		}

		o, detail := parseOperand(word.str, op, slot)
		if detail != "" {
			return errorStmt{detail}
		}
		st.operands[slot] = o

		if slot == srcOperand {
			// Between the two operands, allow whitespace and at most
			// one comma.
			commaCnt := 0
			for !rest.isEmpty() && separator(rest.str[0]) {
				if rest.str[0] == ',' {
					if commaCnt > 0 {
						return errorStmt{"multiple commas between 2 operands"}
					}
					commaCnt++
				}
				rest = rest.consume(1)
			}
			if rest.isEmpty() {
				return errorStmt{"missing operand"}
			}
		}
	}

	if detail = trailingJunk(rest); detail != "" {
		return errorStmt{detail}
	}
	return st
}

// parseOperand classifies one instruction operand token and checks it
// against the opcode's admissible addressing modes for the slot.
func parseOperand(word string, op cpu.Opcode, slot int) (operand, string) {
	const badType = "the operation type received an operand of an inappropriate type"

	switch {
	case word[0] == '#':
		if !accepts(op, slot, cpu.IMM) {
			return operand{}, badType
		}
		if len(word) == 1 {
			return operand{}, "# must be followed by a number or constant"
		}
		arg := word[1:]
		if n, ok := parseNumber(arg); ok {
			return operand{kind: opNumber, num: n}, ""
		}
		if validIdent(arg) {
			return operand{kind: opConstant, constName: arg}, ""
		}
		return operand{}, "# must be followed by a number or constant"

	case validIdent(word):
		if !accepts(op, slot, cpu.DIR) {
			return operand{}, badType
		}
		return operand{kind: opLabel, label: word}, ""
	}

	if o, ok := parseLabelIndex(word); ok {
		if !accepts(op, slot, cpu.IDX) {
			return operand{}, badType
		}
		return o, ""
	}

	if r, ok := cpu.LookupRegister(word); ok {
		if !accepts(op, slot, cpu.REG) {
			return operand{}, badType
		}
		return operand{kind: opRegister, num: r}, ""
	}

	return operand{}, badType
}

func accepts(op cpu.Opcode, slot int, m cpu.Mode) bool {
	if slot == dstOperand {
		return op.AcceptsDest(m)
	}
	return op.AcceptsSource(m)
}

// parseLabelIndex recognizes the label[index] operand form, where the
// index is a number or a constant name.
func parseLabelIndex(word string) (operand, bool) {
	open := strings.IndexByte(word, '[')
	if open <= 0 {
		return operand{}, false
	}
	if !validIdent(word[:open]) {
		return operand{}, false
	}

	rest := word[open+1:]
	end := strings.IndexByte(rest, ']')
	if end < 0 || end != len(rest)-1 {
		return operand{}, false
	}

	o := operand{kind: opLabelIndex, label: word[:open]}
	idx := rest[:end]
	if n, ok := parseNumber(idx); ok {
		o.num = n
		return o, true
	}
	if validIdent(idx) {
		o.constName = idx
		return o, true
	}
	return operand{}, false
}

func parseConstantDef(rest fstring) statement {
	rest, detail := operandPrelude(rest)
	if detail != "" {
		return errorStmt{detail}
	}
	if rest.isEmpty() {
		return errorStmt{"a constant definition is missing after the word define"}
	}

	word, rest := rest.nextWord()
	if !validIdent(word.str) {
		return errorStmt{"the first word after .define does not follow the syntax rules for a label"}
	}
	name := word.str

	rest = rest.consumeWhitespace()
	if !rest.startsWithChar('=') {
		return errorStmt{"missing the equality sign in a constant definition statment"}
	}

	rest = rest.consume(1).consumeWhitespace()
	if rest.isEmpty() {
		return errorStmt{"missing a number in a constant definition statement"}
	}

	word, rest = rest.nextWord()
	n, ok := parseNumber(word.str)
	if !ok {
		return errorStmt{"a no valid number is given in a constant definition statement"}
	}

	if detail = trailingJunk(rest); detail != "" {
		return errorStmt{detail}
	}
	return constantDefStmt{name: name, value: n}
}

// prelineLabel recognizes a "NAME:" token opening a line. The returned
// name has the colon stripped.
func prelineLabel(s string) (string, bool) {
	if len(s) < 2 || s[len(s)-1] != ':' {
		return "", false
	}
	name := s[:len(s)-1]
	if !validIdent(name) {
		return "", false
	}
	return name, true
}

// validIdent reports whether s satisfies the identifier rules: first
// character alphabetic, the rest alphanumeric, at most 31 characters,
// and not a reserved word.
func validIdent(s string) bool {
	if len(s) == 0 || len(s) > maxLabelLen || !alpha(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !alphanumeric(s[i]) {
			return false
		}
	}
	return !reservedWord(s)
}

// reservedWord reports whether s names a directive, instruction or
// register.
func reservedWord(s string) bool {
	if _, ok := lookupDirective(s); ok {
		return true
	}
	if _, ok := cpu.LookupOpcode(s); ok {
		return true
	}
	if _, ok := cpu.LookupRegister(s); ok {
		return true
	}
	return false
}

// parseNumber converts a base-10 literal that fits in 12 bits two's
// complement. Literals longer than 5 characters or with trailing
// non-digit characters are rejected.
func parseNumber(s string) (int, bool) {
	if len(s) == 0 || len(s) > 5 {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v < cpu.MinImmediate || v > cpu.MaxImmediate {
		return 0, false
	}
	return int(v), true
}

func isNumber(s string) bool {
	_, ok := parseNumber(s)
	return ok
}
