package asm

import (
	"bufio"
	"os"

	"go14asm/cpu"
)

// secondPass re-streams the macro-expanded file and encodes each line
// into 14-bit words. The parser is deterministic, so the words land at
// the image positions the first pass counted. The pass resolves label
// operands to symbol addresses, records external references, and
// enforces that constants are defined on an earlier line.
func (a *assembler) secondPass() error {
	a.logSection("Second pass")

	f, err := os.Open(a.amName)
	if err != nil {
		a.fileError(a.amName, "cannot be opened")
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		ast := parseLine(lineNum, scanner.Text())

		switch st := ast.stmt.(type) {
		case errorStmt:
			// Syntax errors were reported by the first pass, which must
			// have been clean for this pass to run. Only a resource
			// failure can still surface.
			if st.detail == detailAllocFailed {
				a.lineError(a.amName, lineNum, st.detail)
				return errAssembly
			}

		case instructionStmt:
			a.encodeInstruction(st, lineNum)

		case directiveStmt:
			a.encodeDirective(st, lineNum)
		}
	}
	if err = scanner.Err(); err != nil {
		a.fileError(a.amName, "cannot be read")
		return err
	}
	return nil
}

// encodeInstruction emits the opcode word followed by the operand
// words, in source-then-destination order.
func (a *assembler) encodeInstruction(st instructionStmt, lineNum int) {
	src, dst := st.operands[srcOperand], st.operands[dstOperand]

	var first cpu.Word
	first |= cpu.Word(dst.mode()) << 2
	first |= cpu.Word(src.mode()) << 4
	first |= cpu.Word(st.op) << 6
	a.emitCode(first)

	// Two register operands share one extra word.
	if src.kind == opRegister && dst.kind == opRegister {
		a.emitCode(cpu.Word(src.num)<<5 | cpu.Word(dst.num)<<2)
		return
	}

	for slot, o := range st.operands {
		switch o.kind {
		case opNumber:
			a.emitCode(immediateWord(o.num))

		case opConstant:
			sym, detail := a.resolveConstant(o.constName, lineNum)
			if detail != "" {
				a.lineError(a.amName, lineNum, detail)
				continue
			}
			a.emitCode(immediateWord(sym.Value))

		case opRegister:
			if slot == srcOperand {
				a.emitCode(cpu.Word(o.num) << 5)
			} else {
				a.emitCode(cpu.Word(o.num) << 2)
			}

		case opLabel:
			a.emitLabelWord(o.label, lineNum)

		case opLabelIndex:
			if !a.emitLabelWord(o.label, lineNum) {
				continue
			}
			if o.constName != "" {
				sym, detail := a.resolveConstant(o.constName, lineNum)
				if detail != "" {
					a.lineError(a.amName, lineNum, detail)
					continue
				}
				a.emitCode(immediateWord(sym.Value))
			} else {
				a.emitCode(immediateWord(o.num))
			}
		}
	}
}

// encodeDirective emits the data-image words of a .data or .string
// directive. .entry and .extern emit nothing in the second pass.
func (a *assembler) encodeDirective(st directiveStmt, lineNum int) {
	switch st.kind {
	case dirString:
		for i := 0; i < len(st.text); i++ {
			a.emitData(cpu.Word(st.text[i]))
		}
		a.emitData(0)

	case dirData:
		for _, v := range st.values {
			if v.name != "" {
				sym, detail := a.resolveConstant(v.name, lineNum)
				if detail != "" {
					a.lineError(a.amName, lineNum, detail)
					continue
				}
				a.emitData(cpu.Word(sym.Value))
			} else {
				a.emitData(cpu.Word(v.num))
			}
		}
	}
}

// emitLabelWord writes the operand word for a direct or indexed label
// reference. External references encode as zero with the external
// A/R/E bits and are recorded at the current image index; local labels
// encode their address with the relocatable bits. It reports whether a
// word was emitted.
func (a *assembler) emitLabelWord(name string, lineNum int) bool {
	sym := a.tu.Symbols.Lookup(name)
	if sym == nil {
		a.lineError(a.amName, lineNum, "using a label that was not defined in the file")
		return false
	}

	if sym.Kind == SymExtern {
		a.tu.recordExternal(name, len(a.tu.Code))
		a.emitCode(cpu.External)
		return true
	}

	a.emitCode(cpu.Relocatable | cpu.Word(sym.Address)<<2)
	return true
}

// resolveConstant looks up a constant reference. The symbol must be a
// .define constant whose definition line precedes the referencing line.
func (a *assembler) resolveConstant(name string, lineNum int) (*Symbol, string) {
	sym := a.tu.Symbols.Lookup(name)
	if sym == nil || sym.Kind != SymConst {
		return nil, "using a constant that was not defined in the file"
	}
	if sym.Address >= lineNum {
		return nil, "using a constant whose definition is done at a later stage in the file"
	}
	return sym, ""
}

// immediateWord places a two's-complement value in bits 2..13, leaving
// the A/R/E field absolute.
func immediateWord(v int) cpu.Word {
	return cpu.Word(v << 2)
}

func (a *assembler) emitCode(w cpu.Word) {
	w &= cpu.WordMask
	if a.verbose {
		a.log("0%d %s", cpu.CodeBase+len(a.tu.Code), encodeWord(w))
	}
	a.tu.Code = append(a.tu.Code, w)
}

func (a *assembler) emitData(w cpu.Word) {
	a.tu.Data = append(a.tu.Data, w&cpu.WordMask)
}
