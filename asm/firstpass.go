package asm

import (
	"bufio"
	"fmt"
	"os"

	"go14asm/cpu"
)

// firstPass streams the macro-expanded file, builds the symbol table,
// and advances the instruction and data counters line by line. At the
// end of the stream data symbols are relocated past the instruction
// image and the ordered entry list is built.
func (a *assembler) firstPass() error {
	a.logSection("First pass")

	f, err := os.Open(a.amName)
	if err != nil {
		a.fileError(a.amName, "cannot be opened")
		return err
	}
	defer f.Close()

	ic, dc := cpu.CodeBase, 0
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		ast := parseLine(lineNum, scanner.Text())

		switch st := ast.stmt.(type) {
		case errorStmt:
			a.lineError(a.amName, lineNum, st.detail)
			if st.detail == detailAllocFailed {
				return errAssembly
			}

		case directiveStmt:
			switch st.kind {
			case dirData, dirString:
				if ast.label != "" {
					a.defineLabel(ast.label, lineNum, SymData, dc)
				}
				n := directiveWords(st)
				a.logLine(lineNum, "dc=%-5d +%d", dc, n)
				dc += n
			case dirEntry:
				// A label on an .entry or .extern line is parsed but
				// defines nothing.
				a.declareEntry(st.name, lineNum)
			case dirExtern:
				a.declareExtern(st.name, lineNum)
			}

		case instructionStmt:
			if ast.label != "" {
				a.defineLabel(ast.label, lineNum, SymInst, ic)
			}
			n := instructionWords(st)
			a.logLine(lineNum, "ic=%-5d +%d %s", ic, n, st.op)
			ic += n

		case constantDefStmt:
			a.defineConstant(st, lineNum)
		}
	}
	if err = scanner.Err(); err != nil {
		a.fileError(a.amName, "cannot be read")
		return err
	}

	a.tu.IC, a.tu.DC = ic, dc

	if ic-cpu.CodeBase > cpu.ImageCap || dc > cpu.ImageCap {
		a.fileError(a.amName, "the program does not fit in the machine's memory image")
		return errAssembly
	}

	// Relocate data symbols past the instruction image, flag entry
	// declarations that never received a definition, and build the
	// entries list. Prepending while walking in insertion order leaves
	// the list in reverse insertion order, which is the order the .ent
	// file uses.
	for _, sym := range a.tu.Symbols.All() {
		switch sym.Kind {
		case SymEntryPending:
			detail := fmt.Sprintf("the symbol: %s was defined as an entry but did not receive a value", sym.Name)
			a.fileError(a.amName, detail)
		case SymData:
			sym.Address += ic
		case SymDataEntry:
			sym.Address += ic
			a.tu.Entries = append([]*Symbol{sym}, a.tu.Entries...)
		case SymInstEntry:
			a.tu.Entries = append([]*Symbol{sym}, a.tu.Entries...)
		}
	}
	return nil
}

// defineLabel handles a pre-line label on an instruction, .data or
// .string line. addr is the current value of the counter matching kind.
func (a *assembler) defineLabel(name string, lineNum int, kind SymbolKind, addr int) {
	if _, ok := a.macros[name]; ok {
		a.lineError(a.amName, lineNum, "redefining a name for a macro and symbol")
		return
	}

	if sym := a.tu.Symbols.Lookup(name); sym != nil {
		// A label promised by an earlier .entry receives its address
		// here; any other redefinition is an error.
		if sym.Kind == SymEntryPending {
			if kind == SymData {
				sym.Kind = SymDataEntry
			} else {
				sym.Kind = SymInstEntry
			}
			sym.Address = addr
		} else {
			a.lineError(a.amName, lineNum, "redefenition of symbol")
		}
		return
	}

	a.tu.Symbols.Insert(name, kind, addr, 0)
	a.logLine(lineNum, "label %s=%d", name, addr)
}

func (a *assembler) declareEntry(name string, lineNum int) {
	if _, ok := a.macros[name]; ok {
		a.lineError(a.amName, lineNum, "redefining a name for a macro and symbol")
		return
	}

	if sym := a.tu.Symbols.Lookup(name); sym != nil {
		switch sym.Kind {
		case SymData:
			sym.Kind = SymDataEntry
		case SymInst:
			sym.Kind = SymInstEntry
		case SymEntryPending:
			// Repeated .entry before the definition; nothing to do.
		default:
			a.lineError(a.amName, lineNum, "redefenition of symbol")
		}
		return
	}

	a.tu.Symbols.Insert(name, SymEntryPending, 0, 0)
}

func (a *assembler) declareExtern(name string, lineNum int) {
	if _, ok := a.macros[name]; ok {
		a.lineError(a.amName, lineNum, "redefining a name for a macro and symbol")
		return
	}

	if a.tu.Symbols.Lookup(name) != nil {
		a.lineError(a.amName, lineNum, "redefenition of symbol")
		return
	}

	a.tu.Symbols.Insert(name, SymExtern, 0, 0)
}

// defineConstant inserts a .define constant. The definition line is
// stored as the address so the second pass can enforce that constants
// are defined before use.
func (a *assembler) defineConstant(st constantDefStmt, lineNum int) {
	if _, ok := a.macros[st.name]; ok {
		a.lineError(a.amName, lineNum, "redefining a name for a macro and constant")
		return
	}

	if a.tu.Symbols.Lookup(st.name) != nil {
		a.lineError(a.amName, lineNum, "redefenition of symbol")
		return
	}

	a.tu.Symbols.Insert(st.name, SymConst, lineNum, st.value)
	a.logLine(lineNum, "const %s=%d", st.name, st.value)
}

// directiveWords returns the number of data-image words a directive
// occupies. A string takes one word per character plus one for the
// terminating NUL; .entry and .extern take none.
func directiveWords(st directiveStmt) int {
	switch st.kind {
	case dirString:
		return len(st.text) + 1
	case dirData:
		return len(st.values)
	default:
		return 0
	}
}

// instructionWords returns the number of instruction-image words an
// instruction occupies: the opcode word plus its operand words. Two
// register operands share a single word; an indexed operand needs two.
func instructionWords(st instructionStmt) int {
	src, dst := st.operands[srcOperand], st.operands[dstOperand]
	if src.kind == opRegister && dst.kind == opRegister {
		return 2
	}

	n := 1
	for _, o := range st.operands {
		switch o.kind {
		case opNone:
		case opLabelIndex:
			n += 2
		default:
			n++
		}
	}
	return n
}
