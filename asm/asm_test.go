// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go14asm/cpu"
)

func assemble(t *testing.T, source string) (stem string, tu *TranslationUnit, out string, err error) {
	t.Helper()
	stem = filepath.Join(t.TempDir(), "prog")
	if werr := os.WriteFile(stem+".as", []byte(source), 0600); werr != nil {
		t.Fatal(werr)
	}
	var buf bytes.Buffer
	tu, err = AssembleFile(stem, 0, &buf)
	return stem, tu, buf.String(), err
}

func checkFile(t *testing.T, path, expected string) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", filepath.Base(path), err)
		return
	}
	if string(got) != expected {
		t.Errorf("%s doesn't match expected\ngot:\n%s\nexp:\n%s",
			filepath.Base(path), got, expected)
	}
}

func checkNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("%s should not exist", filepath.Base(path))
	}
}

func checkDiagnostic(t *testing.T, out, detail string) {
	t.Helper()
	if !strings.Contains(out, detail) {
		t.Errorf("diagnostic %q not found in output:\n%s", detail, out)
	}
}

func TestEmptySource(t *testing.T) {
	stem, _, _, err := assemble(t, "")
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}
	checkFile(t, stem+".am", "")
	checkFile(t, stem+".ob", "  100 0\n")
	checkNoFile(t, stem+".ent")
	checkNoFile(t, stem+".ext")
}

func TestConstantAndData(t *testing.T) {
	source := ".define SZ = 5\n" +
		"STR: .string \"ab\"\n" +
		".entry STR\n"
	stem, tu, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	sym := tu.Symbols.Lookup("STR")
	if sym == nil || sym.Kind != SymDataEntry || sym.Address != 100 {
		t.Errorf("bad STR symbol: %+v", sym)
	}

	checkFile(t, stem+".ob",
		"  100 3\n"+
			"0100 ***#%*#\n"+
			"0101 ***#%*%\n"+
			"0102 *******\n")
	checkFile(t, stem+".ent", "STR\t0100\n")
	checkNoFile(t, stem+".ext")
}

func TestMacroExpansion(t *testing.T) {
	source := "mcr M\n" +
		"  hlt\n" +
		"endmcr\n" +
		"M\n" +
		"M\n"
	stem, tu, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	checkFile(t, stem+".am", "  hlt\n  hlt\n")
	if tu.IC != 102 {
		t.Errorf("ic = %d, want 102", tu.IC)
	}
	checkFile(t, stem+".ob",
		"  102 0\n"+
			"0100 **!!***\n"+
			"0101 **!!***\n")
}

func TestExternalReference(t *testing.T) {
	source := ".extern EXT\n" +
		"mov EXT, r1\n" +
		"hlt\n"
	stem, _, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	checkFile(t, stem+".ob",
		"  104 0\n"+
			"0100 ****#!*\n"+
			"0101 ******#\n"+
			"0102 *****#*\n"+
			"0103 **!!***\n")
	checkFile(t, stem+".ext", "EXT\t0101\n")
	checkNoFile(t, stem+".ent")
}

func TestIndexedOperand(t *testing.T) {
	source := ".define I = 1\n" +
		"ARR: .data 1,2\n" +
		"mov ARR[I], r1\n" +
		"hlt\n"
	stem, tu, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	if sym := tu.Symbols.Lookup("ARR"); sym == nil || sym.Address != 105 {
		t.Errorf("bad ARR symbol: %+v", sym)
	}

	checkFile(t, stem+".ob",
		"  105 2\n"+
			"0100 ****%!*\n"+
			"0101 **#%%#%\n"+
			"0102 *****#*\n"+
			"0103 *****#*\n"+
			"0104 **!!***\n"+
			"0105 ******#\n"+
			"0106 ******%\n")
}

func TestRegisterPair(t *testing.T) {
	source := "mov r1, r2\n" +
		"hlt\n"
	stem, _, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	checkFile(t, stem+".ob",
		"  103 0\n"+
			"0100 ****!!*\n"+
			"0101 ****%%*\n"+
			"0102 **!!***\n")
}

func TestNegativeImmediate(t *testing.T) {
	source := "prn #-5\n" +
		"hlt\n"
	stem, _, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	checkFile(t, stem+".ob",
		"  103 0\n"+
			"0100 **!****\n"+
			"0101 !!!!%!*\n"+
			"0102 **!!***\n")
}

func TestEntriesOrder(t *testing.T) {
	source := ".entry B\n" +
		"A: .data 1\n" +
		"B: mov r1, r2\n" +
		".entry A\n" +
		"hlt\n"
	stem, tu, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	if a := tu.Symbols.Lookup("A"); a == nil || a.Kind != SymDataEntry || a.Address != 103 {
		t.Errorf("bad A symbol: %+v", a)
	}
	if b := tu.Symbols.Lookup("B"); b == nil || b.Kind != SymInstEntry || b.Address != 100 {
		t.Errorf("bad B symbol: %+v", b)
	}

	// Entries list in reverse insertion order.
	checkFile(t, stem+".ent", "A\t0103\nB\t0100\n")
}

func TestExternalsOrder(t *testing.T) {
	source := ".extern X\n" +
		".extern Y\n" +
		"mov X, r1\n" +
		"mov Y, r2\n" +
		"mov X, r3\n" +
		"hlt\n"
	stem, tu, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	if tu.ExternalCount() != 3 {
		t.Errorf("external count = %d, want 3", tu.ExternalCount())
	}

	// Newest symbol first; within a symbol, newest reference first.
	checkFile(t, stem+".ext", "Y\t0104\nX\t0107\nX\t0101\n")
}

func TestCountersMatchAcrossPasses(t *testing.T) {
	source := ".define I = 2\n" +
		"MAIN: mov ARR[I], r1\n" +
		"  cmp #5, r2\n" +
		"  lea STR, r6\n" +
		"  prn #-9\n" +
		"  hlt\n" +
		"ARR: .data 7, -3, I\n" +
		"STR: .string \"xyz\"\n"
	_, tu, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	if len(tu.Code) != tu.IC-cpu.CodeBase {
		t.Errorf("code image has %d words, first pass counted %d", len(tu.Code), tu.IC-cpu.CodeBase)
	}
	if len(tu.Data) != tu.DC {
		t.Errorf("data image has %d words, first pass counted %d", len(tu.Data), tu.DC)
	}
}

func TestDataSymbolsRelocated(t *testing.T) {
	source := "X: .data 1\n" +
		"Y: .data 2\n" +
		"hlt\n"
	_, tu, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}

	// Data symbols land past the end of the instruction image.
	for _, name := range []string{"X", "Y"} {
		sym := tu.Symbols.Lookup(name)
		if sym == nil || sym.Address < tu.IC {
			t.Errorf("symbol %s not relocated: %+v", name, sym)
		}
	}
	if x, y := tu.Symbols.Lookup("X"), tu.Symbols.Lookup("Y"); x.Address != 101 || y.Address != 102 {
		t.Errorf("bad data addresses: X=%d Y=%d", x.Address, y.Address)
	}
}

func TestInvalidIndexRegister(t *testing.T) {
	source := "ARR: .data 10,20,30\n" +
		"mov ARR[r0], r1\n"
	stem, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "the operation type received an operand of an inappropriate type")
	checkDiagnostic(t, out, "in line number: 2")
	checkNoFile(t, stem+".ob")
}

func TestForwardConstantUse(t *testing.T) {
	source := "mov #K, r0\n" +
		".define K = 7\n"
	stem, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "using a constant whose definition is done at a later stage in the file")
	checkNoFile(t, stem+".ob")
}

func TestUndefinedLabel(t *testing.T) {
	source := "mov L1, r1\n" +
		"hlt\n"
	stem, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "using a label that was not defined in the file")
	checkNoFile(t, stem+".ob")
}

func TestUndefinedConstant(t *testing.T) {
	source := ".data 1, MISSING\nhlt\n"
	_, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "using a constant that was not defined in the file")
}

func TestEntryWithoutDefinition(t *testing.T) {
	source := ".entry X\n" +
		"hlt\n"
	stem, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "was defined as an entry but did not receive a value")
	checkNoFile(t, stem+".ob")
}

func TestSymbolRedefinition(t *testing.T) {
	source := "A: hlt\n" +
		"A: hlt\n"
	_, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "redefenition of symbol")
}

func TestExternRedefinition(t *testing.T) {
	source := ".extern X\n" +
		"X: hlt\n"
	_, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "redefenition of symbol")
}

func TestMacroSymbolCollision(t *testing.T) {
	source := "mcr M\n" +
		"  hlt\n" +
		"endmcr\n" +
		"M: hlt\n"
	_, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "redefining a name for a macro and symbol")
}

func TestMacroConstantCollision(t *testing.T) {
	source := "mcr M\n" +
		"  hlt\n" +
		"endmcr\n" +
		".define M = 3\n"
	_, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "redefining a name for a macro and constant")
}

func TestDuplicateConstant(t *testing.T) {
	source := ".define K = 1\n" +
		".define K = 2\n"
	_, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	checkDiagnostic(t, out, "redefenition of symbol")
}

func TestEntryPromotion(t *testing.T) {
	// .entry after the definition promotes the existing symbol.
	source := "A: .data 5\n" +
		".entry A\n" +
		"hlt\n"
	stem, tu, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}
	if sym := tu.Symbols.Lookup("A"); sym == nil || sym.Kind != SymDataEntry {
		t.Errorf("bad A symbol: %+v", sym)
	}
	checkFile(t, stem+".ent", "A\t0101\n")
}

func TestDiagnosticFormat(t *testing.T) {
	source := "foo bar\n"
	stem, _, out, err := assemble(t, source)
	if err == nil {
		t.Fatal("expected assembly to fail")
	}
	want := "Error in: " + stem + ".am, in line number: 1, " +
		"the first word must be an instruction or directive or .define or label name\n"
	if out != want {
		t.Errorf("diagnostic doesn't match expected\ngot:  %q\nexp:  %q", out, want)
	}
}

func TestErrorsDoNotStopTheStream(t *testing.T) {
	source := "foo\n" +
		"bar\n" +
		"hlt\n"
	_, _, out, _ := assemble(t, source)
	checkDiagnostic(t, out, "in line number: 1")
	checkDiagnostic(t, out, "in line number: 2")
}

func TestVerboseOutput(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "prog")
	if err := os.WriteFile(stem+".as", []byte("hlt\n"), 0600); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := AssembleFile(stem, Verbose, &buf); err != nil {
		t.Fatalf("assembly failed: %v", err)
	}
	for _, section := range []string{"Expanding macros", "First pass", "Second pass", "Writing output files"} {
		if !strings.Contains(buf.String(), "-- "+section+" --") {
			t.Errorf("verbose output missing section %q", section)
		}
	}
}

func TestIndexedLabelOfExtern(t *testing.T) {
	source := ".extern TAB\n" +
		"mov TAB[2], r1\n" +
		"hlt\n"
	stem, _, _, err := assemble(t, source)
	if err != nil {
		t.Fatalf("assembly failed: %v", err)
	}
	// The symbol word at image index 1 is the recorded reference; the
	// index word follows it.
	checkFile(t, stem+".ext", "TAB\t0101\n")
}
