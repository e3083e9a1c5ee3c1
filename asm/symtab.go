package asm

import "go14asm/cpu"

// A SymbolKind classifies a symbol-table entry.
type SymbolKind byte

const (
	// SymExtern marks a symbol declared by .extern; its address field
	// has no meaning in this translation unit.
	SymExtern SymbolKind = iota

	// SymEntryPending marks a symbol promised by .entry but not yet
	// defined locally. None may survive the first pass.
	SymEntryPending

	// SymDataEntry and SymInstEntry mark locally defined symbols that
	// are exported as entries.
	SymDataEntry
	SymInstEntry

	// SymData and SymInst mark local data and instruction labels.
	SymData
	SymInst

	// SymConst marks a .define constant. Its value field holds the
	// constant, and its address field holds the source line of the
	// definition so later passes can enforce define-before-use.
	SymConst
)

var symbolKindName = []string{
	"extern",
	"entry?",
	"entry data",
	"entry code",
	"data",
	"code",
	"const",
}

func (k SymbolKind) String() string {
	return symbolKindName[k]
}

// A Symbol is one entry in a translation unit's symbol table.
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Address int
	Value   int
}

// A SymbolTable maps unique names to symbols. Insertion order is
// retained so that entry-list construction is deterministic.
type SymbolTable struct {
	byName map[string]*Symbol
	order  []*Symbol
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Symbol)}
}

// Lookup returns the symbol named by name, or nil.
func (t *SymbolTable) Lookup(name string) *Symbol {
	return t.byName[name]
}

// Insert adds a new symbol. The caller must have established that the
// name is unused.
func (t *SymbolTable) Insert(name string, kind SymbolKind, address, value int) *Symbol {
	sym := &Symbol{Name: name, Kind: kind, Address: address, Value: value}
	t.byName[name] = sym
	t.order = append(t.order, sym)
	return sym
}

// All returns the symbols in insertion order.
func (t *SymbolTable) All() []*Symbol {
	return t.order
}

// Len returns the number of symbols in the table.
func (t *SymbolTable) Len() int {
	return len(t.order)
}

// An ExternalRef couples an external symbol name with every
// instruction-image index where it is referenced as an operand.
// Addresses are kept newest-first.
type ExternalRef struct {
	Name  string
	Addrs []int
}

// A TranslationUnit is the whole-file assembly state: the encoded
// images, the symbol table, and the entry and external lists. It lives
// for the two passes and emission of one file.
type TranslationUnit struct {
	Code []cpu.Word // instruction image
	Data []cpu.Word // data image

	// Final first-pass counters. IC is base-100; DC counts data words.
	IC int
	DC int

	Symbols *SymbolTable

	// Entries holds the exported symbols in reverse insertion order,
	// which is the order the .ent file pins.
	Entries []*Symbol

	// Externals holds external references, newest symbol first.
	Externals []*ExternalRef
}

func newTranslationUnit() *TranslationUnit {
	return &TranslationUnit{
		IC:      cpu.CodeBase,
		Symbols: newSymbolTable(),
	}
}

// recordExternal notes a reference to an external symbol at the given
// instruction-image index. New symbols are prepended to the list and
// new addresses are prepended to the symbol's address list; emission
// iterates both in list order.
func (tu *TranslationUnit) recordExternal(name string, addr int) {
	for _, ref := range tu.Externals {
		if ref.Name == name {
			ref.Addrs = append([]int{addr}, ref.Addrs...)
			return
		}
	}
	ref := &ExternalRef{Name: name, Addrs: []int{addr}}
	tu.Externals = append([]*ExternalRef{ref}, tu.Externals...)
}

// ExternalCount returns the total number of recorded external
// references.
func (tu *TranslationUnit) ExternalCount() int {
	n := 0
	for _, ref := range tu.Externals {
		n += len(ref.Addrs)
	}
	return n
}
