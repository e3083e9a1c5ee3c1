// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go14asm/cpu"
)

// Object files print each word in an encrypted base-4 alphabet: one
// character per 2-bit group, most significant group first.
var base4 = []byte{'*', '#', '%', '!'}

// encodeWord returns the 7-character printable form of a 14-bit word.
func encodeWord(w cpu.Word) string {
	var b [7]byte
	for i := 0; i < 7; i++ {
		b[i] = base4[(w>>(12-2*i))&3]
	}
	return string(b[:])
}

// decodeWord reverses encodeWord.
func decodeWord(s string) (cpu.Word, bool) {
	if len(s) != 7 {
		return 0, false
	}
	var w cpu.Word
	for i := 0; i < 7; i++ {
		v := strings.IndexByte(string(base4), s[i])
		if v < 0 {
			return 0, false
		}
		w = w<<2 | cpu.Word(v)
	}
	return w, true
}

// WriteObjectTo writes the memory image in the object-file format: a
// header holding the final instruction counter and the data word
// count, then one line per word with its address and encrypted base-4
// contents. Instruction words come first, data words follow
// immediately after them in the address space.
func (tu *TranslationUnit) WriteObjectTo(w io.Writer) (n int64, err error) {
	write := func(format string, args ...any) {
		if err == nil {
			var nn int
			nn, err = fmt.Fprintf(w, format, args...)
			n += int64(nn)
		}
	}

	write("  %d %d\n", cpu.CodeBase+len(tu.Code), len(tu.Data))

	for i, word := range tu.Code {
		write("0%d %s\n", cpu.CodeBase+i, encodeWord(word))
	}

	dataBase := cpu.CodeBase + len(tu.Code)
	for i, word := range tu.Data {
		write("0%d %s\n", dataBase+i, encodeWord(word))
	}
	return n, err
}

// WriteEntriesTo writes one line per exported symbol, in entry-list
// order.
func (tu *TranslationUnit) WriteEntriesTo(w io.Writer) (n int64, err error) {
	for _, sym := range tu.Entries {
		var nn int
		nn, err = fmt.Fprintf(w, "%s\t0%d\n", sym.Name, sym.Address)
		n += int64(nn)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteExternalsTo writes one line per (external symbol, reference
// address) pair, symbols and addresses in their list order.
func (tu *TranslationUnit) WriteExternalsTo(w io.Writer) (n int64, err error) {
	for _, ref := range tu.Externals {
		for _, addr := range ref.Addrs {
			var nn int
			nn, err = fmt.Fprintf(w, "%s\t0%d\n", ref.Name, addr+cpu.CodeBase)
			n += int64(nn)
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// An ObjectImage is the decoded contents of an object file.
type ObjectImage struct {
	CodeWords int // instruction words, per the header
	DataWords int // data words, per the header
	Words     []ObjectWord
}

// An ObjectWord is one decoded object-file line.
type ObjectWord struct {
	Address int
	Value   cpu.Word
}

// Encoded returns the word's printable base-4 form as it appears in
// the object file.
func (w ObjectWord) Encoded() string {
	return encodeWord(w.Value)
}

// ReadObjectFrom decodes an object file produced by WriteObjectTo.
func ReadObjectFrom(r io.Reader) (*ObjectImage, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("object file is empty")
	}

	header := strings.Fields(scanner.Text())
	if len(header) != 2 {
		return nil, errors.New("malformed object file header")
	}
	ic, err1 := strconv.Atoi(header[0])
	dc, err2 := strconv.Atoi(header[1])
	if err1 != nil || err2 != nil || ic < cpu.CodeBase {
		return nil, errors.New("malformed object file header")
	}

	img := &ObjectImage{CodeWords: ic - cpu.CodeBase, DataWords: dc}
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed object file line %d", len(img.Words)+2)
		}
		addr, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed object file line %d", len(img.Words)+2)
		}
		w, ok := decodeWord(fields[1])
		if !ok {
			return nil, fmt.Errorf("malformed object file line %d", len(img.Words)+2)
		}
		img.Words = append(img.Words, ObjectWord{Address: addr, Value: w})
	}
	return img, scanner.Err()
}
