package models

import "sort"

// SymTabEntry is one raw symbol record: a byte offset into the string
// table, the nlist classification fields, and the unslid address.
type SymTabEntry struct {
	NameOff uint32
	Type    uint8
	Sect    uint8
	Desc    uint16
	Addr    uint64
}

// SymTab indexes an image's symbols by address. It owns copies of the
// record array and the string table, so it stays valid after the file
// buffer that produced it is gone.
type SymTab struct {
	entries []SymTabEntry
	strtab  []byte
}

// NewSymTab sorts entries ascending by address and wraps them with their
// string table. The sort is stable so records aliased to one address keep
// their original order.
func NewSymTab(entries []SymTabEntry, strtab []byte) *SymTab {
	t := &SymTab{entries: entries, strtab: strtab}
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].Addr < t.entries[j].Addr
	})
	return t
}

// Len never asserts: introspecting an empty table is fine, looking up in
// one is not.
func (t *SymTab) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func (t *SymTab) Entry(i int) SymTabEntry {
	return t.entries[i]
}

// Name returns the name of entry i with the leading mangle byte stripped.
// Symbol names in this format carry a '_' prefix over the source name.
func (t *SymTab) Name(i int) string {
	return t.name(t.entries[i].NameOff)
}

// At resolves entry i to a Symbol. Size is the distance to the next entry
// with a distinct address; aliases of the same address are skipped over.
// An entry with no distinct successor reports Size 0, meaning unknown.
func (t *SymTab) At(i int, slide int64) Symbol {
	sym := Symbol{
		Name: t.Name(i),
		Addr: uint64(int64(t.entries[i].Addr) + slide),
	}
	for j := i + 1; j < len(t.entries); j++ {
		if t.entries[j].Addr != t.entries[i].Addr {
			sym.Size = t.entries[j].Addr - t.entries[i].Addr
			break
		}
	}
	return sym
}

// Find looks up a symbol by source name and reports its slid address.
func (t *SymTab) Find(name string, slide int64) (Symbol, bool) {
	t.assert()
	for i := range t.entries {
		if t.name(t.entries[i].NameOff) == name {
			return t.At(i, slide), true
		}
	}
	return Symbol{}, false
}

// FindAddr is the reverse lookup: the name of the first entry whose slid
// address is exactly addr.
func (t *SymTab) FindAddr(addr uint64, slide int64) (string, bool) {
	t.assert()
	for i := range t.entries {
		if uint64(int64(t.entries[i].Addr)+slide) == addr {
			return t.name(t.entries[i].NameOff), true
		}
	}
	return "", false
}

func (t *SymTab) assert() {
	if t == nil || t.strtab == nil || len(t.entries) == 0 {
		panic("symbol table used before extraction")
	}
}

func (t *SymTab) name(off uint32) string {
	if uint64(off) >= uint64(len(t.strtab)) {
		return ""
	}
	s := t.strtab[off:]
	end := 0
	for end < len(s) && s[end] != 0 {
		end++
	}
	if end < 2 {
		return ""
	}
	return string(s[1:end])
}
