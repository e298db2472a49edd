package models

import "testing"

type symdef struct {
	name string
	addr uint64
}

func makeSymTab(defs []symdef) *SymTab {
	strtab := []byte{0}
	var entries []SymTabEntry
	for _, d := range defs {
		off := uint32(len(strtab))
		strtab = append(strtab, '_')
		strtab = append(strtab, d.name...)
		strtab = append(strtab, 0)
		entries = append(entries, SymTabEntry{NameOff: off, Addr: d.addr})
	}
	return NewSymTab(entries, strtab)
}

func TestSymTabFind(t *testing.T) {
	tab := makeSymTab([]symdef{
		{"newobj", 0x2000},
		{"gc_start", 0x1000},
		{"gc_end", 0x1400},
	})
	sym, ok := tab.Find("gc_start", 0)
	if !ok {
		t.Fatal("failed to find gc_start")
	}
	if sym.Addr != 0x1000 {
		t.Fatalf("gc_start at 0x%x", sym.Addr)
	}
	if sym.Size != 0x400 {
		t.Fatalf("gc_start size 0x%x", sym.Size)
	}
	if _, ok := tab.Find("missing", 0); ok {
		t.Fatal("found a symbol that does not exist")
	}
}

func TestSymTabSlide(t *testing.T) {
	tab := makeSymTab([]symdef{{"newobj", 0x1000}})
	sym, ok := tab.Find("newobj", 0x7fff0000)
	if !ok {
		t.Fatal("failed to find newobj")
	}
	if sym.Addr != 0x7fff1000 {
		t.Fatalf("slide not applied: 0x%x", sym.Addr)
	}
	name, ok := tab.FindAddr(0x7fff1000, 0x7fff0000)
	if !ok || name != "newobj" {
		t.Fatalf("reverse lookup got %q", name)
	}
	if _, ok := tab.FindAddr(0x7fff1001, 0x7fff0000); ok {
		t.Fatal("reverse lookup is not exact")
	}
}

func TestSymTabAliasedSize(t *testing.T) {
	// two symbols on one address must not produce a zero size for the
	// first; the scan skips to the next distinct address
	tab := makeSymTab([]symdef{
		{"newobj", 0x1000},
		{"newobj_alias", 0x1000},
		{"gc_start", 0x1010},
	})
	sym, ok := tab.Find("newobj", 0)
	if !ok {
		t.Fatal("failed to find newobj")
	}
	if sym.Size != 0x10 {
		t.Fatalf("aliased size 0x%x, want 0x10", sym.Size)
	}
}

func TestSymTabLastSize(t *testing.T) {
	tab := makeSymTab([]symdef{
		{"gc_start", 0x1000},
		{"newobj", 0x2000},
	})
	sym, _ := tab.Find("newobj", 0)
	if sym.Size != 0 {
		t.Fatalf("size of the last symbol should be unknown, got 0x%x", sym.Size)
	}
	tail := makeSymTab([]symdef{
		{"a", 0x1000},
		{"b", 0x2000},
		{"b_alias", 0x2000},
	})
	sym, _ = tail.Find("b", 0)
	if sym.Size != 0 {
		t.Fatalf("aliased tail size should be unknown, got 0x%x", sym.Size)
	}
}

func TestSymTabSortStable(t *testing.T) {
	tab := makeSymTab([]symdef{
		{"z_first", 0x1000},
		{"a_second", 0x1000},
	})
	if tab.Name(0) != "z_first" || tab.Name(1) != "a_second" {
		t.Fatalf("aliased entries reordered: %s, %s", tab.Name(0), tab.Name(1))
	}
}

func TestSymTabBadNameOff(t *testing.T) {
	tab := NewSymTab([]SymTabEntry{{NameOff: 0x1000, Addr: 0x1000}}, []byte{0})
	if name := tab.Name(0); name != "" {
		t.Fatalf("out of range name offset produced %q", name)
	}
}

func TestSymTabUnextracted(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("lookup on an empty table should panic")
		}
	}()
	var tab SymTab
	tab.Find("newobj", 0)
}
