package machhook

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"

	"github.com/machhook/machhook/machogen"
	"github.com/machhook/machhook/models"
)

const rtPath = "/runtime/libdemo.dylib"

// buildRuntime lays out a hookable runtime image:
//
//	0x1000 gc_start   ret
//	0x1008 unused_fn  ret
//	0x1010 newobj     ret (aliased by newobj_alias)
//	0x1020 caller_a   call newobj
//	0x1030 caller_b   call gc_start
//	0x1038 a stray 0xe8 byte that decodes as a call aimed nowhere
//	0x1050 stub records for slots 0x2000, 0x2008 and one unmapped slot
//	0x2000 pointer slots: newobj, then an unrelated pointer
func buildRuntime(t *testing.T) []byte {
	text := make([]byte, 0x40)
	for i := range text {
		text[i] = 0x90
	}
	text[0x00] = 0xc3
	text[0x08] = 0xc3
	text[0x10] = 0xc3
	text[0x20] = 0xe8
	relA := int32(-0x15)
	binary.LittleEndian.PutUint32(text[0x21:], uint32(relA))
	text[0x25] = 0xc3
	text[0x30] = 0xe8
	relB := int32(-0x35)
	binary.LittleEndian.PutUint32(text[0x31:], uint32(relB))
	text[0x35] = 0xc3
	text[0x38] = 0xe8

	stubs := make([]byte, 18)
	writeStub := func(off int, slot uint64) {
		stubs[off], stubs[off+1] = 0xff, 0x25
		rec := uint64(0x1050 + off)
		binary.LittleEndian.PutUint32(stubs[off+2:], uint32(slot-(rec+6)))
	}
	writeStub(0, 0x2000)
	writeStub(6, 0x2008)
	writeStub(12, 0x10000000)

	slots := make([]byte, 16)
	binary.LittleEndian.PutUint64(slots[0:], 0x1010)
	binary.LittleEndian.PutUint64(slots[8:], 0x9999)

	img, err := machogen.NewImage().
		Section("__TEXT", "__text", 0x1000, text).
		Section("__TEXT", "__stubs", 0x1050, stubs).
		Section("__DATA", "__la_symbol_ptr", 0x2000, slots).
		Symbol("gc_start", 0x1000).
		Symbol("unused_fn", 0x1008).
		Symbol("newobj", 0x1010).
		Symbol("newobj_alias", 0x1010).
		Symbol("caller_a", 0x1020).
		Symbol("caller_b", 0x1030).
		Undef("malloc").
		Build()
	if err != nil {
		t.Fatal("failed to build the runtime image:", err)
	}
	return img
}

// buildExt is a minimal image with one stub record whose slot sits at
// unslid 0x2000, for provenance scenarios.
func buildExt(t *testing.T) []byte {
	stubs := make([]byte, 6)
	stubs[0], stubs[1] = 0xff, 0x25
	binary.LittleEndian.PutUint32(stubs[2:], uint32(0x2000-(0x1000+6)))
	slot := make([]byte, 8)
	img, err := machogen.NewImage().
		Section("__TEXT", "__stubs", 0x1000, stubs).
		Section("__DATA", "__la_symbol_ptr", 0x2000, slot).
		Build()
	if err != nil {
		t.Fatal("failed to build the extension image:", err)
	}
	return img
}

type fixture struct {
	proc *machogen.Process
	img  models.Image
	p    *Process
}

func bootFixture(t *testing.T, slide int64) *fixture {
	file := buildRuntime(t)
	proc := machogen.NewProcess()
	img, err := proc.Map(file, rtPath, slide)
	if err != nil {
		t.Fatal("failed to map the runtime image:", err)
	}
	if err := proc.BindSlots(img); err != nil {
		t.Fatal("failed to bind stub slots:", err)
	}
	p, err := Boot(proc, &models.Config{MarkerSymbol: "gc_start"})
	if err != nil {
		t.Fatal("boot failed:", err)
	}
	return &fixture{proc: proc, img: img, p: p}
}

// mapExt maps an extension image under path and points its slot at
// newobj's live address.
func (f *fixture) mapExt(t *testing.T, path string, slide int64, target uint64) models.Image {
	img, err := f.proc.Map(buildExt(t), path, slide)
	if err != nil {
		t.Fatal("failed to map the extension image:", err)
	}
	slot, err := f.proc.Mem().View(uint64(0x2000+slide), 8)
	if err != nil {
		t.Fatal("extension slot unmapped:", err)
	}
	binary.LittleEndian.PutUint64(slot, target)
	return img
}

func (f *fixture) view(t *testing.T, addr, size uint64) []byte {
	view, err := f.proc.Mem().View(addr, size)
	if err != nil {
		t.Fatalf("view of 0x%x bytes at 0x%x: %v", size, addr, err)
	}
	return view
}

func (f *fixture) snapshot(t *testing.T, slide int64) []byte {
	var buf []byte
	for _, r := range []struct{ addr, size uint64 }{
		{uint64(0x1000 + slide), 0x40},
		{uint64(0x1050 + slide), 18},
		{uint64(0x2000 + slide), 16},
	} {
		buf = append(buf, f.view(t, r.addr, r.size)...)
	}
	return append([]byte(nil), buf...)
}

func TestBootResolve(t *testing.T) {
	f := bootFixture(t, 0x10000)
	if f.p.Slide() != 0x10000 {
		t.Fatalf("slide 0x%x", f.p.Slide())
	}
	if f.p.RuntimePath() != rtPath {
		t.Fatalf("runtime path %q", f.p.RuntimePath())
	}
	sym, ok := f.p.FindSymbol("newobj")
	if !ok {
		t.Fatal("failed to find newobj")
	}
	if sym.Addr != 0x11010 {
		t.Fatalf("newobj at 0x%x", sym.Addr)
	}
	if sym.Size != 0x10 {
		t.Fatalf("newobj size 0x%x, want 0x10", sym.Size)
	}
	name, ok := f.p.FindSymbolName(0x11010)
	if !ok || name != "newobj" {
		t.Fatalf("reverse lookup got %q", name)
	}
	if _, ok := f.p.FindSymbol("missing_fn"); ok {
		t.Fatal("found a symbol that does not exist")
	}
}

func TestBootNoMarker(t *testing.T) {
	if _, err := Boot(machogen.NewProcess(), nil); err == nil {
		t.Fatal("boot succeeded without a marker symbol")
	}
	cfg := &models.Config{MarkerSymbol: "gc_start"}
	if _, err := Boot(machogen.NewProcess(), cfg); err == nil {
		t.Fatal("boot succeeded with no marker export")
	}
}

func TestBootBadMagic(t *testing.T) {
	proc := machogen.NewProcess()
	raw := make([]byte, 0x100)
	if err := proc.MapRaw(rtPath, 0x5000, 0, raw); err != nil {
		t.Fatal(err)
	}
	proc.AddFile(rtPath, raw)
	proc.Export("gc_start", 0x5010)
	if _, err := Boot(proc, &models.Config{MarkerSymbol: "gc_start"}); err == nil {
		t.Fatal("boot accepted a file with the wrong magic")
	}
}

func TestBootBadArch(t *testing.T) {
	cfg := &models.Config{MarkerSymbol: "gc_start", Arch: "sparc"}
	if _, err := Boot(machogen.NewProcess(), cfg); err == nil {
		t.Fatal("boot accepted an unregistered arch")
	}
}

func TestInstallHook(t *testing.T) {
	f := bootFixture(t, 0x10000)
	tramp := &models.Trampoline{Addr: 0x300000}
	if err := f.p.InstallHook("newobj", tramp); err != nil {
		t.Fatal("install failed:", err)
	}
	text := f.view(t, 0x11000, 0x40)
	rel := int32(binary.LittleEndian.Uint32(text[0x21:]))
	if got := uint64(int64(0x11025) + int64(rel)); got != tramp.Addr {
		t.Fatalf("caller_a lands at 0x%x", got)
	}
	if rel := int32(binary.LittleEndian.Uint32(text[0x31:])); rel != -0x35 {
		t.Fatalf("caller_b was touched: rel 0x%x", rel)
	}
	if text[0x38] != 0xe8 || text[0x39] != 0x90 {
		t.Fatal("stray call byte was touched")
	}
	if got := binary.LittleEndian.Uint64(f.view(t, 0x12000, 8)); got != tramp.Addr {
		t.Fatalf("stub slot holds 0x%x", got)
	}
	if got := binary.LittleEndian.Uint64(f.view(t, 0x12008, 8)); got != 0x9999+0x10000 {
		t.Fatalf("unrelated slot holds 0x%x", got)
	}
}

func TestInstallHookZeroSlide(t *testing.T) {
	f := bootFixture(t, 0)
	tramp := &models.Trampoline{Addr: 0x300000}
	if err := f.p.InstallHook("newobj", tramp); err != nil {
		t.Fatal("install failed:", err)
	}
	if got := binary.LittleEndian.Uint64(f.view(t, 0x2000, 8)); got != tramp.Addr {
		t.Fatalf("stub slot holds 0x%x", got)
	}
}

func TestInstallHookTwice(t *testing.T) {
	f := bootFixture(t, 0x10000)
	tramp := &models.Trampoline{Addr: 0x300000}
	if err := f.p.InstallHook("newobj", tramp); err != nil {
		t.Fatal("install failed:", err)
	}
	before := f.snapshot(t, 0x10000)
	err := f.p.InstallHook("newobj", tramp)
	if !errors.Is(err, ErrNoPatchSites) {
		t.Fatalf("second install: %v", err)
	}
	if !bytes.Equal(before, f.snapshot(t, 0x10000)) {
		t.Fatal("second install modified memory")
	}
}

func TestInstallHookNoSites(t *testing.T) {
	f := bootFixture(t, 0x10000)
	tramp := &models.Trampoline{Addr: 0x300000}
	before := f.snapshot(t, 0x10000)
	err := f.p.InstallHook("unused_fn", tramp)
	if !errors.Is(err, ErrNoPatchSites) {
		t.Fatalf("install of an uncalled symbol: %v", err)
	}
	err = f.p.InstallHook("missing_fn", tramp)
	if !errors.Is(err, ErrNoPatchSites) {
		t.Fatalf("install of an unknown symbol: %v", err)
	}
	if !bytes.Equal(before, f.snapshot(t, 0x10000)) {
		t.Fatal("failed installs modified memory")
	}
	if err := f.p.InstallHook("newobj", nil); err == nil {
		t.Fatal("install accepted a nil trampoline")
	}
}

func TestStubProvenance(t *testing.T) {
	f := bootFixture(t, 0x10000)
	target := uint64(0x11010)
	f.mapExt(t, "/usr/lib/libfoo.dylib", 0x800000, target)
	f.mapExt(t, "/ext/digest.bundle", 0xa00000, target)
	tramp := &models.Trampoline{Addr: 0x300000}
	if err := f.p.InstallHook("newobj", tramp); err != nil {
		t.Fatal("install failed:", err)
	}
	// a foreign library's stub table stays untouched even though its
	// slot points at the hooked symbol
	if got := binary.LittleEndian.Uint64(f.view(t, 0x802000, 8)); got != target {
		t.Fatalf("foreign slot holds 0x%x", got)
	}
	// an extension bundle's identical table is rewritten
	if got := binary.LittleEndian.Uint64(f.view(t, 0xa02000, 8)); got != tramp.Addr {
		t.Fatalf("bundle slot holds 0x%x", got)
	}
}

func TestSelfImageSkipped(t *testing.T) {
	f := bootFixture(t, 0x10000)
	target := uint64(0x11010)
	ext := f.mapExt(t, "/ext/digest.bundle", 0xa00000, target)
	f.proc.SetSelf(ext.Base)
	tramp := &models.Trampoline{Addr: 0x300000}
	if err := f.p.InstallHook("newobj", tramp); err != nil {
		t.Fatal("install failed:", err)
	}
	if got := binary.LittleEndian.Uint64(f.view(t, 0xa02000, 8)); got != target {
		t.Fatalf("own image was patched: slot holds 0x%x", got)
	}
}

func TestBrokenImageSkipped(t *testing.T) {
	f := bootFixture(t, 0x10000)
	if err := f.proc.MapRaw("/garbage.dylib", 0x700000, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}
	tramp := &models.Trampoline{Addr: 0x300000}
	if err := f.p.InstallHook("newobj", tramp); err != nil {
		t.Fatal("a broken image header aborted the walk:", err)
	}
}

func TestTypeInfo(t *testing.T) {
	f := bootFixture(t, 0x10000)
	if _, err := f.p.TypeSize("RVALUE"); !errors.Is(err, ErrNoTypeInfo) {
		t.Fatalf("TypeSize: %v", err)
	}
	if _, err := f.p.TypeMemberOffset("RVALUE", "flags"); !errors.Is(err, ErrNoTypeInfo) {
		t.Fatalf("TypeMemberOffset: %v", err)
	}
}

func TestUseBeforeBoot(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("lookup before boot should panic")
		}
	}()
	var p Process
	p.FindSymbol("newobj")
}
