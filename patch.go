package machhook

import (
	"encoding/binary"
	"strings"

	"github.com/machhook/machhook/loader"
	"github.com/machhook/machhook/models"
)

func (p *Process) patchSection(img models.Image, sect models.SectionInfo, target, tramp uint64) (int, error) {
	if sect.Size == 0 {
		return 0, nil
	}
	switch p.format.SectionKind(sect.Segment, sect.Name) {
	case models.KindText:
		return p.patchCalls(img, sect, target, tramp)
	case models.KindStub:
		return p.patchStubs(img, sect, target, tramp)
	}
	return 0, nil
}

// patchCalls drives the arch patcher over every byte offset of a text
// section. The patcher decides whether the bytes at an offset encode a
// direct call to target; anything else stays untouched.
func (p *Process) patchCalls(img models.Image, sect models.SectionInfo, target, tramp uint64) (int, error) {
	base := uint64(int64(sect.Addr) + img.Slide)
	code, err := p.task.Mem().View(base, sect.Size)
	if err != nil {
		return 0, err
	}
	patched := 0
	for off := range code {
		if p.patcher.PatchCall(code[off:], base+uint64(off), target, tramp) {
			patched++
		}
	}
	return patched, nil
}

// patchStubs rewrites dynamic-linker jump slots. Each stub record jumps
// through a pointer slot; a slot holding target's address is swapped to
// tramp with a single aligned store, so in-flight callers see either the
// old or the new pointer. Only stub tables owned by the runtime library
// or by a loaded extension are touched.
func (p *Process) patchStubs(img models.Image, sect models.SectionInfo, target, tramp uint64) (int, error) {
	base := uint64(int64(sect.Addr) + img.Slide)
	if !p.stubsEligible(base) {
		return 0, nil
	}
	mem := p.task.Mem()
	table, err := mem.View(base, sect.Size)
	if err != nil {
		return 0, err
	}
	patched := 0
	for off := 0; off+loader.StubEntrySize <= len(table); off += loader.StubEntrySize {
		ent, ok := loader.DecodeStub(table[off:])
		if !ok {
			continue
		}
		slot := ent.SlotAddr(base + uint64(off))
		raw, err := mem.View(slot, 8)
		if err != nil {
			// record points outside mapped memory; not our stub
			continue
		}
		if binary.LittleEndian.Uint64(raw) != target {
			continue
		}
		if err := mem.WritePointer(slot, tramp); err != nil {
			return patched, err
		}
		patched++
	}
	return patched, nil
}

// stubsEligible is the provenance filter: stub tables are rewritten only
// when the file backing them is the runtime library itself or matches a
// configured extension suffix. Foreign libraries keep their stubs.
func (p *Process) stubsEligible(addr uint64) bool {
	info, ok := p.task.ResolveAddr(addr)
	if !ok {
		return false
	}
	if info.Path == p.runtime {
		return true
	}
	for _, suffix := range p.cfg.ExtSuffixes {
		if strings.HasSuffix(info.Path, suffix) {
			return true
		}
	}
	return false
}
