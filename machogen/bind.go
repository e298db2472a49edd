package machogen

import (
	"encoding/binary"

	"github.com/machhook/machhook/loader"
	"github.com/machhook/machhook/models"
)

// BindSlots stands in for the loader's rebase pass: every pointer slot
// reachable from a stub section of img gets the image's slide added, so
// slots written unslid in the file point at live addresses afterwards.
func (p *Process) BindSlots(img models.Image) error {
	file, err := p.ReadFile(img.Path)
	if err != nil {
		return err
	}
	fi, err := loader.ParseFile(file)
	if err != nil {
		return err
	}
	format := loader.MachO{}
	for _, seg := range fi.Segments {
		for _, sect := range seg.Sections {
			if format.SectionKind(sect.SegName(), sect.SectName()) != models.KindStub {
				continue
			}
			base := uint64(int64(sect.Addr) + img.Slide)
			table, err := p.mem.View(base, sect.Size)
			if err != nil {
				continue
			}
			for off := 0; off+loader.StubEntrySize <= len(table); off += loader.StubEntrySize {
				ent, ok := loader.DecodeStub(table[off:])
				if !ok {
					continue
				}
				slot := ent.SlotAddr(base + uint64(off))
				raw, err := p.mem.View(slot, 8)
				if err != nil {
					continue
				}
				if val := binary.LittleEndian.Uint64(raw); val != 0 {
					binary.LittleEndian.PutUint64(raw, uint64(int64(val)+img.Slide))
				}
			}
		}
	}
	return nil
}
