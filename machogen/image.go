// Package machogen builds small but structurally honest Mach-O images and
// maps them into a synthetic process, so symbol extraction and call
// patching can be exercised without a live runtime underneath.
package machogen

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/machhook/machhook/loader"
)

// Image accumulates sections and symbols and then serializes them as one
// 64-bit little-endian object file. Sections keep insertion order, the
// first segment stands in for __TEXT and notionally covers the header, so
// its sections should start at 0x1000 or above.
type Image struct {
	fileType uint32
	segs     []*genSeg
	syms     []genSym
}

type genSeg struct {
	name  string
	sects []genSect
}

type genSect struct {
	name string
	addr uint64
	data []byte
}

type genSym struct {
	name string
	addr uint64
	def  bool
}

func NewImage() *Image {
	return &Image{fileType: loader.TypeDylib}
}

// FileType overrides the default dylib file type.
func (b *Image) FileType(t uint32) *Image {
	b.fileType = t
	return b
}

// Section adds data as section sect of segment seg at unslid address addr.
// Segments are created on first use, in call order.
func (b *Image) Section(seg, sect string, addr uint64, data []byte) *Image {
	s := b.segment(seg)
	s.sects = append(s.sects, genSect{name: sect, addr: addr, data: data})
	return b
}

// Symbol defines a symbol at an unslid address. The stored name gets the
// platform's '_' mangle prefix; look it up by the name given here.
func (b *Image) Symbol(name string, addr uint64) *Image {
	b.syms = append(b.syms, genSym{name: name, addr: addr, def: true})
	return b
}

// Undef records an undefined import entry. Extraction keeps these, so
// fixtures should have some.
func (b *Image) Undef(name string) *Image {
	b.syms = append(b.syms, genSym{name: name})
	return b
}

func (b *Image) segment(name string) *genSeg {
	for _, s := range b.segs {
		if s.name == name {
			return s
		}
	}
	s := &genSeg{name: name}
	b.segs = append(b.segs, s)
	return s
}

// Build serializes the image. The layout is header, load commands, section
// contents, nlist array, string table.
func (b *Image) Build() ([]byte, error) {
	sizes, err := recordSizes()
	if err != nil {
		return nil, err
	}
	cmdsz := uint32(sizes.symtab)
	for _, seg := range b.segs {
		cmdsz += uint32(sizes.segCmd + len(seg.sects)*sizes.section)
	}
	// lay out section contents past the commands, 16 byte aligned
	off := uint32(sizes.header) + cmdsz
	offsets := map[*genSeg][]uint32{}
	for _, seg := range b.segs {
		for _, sect := range seg.sects {
			off = align16(off)
			offsets[seg] = append(offsets[seg], off)
			off += uint32(len(sect.data))
		}
	}
	symoff := align16(off)
	nlists, strtab := b.symtab()
	stroff := symoff + uint32(len(nlists)*sizes.nlist)

	var buf bytes.Buffer
	hdr := loader.MachHeader64{
		Magic:    loader.MagicMach64,
		Cpu:      loader.CpuX86_64,
		FileType: b.fileType,
		Ncmd:     uint32(len(b.segs) + 1),
		Cmdsz:    cmdsz,
	}
	if err := struc.PackWithOrder(&buf, &hdr, binary.LittleEndian); err != nil {
		return nil, errors.WithStack(err)
	}
	for _, seg := range b.segs {
		if err := b.packSegment(&buf, seg, offsets[seg], sizes); err != nil {
			return nil, err
		}
	}
	sc := loader.SymtabCmd{
		Cmd:     loader.LoadCmdSymtab,
		Size:    uint32(sizes.symtab),
		Symoff:  symoff,
		Nsyms:   uint32(len(nlists)),
		Stroff:  stroff,
		Strsize: uint32(len(strtab)),
	}
	if err := struc.PackWithOrder(&buf, &sc, binary.LittleEndian); err != nil {
		return nil, errors.WithStack(err)
	}
	for _, seg := range b.segs {
		for i, sect := range seg.sects {
			pad(&buf, int(offsets[seg][i]))
			buf.Write(sect.data)
		}
	}
	pad(&buf, int(symoff))
	for i := range nlists {
		if err := struc.PackWithOrder(&buf, &nlists[i], binary.LittleEndian); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	buf.Write(strtab)
	return buf.Bytes(), nil
}

func (b *Image) packSegment(buf *bytes.Buffer, seg *genSeg, offsets []uint32, sizes recSizes) error {
	lo, hi := seg.sects[0].addr, uint64(0)
	for _, sect := range seg.sects {
		if sect.addr < lo {
			lo = sect.addr
		}
		if end := sect.addr + uint64(len(sect.data)); end > hi {
			hi = end
		}
	}
	vmaddr := lo &^ 0xfff
	if b.segs[0] == seg && vmaddr == lo {
		// the first segment covers the header one page below its
		// first section
		vmaddr -= 0x1000
	}
	cmd := loader.SegmentCmd64{
		Cmd:    loader.LoadCmdSegment64,
		Size:   uint32(sizes.segCmd + len(seg.sects)*sizes.section),
		Addr:   vmaddr,
		Memsz:  hi - vmaddr,
		Offset: uint64(offsets[0]),
		Filesz: hi - lo,
		Nsect:  uint32(len(seg.sects)),
	}
	copy(cmd.Name[:], seg.name)
	if err := struc.PackWithOrder(buf, &cmd, binary.LittleEndian); err != nil {
		return errors.WithStack(err)
	}
	for i, sect := range seg.sects {
		rec := loader.Section64{
			Addr:   sect.addr,
			Size:   uint64(len(sect.data)),
			Offset: offsets[i],
			Align:  4,
		}
		copy(rec.Name[:], sect.name)
		copy(rec.Seg[:], seg.name)
		if err := struc.PackWithOrder(buf, &rec, binary.LittleEndian); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (b *Image) symtab() ([]loader.Nlist64, []byte) {
	strtab := []byte{0}
	nlists := make([]loader.Nlist64, 0, len(b.syms))
	for _, sym := range b.syms {
		n := loader.Nlist64{Strx: uint32(len(strtab))}
		strtab = append(strtab, '_')
		strtab = append(strtab, sym.name...)
		strtab = append(strtab, 0)
		if sym.def {
			n.Type = 0x0f // N_SECT|N_EXT
			n.Sect = 1
			n.Value = sym.addr
		} else {
			n.Type = 0x01 // N_UNDF|N_EXT
		}
		nlists = append(nlists, n)
	}
	return nlists, strtab
}

type recSizes struct {
	header  int
	segCmd  int
	section int
	symtab  int
	nlist   int
}

func recordSizes() (recSizes, error) {
	var s recSizes
	var err error
	if s.header, err = struc.Sizeof(&loader.MachHeader64{}); err != nil {
		return s, errors.WithStack(err)
	}
	if s.segCmd, err = struc.Sizeof(&loader.SegmentCmd64{}); err != nil {
		return s, errors.WithStack(err)
	}
	if s.section, err = struc.Sizeof(&loader.Section64{}); err != nil {
		return s, errors.WithStack(err)
	}
	if s.symtab, err = struc.Sizeof(&loader.SymtabCmd{}); err != nil {
		return s, errors.WithStack(err)
	}
	if s.nlist, err = struc.Sizeof(&loader.Nlist64{}); err != nil {
		return s, errors.WithStack(err)
	}
	return s, nil
}

func align16(off uint32) uint32 {
	return (off + 15) &^ 15
}

func pad(buf *bytes.Buffer, to int) {
	for buf.Len() < to {
		buf.WriteByte(0)
	}
}
