// Package loader parses the 64-bit little-endian Mach-O flavor the host
// loader maps, both from on-disk files and from live image headers. It
// avoids debug/macho: live headers carry slid addresses and no backing
// ReaderAt, and symbol extraction needs the raw string-table offsets the
// stdlib hides behind resolved names.
package loader

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/machhook/machhook/models"
)

const (
	MagicMach64 = 0xfeedfacf

	LoadCmdSegment64 = 0x19
	LoadCmdSymtab    = 0x2

	CpuX86_64 = 0x01000007

	TypeExec   = 0x2
	TypeDylib  = 0x6
	TypeBundle = 0x8

	headerSize  = 32
	loadCmdSize = 8
	segCmdSize  = 72
	sectionSize = 80
	nlistSize   = 16
)

// MachHeader64 is the fixed header at the start of every image.
type MachHeader64 struct {
	Magic    uint32
	Cpu      uint32
	SubCpu   uint32
	FileType uint32
	Ncmd     uint32
	Cmdsz    uint32
	Flags    uint32
	Reserved uint32
}

// LoadCmd prefixes every load command.
type LoadCmd struct {
	Cmd  uint32
	Size uint32
}

// SegmentCmd64 describes one mapped segment; Nsect section records follow
// the fixed part inside the same load command.
type SegmentCmd64 struct {
	Cmd     uint32
	Size    uint32
	Name    [16]byte
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot uint32
	Prot    uint32
	Nsect   uint32
	Flag    uint32
}

// Section64 is one section record inside a segment command.
type Section64 struct {
	Name     [16]byte
	Seg      [16]byte
	Addr     uint64
	Size     uint64
	Offset   uint32
	Align    uint32
	Reloff   uint32
	Nreloc   uint32
	Flags    uint32
	Reserve1 uint32
	Reserve2 uint32
	Reserve3 uint32
}

// SymtabCmd points at the nlist array and the string table.
type SymtabCmd struct {
	Cmd     uint32
	Size    uint32
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

// Nlist64 is one on-disk symbol record.
type Nlist64 struct {
	Strx  uint32
	Type  uint8
	Sect  uint8
	Desc  uint16
	Value uint64
}

func (s *SegmentCmd64) SegName() string { return cstr(s.Name[:]) }
func (s *Section64) SectName() string   { return cstr(s.Name[:]) }
func (s *Section64) SegName() string    { return cstr(s.Seg[:]) }

// MachO implements models.Format.
type MachO struct{}

var machoMagic = []byte{0xcf, 0xfa, 0xed, 0xfe}

// Match accepts only the 64-bit little-endian magic. Fat archives and
// foreign-endian images are not understood; bootstrap treats them as a
// mismatch instead of guessing.
func (MachO) Match(buf []byte) bool {
	return len(buf) >= 4 && bytes.Equal(buf[:4], machoMagic)
}

// SectionKind keys off section names the way the platform toolchain emits
// them: "__text" holds statically linked call sites, "__symbol_stub*" and
// the newer "__stubs" hold dynamic-linker jump tables.
func (MachO) SectionKind(segment, section string) models.SectionKind {
	switch {
	case section == "__text":
		return models.KindText
	case strings.HasPrefix(section, "__symbol_stub"), section == "__stubs":
		return models.KindStub
	}
	return models.KindOther
}

func cstr(p []byte) string {
	for i, b := range p {
		if b == 0 {
			return string(p[:i])
		}
	}
	return string(p)
}

func bounds(buf []byte, off, size uint64) error {
	if off > uint64(len(buf)) || size > uint64(len(buf))-off {
		return errors.Errorf("0x%x bytes at 0x%x run past the buffer (0x%x)", size, off, len(buf))
	}
	return nil
}

func unpackAt(buf []byte, off uint64, i interface{}) error {
	size, err := struc.Sizeof(i)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := bounds(buf, off, uint64(size)); err != nil {
		return err
	}
	r := bytes.NewReader(buf[off : off+uint64(size)])
	return errors.WithStack(struc.UnpackWithOrder(r, i, binary.LittleEndian))
}
