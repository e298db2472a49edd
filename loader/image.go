package loader

import (
	"github.com/pkg/errors"

	"github.com/machhook/machhook/models"
)

// FileSegment is one parsed segment command with its section records.
type FileSegment struct {
	SegmentCmd64
	Sections []Section64
}

// FileImage is the structural layout of an image: the header plus every
// segment command, in load order. The same walk serves on-disk files and
// live headers, since a mapped header keeps the command list contiguous.
type FileImage struct {
	Header   MachHeader64
	Segments []FileSegment
	Symtab   *SymtabCmd
}

// ParseFile parses the header and load commands of an on-disk image.
func ParseFile(file []byte) (*FileImage, error) {
	m := MachO{}
	if !m.Match(file) {
		return nil, errors.Errorf("bad magic in %d byte buffer", len(file))
	}
	return parseCommands(file)
}

// HeaderLen reports how many bytes the header and load commands of the
// image starting at buf occupy.
func HeaderLen(buf []byte) (uint64, error) {
	var hdr MachHeader64
	if err := unpackAt(buf, 0, &hdr); err != nil {
		return 0, err
	}
	return headerSize + uint64(hdr.Cmdsz), nil
}

// parseCommands walks the load commands at buf[headerSize:]. Every record
// is bounds checked against both the buffer and its own command size, so a
// torn or hostile header comes back as an error, never a wild read.
func parseCommands(buf []byte) (*FileImage, error) {
	img := &FileImage{}
	if err := unpackAt(buf, 0, &img.Header); err != nil {
		return nil, err
	}
	end := headerSize + uint64(img.Header.Cmdsz)
	if err := bounds(buf, headerSize, uint64(img.Header.Cmdsz)); err != nil {
		return nil, errors.WithMessage(err, "load commands truncated")
	}
	off := uint64(headerSize)
	for i := uint32(0); i < img.Header.Ncmd; i++ {
		var lc LoadCmd
		if err := unpackAt(buf, off, &lc); err != nil {
			return nil, err
		}
		if lc.Size < loadCmdSize || off+uint64(lc.Size) > end {
			return nil, errors.Errorf("load command %d has impossible size 0x%x", i, lc.Size)
		}
		raw := buf[off : off+uint64(lc.Size)]
		switch lc.Cmd {
		case LoadCmdSegment64:
			seg, err := parseSegment(raw)
			if err != nil {
				return nil, errors.WithMessagef(err, "load command %d", i)
			}
			img.Segments = append(img.Segments, *seg)
		case LoadCmdSymtab:
			var sc SymtabCmd
			if err := unpackAt(raw, 0, &sc); err != nil {
				return nil, errors.WithMessagef(err, "load command %d", i)
			}
			img.Symtab = &sc
		}
		off += uint64(lc.Size)
	}
	return img, nil
}

func parseSegment(raw []byte) (*FileSegment, error) {
	seg := &FileSegment{}
	if err := unpackAt(raw, 0, &seg.SegmentCmd64); err != nil {
		return nil, err
	}
	if uint64(seg.Nsect) > (uint64(len(raw))-segCmdSize)/sectionSize {
		return nil, errors.Errorf("segment %s claims %d sections in a 0x%x byte command",
			seg.SegName(), seg.Nsect, len(raw))
	}
	for j := uint64(0); j < uint64(seg.Nsect); j++ {
		var sect Section64
		if err := unpackAt(raw, segCmdSize+j*sectionSize, &sect); err != nil {
			return nil, err
		}
		seg.Sections = append(seg.Sections, sect)
	}
	return seg, nil
}

// Image parses the structural metadata of a live image mapped at base.
// Addresses in the result are the unslid ones from the header; callers
// apply the image's slide themselves.
func (m MachO) Image(mem models.Memory, base uint64) (models.ObjectImage, error) {
	hdrBuf, err := mem.View(base, headerSize)
	if err != nil {
		return nil, errors.WithMessagef(err, "image header at 0x%x", base)
	}
	if !m.Match(hdrBuf) {
		return nil, errors.Errorf("image at 0x%x: bad magic", base)
	}
	size, err := HeaderLen(hdrBuf)
	if err != nil {
		return nil, err
	}
	buf, err := mem.View(base, size)
	if err != nil {
		return nil, errors.WithMessagef(err, "load commands at 0x%x", base)
	}
	fi, err := parseCommands(buf)
	if err != nil {
		return nil, err
	}
	return &machoImage{fi: fi}, nil
}

type machoImage struct {
	fi *FileImage
}

func (m *machoImage) Segments() []models.SegmentInfo {
	segs := make([]models.SegmentInfo, len(m.fi.Segments))
	for i, seg := range m.fi.Segments {
		segs[i] = models.SegmentInfo{
			Index: i,
			Name:  seg.SegName(),
			Addr:  seg.Addr,
			Size:  seg.Memsz,
		}
	}
	return segs
}

func (m *machoImage) Sections(seg models.SegmentInfo) []models.SectionInfo {
	if seg.Index < 0 || seg.Index >= len(m.fi.Segments) {
		return nil
	}
	sects := make([]models.SectionInfo, 0, len(m.fi.Segments[seg.Index].Sections))
	for _, s := range m.fi.Segments[seg.Index].Sections {
		sects = append(sects, models.SectionInfo{
			Segment: s.SegName(),
			Name:    s.SectName(),
			Addr:    s.Addr,
			Size:    s.Size,
		})
	}
	return sects
}
