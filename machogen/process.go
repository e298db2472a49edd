package machogen

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/machhook/machhook/loader"
	"github.com/machhook/machhook/models"
)

// Process is a synthetic loaded process backed by plain byte ranges. It
// implements models.Task: a mapped image list, reverse address lookup, a
// dynamic-resolver table, and file contents served from memory.
type Process struct {
	images  []models.Image
	mem     *Memory
	exports map[string]uint64
	files   map[string][]byte
	extents map[uint64][]extent // keyed by image base
	self    uint64
}

type extent struct {
	lo, hi uint64
}

func NewProcess() *Process {
	return &Process{
		mem:     &Memory{},
		exports: map[string]uint64{},
		files:   map[string][]byte{},
		extents: map[uint64][]extent{},
	}
}

// Map loads a built image the way the platform loader would: the header
// and load commands land at the first segment's slid address, every
// section's contents land at its slid section address, defined symbols
// are exported, and the file bytes are served under path. Returns the
// resulting image entry.
func (p *Process) Map(file []byte, path string, slide int64) (models.Image, error) {
	fi, err := loader.ParseFile(file)
	if err != nil {
		return models.Image{}, err
	}
	if len(fi.Segments) == 0 {
		return models.Image{}, errors.Errorf("%s has no segments", path)
	}
	hdrlen, err := loader.HeaderLen(file)
	if err != nil {
		return models.Image{}, err
	}
	base := uint64(int64(fi.Segments[0].Addr) + slide)
	img := models.Image{Path: path, Base: base, Slide: slide}
	var ext []extent
	if err := p.mem.put(base, file[:hdrlen]); err != nil {
		return models.Image{}, err
	}
	ext = append(ext, extent{base, base + hdrlen})
	for _, seg := range fi.Segments {
		for _, sect := range seg.Sections {
			if sect.Size == 0 {
				continue
			}
			end := uint64(sect.Offset) + sect.Size
			if end > uint64(len(file)) {
				return models.Image{}, errors.Errorf("%s: section %s runs past the file", path, sect.SectName())
			}
			addr := uint64(int64(sect.Addr) + slide)
			if err := p.mem.put(addr, file[sect.Offset:end]); err != nil {
				return models.Image{}, err
			}
			ext = append(ext, extent{addr, addr + sect.Size})
		}
	}
	tab, err := loader.MachO{}.Symtab(file)
	if err == nil {
		for i := 0; i < tab.Len(); i++ {
			ent := tab.Entry(i)
			if ent.Sect != 0 {
				p.exports[tab.Name(i)] = uint64(int64(ent.Addr) + slide)
			}
		}
	}
	p.images = append(p.images, img)
	p.extents[base] = ext
	p.files[path] = file
	return img, nil
}

// MapRaw registers an image whose header bytes are given verbatim, for
// fixtures that need a torn or foreign header in the list.
func (p *Process) MapRaw(path string, base uint64, slide int64, raw []byte) error {
	if err := p.mem.put(base, raw); err != nil {
		return err
	}
	p.images = append(p.images, models.Image{Path: path, Base: base, Slide: slide})
	p.extents[base] = []extent{{base, base + uint64(len(raw))}}
	return nil
}

// Export adds or overrides a dynamic-resolver entry.
func (p *Process) Export(name string, addr uint64) {
	p.exports[name] = addr
}

// AddFile serves data under path without mapping anything.
func (p *Process) AddFile(path string, data []byte) {
	p.files[path] = data
}

// SetSelf marks the image base the hook machinery should treat as its own.
func (p *Process) SetSelf(base uint64) {
	p.self = base
}

func (p *Process) Images() ([]models.Image, error) {
	return p.images, nil
}

func (p *Process) ResolveAddr(addr uint64) (models.AddrInfo, bool) {
	for _, img := range p.images {
		for _, e := range p.extents[img.Base] {
			if addr >= e.lo && addr < e.hi {
				return models.AddrInfo{Path: img.Path, Base: img.Base}, true
			}
		}
	}
	return models.AddrInfo{}, false
}

func (p *Process) LookupSymbol(name string) (uint64, bool) {
	addr, ok := p.exports[name]
	return addr, ok
}

func (p *Process) ReadFile(path string) ([]byte, error) {
	file, ok := p.files[path]
	if !ok {
		return nil, errors.Errorf("no such file: %s", path)
	}
	return file, nil
}

func (p *Process) Mem() models.Memory {
	return p.mem
}

func (p *Process) Self() uint64 {
	return p.self
}

// Memory is a sparse address space of non-overlapping ranges. Views alias
// the stored bytes, so patches through them are visible to later reads.
type Memory struct {
	ranges []memRange
}

type memRange struct {
	addr uint64
	data []byte
}

func (m *Memory) put(addr uint64, data []byte) error {
	lo, hi := addr, addr+uint64(len(data))
	for _, r := range m.ranges {
		if lo < r.addr+uint64(len(r.data)) && r.addr < hi {
			return errors.Errorf("range 0x%x-0x%x overlaps 0x%x", lo, hi, r.addr)
		}
	}
	own := make([]byte, len(data))
	copy(own, data)
	m.ranges = append(m.ranges, memRange{addr: addr, data: own})
	sort.Slice(m.ranges, func(i, j int) bool {
		return m.ranges[i].addr < m.ranges[j].addr
	})
	return nil
}

func (m *Memory) bsearch(addr uint64) *memRange {
	lo, hi := 0, len(m.ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		r := &m.ranges[mid]
		if addr < r.addr {
			hi = mid
		} else if addr >= r.addr+uint64(len(r.data)) {
			lo = mid + 1
		} else {
			return r
		}
	}
	return nil
}

func (m *Memory) View(addr, size uint64) ([]byte, error) {
	r := m.bsearch(addr)
	if r == nil {
		return nil, errors.Errorf("0x%x is not mapped", addr)
	}
	off := addr - r.addr
	if size > uint64(len(r.data))-off {
		return nil, errors.Errorf("0x%x bytes at 0x%x cross the end of the mapping", size, addr)
	}
	return r.data[off : off+size], nil
}

func (m *Memory) WritePointer(addr, val uint64) error {
	view, err := m.View(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(view, val)
	return nil
}
