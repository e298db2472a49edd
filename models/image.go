package models

// Image is one object file mapped into the process: its backing path, the
// live address of its header, and the offset the loader applied to every
// on-disk address.
type Image struct {
	Path  string
	Base  uint64
	Slide int64
}

// AddrInfo names the image owning an address.
type AddrInfo struct {
	Path string
	Base uint64
}

// SectionKind classifies sections by what a hook walker may do to them.
type SectionKind int

const (
	// KindOther sections are never touched.
	KindOther SectionKind = iota
	// KindText sections hold statically linked call sites.
	KindText
	// KindStub sections hold dynamic-linker jump tables.
	KindStub
)

// SegmentInfo is the walker's view of one mapped segment. Index is the
// segment's position in the image's load order.
type SegmentInfo struct {
	Index int
	Name  string
	Addr  uint64
	Size  uint64
}

// SectionInfo is the walker's view of one section. Addr is the unslid
// address from the image header.
type SectionInfo struct {
	Segment string
	Name    string
	Addr    uint64
	Size    uint64
}
