package models

// Format is the object-format capability: everything symbol extraction and
// the hook walker need to know about how the host loader lays out images.
type Format interface {
	// Match reports whether buf starts with the format's magic.
	Match(buf []byte) bool
	// Symtab extracts the symbol table from an image's on-disk bytes.
	Symtab(file []byte) (*SymTab, error)
	// Image parses the structural metadata of a live image whose header
	// is mapped at base.
	Image(mem Memory, base uint64) (ObjectImage, error)
	// SectionKind classifies a section by its segment and section names.
	SectionKind(segment, section string) SectionKind
}

// ObjectImage is the parsed structure of one mapped image.
type ObjectImage interface {
	Segments() []SegmentInfo
	Sections(seg SegmentInfo) []SectionInfo
}
