package models

// Memory is mutable access to an address space. View returns a slice
// aliasing the underlying memory, so writes through it land in place.
type Memory interface {
	View(addr, size uint64) ([]byte, error)
	// WritePointer stores val at addr as one aligned pointer-size write.
	WritePointer(addr, val uint64) error
}

// Task is the loader-state view of a live process. The production
// implementation asks the platform's dynamic loader; tests substitute a
// synthetic one.
type Task interface {
	// Images lists every object file currently mapped.
	Images() ([]Image, error)
	// ResolveAddr names the image owning addr.
	ResolveAddr(addr uint64) (AddrInfo, bool)
	// LookupSymbol resolves a source-level name through the process's
	// dynamic resolver.
	LookupSymbol(name string) (uint64, bool)
	// ReadFile returns the contents of an image's backing file.
	ReadFile(path string) ([]byte, error)
	Mem() Memory
	// Self is the header address of the image this code is loaded from,
	// or 0 when unknown. The walker refuses to patch it.
	Self() uint64
}
