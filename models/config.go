package models

// DefaultExtSuffix matches native extension bundles loaded by the runtime.
const DefaultExtSuffix = ".bundle"

// Config carries the process-wide hooking settings. Zero values are filled
// with defaults at boot.
type Config struct {
	// MarkerSymbol is a symbol the target runtime reliably exports; boot
	// locates the runtime's image through it. Required.
	MarkerSymbol string
	// Arch names the registered call-site patcher. Default "x86_64".
	Arch string
	// PageSize used by the executable page allocator. Default is the
	// system page size.
	PageSize int
	// ExtSuffixes are backing-path suffixes, beyond the runtime library
	// itself, whose stub tables may be rewritten.
	// Default {DefaultExtSuffix}.
	ExtSuffixes []string
}
