// Package machhook redirects function calls inside a live process. It
// reads the symbol table of the runtime's own image from disk, resolves
// symbols against the loader's relocation slide, and rewrites the call
// sites of a hooked function, both statically linked calls and
// dynamic-linker stub slots, so they reach a trampoline instead.
//
// Patching happens on live, potentially executing code. A stub slot is
// swapped with one aligned pointer store, so a concurrent caller lands on
// either the old or the new destination, never between. Direct call sites
// are rewritten byte by byte; the process must be quiescent (no thread
// executing the patched range) for that window. Install hooks before the
// threads that exercise them start.
package machhook

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/machhook/machhook/arch"
	"github.com/machhook/machhook/loader"
	"github.com/machhook/machhook/models"
)

var (
	// ErrNoPatchSites means no call site was rewritten for the symbol.
	ErrNoPatchSites = errors.New("no patch sites found")
	// ErrNoExecPage means the allocator ran out of candidate addresses.
	ErrNoExecPage = errors.New("no executable page available")
	// ErrNoTypeInfo means the image format records no type layouts.
	ErrNoTypeInfo = errors.New("no type information in this image format")
)

// Process is a bootstrapped hooking context for one runtime image inside
// the current process.
type Process struct {
	cfg     models.Config
	task    models.Task
	format  models.Format
	patcher models.Patcher
	syms    *models.SymTab
	slide   int64
	runtime string
}

// Boot locates the runtime image through cfg.MarkerSymbol, reads its
// backing file, and extracts its symbol table. Nothing is patched yet.
// Everything here is a hard precondition for hooking, so any failure
// comes back as an error and the Process is not usable.
func Boot(task models.Task, cfg *models.Config) (*Process, error) {
	c := models.Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.MarkerSymbol == "" {
		return nil, errors.New("config is missing a marker symbol")
	}
	if c.Arch == "" {
		c.Arch = "x86_64"
	}
	if c.PageSize == 0 {
		c.PageSize = os.Getpagesize()
	}
	if len(c.ExtSuffixes) == 0 {
		c.ExtSuffixes = []string{models.DefaultExtSuffix}
	}
	patcher, err := arch.GetPatcher(c.Arch)
	if err != nil {
		return nil, err
	}
	p := &Process{cfg: c, task: task, format: loader.MachO{}, patcher: patcher}

	addr, ok := task.LookupSymbol(c.MarkerSymbol)
	if !ok {
		return nil, errors.Errorf("could not find %s in this process", c.MarkerSymbol)
	}
	info, ok := task.ResolveAddr(addr)
	if !ok {
		return nil, errors.Errorf("could not find the image behind %s", c.MarkerSymbol)
	}
	file, err := task.ReadFile(info.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", info.Path)
	}
	if !p.format.Match(file) {
		return nil, errors.Errorf("magic for %s does not match", info.Path)
	}
	imgs, err := task.Images()
	if err != nil {
		return nil, errors.Wrap(err, "image list unavailable")
	}
	found := false
	for _, img := range imgs {
		if img.Base == info.Base {
			p.slide = img.Slide
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Errorf("could not find the image index for %s", info.Path)
	}
	syms, err := p.format.Symtab(file)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s", info.Path)
	}
	p.syms = syms
	p.runtime = info.Path
	log.Debugf("booted on %s: %d symbols, slide 0x%x", info.Path, syms.Len(), p.slide)
	return p, nil
}

// FindSymbol resolves a symbol from the runtime image to its live address.
// Size 0 means the table had no following entry to measure against.
func (p *Process) FindSymbol(name string) (models.Symbol, bool) {
	p.assertBooted()
	return p.syms.Find(name, p.slide)
}

// FindSymbolName names the symbol whose live address is exactly addr.
func (p *Process) FindSymbolName(addr uint64) (string, bool) {
	p.assertBooted()
	return p.syms.FindAddr(addr, p.slide)
}

// Symtab exposes the extracted table, address-sorted.
func (p *Process) Symtab() *models.SymTab {
	p.assertBooted()
	return p.syms
}

// RuntimePath is the backing file the symbol table came from.
func (p *Process) RuntimePath() string { return p.runtime }

// Slide is the loader's relocation offset for the runtime image.
func (p *Process) Slide() int64 { return p.slide }

// TypeSize reports the in-memory size of a named runtime type. Type
// layouts live in debug bundles this format does not carry, so there is
// nothing to consult.
func (p *Process) TypeSize(name string) (uint64, error) {
	return 0, ErrNoTypeInfo
}

// TypeMemberOffset reports the offset of member inside a named runtime
// type. Same story as TypeSize.
func (p *Process) TypeMemberOffset(name, member string) (uint64, error) {
	return 0, ErrNoTypeInfo
}

func (p *Process) assertBooted() {
	if p == nil || p.syms == nil {
		panic("machhook used before boot")
	}
}
