//go:build darwin || linux

package machhook

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocLimit caps the probe. Trampolines want to sit low, within rel32
// reach of the text segments the patcher rewrites.
const allocLimit = 1 << 31

// AllocExecPage maps one page of read/write/execute memory, probing hint
// addresses upward from the lowest page. The hint is advisory; the first
// successful mapping wins, wherever the kernel put it. The page comes
// back filled with nop.
func AllocExecPage(pagesize int, nop byte) ([]byte, error) {
	return allocPage(pagesize, allocLimit, nop)
}

// AllocPage allocates a trampoline page sized and filled per the process
// config and arch.
func (p *Process) AllocPage() ([]byte, error) {
	return allocPage(p.cfg.PageSize, allocLimit, p.patcher.Nop())
}

func allocPage(pagesize int, limit uint64, nop byte) ([]byte, error) {
	for addr := uint64(pagesize); addr < limit-uint64(pagesize); addr += uint64(pagesize) {
		hint := unsafe.Pointer(uintptr(addr))
		ptr, err := unix.MmapPtr(-1, 0, hint, uintptr(pagesize),
			unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
			unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			continue
		}
		page := unsafe.Slice((*byte)(ptr), pagesize)
		for i := range page {
			page[i] = nop
		}
		return page, nil
	}
	return nil, ErrNoExecPage
}

// FreePage unmaps a page from AllocExecPage. Never free a page holding a
// live trampoline.
func FreePage(page []byte) error {
	return unix.MunmapPtr(unsafe.Pointer(&page[0]), uintptr(len(page)))
}
