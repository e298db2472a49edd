package machhook

import (
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

// HostMem is models.Memory over the calling process's own address space.
// Views alias live memory directly, so bytes written through them take
// effect immediately. Nothing here can verify that an address is mapped;
// callers pass only addresses the image headers vouch for.
type HostMem struct{}

func (HostMem) View(addr, size uint64) ([]byte, error) {
	if addr == 0 || size == 0 {
		return nil, errors.Errorf("bad view of 0x%x bytes at 0x%x", size, addr)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), int(size)), nil
}

// WritePointer stores val at addr in one atomic pointer-wide store, the
// swap the stub-slot rewrite relies on. Slots are pointer aligned in any
// well-formed image; an unaligned address means we parsed garbage, so
// refuse it.
func (HostMem) WritePointer(addr, val uint64) error {
	if addr%8 != 0 {
		return errors.Errorf("unaligned pointer write at 0x%x", addr)
	}
	atomic.StoreUint64((*uint64)(unsafe.Pointer(uintptr(addr))), val)
	return nil
}
