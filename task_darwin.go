//go:build darwin && cgo

package machhook

/*
#include <stdlib.h>
#include <dlfcn.h>
#include <mach-o/dyld.h>

// RTLD_DEFAULT is a macro, so the lookup needs a C-side wrapper.
static void *lookup_default(const char *name) {
	return dlsym(RTLD_DEFAULT, name);
}

static const void *own_image(void) {
	Dl_info info;
	if (dladdr((void *)&own_image, &info) == 0) {
		return 0;
	}
	return info.dli_fbase;
}
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/machhook/machhook/models"
)

// DyldTask is the live models.Task: the image list and slides come from
// the dynamic loader, reverse lookups from dladdr, symbol resolution from
// dlsym, and memory access is the process's own address space.
type DyldTask struct{}

func (DyldTask) Images() ([]models.Image, error) {
	count := uint32(C._dyld_image_count())
	imgs := make([]models.Image, 0, count)
	for i := uint32(0); i < count; i++ {
		hdr := C._dyld_get_image_header(C.uint32_t(i))
		if hdr == nil {
			continue
		}
		imgs = append(imgs, models.Image{
			Path:  C.GoString(C._dyld_get_image_name(C.uint32_t(i))),
			Base:  uint64(uintptr(unsafe.Pointer(hdr))),
			Slide: int64(C._dyld_get_image_vmaddr_slide(C.uint32_t(i))),
		})
	}
	return imgs, nil
}

func (DyldTask) ResolveAddr(addr uint64) (models.AddrInfo, bool) {
	var info C.Dl_info
	if C.dladdr(unsafe.Pointer(uintptr(addr)), &info) == 0 || info.dli_fname == nil {
		return models.AddrInfo{}, false
	}
	return models.AddrInfo{
		Path: C.GoString(info.dli_fname),
		Base: uint64(uintptr(info.dli_fbase)),
	}, true
}

func (DyldTask) LookupSymbol(name string) (uint64, bool) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	ptr := C.lookup_default(cs)
	if ptr == nil {
		return 0, false
	}
	return uint64(uintptr(ptr)), true
}

func (DyldTask) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (DyldTask) Mem() models.Memory {
	return HostMem{}
}

func (DyldTask) Self() uint64 {
	return uint64(uintptr(C.own_image()))
}
